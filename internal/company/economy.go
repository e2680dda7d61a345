/*
Package company
File: economy.go
Description:
    The company ledger: monthly expenses, spending, income and contract
    settlement. The company subsystem is the only writer of company.funds,
    company.expenses, company.income and statistics.

    A shortfall is not an error. Funds drop to zero and
    company:financialCrisis is published; the faction subsystem applies the
    reputation penalty.
*/

package company

import (
	"fmt"

	"github.com/everforgeworks/merc-command/internal/game"
	"github.com/everforgeworks/merc-command/internal/state"
)

// MonthlyExpenses recomputes the ledger from the current roster.
func (m *Manager) MonthlyExpenses() state.Expenses {
	exp := m.store.Company().Expenses
	exp.Salaries, exp.Maintenance = game.RosterCosts(m.store.Pilots(), m.store.Mechs())
	return exp
}

// RefreshLedger writes the recomputed salary and maintenance lines.
func (m *Manager) RefreshLedger() error {
	exp := m.MonthlyExpenses()
	cur := m.store.Company().Expenses
	if exp == cur {
		return nil
	}
	return m.store.Update(map[string]any{
		state.PathSalaries:    exp.Salaries,
		state.PathMaintenance: exp.Maintenance,
	})
}

// PayMonthlyExpenses settles one accounting period.
func (m *Manager) PayMonthlyExpenses() (game.ExpensesPaid, error) {
	exp := m.MonthlyExpenses()
	total := exp.Total()
	funds := m.store.Company().Funds
	stats := m.store.Statistics()

	// 1. Shortfall: pay what we can, then raise the crisis
	if funds < total {
		crisis := game.FinancialCrisis{Deficit: total - funds, Required: total, Available: funds}
		if err := m.store.Update(map[string]any{
			state.PathFunds:                   int64(0),
			state.PathSalaries:                exp.Salaries,
			state.PathMaintenance:             exp.Maintenance,
			state.PathIncome:                  int64(0),
			state.StatPath("totalExpenses"):   stats.TotalExpenses + funds,
			state.StatPath("monthsElapsed"):   stats.MonthsElapsed + 1,
			state.StatPath("financialCrises"): stats.FinancialCrises + 1,
		}); err != nil {
			return game.ExpensesPaid{}, err
		}
		m.log.Warn("Financial crisis",
			"required", game.FormatCBills(total),
			"available", game.FormatCBills(funds),
			"deficit", game.FormatCBills(crisis.Deficit),
		)
		m.bus.Publish(game.EventFinancialCrisis, crisis)
		return game.ExpensesPaid{Breakdown: exp, Total: total, Remaining: 0}, nil
	}

	// 2. Normal payment
	remaining := funds - total
	if err := m.store.Update(map[string]any{
		state.PathFunds:                 remaining,
		state.PathSalaries:              exp.Salaries,
		state.PathMaintenance:           exp.Maintenance,
		state.PathIncome:                int64(0),
		state.StatPath("totalExpenses"): stats.TotalExpenses + total,
		state.StatPath("monthsElapsed"): stats.MonthsElapsed + 1,
	}); err != nil {
		return game.ExpensesPaid{}, err
	}

	paid := game.ExpensesPaid{Breakdown: exp, Total: total, Remaining: remaining}
	m.log.Info("Monthly expenses paid", "total", game.FormatCBills(total), "remaining", game.FormatCBills(remaining))
	m.bus.Publish(game.EventExpensesPaid, paid)
	return paid, nil
}

// Spend debits funds. It never lets funds go negative.
func (m *Manager) Spend(amount int64, reason string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	c := m.store.Company()
	if c.Funds < amount {
		return c.Funds, fmt.Errorf("%w: need %s, have %s", ErrInsufficientFunds, game.FormatCBills(amount), game.FormatCBills(c.Funds))
	}
	stats := m.store.Statistics()
	balance := c.Funds - amount
	if err := m.store.Update(map[string]any{
		state.PathFunds:                 balance,
		state.StatPath("totalExpenses"): stats.TotalExpenses + amount,
	}); err != nil {
		return c.Funds, err
	}
	m.log.Debug("Funds spent", "amount", game.FormatCBills(amount), "reason", reason)
	return balance, nil
}

// Credit adds to funds and to this period's income.
func (m *Manager) Credit(amount int64, reason string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	c := m.store.Company()
	stats := m.store.Statistics()
	balance := c.Funds + amount
	if err := m.store.Update(map[string]any{
		state.PathFunds:                 balance,
		state.PathIncome:                c.Income + amount,
		state.StatPath("totalEarnings"): stats.TotalEarnings + amount,
	}); err != nil {
		return c.Funds, err
	}
	m.log.Debug("Funds credited", "amount", game.FormatCBills(amount), "reason", reason)
	return balance, nil
}

// OnContractCompleted settles a finished contract: payment and the full
// reputation reward on success, a flat penalty with everyone on failure.
// Either way the rating is reviewed.
func (m *Manager) OnContractCompleted(done game.ContractCompleted) error {
	stats := m.store.Statistics()

	if done.Success {
		if total := done.Payment + done.Bonuses; total > 0 {
			if _, err := m.Credit(total, "contract "+done.Contract.ID); err != nil {
				return err
			}
		}
		for f, rep := range done.Contract.Rewards.Reputation {
			m.bus.Publish(game.EventAdjustReputation, game.ReputationDelta{
				Faction: f,
				Delta:   float64(rep),
				Reason:  "contract completed",
			})
		}
		if err := m.store.Set(state.StatPath("contractsCompleted"), stats.ContractsCompleted+1); err != nil {
			return err
		}
	} else {
		m.bus.Publish(game.EventAdjustAll, game.ReputationAll{
			Delta:  -float64(m.balance.FailurePenalty),
			Reason: "contract failed",
		})
		if err := m.store.Set(state.StatPath("contractsFailed"), stats.ContractsFailed+1); err != nil {
			return err
		}
	}

	m.bus.Publish(game.EventEvaluateRating, nil)
	return nil
}
