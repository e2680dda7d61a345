/*
Package roster
File: roster.go
Description:
    Shared plumbing for the pilot and mech subsystems.

    Both managers write only their own collections ('pilots' and the pilot
    pool, 'mechs' and the listings). The pilot/mech pairing is the one
    place they touch each other's records, and it is always written in a
    single store.Update so both weak references change together.

    Money never moves here directly: every fee, price and refund is a
    company:expense or company:income request answered with a Receipt.
*/

package roster

import (
	"errors"
	"fmt"

	"github.com/everforgeworks/merc-command/internal/event"
	"github.com/everforgeworks/merc-command/internal/game"
	"github.com/everforgeworks/merc-command/internal/state"
)

// Rejection reasons carried by roster:rejected.
const (
	ReasonNotFound          = "not_found"
	ReasonInsufficientFunds = "insufficient_funds"
	ReasonDeployed          = "deployed"
	ReasonUnavailable       = "unavailable"
	ReasonNoDamage          = "no_damage"
	ReasonBusy              = "busy"
)

// RejectionError is an expected refusal of a roster command.
type RejectionError struct {
	Action string
	ID     string
	Reason string
	Detail string
}

func (e *RejectionError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: %s (%s)", e.Action, e.ID, e.Reason, e.Detail)
	}
	return fmt.Sprintf("%s %s: %s", e.Action, e.ID, e.Reason)
}

// ReasonOf extracts the rejection reason from err, or "" for faults.
func ReasonOf(err error) string {
	var re *RejectionError
	if errors.As(err, &re) {
		return re.Reason
	}
	return ""
}

// treasury sends money requests to the company subsystem.
type treasury struct {
	bus *event.Bus
}

func (t treasury) request(name string, amount int64, category, reason string) game.Receipt {
	results := t.bus.Publish(name, game.Money{Amount: amount, Category: category, Reason: reason})
	r, ok := event.First[game.Receipt](results)
	if !ok {
		return game.Receipt{Reason: "no treasury"}
	}
	return r
}

func (t treasury) spend(amount int64, category, reason string) game.Receipt {
	if amount <= 0 {
		return game.Receipt{Approved: true}
	}
	return t.request(game.EventExpense, amount, category, reason)
}

func (t treasury) credit(amount int64, category, reason string) game.Receipt {
	if amount <= 0 {
		return game.Receipt{Approved: true}
	}
	return t.request(game.EventIncome, amount, category, reason)
}

// buy writes next and charges amount for it. The write lands first; a
// refused charge restores prev, so funds only move for a committed change.
func (t treasury) buy(store *state.Store, amount int64, category, reason string, next, prev map[string]any) (game.Receipt, error) {
	// 1. Cheap refusal before touching anything
	if funds := store.Company().Funds; funds < amount {
		return game.Receipt{Balance: funds, Reason: fmt.Sprintf("insufficient funds: need %s, have %s",
			game.FormatCBills(amount), game.FormatCBills(funds))}, nil
	}

	// 2. Commit
	if err := store.Update(next); err != nil {
		return game.Receipt{}, err
	}

	// 3. Charge, or undo
	r := t.spend(amount, category, reason)
	if !r.Approved {
		if err := store.Update(prev); err != nil {
			return r, fmt.Errorf("roll back %s: %w", reason, err)
		}
	}
	return r, nil
}

// deployed returns the pilot and mech ids committed to active contracts.
func deployed(active []state.ActiveContract) map[string]bool {
	out := make(map[string]bool)
	for _, a := range active {
		for _, id := range a.Deployment.PilotIDs {
			out[id] = true
		}
		for _, id := range a.Deployment.MechIDs {
			out[id] = true
		}
	}
	return out
}

func indexPilot(pilots []state.Pilot, id string) int {
	for i := range pilots {
		if pilots[i].ID == id {
			return i
		}
	}
	return -1
}

func indexMech(mechs []state.Mech, id string) int {
	for i := range mechs {
		if mechs[i].ID == id {
			return i
		}
	}
	return -1
}

// release clears both sides of any pairing involving pilotID or mechID.
func release(pilots []state.Pilot, mechs []state.Mech, pilotID, mechID string) {
	for i := range pilots {
		if pilots[i].ID == pilotID || (mechID != "" && pilots[i].MechID == mechID) {
			pilots[i].MechID = ""
		}
	}
	for i := range mechs {
		if mechs[i].ID == mechID || (pilotID != "" && mechs[i].PilotID == pilotID) {
			mechs[i].PilotID = ""
		}
	}
}

// writeRoster stores both collections in one atomic update.
func writeRoster(store *state.Store, pilots []state.Pilot, mechs []state.Mech) error {
	return store.Update(map[string]any{
		state.PathPilots: pilots,
		state.PathMechs:  mechs,
	})
}

// reject announces and returns a refusal.
func reject(bus *event.Bus, action, id, reason, detail string) error {
	bus.Publish(game.EventRosterRejected, game.RosterRejected{Action: action, ID: id, Reason: reason})
	return &RejectionError{Action: action, ID: id, Reason: reason, Detail: detail}
}
