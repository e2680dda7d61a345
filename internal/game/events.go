/*
Package game
File: events.go
Description:
    The event vocabulary of the game: every event name the subsystems and
    the UI collaborators exchange, and the payload struct each one carries.

    DefineEvents registers the whole catalog with a bus. Anything not listed
    here cannot be published. Names flagged Inbound are the commands a UI
    shell may send over the wire.
*/

package game

import (
	"github.com/everforgeworks/merc-command/internal/event"
	"github.com/everforgeworks/merc-command/internal/state"
)

// Commands accepted from UI collaborators.
const (
	EventAdvanceTime     = "company:advanceTime"
	EventContractAccept  = "contract:accept"
	EventContractRefresh = "contract:refresh"
	EventPilotHire       = "pilot:hire"
	EventPilotFire       = "pilot:fire"
	EventPilotAssign     = "pilot:assign"
	EventMechPurchase    = "mech:purchase"
	EventMechRepair      = "mech:repair"
	EventMechSell        = "mech:sell"
	EventScreenChanged   = "screen:changed"
	EventPause           = "game:pause"
	EventResume          = "game:resume"
	EventSave            = "game:save"
	EventLoad            = "game:load"
	EventConfirmResolve  = "confirm:resolve"
)

// Internal requests between subsystems.
const (
	EventExpense          = "company:expense"
	EventIncome           = "company:income"
	EventEvaluateRating   = "company:evaluateRating"
	EventAdjustReputation = "faction:adjustReputation"
	EventAdjustAll        = "faction:adjustAll"
	EventContractComplete = "contract:complete"
	EventMechDamaged      = "mech:damaged"
	EventPilotInjured     = "pilot:injured"
)

// Notifications published by the core.
const (
	EventTimeAdvanced       = "company:timeAdvanced"
	EventMonthElapsed       = "company:monthElapsed"
	EventExpensesPaid       = "company:monthlyExpensesPaid"
	EventFinancialCrisis    = "company:financialCrisis"
	EventRatingChanged      = "company:ratingChanged"
	EventRandomEvent        = "company:randomEvent"
	EventReputationChanged  = "faction:reputationChanged"
	EventContractsRefreshed = "contract:refreshed"
	EventContractAccepted   = "contract:accepted"
	EventAcceptRejected     = "contract:acceptRejected"
	EventContractsExpired   = "contract:expired"
	EventContractCompleted  = "contract:completed"
	EventPilotHired         = "pilot:hired"
	EventPilotFired         = "pilot:fired"
	EventPilotAssigned      = "pilot:assigned"
	EventPilotHealed        = "pilot:healed"
	EventMechPurchased      = "mech:purchased"
	EventMechRepairStarted  = "mech:repairStarted"
	EventMechRepaired       = "mech:repaired"
	EventMechSold           = "mech:sold"
	EventMechDestroyed      = "mech:destroyed"
	EventRosterRejected     = "roster:rejected"
	EventConfirmRequest     = "confirm:request"
	EventConfirmExpired     = "confirm:expired"
	EventSystemError        = "engine:systemError"
	EventEngineState        = "engine:stateChanged"
	EventSaved              = "game:saved"
	EventSaveFailed         = "game:saveFailed"
	EventTutorialHint       = "tutorial:hint"
)

// Command payloads.

type AdvanceTime struct {
	Days int `json:"days"`
}

// AcceptContract names the offer and, optionally, the force to deploy.
// With no ids the lightest eligible lance is chosen.
type AcceptContract struct {
	ContractID string   `json:"contractId"`
	MechIDs    []string `json:"mechIds,omitempty"`
	PilotIDs   []string `json:"pilotIds,omitempty"`
}

type PilotRef struct {
	PilotID string `json:"pilotId"`
}

type AssignPilot struct {
	PilotID string `json:"pilotId"`
	MechID  string `json:"mechId"` // Empty unassigns
}

type MechRef struct {
	MechID string `json:"mechId"`
}

type ScreenChange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type SaveSlot struct {
	Slot string `json:"slot"`
}

type ConfirmResolve struct {
	ID       string `json:"id"`
	Accepted bool   `json:"accepted"`
}

// Internal request payloads.

// Money is a spend or credit request. Category names the ledger line.
type Money struct {
	Amount   int64  `json:"amount"`
	Category string `json:"category"`
	Reason   string `json:"reason"`
}

// Receipt is the company's answer to a Money request.
type Receipt struct {
	Approved bool   `json:"approved"`
	Balance  int64  `json:"balance"` // Funds after the request
	Reason   string `json:"reason,omitempty"`
}

type ReputationDelta struct {
	Faction string  `json:"faction"`
	Delta   float64 `json:"delta"`
	Reason  string  `json:"reason"`
	Flat    bool    `json:"flat,omitempty"` // Skip ally/enemy propagation
}

type ReputationAll struct {
	Delta  float64 `json:"delta"`
	Reason string  `json:"reason"`
}

// ContractOutcome is the combat resolver's verdict on an active contract.
type ContractOutcome struct {
	ContractID string `json:"contractId"`
	Success    bool   `json:"success"`
	Bonuses    int64  `json:"bonuses"`
}

type MechDamage struct {
	MechID        string `json:"mechId"`
	ArmorLoss     int    `json:"armorLoss"`
	StructureLoss int    `json:"structureLoss"`
	ContractID    string `json:"contractId,omitempty"`
}

type PilotInjury struct {
	PilotID string `json:"pilotId"`
	Days    int    `json:"days"`
	Killed  bool   `json:"killed,omitempty"`
}

// Notification payloads.

type TimeAdvanced struct {
	PreviousTime state.Date `json:"previousTime"`
	NewTime      state.Date `json:"newTime"`
	DaysAdvanced int        `json:"daysAdvanced"`
}

type MonthElapsed struct {
	Date   state.Date `json:"date"`
	Period int        `json:"period"` // Accounting periods since the campaign began
}

type ExpensesPaid struct {
	Breakdown state.Expenses `json:"breakdown"`
	Total     int64          `json:"total"`
	Remaining int64          `json:"remaining"`
}

type FinancialCrisis struct {
	Deficit   int64 `json:"deficit"`
	Required  int64 `json:"required"`
	Available int64 `json:"available"`
}

type RatingChanged struct {
	OldRating state.Rating `json:"oldRating"`
	NewRating state.Rating `json:"newRating"`
	Reason    string       `json:"reason"`
}

type RandomEvent struct {
	Kind        string `json:"kind"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

type ReputationChanged struct {
	Faction       string `json:"faction"`
	OldReputation int    `json:"oldReputation"`
	NewReputation int    `json:"newReputation"`
	Change        int    `json:"change"`
	Reason        string `json:"reason"`
}

type ContractsRefreshed struct {
	Contracts []state.Contract `json:"contracts"`
}

type ContractAccepted struct {
	Contract state.ActiveContract `json:"contract"`
}

type AcceptRejected struct {
	ContractID string `json:"contractId"`
	Reason     string `json:"reason"`
	Message    string `json:"message"`
}

type ContractsExpired struct {
	ContractIDs []string `json:"contractIds"`
}

type ContractCompleted struct {
	Contract   state.Contract   `json:"contract"`
	Deployment state.Deployment `json:"deployment"`
	Success    bool             `json:"success"`
	Payment    int64            `json:"payment"`
	Bonuses    int64            `json:"bonuses"`
}

type PilotEvent struct {
	Pilot state.Pilot `json:"pilot"`
	Cost  int64       `json:"cost,omitempty"` // Signing fee or severance
}

type PilotAssigned struct {
	PilotID string `json:"pilotId"`
	MechID  string `json:"mechId"`
}

type MechEvent struct {
	Mech   state.Mech `json:"mech"`
	Amount int64      `json:"amount,omitempty"` // Price, sale proceeds or repair cost
	Days   int        `json:"days,omitempty"`
}

type RosterRejected struct {
	Action string `json:"action"`
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

type ConfirmRequest struct {
	ID      string `json:"id"`
	Action  string `json:"action"`
	Message string `json:"message"`
}

type ConfirmExpired struct {
	ID string `json:"id"`
}

type SystemError struct {
	Error   string `json:"error"`
	Context string `json:"context"`
}

type EngineState struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type Saved struct {
	Slot     string `json:"slot"`
	Bytes    int    `json:"bytes"`
	Checksum string `json:"checksum"`
}

type SaveFailed struct {
	Slot  string `json:"slot"`
	Error string `json:"error"`
}

type TutorialHint struct {
	Step string `json:"step"`
	Text string `json:"text"`
}

// DefineEvents registers the whole vocabulary with b.
func DefineEvents(b *event.Bus) {
	// 1. Commands a UI shell may send
	b.Define(EventAdvanceTime, AdvanceTime{}, event.Inbound)
	b.Define(EventContractAccept, AcceptContract{}, event.Inbound)
	b.Define(EventContractRefresh, nil, event.Inbound)
	b.Define(EventPilotHire, PilotRef{}, event.Inbound)
	b.Define(EventPilotFire, PilotRef{}, event.Inbound)
	b.Define(EventPilotAssign, AssignPilot{}, event.Inbound)
	b.Define(EventMechPurchase, MechRef{}, event.Inbound)
	b.Define(EventMechRepair, MechRef{}, event.Inbound)
	b.Define(EventMechSell, MechRef{}, event.Inbound)
	b.Define(EventScreenChanged, ScreenChange{}, event.Inbound)
	b.Define(EventPause, nil, event.Inbound)
	b.Define(EventResume, nil, event.Inbound)
	b.Define(EventSave, SaveSlot{}, event.Inbound)
	b.Define(EventLoad, SaveSlot{}, event.Inbound)
	b.Define(EventConfirmResolve, ConfirmResolve{}, event.Inbound)

	// 2. Requests between subsystems
	b.Define(EventExpense, Money{})
	b.Define(EventIncome, Money{})
	b.Define(EventEvaluateRating, nil)
	b.Define(EventAdjustReputation, ReputationDelta{})
	b.Define(EventAdjustAll, ReputationAll{})
	b.Define(EventContractComplete, ContractOutcome{})
	b.Define(EventMechDamaged, MechDamage{})
	b.Define(EventPilotInjured, PilotInjury{})

	// 3. Notifications
	b.Define(state.EventChanged, state.Change{})
	b.Define(state.EventUpdated, state.Batch{})
	b.Define(state.EventLoaded, state.Loaded{})
	b.Define(EventTimeAdvanced, TimeAdvanced{})
	b.Define(EventMonthElapsed, MonthElapsed{})
	b.Define(EventExpensesPaid, ExpensesPaid{})
	b.Define(EventFinancialCrisis, FinancialCrisis{})
	b.Define(EventRatingChanged, RatingChanged{})
	b.Define(EventRandomEvent, RandomEvent{})
	b.Define(EventReputationChanged, ReputationChanged{})
	b.Define(EventContractsRefreshed, ContractsRefreshed{})
	b.Define(EventContractAccepted, ContractAccepted{})
	b.Define(EventAcceptRejected, AcceptRejected{})
	b.Define(EventContractsExpired, ContractsExpired{})
	b.Define(EventContractCompleted, ContractCompleted{})
	b.Define(EventPilotHired, PilotEvent{})
	b.Define(EventPilotFired, PilotEvent{})
	b.Define(EventPilotAssigned, PilotAssigned{})
	b.Define(EventPilotHealed, PilotEvent{})
	b.Define(EventMechPurchased, MechEvent{})
	b.Define(EventMechRepairStarted, MechEvent{})
	b.Define(EventMechRepaired, MechEvent{})
	b.Define(EventMechSold, MechEvent{})
	b.Define(EventMechDestroyed, MechEvent{})
	b.Define(EventRosterRejected, RosterRejected{})
	b.Define(EventConfirmRequest, ConfirmRequest{})
	b.Define(EventConfirmExpired, ConfirmExpired{})
	b.Define(EventSystemError, SystemError{})
	b.Define(EventEngineState, EngineState{})
	b.Define(EventSaved, Saved{})
	b.Define(EventSaveFailed, SaveFailed{})
	b.Define(EventTutorialHint, TutorialHint{})
}
