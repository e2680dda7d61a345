/*
Package main
File: keys.go
Description:
    Key bindings: panels, cursors and the command each key produces.
*/

package main

import (
	"github.com/gdamore/tcell/v2"

	"github.com/everforgeworks/merc-command/internal/game"
)

// Panel is a selectable list on the dashboard.
type Panel int

const (
	PanelContracts Panel = iota
	PanelPilots
	PanelMechs
	PanelPool
	PanelListings
	panelCount
)

var panelTitles = [panelCount]string{"CONTRACTS", "PILOTS", "MECHS", "HIRING HALL", "MECH MARKET"}

func (p Panel) String() string { return panelTitles[p] }

// Command is an inbound game command produced by a key.
type Command struct {
	Name    string
	Payload any
}

// view is the input-side state: focus, cursors, and the ids under them.
type view struct {
	focus  Panel
	cursor [panelCount]int
	ids    [panelCount][]string
	prompt string // Pending confirmation id
	paused bool
	quit   bool
}

func (v *view) selected(p Panel) string {
	ids := v.ids[p]
	if len(ids) == 0 {
		return ""
	}
	i := min(max(v.cursor[p], 0), len(ids)-1)
	return ids[i]
}

func (v *view) move(delta int) {
	n := len(v.ids[v.focus])
	if n == 0 {
		v.cursor[v.focus] = 0
		return
	}
	v.cursor[v.focus] = (v.cursor[v.focus] + delta + n) % n
}

// key maps one key press to a command. UI-only keys return ok=false.
func (v *view) key(ev *tcell.EventKey) (Command, bool) {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		v.quit = true
		return Command{}, false
	case tcell.KeyTab:
		v.focus = (v.focus + 1) % panelCount
		return Command{}, false
	case tcell.KeyBacktab:
		v.focus = (v.focus + panelCount - 1) % panelCount
		return Command{}, false
	case tcell.KeyUp:
		v.move(-1)
		return Command{}, false
	case tcell.KeyDown:
		v.move(1)
		return Command{}, false
	case tcell.KeyEnter:
		return v.activate()
	case tcell.KeyRune:
	default:
		return Command{}, false
	}

	switch ev.Rune() {
	case 'q':
		v.quit = true
	case ' ':
		if v.paused {
			return Command{Name: game.EventResume}, true
		}
		return Command{Name: game.EventPause}, true
	case '1':
		return Command{game.EventAdvanceTime, game.AdvanceTime{Days: 1}}, true
	case 'w':
		return Command{game.EventAdvanceTime, game.AdvanceTime{Days: 7}}, true
	case 'm':
		return Command{game.EventAdvanceTime, game.AdvanceTime{Days: 30}}, true
	case 'r':
		return Command{Name: game.EventContractRefresh}, true
	case 's':
		return Command{game.EventSave, game.SaveSlot{}}, true
	case 'y', 'n':
		if v.prompt != "" {
			return Command{game.EventConfirmResolve, game.ConfirmResolve{ID: v.prompt, Accepted: ev.Rune() == 'y'}}, true
		}
	case 'f':
		if id := v.selected(PanelPilots); id != "" && v.focus == PanelPilots {
			return Command{game.EventPilotFire, game.PilotRef{PilotID: id}}, true
		}
	case 'x':
		if id := v.selected(PanelMechs); id != "" && v.focus == PanelMechs {
			return Command{game.EventMechSell, game.MechRef{MechID: id}}, true
		}
	case 'u':
		if id := v.selected(PanelPilots); id != "" && v.focus == PanelPilots {
			return Command{game.EventPilotAssign, game.AssignPilot{PilotID: id}}, true
		}
	case 'a':
		// Seat the selected pilot in the selected mech
		pilot, mech := v.selected(PanelPilots), v.selected(PanelMechs)
		if pilot != "" && mech != "" {
			return Command{game.EventPilotAssign, game.AssignPilot{PilotID: pilot, MechID: mech}}, true
		}
	}
	return Command{}, false
}

// activate runs the focused panel's main action on the selection.
func (v *view) activate() (Command, bool) {
	id := v.selected(v.focus)
	if id == "" {
		return Command{}, false
	}
	switch v.focus {
	case PanelContracts:
		return Command{game.EventContractAccept, game.AcceptContract{ContractID: id}}, true
	case PanelMechs:
		return Command{game.EventMechRepair, game.MechRef{MechID: id}}, true
	case PanelPool:
		return Command{game.EventPilotHire, game.PilotRef{PilotID: id}}, true
	case PanelListings:
		return Command{game.EventMechPurchase, game.MechRef{MechID: id}}, true
	}
	return Command{}, false
}
