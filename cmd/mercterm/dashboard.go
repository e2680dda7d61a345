/*
Package main
File: dashboard.go
Description:
    The terminal dashboard. It is an engine Renderer: bus events mark it
    dirty, and the next render frame redraws the whole screen from the
    store's snapshot accessors. Notable events are kept in a short log.
*/

package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"

	"github.com/everforgeworks/merc-command/internal/engine"
	"github.com/everforgeworks/merc-command/internal/event"
	"github.com/everforgeworks/merc-command/internal/game"
	"github.com/everforgeworks/merc-command/internal/state"
)

const (
	label   = "dashboard"
	logSize = 6
)

var (
	styleBase   = tcell.StyleDefault
	styleTitle  = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	styleFocus  = tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true)
	styleCursor = tcell.StyleDefault.Reverse(true)
	styleWarn   = tcell.StyleDefault.Foreground(tcell.ColorRed)
	styleDim    = tcell.StyleDefault.Foreground(tcell.ColorGray)
)

// Dashboard draws the company state and turns keys into commands.
type Dashboard struct {
	screen tcell.Screen
	store  *state.Store
	bus    *event.Bus

	mu    sync.Mutex
	v     view
	lines []string
	dirty bool
}

// NewDashboard wraps an initialized screen.
func NewDashboard(screen tcell.Screen, store *state.Store, bus *event.Bus) *Dashboard {
	return &Dashboard{screen: screen, store: store, bus: bus, dirty: true}
}

func (d *Dashboard) Name() string { return label }

func (d *Dashboard) Init(ctx context.Context) error {
	opts := []event.SubscribeOption{event.Context(label), event.Priority(-500)}

	d.bus.SubscribeAny(func(ctx context.Context, ev event.Event) (any, error) {
		d.mu.Lock()
		d.dirty = true
		if line, ok := describe(ev); ok {
			d.lines = append(d.lines, line)
			if len(d.lines) > logSize {
				d.lines = d.lines[len(d.lines)-logSize:]
			}
		}
		d.mu.Unlock()
		return nil, nil
	}, opts...)

	event.On(d.bus, game.EventConfirmRequest, func(ctx context.Context, r game.ConfirmRequest) (any, error) {
		d.mu.Lock()
		d.v.prompt = r.ID
		d.mu.Unlock()
		return nil, nil
	}, opts...)
	dismiss := func(id string) {
		d.mu.Lock()
		if d.v.prompt == id {
			d.v.prompt = ""
		}
		d.mu.Unlock()
	}
	event.On(d.bus, game.EventConfirmResolve, func(ctx context.Context, r game.ConfirmResolve) (any, error) {
		dismiss(r.ID)
		return nil, nil
	}, opts...)
	event.On(d.bus, game.EventConfirmExpired, func(ctx context.Context, r game.ConfirmExpired) (any, error) {
		dismiss(r.ID)
		return nil, nil
	}, opts...)
	event.On(d.bus, game.EventEngineState, func(ctx context.Context, s game.EngineState) (any, error) {
		d.mu.Lock()
		d.v.paused = s.To == engine.Paused.String()
		d.mu.Unlock()
		return nil, nil
	}, opts...)
	return nil
}

func (d *Dashboard) Update(time.Duration) error { return nil }

func (d *Dashboard) Shutdown(context.Context) error {
	d.bus.UnsubscribeContext(label)
	return nil
}

// Key applies a key press and returns the command it produced, if any.
func (d *Dashboard) Key(ev *tcell.EventKey) (Command, bool, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dirty = true
	cmd, ok := d.v.key(ev)
	return cmd, ok, d.v.quit
}

// Invalidate forces a redraw, e.g. after a resize.
func (d *Dashboard) Invalidate() {
	d.mu.Lock()
	d.dirty = true
	d.mu.Unlock()
}

// Render redraws when something changed since the last frame.
func (d *Dashboard) Render(alpha float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.dirty {
		return nil
	}
	d.dirty = false
	d.draw()
	d.screen.Show()
	return nil
}

func (d *Dashboard) draw() {
	s := d.screen
	s.Clear()
	doc := d.store.Snapshot()
	c := doc.Company

	// 1. Header
	y := 0
	head := fmt.Sprintf("MERC COMMAND  %s  %s  Funds %s  Rating %s",
		c.Name, doc.Time.Date(), game.FormatCBills(c.Funds), c.Rating)
	put(s, 0, y, styleTitle, head)
	if d.v.paused {
		put(s, len(head)+2, y, styleWarn, "[PAUSED]")
	}
	y++
	e := c.Expenses
	put(s, 0, y, styleDim, fmt.Sprintf("Monthly: salaries %s  maintenance %s  insurance %s  overhead %s  total %s",
		humanize.Comma(e.Salaries), humanize.Comma(e.Maintenance), humanize.Comma(e.Insurance),
		humanize.Comma(e.Overhead), game.FormatCBills(e.Total())))
	y += 2

	// 2. Lists; the ids feed key handling
	contracts := make([]string, len(doc.Contracts))
	d.v.ids[PanelContracts] = d.v.ids[PanelContracts][:0]
	for i, k := range doc.Contracts {
		d.v.ids[PanelContracts] = append(d.v.ids[PanelContracts], k.ID)
		contracts[i] = fmt.Sprintf("%-28s %-10s %-8s %s  %dd  until %s",
			k.Name, k.Employer, k.Difficulty, game.FormatCBills(k.Payment), k.Duration, k.TimeLimit)
	}
	y = d.list(y, PanelContracts, contracts)

	var active []string
	for _, a := range doc.ActiveContracts {
		active = append(active, fmt.Sprintf("%-28s ends %s  %d mechs", a.Contract.Name, a.EndDate, len(a.Deployment.MechIDs)))
	}
	if len(active) > 0 {
		put(s, 0, y, styleTitle, "DEPLOYED")
		for i, line := range active {
			put(s, 2, y+1+i, styleBase, line)
		}
		y += len(active) + 2
	}

	pilots := make([]string, len(doc.Pilots))
	d.v.ids[PanelPilots] = d.v.ids[PanelPilots][:0]
	for i, p := range doc.Pilots {
		d.v.ids[PanelPilots] = append(d.v.ids[PanelPilots], p.ID)
		seat := "-"
		if p.MechID != "" {
			seat = p.MechID
		}
		pilots[i] = fmt.Sprintf("%-22s G%d/P%d %-8s %-8s %s  seat %s",
			p.Name, p.Gunnery, p.Piloting, p.Experience, p.Status, game.FormatCBills(p.Salary), seat)
	}
	y = d.list(y, PanelPilots, pilots)

	mechs := make([]string, len(doc.Mechs))
	d.v.ids[PanelMechs] = d.v.ids[PanelMechs][:0]
	for i, m := range doc.Mechs {
		d.v.ids[PanelMechs] = append(d.v.ids[PanelMechs], m.ID)
		mechs[i] = fmt.Sprintf("%-22s %3dt %-10s A%3d%% S%3d%%  %s",
			m.Name, m.Tonnage, m.Status, m.Armor, m.Structure, m.ID)
	}
	y = d.list(y, PanelMechs, mechs)

	pool := make([]string, len(doc.Market.PilotPool))
	d.v.ids[PanelPool] = d.v.ids[PanelPool][:0]
	for i, p := range doc.Market.PilotPool {
		d.v.ids[PanelPool] = append(d.v.ids[PanelPool], p.ID)
		pool[i] = fmt.Sprintf("%-22s G%d/P%d %-8s %s", p.Name, p.Gunnery, p.Piloting, p.Experience, game.FormatCBills(p.Salary))
	}
	y = d.list(y, PanelPool, pool)

	listings := make([]string, len(doc.Market.MechListings))
	d.v.ids[PanelListings] = d.v.ids[PanelListings][:0]
	for i, m := range doc.Market.MechListings {
		d.v.ids[PanelListings] = append(d.v.ids[PanelListings], m.ID)
		listings[i] = fmt.Sprintf("%-22s %3dt  %s", m.Name, m.Tonnage, game.FormatCBills(m.Value))
	}
	y = d.list(y, PanelListings, listings)

	// 3. Log and prompt
	put(s, 0, y, styleTitle, "LOG")
	for i, line := range d.lines {
		put(s, 2, y+1+i, styleDim, line)
	}
	y += logSize + 2
	if d.v.prompt != "" {
		put(s, 0, y, styleWarn, "Confirm pending: y / n")
		y++
	}
	put(s, 0, y, styleDim,
		"tab panel  ↑↓ select  enter act  a seat  u unseat  f fire  x sell  1/w/m advance  r refresh  space pause  s save  q quit")
}

// list draws one panel and returns the next free row.
func (d *Dashboard) list(y int, p Panel, rows []string) int {
	title := styleTitle
	if d.v.focus == p {
		title = styleFocus
	}
	put(d.screen, 0, y, title, fmt.Sprintf("%s (%d)", p, len(rows)))
	if len(rows) == 0 {
		put(d.screen, 2, y+1, styleDim, "none")
		return y + 3
	}
	cur := min(max(d.v.cursor[p], 0), len(rows)-1)
	d.v.cursor[p] = cur
	for i, row := range rows {
		st := styleBase
		if d.v.focus == p && i == cur {
			st = styleCursor
		}
		put(d.screen, 2, y+1+i, st, row)
	}
	return y + len(rows) + 2
}

func put(s tcell.Screen, x, y int, style tcell.Style, text string) {
	for _, r := range text {
		s.SetContent(x, y, r, nil, style)
		x++
	}
}

// describe turns notable events into a log line.
func describe(ev event.Event) (string, bool) {
	switch p := ev.Payload.(type) {
	case game.TutorialHint:
		return p.Text, true
	case game.ExpensesPaid:
		return "Monthly expenses paid: " + game.FormatCBills(p.Total), true
	case game.FinancialCrisis:
		return "FINANCIAL CRISIS: short " + game.FormatCBills(p.Deficit), true
	case game.RatingChanged:
		return fmt.Sprintf("Rating %s -> %s", p.OldRating, p.NewRating), true
	case game.RandomEvent:
		return p.Description, true
	case game.ContractAccepted:
		return "Accepted " + p.Contract.Contract.Name, true
	case game.AcceptRejected:
		return "Cannot accept: " + p.Message, true
	case game.ContractCompleted:
		verdict := "failed"
		if p.Success {
			verdict = "completed, paid " + game.FormatCBills(p.Payment+p.Bonuses)
		}
		return p.Contract.Name + " " + verdict, true
	case game.RosterRejected:
		return fmt.Sprintf("%s refused: %s", p.Action, strings.ReplaceAll(p.Reason, "_", " ")), true
	case game.ConfirmRequest:
		return p.Message, true
	case game.MechEvent:
		if ev.Name == game.EventMechDestroyed {
			return p.Mech.Name + " destroyed", true
		}
	case game.Saved:
		return "Saved to " + p.Slot, true
	case game.SaveFailed:
		return "Save failed: " + p.Error, true
	case game.SystemError:
		return "Error in " + p.Context + ": " + p.Error, true
	}
	return "", false
}
