/*
Package contract
File: deploy.go
Description:
    Lance selection for acceptance. Checks run in order (mechs, pilots,
    weight) and nothing is mutated.
*/

package contract

import (
	"fmt"
	"sort"

	"github.com/everforgeworks/merc-command/internal/state"
)

// roster is what acceptance looks at: the forces not already committed.
type roster struct {
	mechs  []state.Mech  // Ready and not deployed
	pilots []state.Pilot // Active and not deployed, seated or not
}

func availableForces(pilots []state.Pilot, mechs []state.Mech, active []state.ActiveContract) roster {
	deployed := make(map[string]bool)
	for _, a := range active {
		for _, id := range a.Deployment.MechIDs {
			deployed[id] = true
		}
		for _, id := range a.Deployment.PilotIDs {
			deployed[id] = true
		}
	}

	var r roster
	for _, m := range mechs {
		if m.Status == state.MechReady && !deployed[m.ID] {
			r.mechs = append(r.mechs, m)
		}
	}
	for _, p := range pilots {
		if p.Status == state.PilotActive && !deployed[p.ID] {
			r.pilots = append(r.pilots, p)
		}
	}
	return r
}

// planDeployment picks the lance for req. Checks run in order: mechs,
// pilots, weight. Nothing is mutated.
func planDeployment(req state.Requirements, forces roster, mechIDs, pilotIDs []string) (state.Deployment, error) {
	// 1. Mechs
	if len(forces.mechs) < req.MinMechs {
		return state.Deployment{}, &InsufficientResourceError{Reason: ReasonInsufficientMechs, Need: req.MinMechs, Have: len(forces.mechs)}
	}
	lance, err := chooseMechs(req, forces.mechs, mechIDs)
	if err != nil {
		return state.Deployment{}, err
	}

	// 2. Pilots: unassigned ones, or those already seated in the lance
	inLance := make(map[string]bool, len(lance))
	for _, m := range lance {
		inLance[m.ID] = true
	}
	var free []state.Pilot
	for _, p := range forces.pilots {
		if p.MechID == "" || inLance[p.MechID] {
			free = append(free, p)
		}
	}
	if len(free) < len(lance) {
		return state.Deployment{}, &InsufficientResourceError{Reason: ReasonInsufficientPilots, Need: len(lance), Have: len(free)}
	}
	crew, err := choosePilots(lance, free, pilotIDs)
	if err != nil {
		return state.Deployment{}, err
	}

	// 3. Weight
	tonnage := 0
	for _, m := range lance {
		tonnage += m.Tonnage
	}
	if req.WeightLimit > 0 && tonnage > req.WeightLimit {
		return state.Deployment{}, &InsufficientResourceError{Reason: ReasonWeightExceeded, Need: req.WeightLimit, Have: tonnage}
	}

	d := state.Deployment{Tonnage: tonnage}
	for _, m := range lance {
		d.MechIDs = append(d.MechIDs, m.ID)
	}
	for _, p := range crew {
		d.PilotIDs = append(d.PilotIDs, p.ID)
	}
	return d, nil
}

// chooseMechs honours an explicit selection, otherwise takes the MinMechs
// lightest ready mechs.
func chooseMechs(req state.Requirements, ready []state.Mech, ids []string) ([]state.Mech, error) {
	if len(ids) == 0 {
		sorted := append([]state.Mech(nil), ready...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Tonnage < sorted[j].Tonnage })
		return sorted[:req.MinMechs], nil
	}

	if len(ids) < req.MinMechs {
		return nil, &InsufficientResourceError{Reason: ReasonInsufficientMechs, Need: req.MinMechs, Have: len(ids)}
	}
	if req.MaxMechs > 0 && len(ids) > req.MaxMechs {
		return nil, &InsufficientResourceError{Reason: ReasonTooManyMechs, Need: req.MaxMechs, Have: len(ids)}
	}
	byID := make(map[string]state.Mech, len(ready))
	for _, m := range ready {
		byID[m.ID] = m
	}
	seen := make(map[string]bool, len(ids))
	out := make([]state.Mech, 0, len(ids))
	for _, id := range ids {
		m, ok := byID[id]
		if !ok || seen[id] {
			return nil, fmt.Errorf("mech %s is not ready for deployment", id)
		}
		seen[id] = true
		out = append(out, m)
	}
	return out, nil
}

// choosePilots seats a pilot in each mech: the assigned pilot, else an
// unassigned one. free holds no pilot seated outside the lance.
func choosePilots(lance []state.Mech, free []state.Pilot, ids []string) ([]state.Pilot, error) {
	byID := make(map[string]state.Pilot, len(free))
	for _, p := range free {
		byID[p.ID] = p
	}

	if len(ids) > 0 {
		if len(ids) != len(lance) {
			return nil, fmt.Errorf("%d pilots for %d mechs", len(ids), len(lance))
		}
		seen := make(map[string]bool, len(ids))
		out := make([]state.Pilot, 0, len(ids))
		for _, id := range ids {
			p, ok := byID[id]
			if !ok || seen[id] {
				return nil, fmt.Errorf("pilot %s is not available", id)
			}
			seen[id] = true
			out = append(out, p)
		}
		return out, nil
	}

	used := make(map[string]bool, len(lance))
	out := make([]state.Pilot, len(lance))
	seated := make([]bool, len(lance))
	for i, m := range lance {
		if p, ok := byID[m.PilotID]; ok && m.PilotID != "" {
			out[i], seated[i] = p, true
			used[p.ID] = true
		}
	}
	for i := range lance {
		if seated[i] {
			continue
		}
		for _, p := range free {
			if used[p.ID] || p.MechID != "" {
				continue
			}
			out[i], seated[i] = p, true
			used[p.ID] = true
			break
		}
	}
	for i := range seated {
		if !seated[i] {
			return nil, &InsufficientResourceError{Reason: ReasonInsufficientPilots, Need: len(lance), Have: len(used)}
		}
	}
	return out, nil
}
