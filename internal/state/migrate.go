/*
Package state
File: migrate.go
Description:
    Forward migration of older save documents to the current schema.
*/

package state

import "fmt"

// CurrentVersion is the schema version written by ExportState.
const CurrentVersion = "1.1"

type migration struct {
	from, to string
	apply    func(raw map[string]any)
}

// migrations run in order; each one lifts a raw document by one version.
var migrations = []migration{
	{
		// Pre-1.0 saves lacked the market and the accounting accumulator.
		from: "",
		to:   "1.0",
		apply: func(raw map[string]any) {
			if _, ok := raw["market"]; !ok {
				raw["market"] = map[string]any{"pilotPool": []any{}, "mechListings": []any{}}
			}
			if t, ok := raw["time"].(map[string]any); ok {
				if _, ok := t["accountingMs"]; !ok {
					t["accountingMs"] = float64(0)
				}
			}
		},
	},
	{
		// 1.1 split active contracts out of the offer list.
		from: "1.0",
		to:   "1.1",
		apply: func(raw map[string]any) {
			if _, ok := raw["activeContracts"]; !ok {
				raw["activeContracts"] = []any{}
			}
			if _, ok := raw["session"]; !ok {
				raw["session"] = map[string]any{"playTimeMs": float64(0)}
			}
		},
	},
}

func migrate(raw map[string]any) error {
	version, _ := raw["version"].(string)
	if version == "0.9" {
		version = ""
	}
	for _, m := range migrations {
		if version != m.from {
			continue
		}
		m.apply(raw)
		version = m.to
	}
	if version != CurrentVersion {
		return &ValidationError{Field: "version", Reason: fmt.Sprintf("unsupported schema version %q", version)}
	}
	raw["version"] = version
	return nil
}
