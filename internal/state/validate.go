/*
Package state
File: validate.go
Description:
    Load-time validation of the persisted document.

    Two passes: the raw pass checks the JSON shape before anything is decoded
    (required keys present, with the right kinds), the semantic pass checks
    the decoded Document against the invariants the subsystems rely on.
*/

package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// ValidationError reports a malformed or incomplete document, or a bad path.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed at %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

type kind int

const (
	kindObject kind = iota
	kindArray
	kindString
	kindNumber
)

func (k kind) String() string {
	switch k {
	case kindObject:
		return "object"
	case kindArray:
		return "array"
	case kindString:
		return "string"
	default:
		return "number"
	}
}

// requiredShape lists the keys every saved document carries.
var requiredShape = []struct {
	path []string
	kind kind
}{
	{[]string{"company"}, kindObject},
	{[]string{"company", "funds"}, kindNumber},
	{[]string{"company", "rating"}, kindString},
	{[]string{"company", "reputation"}, kindObject},
	{[]string{"time"}, kindObject},
	{[]string{"time", "day"}, kindNumber},
	{[]string{"time", "month"}, kindNumber},
	{[]string{"time", "year"}, kindNumber},
	{[]string{"pilots"}, kindArray},
	{[]string{"mechs"}, kindArray},
	{[]string{"contracts"}, kindArray},
	{[]string{"statistics"}, kindObject},
}

// checkShape runs the raw pass over an undecoded document.
func checkShape(raw map[string]any) error {
	if v, ok := raw["version"]; ok {
		if _, isString := v.(string); !isString {
			return &ValidationError{Field: "version", Reason: "must be a string"}
		}
	}

	for _, req := range requiredShape {
		var cur any = raw
		for i, key := range req.path {
			obj, ok := cur.(map[string]any)
			if !ok {
				return &ValidationError{Field: joinPath(req.path[:i]), Reason: "must be an object"}
			}
			cur, ok = obj[key]
			if !ok || cur == nil {
				return &ValidationError{Field: joinPath(req.path[:i+1]), Reason: "required"}
			}
		}
		if !hasKind(cur, req.kind) {
			return &ValidationError{Field: joinPath(req.path), Reason: "must be " + req.kind.String()}
		}
	}
	return nil
}

func hasKind(v any, k kind) bool {
	switch k {
	case kindObject:
		_, ok := v.(map[string]any)
		return ok
	case kindArray:
		_, ok := v.([]any)
		return ok
	case kindString:
		_, ok := v.(string)
		return ok
	default:
		_, ok := v.(json.Number)
		return ok
	}
}

func joinPath(tokens []string) string {
	out := ""
	for i, t := range tokens {
		if i > 0 {
			out += "."
		}
		out += t
	}
	return out
}

// Validate runs the semantic pass.
func Validate(doc *Document) error {
	c := doc.Company
	if c.Funds < 0 {
		return &ValidationError{Field: PathFunds, Reason: "negative funds"}
	}
	if !c.Rating.Valid() {
		return &ValidationError{Field: PathRating, Reason: fmt.Sprintf("unknown rating %q", c.Rating)}
	}
	for id, rep := range c.Reputation {
		if rep < -100 || rep > 100 {
			return &ValidationError{Field: ReputationPath(id), Reason: fmt.Sprintf("%v outside [-100, 100]", rep)}
		}
	}
	if !doc.Time.Date().Valid() {
		return &ValidationError{Field: PathTime, Reason: fmt.Sprintf("invalid date %s", doc.Time.Date())}
	}
	if doc.Time.AccountingMs < 0 {
		return &ValidationError{Field: PathAccounting, Reason: "negative accumulator"}
	}

	mechs := make(map[string]Mech, len(doc.Mechs))
	for i, m := range doc.Mechs {
		field := fmt.Sprintf("%s.%d", PathMechs, i)
		if m.ID == "" {
			return &ValidationError{Field: field + ".id", Reason: "required"}
		}
		if _, dup := mechs[m.ID]; dup {
			return &ValidationError{Field: field + ".id", Reason: "duplicate id " + m.ID}
		}
		if !m.Status.Valid() {
			return &ValidationError{Field: field + ".status", Reason: fmt.Sprintf("unknown status %q", m.Status)}
		}
		if m.Armor < 0 || m.Armor > 100 || m.Structure < 0 || m.Structure > 100 {
			return &ValidationError{Field: field, Reason: "armor and structure must be 0-100"}
		}
		mechs[m.ID] = m
	}

	pilots := make(map[string]Pilot, len(doc.Pilots))
	for i, p := range doc.Pilots {
		field := fmt.Sprintf("%s.%d", PathPilots, i)
		if p.ID == "" {
			return &ValidationError{Field: field + ".id", Reason: "required"}
		}
		if _, dup := pilots[p.ID]; dup {
			return &ValidationError{Field: field + ".id", Reason: "duplicate id " + p.ID}
		}
		if !p.Status.Valid() {
			return &ValidationError{Field: field + ".status", Reason: fmt.Sprintf("unknown status %q", p.Status)}
		}
		if p.MechID != "" {
			m, ok := mechs[p.MechID]
			if !ok {
				return &ValidationError{Field: field + ".mechAssignment", Reason: "unknown mech " + p.MechID}
			}
			if m.PilotID != p.ID {
				return &ValidationError{Field: field + ".mechAssignment", Reason: "mech does not point back"}
			}
		}
		pilots[p.ID] = p
	}
	for i, m := range doc.Mechs {
		if m.PilotID == "" {
			continue
		}
		if p, ok := pilots[m.PilotID]; !ok || p.MechID != m.ID {
			return &ValidationError{Field: fmt.Sprintf("%s.%d.pilot", PathMechs, i), Reason: "pilot does not point back"}
		}
	}

	seen := make(map[string]bool, len(doc.Contracts)+len(doc.ActiveContracts))
	for i, c := range doc.Contracts {
		field := fmt.Sprintf("%s.%d", PathContracts, i)
		if c.ID == "" || seen[c.ID] {
			return &ValidationError{Field: field + ".id", Reason: "missing or duplicate id"}
		}
		if !c.Difficulty.Valid() {
			return &ValidationError{Field: field + ".difficulty", Reason: fmt.Sprintf("unknown difficulty %q", c.Difficulty)}
		}
		seen[c.ID] = true
	}
	for i, a := range doc.ActiveContracts {
		if a.Contract.ID == "" || seen[a.Contract.ID] {
			return &ValidationError{Field: fmt.Sprintf("%s.%d.contract.id", PathActiveContracts, i), Reason: "missing or duplicate id"}
		}
		seen[a.Contract.ID] = true
	}
	return nil
}

// Decode parses, migrates and validates a saved document.
func Decode(data []byte) (Document, error) {
	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil || raw == nil {
		if err == nil {
			err = errors.New("null document")
		}
		return Document{}, &ValidationError{Reason: "not a JSON object: " + err.Error()}
	}
	if err := checkShape(raw); err != nil {
		return Document{}, err
	}
	if err := migrate(raw); err != nil {
		return Document{}, err
	}

	migrated, err := json.Marshal(raw)
	if err != nil {
		return Document{}, fmt.Errorf("re-encode migrated document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(migrated, &doc); err != nil {
		return Document{}, &ValidationError{Reason: "type mismatch: " + err.Error()}
	}
	if err := Validate(&doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// ExportState serialises the current document with its schema version.
func (s *Store) ExportState() ([]byte, error) {
	s.mu.RLock()
	doc := cloneAs(s.doc)
	s.mu.RUnlock()

	doc.Version = CurrentVersion
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("export state: %w", err)
	}
	return data, nil
}

// LoadState replaces the document with a saved one. On any failure the
// current document is kept untouched.
func (s *Store) LoadState(data []byte) error {
	doc, err := Decode(data)
	if err != nil {
		s.log.Warn("Rejected state document", slog.Any("err", err))
		return err
	}
	s.Replace(doc)
	return nil
}

// Replace swaps in an already valid document (new game, loaded slot).
func (s *Store) Replace(doc Document) {
	doc.Version = CurrentVersion
	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()
	s.dirty.Store(false)
	s.publish(EventLoaded, Loaded{Version: doc.Version})
}
