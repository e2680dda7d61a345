/*
Package event
File: catalog.go
Description:
    The closed event vocabulary: definitions, lookup and decoding of
    inbound payloads from JSON.
*/

package event

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// Flag marks catalog properties of an event.
type Flag uint8

const (
	// Inbound events may be decoded from outside the core (UI commands).
	Inbound Flag = 1 << iota
)

// Definition is one entry of the closed event vocabulary.
type Definition struct {
	Name  string
	Type  reflect.Type // nil: the event carries no payload
	Flags Flag
}

// Define adds name to the catalog. prototype is a zero value of the payload
// type, or nil for payload-less events. Redefining a name replaces it.
func (b *Bus) Define(name string, prototype any, flags ...Flag) {
	def := Definition{Name: name}
	if prototype != nil {
		def.Type = reflect.TypeOf(prototype)
	}
	for _, f := range flags {
		def.Flags |= f
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.catalog[name] = def
}

// Lookup returns the catalog entry for name.
func (b *Bus) Lookup(name string) (Definition, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	def, ok := b.catalog[name]
	return def, ok
}

// Names lists the catalog, sorted.
func (b *Bus) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.catalog))
	for name := range b.catalog {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Decode builds the typed payload for an inbound event from JSON.
func (b *Bus) Decode(name string, raw json.RawMessage) (any, error) {
	def, ok := b.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
	if def.Flags&Inbound == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotInbound, name)
	}
	if def.Type == nil {
		return nil, nil
	}

	v := reflect.New(def.Type)
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, v.Interface()); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", name, err)
		}
	}
	return v.Elem().Interface(), nil
}

func (b *Bus) validate(name string, payload any) error {
	def, ok := b.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
	if def.Type == nil {
		if payload != nil {
			return fmt.Errorf("%w: %q takes no payload, got %T", ErrPayloadType, name, payload)
		}
		return nil
	}
	if payload == nil || reflect.TypeOf(payload) != def.Type {
		return fmt.Errorf("%w: %q wants %s, got %T", ErrPayloadType, name, def.Type, payload)
	}
	return nil
}
