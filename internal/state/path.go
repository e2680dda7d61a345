/*
Package state
File: path.go
Description:
    Dotted path addressing over the typed document: well-known path
    constants, tokenizing, lookup and assignment by json tag.
*/

package state

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// Well-known paths. Prefer these over string literals so a typo is a compile error.
const (
	PathCompany             = "company"
	PathCompanyName         = "company.name"
	PathFunds               = "company.funds"
	PathRating              = "company.rating"
	PathReputation          = "company.reputation"
	PathExpenses            = "company.expenses"
	PathSalaries            = "company.expenses.salaries"
	PathMaintenance         = "company.expenses.maintenance"
	PathInsurance           = "company.expenses.insurance"
	PathOverhead            = "company.expenses.overhead"
	PathIncome              = "company.income"
	PathTime                = "time"
	PathDay                 = "time.day"
	PathMonth               = "time.month"
	PathYear                = "time.year"
	PathAccounting          = "time.accountingMs"
	PathPilots              = "pilots"
	PathMechs               = "mechs"
	PathContracts           = "contracts"
	PathActiveContracts     = "activeContracts"
	PathStatistics          = "statistics"
	PathPilotPool           = "market.pilotPool"
	PathMechListings        = "market.mechListings"
	PathLastContractRefresh = "market.lastContractRefresh"
	PathScreen              = "session.screen"
	PathPlayTime            = "session.playTimeMs"
)

// ReputationPath addresses one faction's standing.
func ReputationPath(faction string) string {
	return PathReputation + "." + faction
}

// StatPath addresses one statistics counter by its JSON name.
func StatPath(name string) string {
	return PathStatistics + "." + name
}

func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, &ValidationError{Field: path, Reason: "empty path"}
	}
	tokens := strings.Split(path, ".")
	for _, tok := range tokens {
		if tok == "" {
			return nil, &ValidationError{Field: path, Reason: "empty path segment"}
		}
	}
	return tokens, nil
}

// fieldCache maps struct type -> json name -> field index.
var fieldCache sync.Map

func jsonFields(t reflect.Type) map[string]int {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.(map[string]int)
	}
	fields := make(map[string]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		fields[name] = i
	}
	fieldCache.Store(t, fields)
	return fields
}

// lookup walks v along tokens without creating anything.
func lookup(v reflect.Value, tokens []string) (reflect.Value, bool) {
	for _, tok := range tokens {
		for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
			if v.IsNil() {
				return reflect.Value{}, false
			}
			v = v.Elem()
		}
		switch v.Kind() {
		case reflect.Struct:
			idx, ok := jsonFields(v.Type())[tok]
			if !ok {
				return reflect.Value{}, false
			}
			v = v.Field(idx)
		case reflect.Map:
			key, err := mapKey(v.Type(), tok)
			if err != nil {
				return reflect.Value{}, false
			}
			v = v.MapIndex(key)
			if !v.IsValid() {
				return reflect.Value{}, false
			}
		case reflect.Slice, reflect.Array:
			i, err := strconv.Atoi(tok)
			if err != nil || i < 0 || i >= v.Len() {
				return reflect.Value{}, false
			}
			v = v.Index(i)
		default:
			return reflect.Value{}, false
		}
	}
	return v, true
}

// assignPath writes value at tokens below v. Struct fields must exist; map
// entries (and nil maps) are created on the way down. Returns the previous
// value, or nil when the slot did not exist.
func assignPath(v reflect.Value, path string, tokens []string, value any) (any, error) {
	if len(tokens) == 0 {
		old := clone(v.Interface())
		if err := assign(v, path, value); err != nil {
			return nil, err
		}
		return old, nil
	}

	tok := tokens[0]
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		return assignPath(v.Elem(), path, tokens, value)

	case reflect.Struct:
		idx, ok := jsonFields(v.Type())[tok]
		if !ok {
			return nil, &ValidationError{Field: path, Reason: fmt.Sprintf("unknown field %q", tok)}
		}
		return assignPath(v.Field(idx), path, tokens[1:], value)

	case reflect.Map:
		key, err := mapKey(v.Type(), tok)
		if err != nil {
			return nil, &ValidationError{Field: path, Reason: err.Error()}
		}
		if v.IsNil() {
			v.Set(reflect.MakeMap(v.Type()))
		}
		existing := v.MapIndex(key)
		slot := reflect.New(v.Type().Elem()).Elem()
		if existing.IsValid() {
			slot.Set(existing)
		}
		old, err := assignPath(slot, path, tokens[1:], value)
		if err != nil {
			return nil, err
		}
		v.SetMapIndex(key, slot)
		if !existing.IsValid() {
			old = nil
		}
		return old, nil

	case reflect.Slice:
		i, err := strconv.Atoi(tok)
		if err != nil || i < 0 || i >= v.Len() {
			return nil, &ValidationError{Field: path, Reason: fmt.Sprintf("index %q out of range", tok)}
		}
		return assignPath(v.Index(i), path, tokens[1:], value)

	default:
		return nil, &ValidationError{Field: path, Reason: fmt.Sprintf("cannot descend into %s at %q", v.Kind(), tok)}
	}
}

func mapKey(t reflect.Type, tok string) (reflect.Value, error) {
	if t.Key().Kind() != reflect.String {
		return reflect.Value{}, fmt.Errorf("map key kind %s unsupported", t.Key().Kind())
	}
	return reflect.ValueOf(tok).Convert(t.Key()), nil
}

// assign sets dst to value, converting between numeric kinds and named string types.
func assign(dst reflect.Value, path string, value any) error {
	if value == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}

	src := reflect.ValueOf(value)
	dt := dst.Type()
	switch {
	case src.Type().AssignableTo(dt):
		dst.Set(deepCopy(src))
		return nil
	case isInt(dst.Kind()) && isInt(src.Kind()):
		dst.SetInt(src.Int())
		return nil
	case isInt(dst.Kind()) && isUint(src.Kind()):
		dst.SetInt(int64(src.Uint()))
		return nil
	case isInt(dst.Kind()) && isFloat(src.Kind()):
		f := src.Float()
		if f != math.Trunc(f) {
			return &ValidationError{Field: path, Reason: fmt.Sprintf("non-integral %v for %s", f, dt)}
		}
		dst.SetInt(int64(f))
		return nil
	case isFloat(dst.Kind()) && (isInt(src.Kind()) || isFloat(src.Kind()) || isUint(src.Kind())):
		dst.SetFloat(src.Convert(dt).Float())
		return nil
	case dst.Kind() == reflect.String && src.Kind() == reflect.String:
		dst.Set(src.Convert(dt))
		return nil
	case src.Type().ConvertibleTo(dt) && src.Kind() == dst.Kind():
		dst.Set(src.Convert(dt))
		return nil
	}
	return &ValidationError{Field: path, Reason: fmt.Sprintf("cannot store %T in %s", value, dt)}
}

func isInt(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUint(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uint64
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}
