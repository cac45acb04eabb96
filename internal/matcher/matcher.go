// Package matcher evaluates requirement predicates against item properties.
//
// Every function here is total: absent properties, nil values and empty
// requirement lists all have a defined result and nothing returns an error.
package matcher

import (
	"strconv"
	"strings"

	"github.com/ifc-viewer/backend/internal/models"
)

// Matches reports whether item satisfies req. A nil requirement always
// matches. An item without property sets never satisfies a requirement
// that lists required properties.
func Matches(item *models.Item, req *models.Requirement) bool {
	if req == nil {
		return true
	}
	if item == nil {
		return false
	}
	if req.RequiredKind != "" && item.Kind != req.RequiredKind {
		return false
	}
	for _, rp := range req.RequiredProperties {
		if !MatchesProperty(item, rp) {
			return false
		}
	}
	return true
}

// MatchesProperty reports whether any property of any property set of item
// satisfies rp.
//
// A name-only predicate compares names case-insensitively. A value-only
// predicate is a case-insensitive substring test on the value. With both
// set, the name and the value must be equal (ignoring case) on the same
// property. A predicate with neither field set matches any property.
func MatchesProperty(item *models.Item, rp models.RequiredProperty) bool {
	name := strings.ToLower(rp.Name)
	value := strings.ToLower(rp.Value)

	for _, set := range item.PropertySets {
		for _, p := range set.Properties {
			if matchProperty(p, name, value) {
				return true
			}
		}
	}
	return false
}

func matchProperty(p models.Property, name, value string) bool {
	switch {
	case name != "" && value != "":
		if strings.ToLower(p.Name) != name {
			return false
		}
		v, ok := FormatValue(p.Value)
		return ok && strings.ToLower(v) == value
	case name != "":
		return strings.ToLower(p.Name) == name
	case value != "":
		v, ok := FormatValue(p.Value)
		return ok && strings.Contains(strings.ToLower(v), value)
	default:
		return true
	}
}

// FindPropertyValue returns the value of the first property named name
// (case-insensitive) across the item's property sets, in order. The value
// is "" when that property has no value; the second result reports whether
// the property exists at all.
func FindPropertyValue(item *models.Item, name string) (string, bool) {
	if item == nil || name == "" {
		return "", false
	}
	for _, set := range item.PropertySets {
		for _, p := range set.Properties {
			if strings.EqualFold(p.Name, name) {
				v, _ := FormatValue(p.Value)
				return v, true
			}
		}
	}
	return "", false
}

// FormatValue renders a property value as the string the predicates
// compare against. Numeric arrays are comma-joined. The second result is
// false for an absent value.
func FormatValue(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), true
	case int:
		return strconv.Itoa(x), true
	case int8:
		return strconv.FormatInt(int64(x), 10), true
	case int16:
		return strconv.FormatInt(int64(x), 10), true
	case int32:
		return strconv.FormatInt(int64(x), 10), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case uint8:
		return strconv.FormatUint(uint64(x), 10), true
	case uint16:
		return strconv.FormatUint(uint64(x), 10), true
	case uint32:
		return strconv.FormatUint(uint64(x), 10), true
	case uint64:
		return strconv.FormatUint(x, 10), true
	case []float64:
		parts := make([]string, len(x))
		for i, f := range x {
			parts[i] = strconv.FormatFloat(f, 'f', -1, 64)
		}
		return strings.Join(parts, ","), true
	case []any:
		parts := make([]string, 0, len(x))
		for _, e := range x {
			s, _ := FormatValue(e)
			parts = append(parts, s)
		}
		return strings.Join(parts, ","), true
	}
	return "", false
}
