// Package jsonmap provides tolerant accessors over schema-less JSON
// objects that have been decoded into native Go values. Lookups report
// absence instead of failing on missing keys or unexpected types.
package jsonmap

import (
	"encoding/json"
	"strconv"
)

// Map is one schema-less JSON object.
type Map map[string]any

// AsMap converts an arbitrary decoded value into a Map when it is an
// object, reporting false for anything else (including nil).
func AsMap(value any) (Map, bool) {
	switch typed := value.(type) {
	case Map:
		return typed, true
	case map[string]any:
		return Map(typed), true
	default:
		return nil, false
	}
}

// Value returns the raw value under key and whether the key exists.
// A nil Map has no keys.
func (m Map) Value(key string) (any, bool) {
	if m == nil {
		return nil, false
	}

	value, ok := m[key]
	return value, ok
}

// Has reports whether key exists, regardless of its value.
func (m Map) Has(key string) bool {
	_, ok := m.Value(key)
	return ok
}

// Map returns the object under key, or nil when the key is absent or
// holds a non-object value.
func (m Map) Map(key string) Map {
	value, ok := m.Value(key)
	if !ok {
		return nil
	}

	nested, _ := AsMap(value)
	return nested
}

// Slice returns the array under key, or nil when the key is absent or
// holds a non-array value.
func (m Map) Slice(key string) []any {
	value, ok := m.Value(key)
	if !ok {
		return nil
	}

	items, _ := value.([]any)
	return items
}

// String returns the string under key, reporting false when the key is
// absent or holds a non-string value.
func (m Map) String(key string) (string, bool) {
	value, ok := m.Value(key)
	if !ok {
		return "", false
	}

	text, ok := value.(string)
	return text, ok
}

// Overlay copies every key of src into m, overwriting existing keys.
func (m Map) Overlay(src Map) {
	for key, value := range src {
		m[key] = value
	}
}

// Stringify renders any decoded JSON value as a string. nil becomes the
// empty string, scalars use their natural text form, and composite
// values are re-encoded as JSON.
func Stringify(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case bool:
		return strconv.FormatBool(typed)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case json.Number:
		return typed.String()
	case int:
		return strconv.Itoa(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}
