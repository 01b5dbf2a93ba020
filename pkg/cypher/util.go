package cypher

import (
	"encoding/json"
	"sort"
	"strings"
)

// encodeJSON marshals a property map (or label list) for storage in a JSON
// column, per spec.md §6.2's JSON-column schema.
func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", &InternalError{Message: "encoding JSON: " + err.Error()}
	}
	return string(b), nil
}

// jsonScalar renders a single evaluated value as JSON text suitable for
// SQLite's json() function, so json_set binds a typed JSON value rather
// than a quoted string for numbers/bools/lists/maps/null.
func jsonScalar(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		b, _ = json.Marshal(nil)
	}
	return string(b)
}

func decodeJSON(text string, out any) error {
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return &InternalError{Message: "decoding JSON: " + err.Error()}
	}
	return nil
}

// decodeProperties decodes a stored properties column into map[string]any,
// preserving integer precision outside json.Unmarshal's default float64
// behavior (spec.md §8 property 4 / §9's numeric-precision note): every
// number is parsed with json.Number first and converted to int64 when it
// parses as a whole number, falling back to float64 only for fractional
// values or magnitudes beyond int64. Plain json.Unmarshal into map[string]any
// would silently round-trip a value like 9007199254740993 through float64
// and lose its low bits before the value ever reaches the shaper.
func decodeProperties(text string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, &InternalError{Message: "decoding JSON: " + err.Error()}
	}
	return normalizeJSONNumbers(raw).(map[string]any), nil
}

func normalizeJSONNumbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, _ := val.Float64()
		return f
	case map[string]any:
		for k, item := range val {
			val[k] = normalizeJSONNumbers(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = normalizeJSONNumbers(item)
		}
		return val
	default:
		return v
	}
}

func sortStrings(s []string) { sort.Strings(s) }
