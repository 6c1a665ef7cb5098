// Package jsondoc converts free-form JSON objects to and from jsonb columns.
package jsondoc

import (
	"encoding/json"
	"strings"
)

// Encode turns an optional JSON object into a jsonb parameter. Empty and nil
// objects are stored as SQL NULL.
func Encode(doc map[string]any) ([]byte, error) {
	if len(doc) == 0 {
		return nil, nil
	}
	return json.Marshal(doc)
}

// Decode reads a jsonb column back into an object. Older clients stored
// documents as JSON-encoded strings; those are unwrapped once. Anything
// that is not an object decodes to nil.
func Decode(raw []byte) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	if s, ok := v.(string); ok {
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			return nil
		}
	}
	m, _ := v.(map[string]any)
	return m
}

// Size returns the encoded length of doc, zero for an empty object.
func Size(doc map[string]any) (int, error) {
	b, err := Encode(doc)
	return len(b), err
}

// HasNUL reports whether any key or string value in doc contains U+0000,
// which jsonb cannot store.
func HasNUL(doc map[string]any) bool {
	for k, v := range doc {
		if strings.ContainsRune(k, 0) || valueHasNUL(v) {
			return true
		}
	}
	return false
}

func valueHasNUL(v any) bool {
	switch t := v.(type) {
	case string:
		return strings.ContainsRune(t, 0)
	case map[string]any:
		return HasNUL(t)
	case []any:
		for _, e := range t {
			if valueHasNUL(e) {
				return true
			}
		}
	}
	return false
}
