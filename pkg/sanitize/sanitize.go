// Package sanitize normalizes heterogeneous CRM/extraction properties into a
// flat property bag safe for graph storage. Absence is the encoding of
// "unknown": nulls and empties are dropped, never stored.
package sanitize

import (
	"encoding/json"
	"fmt"
	"strings"
)

// nameFields is the fallback chain for the display name of a nested reference
// object. Different record types expose it under different keys.
var nameFields = []string{"name", "full_name", "Full_Name", "display_name", "email", "Email"}

// Properties flattens raw properties into scalars keyed by lower-cased name.
// Nested reference objects become {field}_id / {field}_name pairs; lists of
// objects are serialized to a JSON string. Malformed input degrades to
// best-effort flattening; no error is ever returned.
func Properties(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for key, value := range raw {
		if value == nil {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			continue
		}

		switch v := value.(type) {
		case string:
			if v == "" {
				continue
			}
			out[key] = v
		case bool, int, int32, int64, float32, float64, json.Number:
			out[key] = v
		case map[string]any:
			flattenReference(out, key, v)
		case []any:
			if len(v) == 0 {
				continue
			}
			if b, err := json.Marshal(v); err == nil {
				out[key] = string(b)
			}
		default:
			// Unexpected scalar-ish types (time.Time etc.) are stored as text.
			out[key] = fmt.Sprintf("%v", v)
		}
	}
	return out
}

// flattenReference stores a nested lookup object as {field}_id and
// {field}_name. Objects with no recognizable id are serialized whole.
func flattenReference(out map[string]any, key string, ref map[string]any) {
	id, hasID := referenceID(ref)
	if !hasID {
		if b, err := json.Marshal(ref); err == nil {
			out[key] = string(b)
		}
		return
	}

	out[key+"_id"] = id
	if name := referenceName(ref); name != "" {
		out[key+"_name"] = name
	}
}

func referenceID(ref map[string]any) (string, bool) {
	for _, k := range []string{"id", "Id", "ID"} {
		if v, ok := ref[k]; ok && v != nil {
			s := fmt.Sprintf("%v", v)
			if s != "" {
				return s, true
			}
		}
	}
	return "", false
}

func referenceName(ref map[string]any) string {
	for _, field := range nameFields {
		if v, ok := ref[field]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}

	// Fall back to first+last concatenation.
	first, _ := ref["first_name"].(string)
	last, _ := ref["last_name"].(string)
	full := strings.TrimSpace(first + " " + last)
	return full
}
