package model

import (
	"encoding/json"
	"fmt"
)

// NormalizeArgs reconciles the tool-call argument encodings that reach the
// adapter boundary into one canonical JSON object. Calls replayed from
// persisted storage and calls freshly produced in memory arrive in different
// shapes: a raw JSON object, a JSON string containing an encoded object, an
// already-structured map (string- or arbitrary-keyed), or nothing at all.
func NormalizeArgs(v any) (json.RawMessage, error) {
	switch t := v.(type) {
	case nil:
		return json.RawMessage(`{}`), nil
	case json.RawMessage:
		return normalizeRaw(t)
	case []byte:
		return normalizeRaw(t)
	case string:
		if t == "" {
			return json.RawMessage(`{}`), nil
		}
		return normalizeRaw([]byte(t))
	case map[string]any:
		raw, err := json.Marshal(t)
		if err != nil {
			return nil, fmt.Errorf("encode arguments: %w", err)
		}
		return raw, nil
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return nil, fmt.Errorf("encode arguments of type %T: %w", v, err)
		}
		return normalizeRaw(raw)
	}
}

func normalizeRaw(raw []byte) (json.RawMessage, error) {
	if len(raw) == 0 {
		return json.RawMessage(`{}`), nil
	}
	// Unwrap one level of string encoding ("{\"a\":1}" -> {"a":1}).
	var inner string
	if err := json.Unmarshal(raw, &inner); err == nil {
		if inner == "" {
			return json.RawMessage(`{}`), nil
		}
		raw = []byte(inner)
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("arguments are not a JSON object: %w", err)
	}
	return json.RawMessage(raw), nil
}

// DecodeArgs decodes normalized argument JSON into a map, tolerating the same
// encodings as NormalizeArgs.
func DecodeArgs(v any) (map[string]any, error) {
	raw, err := NormalizeArgs(v)
	if err != nil {
		return nil, err
	}
	args := map[string]any{}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}
	return args, nil
}
