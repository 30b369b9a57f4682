package storage

import (
	"encoding/json"
	"fmt"
	"time"
)

type serverTimestamp struct{}

// ServerTimestamp is replaced with the commit time when a write is applied.
var ServerTimestamp = serverTimestamp{}

// ToFields converts a struct with json tags into a field map suitable for
// Set or Merge. Fields tagged omitempty that are empty are left out, so the
// result can be merged without clobbering existing values.
func ToFields(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode fields: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode fields: %w", err)
	}
	if out == nil {
		return nil, fmt.Errorf("%w: value does not encode to an object", ErrNilParameter)
	}
	return out, nil
}

// normalizeFields resolves ServerTimestamp sentinels and reduces data to plain
// JSON values so stored documents always decode back to the same shape.
func normalizeFields(data map[string]any, now time.Time) (map[string]any, error) {
	if data == nil {
		return map[string]any{}, nil
	}
	resolved, ok := resolveTimestamps(data, now).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: fields", ErrNilParameter)
	}
	raw, err := json.Marshal(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to encode fields: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode fields: %w", err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

func resolveTimestamps(v any, now time.Time) any {
	switch val := v.(type) {
	case serverTimestamp, *serverTimestamp:
		return now.UTC()
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = resolveTimestamps(inner, now)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = resolveTimestamps(inner, now)
		}
		return out
	default:
		return v
	}
}

// deepMerge writes src into dst. Nested objects are merged key by key;
// everything else, including arrays, is replaced.
func deepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		srcMap, srcIsMap := v.(map[string]any)
		dstMap, dstIsMap := dst[k].(map[string]any)
		if srcIsMap && dstIsMap {
			dst[k] = deepMerge(dstMap, srcMap)
			continue
		}
		dst[k] = v
	}
	return dst
}
