package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/fieldnet/internal/trace"
)

// marshalFields converts a field snapshot to canonical JSON TEXT for storage.
// Values are stored as shortest round-trip strings.
func marshalFields(fields []trace.FieldValue) (string, error) {
	arr := make(trace.Array, len(fields))
	for i, f := range fields {
		arr[i] = trace.Object{"label": f.Label, "value": f.Value}
	}
	data, err := trace.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal fields: %w", err)
	}
	return string(data), nil
}

// unmarshalFields is the inverse of marshalFields. Returns nil for an empty snapshot.
func unmarshalFields(data string) ([]trace.FieldValue, error) {
	var raw []struct {
		Label string `json:"label"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]trace.FieldValue, len(raw))
	for i, r := range raw {
		v, err := trace.ParseFloat(r.Value)
		if err != nil {
			return nil, fmt.Errorf("unmarshal fields: %s: %w", r.Label, err)
		}
		out[i] = trace.FieldValue{Label: r.Label, Value: v}
	}
	return out, nil
}

// marshalPhases stores the session's phase order as a canonical JSON array.
func marshalPhases(names []string) (string, error) {
	arr := make(trace.Array, len(names))
	for i, n := range names {
		arr[i] = n
	}
	data, err := trace.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal phases: %w", err)
	}
	return string(data), nil
}

func unmarshalPhases(data string) ([]string, error) {
	var names []string
	if err := json.Unmarshal([]byte(data), &names); err != nil {
		return nil, fmt.Errorf("unmarshal phases: %w", err)
	}
	return names, nil
}
