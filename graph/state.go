package graph

import (
	"encoding/json"
	"fmt"
)

// clone returns an independent copy of v by encoding it to JSON and back.
// Nodes and stream consumers only ever see clones, so fields that do not
// survive encoding (unexported fields, funcs, channels) are lost.
func clone[S any](v S) (S, error) {
	var out S
	raw, err := json.Marshal(v)
	if err != nil {
		return out, fmt.Errorf("encode state: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		var zero S
		return zero, fmt.Errorf("decode state: %w", err)
	}
	return out, nil
}
