package domain

import (
	json "github.com/goccy/go-json"
)

type wireDefinition struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// MarshalDefinition serializes a definition to the editor wire shape.
// The output round-trips losslessly through UnmarshalDefinition.
func MarshalDefinition(def *Definition) ([]byte, error) {
	return json.Marshal(wireDefinition{
		Nodes: def.Nodes(),
		Edges: def.Edges(),
	})
}

// UnmarshalDefinition parses the editor wire shape and re-validates it,
// so a loaded definition carries the same guarantees as one built
// directly from NewDefinition.
func UnmarshalDefinition(data []byte) (*Definition, error) {
	var wire wireDefinition
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, err
	}
	return NewDefinition(wire.Nodes, wire.Edges)
}
