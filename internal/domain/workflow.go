package domain

import (
	json "github.com/goccy/go-json"
)

type PortKind string

const (
	PortKindData    PortKind = "data"
	PortKindControl PortKind = "control"
	PortKindTrigger PortKind = "trigger"
)

type Port struct {
	ID       string   `json:"id"`
	Label    string   `json:"label,omitempty"`
	Kind     PortKind `json:"kind"`
	Required bool     `json:"required"`
}

type Node struct {
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	Config          json.RawMessage `json:"config,omitempty"`
	Inputs          []Port          `json:"inputs"`
	Outputs         []Port          `json:"outputs"`
	ContinueOnError bool            `json:"continue_on_error,omitempty"`
	TimeoutMS       int64           `json:"timeout_ms,omitempty"`
}

type Edge struct {
	ID         string `json:"id"`
	Source     string `json:"source"`
	Target     string `json:"target"`
	SourcePort string `json:"source_port,omitempty"`
	TargetPort string `json:"target_port,omitempty"`
}

// Definition is an immutable, validated workflow graph. Instances are
// produced only by NewDefinition and are safe to share across concurrent
// runs; all mutable execution state lives on the run, never here.
type Definition struct {
	nodes    []Node
	edges    []Edge
	nodeByID map[string]int
	inbound  map[string][]Edge
	outbound map[string][]Edge
	order    []string
	triggers []string
}

func (d *Definition) Nodes() []Node {
	out := make([]Node, len(d.nodes))
	copy(out, d.nodes)
	return out
}

func (d *Definition) Edges() []Edge {
	out := make([]Edge, len(d.edges))
	copy(out, d.edges)
	return out
}

func (d *Definition) Node(id string) (Node, bool) {
	idx, ok := d.nodeByID[id]
	if !ok {
		return Node{}, false
	}
	return d.nodes[idx], true
}

func (d *Definition) Inbound(nodeID string) []Edge {
	return d.inbound[nodeID]
}

func (d *Definition) Outbound(nodeID string) []Edge {
	return d.outbound[nodeID]
}

func (d *Definition) TopologicalOrder() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// TriggerNodes returns the nodes with no inbound edges into required
// ports, in insertion order.
func (d *Definition) TriggerNodes() []string {
	out := make([]string, len(d.triggers))
	copy(out, d.triggers)
	return out
}

func (d *Definition) NodeCount() int {
	return len(d.nodes)
}

func (d *Definition) portByID(ports []Port, id string) (Port, bool) {
	for _, p := range ports {
		if p.ID == id {
			return p, true
		}
	}
	return Port{}, false
}

func (d *Definition) InputPort(nodeID, portID string) (Port, bool) {
	node, ok := d.Node(nodeID)
	if !ok {
		return Port{}, false
	}
	return d.portByID(node.Inputs, portID)
}

func (d *Definition) OutputPort(nodeID, portID string) (Port, bool) {
	node, ok := d.Node(nodeID)
	if !ok {
		return Port{}, false
	}
	return d.portByID(node.Outputs, portID)
}
