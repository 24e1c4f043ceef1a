package domain

import "strings"

// NewDefinition validates nodes and edges and returns an immutable
// Definition. The first failed check is returned as a *ValidationError;
// no partially valid definition is ever produced.
func NewDefinition(nodes []Node, edges []Edge) (*Definition, error) {
	def := &Definition{
		nodes:    make([]Node, len(nodes)),
		edges:    make([]Edge, len(edges)),
		nodeByID: make(map[string]int, len(nodes)),
		inbound:  make(map[string][]Edge),
		outbound: make(map[string][]Edge),
	}
	copy(def.nodes, nodes)
	copy(def.edges, edges)

	for i, node := range def.nodes {
		if _, exists := def.nodeByID[node.ID]; exists {
			return nil, NewValidationError(ValidationDuplicateNodeID, node.ID, "",
				"duplicate node id: "+node.ID)
		}
		def.nodeByID[node.ID] = i
	}

	for _, edge := range def.edges {
		if _, ok := def.nodeByID[edge.Source]; !ok {
			return nil, NewValidationError(ValidationDanglingEdge, edge.Source, edge.ID,
				"edge "+edge.ID+" references unknown source node "+edge.Source)
		}
		if _, ok := def.nodeByID[edge.Target]; !ok {
			return nil, NewValidationError(ValidationDanglingEdge, edge.Target, edge.ID,
				"edge "+edge.ID+" references unknown target node "+edge.Target)
		}
		srcPort, ok := def.OutputPort(edge.Source, edge.SourcePort)
		if !ok {
			return nil, NewValidationError(ValidationDanglingEdge, edge.Source, edge.ID,
				"edge "+edge.ID+" references unknown output port "+edge.SourcePort+" on node "+edge.Source)
		}
		dstPort, ok := def.InputPort(edge.Target, edge.TargetPort)
		if !ok {
			return nil, NewValidationError(ValidationDanglingEdge, edge.Target, edge.ID,
				"edge "+edge.ID+" references unknown input port "+edge.TargetPort+" on node "+edge.Target)
		}
		if srcPort.Kind != dstPort.Kind {
			return nil, NewValidationError(ValidationPortTypeMismatch, edge.Target, edge.ID,
				"edge "+edge.ID+" connects "+string(srcPort.Kind)+" port to "+string(dstPort.Kind)+" port")
		}
		def.outbound[edge.Source] = append(def.outbound[edge.Source], edge)
		def.inbound[edge.Target] = append(def.inbound[edge.Target], edge)
	}

	order, err := def.topologicalSort()
	if err != nil {
		return nil, err
	}
	def.order = order

	hasRoot := false
	for _, node := range def.nodes {
		if len(def.inbound[node.ID]) == 0 {
			hasRoot = true
		}
		if !def.hasRequiredInbound(node.ID) {
			def.triggers = append(def.triggers, node.ID)
		}
	}
	if !hasRoot {
		return nil, NewValidationError(ValidationNoTriggerNode, "", "",
			"workflow has no node without inbound edges")
	}

	return def, nil
}

func (d *Definition) hasRequiredInbound(nodeID string) bool {
	for _, edge := range d.inbound[nodeID] {
		if port, ok := d.InputPort(nodeID, edge.TargetPort); ok && port.Required {
			return true
		}
	}
	return false
}

// Kahn's algorithm, queue seeded and extended in node insertion order so
// the result is deterministic.
func (d *Definition) topologicalSort() ([]string, error) {
	indegree := make(map[string]int, len(d.nodes))
	for _, node := range d.nodes {
		indegree[node.ID] = len(d.inbound[node.ID])
	}

	queue := make([]string, 0, len(d.nodes))
	for _, node := range d.nodes {
		if indegree[node.ID] == 0 {
			queue = append(queue, node.ID)
		}
	}

	order := make([]string, 0, len(d.nodes))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)

		for _, edge := range d.outbound[current] {
			indegree[edge.Target]--
			if indegree[edge.Target] == 0 {
				queue = append(queue, edge.Target)
			}
		}
	}

	if len(order) != len(d.nodes) {
		remaining := make([]string, 0)
		for _, node := range d.nodes {
			if indegree[node.ID] > 0 {
				remaining = append(remaining, node.ID)
			}
		}
		first := ""
		if len(remaining) > 0 {
			first = remaining[0]
		}
		return nil, NewValidationError(ValidationCycleDetected, first, "",
			"workflow contains a cycle involving nodes: "+strings.Join(remaining, ", "))
	}

	return order, nil
}
