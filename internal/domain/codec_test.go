package domain

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefinitionRoundTrip(t *testing.T) {
	nodes := []Node{
		{
			ID:      "fetch",
			Type:    "http_request",
			Config:  json.RawMessage(`{"url":"https://example.com","method":"GET"}`),
			Inputs:  []Port{{ID: "trigger", Label: "Trigger", Kind: PortKindTrigger, Required: false}},
			Outputs: []Port{{ID: "response", Label: "Response", Kind: PortKindData}},
		},
		{
			ID:              "notify",
			Type:            "email",
			Config:          json.RawMessage(`{"to":"ops@example.com"}`),
			Inputs:          []Port{{ID: "body", Kind: PortKindData, Required: true}},
			ContinueOnError: true,
			TimeoutMS:       5000,
		},
	}
	edges := []Edge{
		{ID: "e1", Source: "fetch", SourcePort: "response", Target: "notify", TargetPort: "body"},
	}

	def, err := NewDefinition(nodes, edges)
	require.NoError(t, err)

	data, err := MarshalDefinition(def)
	require.NoError(t, err)

	restored, err := UnmarshalDefinition(data)
	require.NoError(t, err)

	assert.Equal(t, def.Nodes(), restored.Nodes())
	assert.Equal(t, def.Edges(), restored.Edges())
	assert.Equal(t, def.TopologicalOrder(), restored.TopologicalOrder())
	assert.Equal(t, def.TriggerNodes(), restored.TriggerNodes())

	again, err := MarshalDefinition(restored)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(again))
}

func TestUnmarshalDefinition_RejectsInvalidGraph(t *testing.T) {
	wire := `{
		"nodes": [
			{"id": "a", "type": "t", "inputs": [{"id":"in","kind":"data","required":true}], "outputs": [{"id":"out","kind":"data","required":false}]},
			{"id": "b", "type": "t", "inputs": [{"id":"in","kind":"data","required":true}], "outputs": [{"id":"out","kind":"data","required":false}]}
		],
		"edges": [
			{"id": "e1", "source": "a", "source_port": "out", "target": "b", "target_port": "in"},
			{"id": "e2", "source": "b", "source_port": "out", "target": "a", "target_port": "in"}
		]
	}`

	_, err := UnmarshalDefinition([]byte(wire))
	code, ok := ValidationCodeOf(err)
	require.True(t, ok)
	assert.Equal(t, ValidationCycleDetected, code)
}

func TestUnmarshalDefinition_RejectsMalformedJSON(t *testing.T) {
	_, err := UnmarshalDefinition([]byte(`{"nodes": [`))
	assert.Error(t, err)
}
