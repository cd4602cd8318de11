package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/flowgraph/internal/catalog"
	"github.com/vk/flowgraph/internal/graph"
	"github.com/vk/flowgraph/internal/model"
)

// NewCatalog builds a catalog with the node types most tests wire up: a
// text trigger, a chat processor with a required input and a message
// delivery action.
func NewCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat := catalog.New()
	for _, nt := range []*model.NodeType{
		TriggerType(), ChatType(), ActionType(),
	} {
		require.NoError(t, cat.Register(nt))
	}
	return cat
}

// TriggerType is a chat-input style trigger: no inputs, one envelope
// output.
func TriggerType() *model.NodeType {
	return &model.NodeType{
		ID:       "chat-input",
		Name:     "Chat Input",
		Category: model.CategoryTrigger,
		Version:  "1.0.0",
		Outputs: []*model.Port{
			{ID: "message_data", Name: "message_data", Label: "Message Data", DataType: model.TypeObject, Required: true},
		},
	}
}

// ChatType is a chat completion processor with a required input.
func ChatType() *model.NodeType {
	return &model.NodeType{
		ID:       "simple-openai-chat",
		Name:     "OpenAI Chat",
		Category: model.CategoryProcessor,
		Version:  "1.0.0",
		Inputs: []*model.Port{
			{ID: "message_data", Name: "message_data", Label: "Message Data", DataType: model.TypeObject, Required: true},
		},
		Outputs: []*model.Port{
			{ID: "ai_response", Name: "ai_response", Label: "AI Response", DataType: model.TypeString, Required: true},
		},
		SettingsDefaults: map[string]any{
			"model":         "gpt-4o-mini",
			"system_prompt": "You are a helpful assistant.",
		},
	}
}

// ActionType is a message delivery action with a required text input.
func ActionType() *model.NodeType {
	return &model.NodeType{
		ID:       "telegram-message-action",
		Name:     "Send Telegram Message",
		Category: model.CategoryAction,
		Version:  "1.0.0",
		Inputs: []*model.Port{
			{ID: "message_text", Name: "message_text", Label: "Message Text", DataType: model.TypeString, Required: true},
		},
	}
}

// NewDocument builds a document over NewCatalog's types with the given
// nodes and edges already placed.
func NewDocument(t *testing.T, cat *catalog.Catalog, nodes []*model.Node, edges []*model.Edge) *graph.Document {
	t.Helper()
	doc := graph.NewDocument(cat)
	for _, n := range nodes {
		require.NoError(t, doc.AddNode(n))
	}
	for _, e := range edges {
		require.NoError(t, doc.AddEdge(e))
	}
	return doc
}

// Node is a shorthand node constructor.
func Node(id, typeID string) *model.Node {
	return &model.Node{ID: id, TypeID: typeID}
}

// Edge is a shorthand edge constructor using the default ports.
func Edge(source, sourcePort, target, targetPort string) *model.Edge {
	return &model.Edge{
		SourceNodeID: source,
		SourcePortID: sourcePort,
		TargetNodeID: target,
		TargetPortID: targetPort,
	}
}
