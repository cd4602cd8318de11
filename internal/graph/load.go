// This file parses flow documents from HCL.
//
// A flow document places node instances and wires their ports:
//
//	flow {
//	  id   = 42
//	  name = "voice to chat"
//	}
//
//	node "voice-1" {
//	  type = "download-telegram-voice"
//	}
//
//	node "chat-1" {
//	  type = "simple-openai-chat"
//	  settings {
//	    model = "gpt-4o-mini"
//	  }
//	}
//
//	edge {
//	  from = "voice-1.message_data"
//	  to   = "chat-1.message_data"
//	}
//
// Edge endpoints use "node.port" references; the port half may be omitted
// for single-port nodes.
package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/flowgraph/internal/catalog"
	"github.com/vk/flowgraph/internal/ctxlog"
	"github.com/vk/flowgraph/internal/model"
)

// FlowInfo is the optional document-level metadata from the flow block.
type FlowInfo struct {
	ID   int64  `hcl:"id,optional"`
	Name string `hcl:"name,optional"`
}

type settingsBlock struct {
	Body hcl.Body `hcl:",remain"`
}

type nodeBlock struct {
	ID       string         `hcl:"id,label"`
	Type     string         `hcl:"type"`
	Label    string         `hcl:"label,optional"`
	Disabled bool           `hcl:"disabled,optional"`
	Settings *settingsBlock `hcl:"settings,block"`
}

type edgeBlock struct {
	From string `hcl:"from"`
	To   string `hcl:"to"`
}

type flowRoot struct {
	Flow  *FlowInfo    `hcl:"flow,block"`
	Nodes []*nodeBlock `hcl:"node,block"`
	Edges []*edgeBlock `hcl:"edge,block"`
}

// LoadFile parses one flow document into a fresh Document backed by the
// given catalog.
func LoadFile(ctx context.Context, cat *catalog.Catalog, path string) (*Document, *FlowInfo, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, nil, fmt.Errorf("failed to parse flow document %s: %w", path, diags)
	}
	return loadFlow(ctx, cat, hclFile, path)
}

// LoadHCL parses a flow document from an in-memory HCL string.
func LoadHCL(ctx context.Context, cat *catalog.Catalog, src, filename string) (*Document, *FlowInfo, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL([]byte(src), filename)
	if diags.HasErrors() {
		return nil, nil, fmt.Errorf("failed to parse flow document %s: %w", filename, diags)
	}
	return loadFlow(ctx, cat, hclFile, filename)
}

func loadFlow(ctx context.Context, cat *catalog.Catalog, hclFile *hcl.File, filename string) (*Document, *FlowInfo, error) {
	logger := ctxlog.FromContext(ctx)

	root := &flowRoot{}
	if diags := gohcl.DecodeBody(hclFile.Body, nil, root); diags.HasErrors() {
		return nil, nil, fmt.Errorf("flow document %s: %w", filename, diags)
	}

	doc := NewDocument(cat)
	for _, nb := range root.Nodes {
		node := &model.Node{
			ID:       nb.ID,
			TypeID:   nb.Type,
			Label:    nb.Label,
			Disabled: nb.Disabled,
		}
		if nb.Settings != nil {
			settings, err := decodeNodeSettings(nb.Settings.Body)
			if err != nil {
				return nil, nil, fmt.Errorf("flow document %s: node %q: %w", filename, nb.ID, err)
			}
			node.Settings = settings
		}
		if err := doc.AddNode(node); err != nil {
			return nil, nil, fmt.Errorf("flow document %s: %w", filename, err)
		}
	}

	for _, eb := range root.Edges {
		srcNode, srcPort := splitEndpoint(eb.From)
		dstNode, dstPort := splitEndpoint(eb.To)
		edge := &model.Edge{
			SourceNodeID: srcNode,
			SourcePortID: srcPort,
			TargetNodeID: dstNode,
			TargetPortID: dstPort,
		}
		if err := doc.AddEdge(edge); err != nil {
			return nil, nil, fmt.Errorf("flow document %s: %w", filename, err)
		}
	}

	info := root.Flow
	if info == nil {
		info = &FlowInfo{}
	}
	logger.Debug("Flow document loaded.", "file", filename, "nodes", len(root.Nodes), "edges", len(root.Edges))
	return doc, info, nil
}

func decodeNodeSettings(body hcl.Body) (map[string]any, error) {
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}
	if len(attrs) == 0 {
		return nil, nil
	}
	settings := make(map[string]any, len(attrs))
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("settings attribute %q: %w", name, diags)
		}
		goVal, err := catalog.GoValue(val)
		if err != nil {
			return nil, fmt.Errorf("settings attribute %q: %w", name, err)
		}
		settings[name] = goVal
	}
	return settings, nil
}

// splitEndpoint splits "node.port" into its halves; a bare "node" leaves the
// port empty so the edge defaults apply.
func splitEndpoint(ref string) (node, port string) {
	if i := strings.IndexByte(ref, '.'); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	return ref, ""
}
