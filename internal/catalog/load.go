// This file parses node type manifests from HCL.
//
// A manifest declares one or more node_type blocks:
//
//	node_type "simple-openai-chat" {
//	  name        = "OpenAI Chat"
//	  description = "Processes input text using OpenAI's chat model"
//	  category    = "processor"
//	  version     = "1.0.0"
//	  icon        = "chat"
//	  color       = "#2196F3"
//
//	  input "message_data" {
//	    type     = "object"
//	    label    = "Message Data"
//	    required = true
//	  }
//
//	  output "ai_response" {
//	    type  = "string"
//	    label = "AI Response"
//	  }
//
//	  settings {
//	    model         = "gpt-3.5-turbo"
//	    system_prompt = "You are a helpful assistant."
//	  }
//	}
package catalog

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/flowgraph/internal/ctxlog"
	"github.com/vk/flowgraph/internal/fsutil"
	"github.com/vk/flowgraph/internal/model"
)

// LoadDir parses every .hcl manifest under path into the catalog.
func (c *Catalog) LoadDir(ctx context.Context, path string) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Catalog loading manifests.", "path", path)

	files, err := fsutil.FindFilesByExtension(path, ".hcl")
	if err != nil {
		return err
	}
	if len(files) == 0 {
		logger.Warn("No .hcl manifest files found in path", "path", path)
		return nil
	}

	parser := hclparse.NewParser()
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return fmt.Errorf("failed to parse manifest %s: %w", file, diags)
		}
		if err := c.loadFile(ctx, hclFile, file); err != nil {
			return err
		}
	}

	logger.Info("Catalog loaded.", "node_types", len(c.All()))
	return nil
}

// LoadHCL parses manifests from an in-memory HCL string. Used by tests and
// by strategy packages that ship their manifest alongside the code.
func (c *Catalog) LoadHCL(ctx context.Context, src, filename string) error {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL([]byte(src), filename)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse manifest %s: %w", filename, diags)
	}
	return c.loadFile(ctx, hclFile, filename)
}

// manifestRoot is the top-level structure of a manifest file.
type manifestRoot struct {
	NodeTypes []*hclNodeType `hcl:"node_type,block"`
}

// hclNodeType defers body decoding so block parsing can collect precise
// diagnostics per section.
type hclNodeType struct {
	ID   string   `hcl:"id,label"`
	Body hcl.Body `hcl:",remain"`
}

var nodeTypeBodySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "name"},
		{Name: "description"},
		{Name: "category", Required: true},
		{Name: "version"},
		{Name: "icon"},
		{Name: "color"},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "input", LabelNames: []string{"id"}},
		{Type: "output", LabelNames: []string{"id"}},
		{Type: "settings"},
	},
}

var portBodySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "type", Required: true},
		{Name: "name"},
		{Name: "label"},
		{Name: "description"},
		{Name: "required"},
	},
}

func (c *Catalog) loadFile(ctx context.Context, hclFile *hcl.File, filename string) error {
	logger := ctxlog.FromContext(ctx)

	root := &manifestRoot{}
	if diags := gohcl.DecodeBody(hclFile.Body, nil, root); diags.HasErrors() {
		return fmt.Errorf("manifest %s: %w", filename, diags)
	}

	for _, block := range root.NodeTypes {
		nt, err := decodeNodeType(block)
		if err != nil {
			return fmt.Errorf("manifest %s: node_type %q: %w", filename, block.ID, err)
		}
		if err := c.Register(nt); err != nil {
			return fmt.Errorf("manifest %s: %w", filename, err)
		}
		logger.Debug("Registered node type from manifest.", "id", nt.ID, "file", filename)
	}
	return nil
}

func decodeNodeType(block *hclNodeType) (*model.NodeType, error) {
	content, diags := block.Body.Content(nodeTypeBodySchema)
	if diags.HasErrors() {
		return nil, diags
	}

	nt := &model.NodeType{ID: block.ID}

	strAttrs := map[string]*string{
		"name":        &nt.Name,
		"description": &nt.Description,
		"version":     &nt.Version,
		"icon":        &nt.Icon,
		"color":       &nt.Color,
	}
	for name, dst := range strAttrs {
		if attr, ok := content.Attributes[name]; ok {
			if diags := gohcl.DecodeExpression(attr.Expr, nil, dst); diags.HasErrors() {
				return nil, diags
			}
		}
	}
	if nt.Name == "" {
		nt.Name = nt.ID
	}

	var categoryName string
	if diags := gohcl.DecodeExpression(content.Attributes["category"].Expr, nil, &categoryName); diags.HasErrors() {
		return nil, diags
	}
	category, ok := model.ParseCategory(categoryName)
	if !ok {
		return nil, fmt.Errorf("unknown category %q", categoryName)
	}
	nt.Category = category

	for _, b := range content.Blocks {
		switch b.Type {
		case "input":
			port, err := decodePort(b)
			if err != nil {
				return nil, err
			}
			if _, dup := nt.InputPort(port.ID); dup {
				return nil, fmt.Errorf("duplicate input port %q", port.ID)
			}
			nt.Inputs = append(nt.Inputs, port)
		case "output":
			port, err := decodePort(b)
			if err != nil {
				return nil, err
			}
			if _, dup := nt.OutputPort(port.ID); dup {
				return nil, fmt.Errorf("duplicate output port %q", port.ID)
			}
			nt.Outputs = append(nt.Outputs, port)
		case "settings":
			defaults, err := decodeSettings(b.Body)
			if err != nil {
				return nil, err
			}
			nt.SettingsDefaults = defaults
		}
	}

	return nt, nil
}

func decodePort(block *hcl.Block) (*model.Port, error) {
	portID := block.Labels[0]
	content, diags := block.Body.Content(portBodySchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("port %q: %w", portID, diags)
	}

	port := &model.Port{ID: portID, Name: portID}

	var typeName string
	if diags := gohcl.DecodeExpression(content.Attributes["type"].Expr, nil, &typeName); diags.HasErrors() {
		return nil, fmt.Errorf("port %q: %w", portID, diags)
	}
	dataType, err := model.ParseDataType(typeName)
	if err != nil {
		return nil, fmt.Errorf("port %q: %w", portID, err)
	}
	port.DataType = dataType

	strAttrs := map[string]*string{
		"name":        &port.Name,
		"label":       &port.Label,
		"description": &port.Description,
	}
	for name, dst := range strAttrs {
		if attr, ok := content.Attributes[name]; ok {
			if diags := gohcl.DecodeExpression(attr.Expr, nil, dst); diags.HasErrors() {
				return nil, fmt.Errorf("port %q: %w", portID, diags)
			}
		}
	}
	if attr, ok := content.Attributes["required"]; ok {
		if diags := gohcl.DecodeExpression(attr.Expr, nil, &port.Required); diags.HasErrors() {
			return nil, fmt.Errorf("port %q: %w", portID, diags)
		}
	}

	return port, nil
}

// decodeSettings evaluates every attribute of the settings block into a
// plain Go value.
func decodeSettings(body hcl.Body) (map[string]any, error) {
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}
	if len(attrs) == 0 {
		return nil, nil
	}

	defaults := make(map[string]any, len(attrs))
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("settings attribute %q: %w", name, diags)
		}
		goVal, err := GoValue(val)
		if err != nil {
			return nil, fmt.Errorf("settings attribute %q: %w", name, err)
		}
		defaults[name] = goVal
	}
	return defaults, nil
}
