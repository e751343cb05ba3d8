// Package gemini adapts the Gemini API to the index's Embedder and the
// generator's Backend contracts. All SDK types stay inside this package.
package gemini

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"google.golang.org/genai"

	"github.com/coursemate/coursemate/internal/generator"
)

// NewClient dials the Gemini API with an API key.
func NewClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	return client, nil
}

// Embedder produces fixed-dimension embeddings via the Gemini embedding
// models. Safe for concurrent use.
type Embedder struct {
	client *genai.Client
	model  string
	dim    int
}

// NewEmbedder creates an embedder for the given model and output dimension.
func NewEmbedder(client *genai.Client, model string, dim int) (*Embedder, error) {
	if client == nil {
		return nil, errors.New("client is required")
	}
	if model == "" {
		return nil, errors.New("embedding model is required")
	}
	if dim < 1 {
		return nil, fmt.Errorf("invalid embedding dimension %d", dim)
	}
	return &Embedder{client: client, model: model, dim: dim}, nil
}

// Embed implements index.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), &genai.EmbedContentConfig{
		TaskType:             "SEMANTIC_SIMILARITY",
		OutputDimensionality: genai.Ptr(int32(e.dim)),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding content: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, errors.New("embedding response is empty")
	}
	return resp.Embeddings[0].Values, nil
}

// Dim implements index.Embedder.
func (e *Embedder) Dim() int { return e.dim }

// Backend is the Gemini implementation of generator.Backend. Safe for
// concurrent use.
type Backend struct {
	client *genai.Client
	model  string
}

// NewBackend creates a generation backend for the given model.
func NewBackend(client *genai.Client, model string) (*Backend, error) {
	if client == nil {
		return nil, errors.New("client is required")
	}
	if model == "" {
		return nil, errors.New("model name is required")
	}
	return &Backend{client: client, model: model}, nil
}

// Complete implements generator.Backend.
func (b *Backend) Complete(ctx context.Context, req *generator.Request) (*generator.Response, error) {
	contents, err := toContents(req.Messages)
	if err != nil {
		return nil, err
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(req.Temperature),
		MaxOutputTokens: int32(req.MaxTokens),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			params, err := toSchema(t.Parameters)
			if err != nil {
				return nil, fmt.Errorf("tool %q: %w", t.Name, err)
			}
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			})
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	resp, err := b.client.Models.GenerateContent(ctx, b.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}

	out := &generator.Response{Text: resp.Text()}
	for _, fc := range resp.FunctionCalls() {
		out.ToolCalls = append(out.ToolCalls, generator.ToolCall{
			ID:   fc.ID,
			Name: fc.Name,
			Args: fc.Args,
		})
	}
	return out, nil
}

// toContents maps the transport-neutral conversation onto Gemini contents.
// Tool results travel as function-response parts in a user turn, which is
// how the API expects them.
func toContents(messages []generator.Message) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case generator.RoleUser:
			contents = append(contents, genai.NewContentFromText(msg.Text, genai.RoleUser))

		case generator.RoleAssistant:
			var parts []*genai.Part
			if msg.Text != "" {
				parts = append(parts, genai.NewPartFromText(msg.Text))
			}
			for _, call := range msg.ToolCalls {
				parts = append(parts, genai.NewPartFromFunctionCall(call.Name, call.Args))
			}
			contents = append(contents, genai.NewContentFromParts(parts, genai.RoleModel))

		case generator.RoleTool:
			parts := make([]*genai.Part, 0, len(msg.ToolResults))
			for _, res := range msg.ToolResults {
				parts = append(parts, genai.NewPartFromFunctionResponse(res.Name, map[string]any{
					"output": res.Content,
				}))
			}
			contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))

		default:
			return nil, fmt.Errorf("unknown message role %q", msg.Role)
		}
	}
	return contents, nil
}

// toSchema converts a JSON Schema tool declaration into the Gemini schema
// dialect. Only the subset tool parameters use is supported.
func toSchema(s *jsonschema.Schema) (*genai.Schema, error) {
	if s == nil {
		return nil, nil
	}

	out := &genai.Schema{
		Description: s.Description,
		Required:    s.Required,
	}
	switch s.Type {
	case "object":
		out.Type = genai.TypeObject
	case "string":
		out.Type = genai.TypeString
	case "integer":
		out.Type = genai.TypeInteger
	case "number":
		out.Type = genai.TypeNumber
	case "boolean":
		out.Type = genai.TypeBoolean
	case "array":
		out.Type = genai.TypeArray
	default:
		return nil, fmt.Errorf("unsupported schema type %q", s.Type)
	}

	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			converted, err := toSchema(prop)
			if err != nil {
				return nil, fmt.Errorf("property %q: %w", name, err)
			}
			out.Properties[name] = converted
		}
	}
	if s.Items != nil {
		items, err := toSchema(s.Items)
		if err != nil {
			return nil, fmt.Errorf("items: %w", err)
		}
		out.Items = items
	}
	return out, nil
}

var _ generator.Backend = (*Backend)(nil)
