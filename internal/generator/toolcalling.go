package generator

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/coursemate/coursemate/internal/log"
	"github.com/coursemate/coursemate/internal/tool"
)

// Config contains the shared parameters of both generation strategies.
type Config struct {
	Backend Backend
	Tool    Executor
	Logger  log.Logger

	Temperature float32
	MaxTokens   int

	// Limiter throttles backend calls. Optional; nil means no throttling.
	Limiter *rate.Limiter
}

func (cfg Config) validate() error {
	if cfg.Backend == nil {
		return errors.New("backend is required")
	}
	if cfg.Tool == nil {
		return errors.New("tool is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.MaxTokens < 1 {
		return errors.New("max tokens must be positive")
	}
	return nil
}

// ToolCalling advertises the search tool and lets the model decide whether
// to retrieve. When the model calls the tool, its results are fed back and
// the conversation is closed with exactly one follow-up completion, tools
// disabled, so a generation never loops.
type ToolCalling struct {
	completer completer
	tool      Executor
	logger    log.Logger

	temperature float32
	maxTokens   int
}

// NewToolCalling creates the tool-calling strategy.
func NewToolCalling(cfg Config) (*ToolCalling, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &ToolCalling{
		completer:   completer{backend: cfg.Backend, limiter: cfg.Limiter, logger: cfg.Logger},
		tool:        cfg.Tool,
		logger:      cfg.Logger,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Generate implements Generator.
func (g *ToolCalling) Generate(ctx context.Context, query, history string) (string, []tool.Source, error) {
	req := &Request{
		System:      withHistory(systemPrompt, history),
		Messages:    []Message{{Role: RoleUser, Text: query}},
		Tools:       []tool.Declaration{g.tool.Declaration()},
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	}

	resp, err := g.completer.complete(ctx, req)
	if err != nil {
		return "", nil, err
	}

	if len(resp.ToolCalls) == 0 {
		// The model answered from its own knowledge; no sources.
		return orFallback(resp.Text), nil, nil
	}

	results := make([]ToolResult, 0, len(resp.ToolCalls))
	var sources []tool.Source
	for _, call := range resp.ToolCalls {
		if call.Name != g.tool.Declaration().Name {
			return "", nil, fmt.Errorf("model requested unknown tool %q", call.Name)
		}
		content, srcs, err := g.tool.Execute(ctx, call.Args)
		if err != nil {
			// Infrastructure failures become text the model can relay; the
			// conversation still closes with the follow-up completion.
			g.logger.Error("tool execution failed", "error", err)
			content = fmt.Sprintf("Tool execution failed: %v", err)
		}
		sources = append(sources, srcs...)
		results = append(results, ToolResult{ID: call.ID, Name: call.Name, Content: content})
	}

	req.Messages = append(req.Messages,
		Message{Role: RoleAssistant, Text: resp.Text, ToolCalls: resp.ToolCalls},
		Message{Role: RoleTool, ToolResults: results},
	)
	req.Tools = nil // the follow-up must conclude, not search again

	final, err := g.completer.complete(ctx, req)
	if err != nil {
		return "", nil, err
	}
	return orFallback(final.Text), sources, nil
}

// withHistory appends prior conversation to the system prompt.
func withHistory(system, history string) string {
	if history == "" {
		return system
	}
	return system + "\n\nPrevious conversation:\n" + history
}

func orFallback(text string) string {
	if text == "" {
		return fallbackAnswer
	}
	return text
}
