package generator

import (
	"context"
	"fmt"

	"github.com/coursemate/coursemate/internal/log"
	"github.com/coursemate/coursemate/internal/tool"
)

// AlwaysSearch retrieves before every generation: the raw query runs through
// the search tool exactly once, and the results are inlined into a single
// completion with tool use disabled. Useful for models without reliable
// function calling, at the cost of searching even for small talk.
type AlwaysSearch struct {
	completer completer
	tool      Executor
	logger    log.Logger

	temperature float32
	maxTokens   int
}

// NewAlwaysSearch creates the always-search strategy.
func NewAlwaysSearch(cfg Config) (*AlwaysSearch, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &AlwaysSearch{
		completer:   completer{backend: cfg.Backend, limiter: cfg.Limiter, logger: cfg.Logger},
		tool:        cfg.Tool,
		logger:      cfg.Logger,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Generate implements Generator.
func (g *AlwaysSearch) Generate(ctx context.Context, query, history string) (string, []tool.Source, error) {
	content, sources, err := g.tool.Execute(ctx, map[string]any{"query": query})
	if err != nil {
		return "", nil, fmt.Errorf("retrieval: %w", err)
	}

	var prompt string
	if len(sources) > 0 {
		prompt = fmt.Sprintf(
			"Answer this question based on the course content below.\n\nCourse content:\n%s\n\nQuestion: %s",
			content, query)
	} else {
		// The search came back empty; tell the model so it does not
		// hallucinate retrieved material.
		prompt = fmt.Sprintf(
			"No relevant course content was found for this question. Answer from general knowledge if you can, and say so.\n\nQuestion: %s",
			query)
	}

	req := &Request{
		System:      withHistory(systemPrompt, history),
		Messages:    []Message{{Role: RoleUser, Text: prompt}},
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	}

	resp, err := g.completer.complete(ctx, req)
	if err != nil {
		return "", nil, err
	}
	return orFallback(resp.Text), sources, nil
}
