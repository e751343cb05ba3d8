package generator_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/coursemate/coursemate/internal/generator"
	"github.com/coursemate/coursemate/internal/log"
	"github.com/coursemate/coursemate/internal/testutil"
	"github.com/coursemate/coursemate/internal/tool"
)

// fakeExecutor scripts the retrieval tool for strategy tests. When byQuery
// is set, the sources for a call are looked up by its query argument.
type fakeExecutor struct {
	content string
	err     error
	sources []tool.Source
	byQuery map[string][]tool.Source

	mu    sync.Mutex
	calls []map[string]any
}

func (f *fakeExecutor) Declaration() tool.Declaration {
	return tool.Declaration{Name: tool.Name, Description: "search"}
}

func (f *fakeExecutor) Execute(_ context.Context, args map[string]any) (string, []tool.Source, error) {
	f.mu.Lock()
	f.calls = append(f.calls, args)
	f.mu.Unlock()
	sources := f.sources
	if f.byQuery != nil {
		q, _ := args["query"].(string)
		sources = f.byQuery[q]
	}
	return f.content, sources, f.err
}

func newToolCalling(t *testing.T, backend generator.Backend, exec generator.Executor) *generator.ToolCalling {
	t.Helper()
	g, err := generator.NewToolCalling(generator.Config{
		Backend:     backend,
		Tool:        exec,
		Logger:      log.NewNop(),
		Temperature: 0.1,
		MaxTokens:   800,
	})
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestToolCallingDirectAnswer(t *testing.T) {
	backend := testutil.NewScriptedBackend().Reply("Go is a programming language.")
	exec := &fakeExecutor{}
	g := newToolCalling(t, backend, exec)

	answer, sources, err := g.Generate(context.Background(), "What is Go?", "")
	if err != nil {
		t.Fatal(err)
	}
	if answer != "Go is a programming language." {
		t.Errorf("answer = %q", answer)
	}
	if len(sources) != 0 {
		t.Errorf("direct answer carried %d sources, want 0", len(sources))
	}
	if backend.Calls() != 1 {
		t.Errorf("backend called %d times, want 1", backend.Calls())
	}
	if len(exec.calls) != 0 {
		t.Errorf("tool executed %d times without a tool call", len(exec.calls))
	}

	req := backend.Requests()[0]
	if len(req.Tools) != 1 || req.Tools[0].Name != tool.Name {
		t.Errorf("first request tools = %+v, want the search tool", req.Tools)
	}
	if req.Temperature != 0.1 || req.MaxTokens != 800 {
		t.Errorf("request carried temperature %v, max tokens %d", req.Temperature, req.MaxTokens)
	}
}

func TestToolCallingSearchFlow(t *testing.T) {
	backend := testutil.NewScriptedBackend().
		ReplyWith(&generator.Response{ToolCalls: []generator.ToolCall{{
			Name: tool.Name,
			Args: map[string]any{"query": "goroutines", "course_name": "Go"},
		}}}).
		Reply("Goroutines are lightweight threads.")
	exec := &fakeExecutor{
		content: "[Go - Lesson 2]\ngoroutine chunk",
		sources: []tool.Source{{Text: "Go - Lesson 2"}},
	}
	g := newToolCalling(t, backend, exec)

	answer, sources, err := g.Generate(context.Background(), "What are goroutines?", "")
	if err != nil {
		t.Fatal(err)
	}
	if answer != "Goroutines are lightweight threads." {
		t.Errorf("answer = %q", answer)
	}
	if len(sources) != 1 || sources[0].Text != "Go - Lesson 2" {
		t.Errorf("sources = %+v", sources)
	}
	if len(exec.calls) != 1 {
		t.Fatalf("tool executed %d times, want 1", len(exec.calls))
	}
	if got := exec.calls[0]["course_name"]; got != "Go" {
		t.Errorf("tool received course_name %v", got)
	}

	reqs := backend.Requests()
	if len(reqs) != 2 {
		t.Fatalf("backend called %d times, want 2", len(reqs))
	}
	if reqs[1].Tools != nil {
		t.Error("follow-up request still advertised tools")
	}

	// The follow-up conversation carries the tool exchange.
	msgs := reqs[1].Messages
	if len(msgs) != 3 {
		t.Fatalf("follow-up carried %d messages, want 3", len(msgs))
	}
	if msgs[1].Role != generator.RoleAssistant || len(msgs[1].ToolCalls) != 1 {
		t.Errorf("message 1 = %+v, want the assistant's tool call", msgs[1])
	}
	if msgs[2].Role != generator.RoleTool || msgs[2].ToolResults[0].Content != exec.content {
		t.Errorf("message 2 = %+v, want the tool result", msgs[2])
	}
}

// One follow-up is the ceiling: a model that keeps requesting tools gets no
// further executions.
func TestToolCallingSingleFollowUp(t *testing.T) {
	backend := testutil.NewScriptedBackend().
		ReplyWith(&generator.Response{ToolCalls: []generator.ToolCall{{Name: tool.Name, Args: map[string]any{"query": "a"}}}}).
		ReplyWith(&generator.Response{ToolCalls: []generator.ToolCall{{Name: tool.Name, Args: map[string]any{"query": "b"}}}})
	exec := &fakeExecutor{content: "chunk"}
	g := newToolCalling(t, backend, exec)

	answer, _, err := g.Generate(context.Background(), "q", "")
	if err != nil {
		t.Fatal(err)
	}
	if backend.Calls() != 2 {
		t.Errorf("backend called %d times, want exactly 2", backend.Calls())
	}
	if len(exec.calls) != 1 {
		t.Errorf("tool executed %d times, want exactly 1", len(exec.calls))
	}
	if answer == "" {
		t.Error("empty answer not replaced with fallback text")
	}
}

// Generations sharing one tool instance must each keep the sources of their
// own search, never a concurrent generation's.
func TestToolCallingConcurrentSourcesIndependent(t *testing.T) {
	exec := &fakeExecutor{
		content: "chunk",
		byQuery: map[string][]tool.Source{
			"query A": {{Text: "Course A"}},
			"query B": {{Text: "Course B"}},
		},
	}

	queries := []string{"query A", "query B"}
	gens := make([]*generator.ToolCalling, len(queries))
	for i, q := range queries {
		backend := testutil.NewScriptedBackend().
			ReplyWith(&generator.Response{ToolCalls: []generator.ToolCall{{
				Name: tool.Name,
				Args: map[string]any{"query": q},
			}}}).
			Reply("answer")
		gens[i] = newToolCalling(t, backend, exec)
	}

	var wg sync.WaitGroup
	sources := make([][]tool.Source, len(queries))
	errs := make([]error, len(queries))
	for i := range queries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, sources[i], errs[i] = gens[i].Generate(context.Background(), queries[i], "")
		}()
	}
	wg.Wait()

	for i, want := range []string{"Course A", "Course B"} {
		if errs[i] != nil {
			t.Fatal(errs[i])
		}
		if len(sources[i]) != 1 || sources[i][0].Text != want {
			t.Errorf("generation %d sources = %+v, want %s", i, sources[i], want)
		}
	}
}

func TestToolCallingUnknownTool(t *testing.T) {
	backend := testutil.NewScriptedBackend().
		ReplyWith(&generator.Response{ToolCalls: []generator.ToolCall{{Name: "delete_everything"}}})
	g := newToolCalling(t, backend, &fakeExecutor{})

	if _, _, err := g.Generate(context.Background(), "q", ""); err == nil {
		t.Error("unknown tool request succeeded")
	}
}

// A failing tool becomes text for the model; the generation still concludes.
func TestToolCallingToolFailureRelayed(t *testing.T) {
	backend := testutil.NewScriptedBackend().
		ReplyWith(&generator.Response{ToolCalls: []generator.ToolCall{{Name: tool.Name, Args: map[string]any{"query": "q"}}}}).
		Reply("I could not search the course materials.")
	exec := &fakeExecutor{err: errors.New("index offline")}
	g := newToolCalling(t, backend, exec)

	answer, _, err := g.Generate(context.Background(), "q", "")
	if err != nil {
		t.Fatal(err)
	}
	if answer == "" {
		t.Error("generation did not conclude after tool failure")
	}

	reqs := backend.Requests()
	result := reqs[1].Messages[2].ToolResults[0].Content
	if !strings.Contains(result, "index offline") {
		t.Errorf("tool result %q does not relay the failure", result)
	}
}

func TestToolCallingHistoryInSystem(t *testing.T) {
	backend := testutil.NewScriptedBackend().Reply("ok")
	g := newToolCalling(t, backend, &fakeExecutor{})

	history := "User: hi\nAssistant: hello"
	if _, _, err := g.Generate(context.Background(), "q", history); err != nil {
		t.Fatal(err)
	}

	system := backend.Requests()[0].System
	if !strings.Contains(system, "Previous conversation:\n"+history) {
		t.Errorf("system prompt missing history:\n%s", system)
	}
}

func TestToolCallingRetriesOnce(t *testing.T) {
	t.Run("second attempt succeeds", func(t *testing.T) {
		backend := testutil.NewScriptedBackend().
			Fail(errors.New("transient")).
			Reply("recovered")
		g := newToolCalling(t, backend, &fakeExecutor{})

		answer, _, err := g.Generate(context.Background(), "q", "")
		if err != nil {
			t.Fatal(err)
		}
		if answer != "recovered" {
			t.Errorf("answer = %q", answer)
		}
		if backend.Calls() != 2 {
			t.Errorf("backend called %d times, want 2", backend.Calls())
		}
	})

	t.Run("second failure surfaces", func(t *testing.T) {
		backend := testutil.NewScriptedBackend().
			Fail(errors.New("transient")).
			Fail(errors.New("still down"))
		g := newToolCalling(t, backend, &fakeExecutor{})

		_, _, err := g.Generate(context.Background(), "q", "")
		if !errors.Is(err, generator.ErrBackendUnavailable) {
			t.Fatalf("error = %v, want ErrBackendUnavailable", err)
		}
		if backend.Calls() != 2 {
			t.Errorf("backend called %d times, want exactly 2", backend.Calls())
		}
	})
}
