// Package generator turns a user query plus conversation history into a
// final answer. Two strategies share one backend contract: ToolCalling lets
// the model decide whether to search, AlwaysSearch retrieves up front and
// never advertises tools.
package generator

import (
	"context"
	"errors"

	"github.com/coursemate/coursemate/internal/tool"
)

// ErrBackendUnavailable indicates the generation backend could not be
// reached after retrying. Check with errors.Is().
var ErrBackendUnavailable = errors.New("generation backend unavailable")

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a model-issued request to run a tool.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolResult carries a tool's output back to the model.
type ToolResult struct {
	ID      string
	Name    string
	Content string
}

// Message is one turn of the conversation sent to the backend.
type Message struct {
	Role        Role
	Text        string
	ToolCalls   []ToolCall   // assistant turns that requested tools
	ToolResults []ToolResult // tool turns answering those requests
}

// Request is one completion request. Tools nil means tool use is disabled
// for this completion.
type Request struct {
	System      string
	Messages    []Message
	Tools       []tool.Declaration
	Temperature float32
	MaxTokens   int
}

// Response is the backend's reply: final text, or tool calls to satisfy
// before the conversation can continue.
type Response struct {
	Text      string
	ToolCalls []ToolCall
}

// Backend is the model API the strategies depend on. Implementations must
// be safe for concurrent use.
type Backend interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
}

// Executor is the retrieval tool as the strategies see it. Execute returns
// the result text plus the sources attributing it, so concurrent
// generations sharing one tool never see each other's sources.
type Executor interface {
	Declaration() tool.Declaration
	Execute(ctx context.Context, args map[string]any) (string, []tool.Source, error)
}

// Generator produces an answer for a query given formatted conversation
// history. Sources attribute the answer to retrieved course content; an
// answer from model knowledge alone carries none.
type Generator interface {
	Generate(ctx context.Context, query, history string) (answer string, sources []tool.Source, err error)
}

// fallbackAnswer stands in when the model returns an empty completion, so
// callers always get displayable text.
const fallbackAnswer = "I wasn't able to produce an answer for that question. Please try rephrasing it."

// systemPrompt frames the assistant for both strategies. The tool-use
// paragraph only matters when tools are advertised; the backend ignores it
// otherwise.
const systemPrompt = `You are an AI assistant specialized in course materials and educational content, with access to a search tool for course information.

Search tool usage:
- Use the search tool only for questions about specific course content or detailed educational materials
- One search per query maximum
- Synthesize search results into accurate, fact-based responses
- If the search yields no results, state this clearly without offering alternatives

Response protocol:
- General knowledge questions: answer from existing knowledge without searching
- Course-specific questions: search first, then answer
- Never mention the search process in your response, provide the answer directly

Be brief, educational, clear, and example-supported when helpful.`
