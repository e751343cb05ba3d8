// Package tool exposes index retrieval as a model-invokable tool: a JSON
// schema declaration the generation backend advertises, plus the execution
// side that formats results for prompt inclusion and attributes them to
// their sources.
package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/coursemate/coursemate/internal/index"
	"github.com/coursemate/coursemate/internal/log"
)

// Name is the tool name advertised to the model.
const Name = "search_course_content"

// Source attributes part of an answer to a course (and lesson, when known).
type Source struct {
	Text string `json:"text"`
	Link string `json:"link,omitempty"`
}

// Declaration is the transport-neutral tool description sent to the model.
type Declaration struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
}

// Searcher is the slice of the course index the tool needs.
type Searcher interface {
	Search(ctx context.Context, query string, opts ...index.SearchOption) ([]index.Match, error)
	GetLessonLink(ctx context.Context, courseTitle string, lessonNumber int) (string, bool, error)
}

// CourseSearch executes semantic course-content searches on the model's
// behalf. It holds no per-query state, so one instance serves any number of
// concurrent generations.
type CourseSearch struct {
	searcher Searcher
	logger   log.Logger
}

// NewCourseSearch creates the retrieval tool over the given index.
func NewCourseSearch(searcher Searcher, logger log.Logger) (*CourseSearch, error) {
	if searcher == nil {
		return nil, errors.New("searcher is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	return &CourseSearch{searcher: searcher, logger: logger}, nil
}

// Declaration returns the tool's schema for the generation backend.
func (t *CourseSearch) Declaration() Declaration {
	return Declaration{
		Name: Name,
		Description: "Search course materials with smart course name matching " +
			"and lesson filtering",
		Parameters: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"query": {
					Type:        "string",
					Description: "What to search for in the course content",
				},
				"course_name": {
					Type:        "string",
					Description: "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
				},
				"lesson_number": {
					Type:        "integer",
					Description: "Specific lesson number to search within (e.g. 1, 2, 3)",
				},
			},
			Required: []string{"query"},
		},
	}
}

// Execute runs one search from the model's arguments and returns the result
// text to feed back into the conversation, plus the sources that attribute
// it. Misses return no sources.
//
// Search misses are conversational outcomes, not failures: an unresolvable
// course name or an empty result set comes back as a plain-text message for
// the model to relay. Only infrastructure problems (backend down, corrupt
// index) surface as errors.
func (t *CourseSearch) Execute(ctx context.Context, args map[string]any) (string, []Source, error) {
	query, ok := args["query"].(string)
	if !ok || query == "" {
		return "", nil, errors.New("tool call missing required argument: query")
	}
	courseName, _ := args["course_name"].(string)
	lesson, hasLesson := intArg(args["lesson_number"])

	opts := []index.SearchOption{}
	if courseName != "" {
		opts = append(opts, index.WithCourse(courseName))
	}
	if hasLesson {
		opts = append(opts, index.WithLesson(lesson))
	}

	t.logger.Debug("executing course search",
		"query", query, "course", courseName, "lesson", lesson)

	matches, err := t.searcher.Search(ctx, query, opts...)
	if err != nil {
		if errors.Is(err, index.ErrCourseNotFound) {
			return fmt.Sprintf("No course found matching '%s'", courseName), nil, nil
		}
		return "", nil, fmt.Errorf("course search: %w", err)
	}
	if len(matches) == 0 {
		return emptyMessage(courseName, lesson, hasLesson), nil, nil
	}

	text, sources := t.format(ctx, matches)
	return text, sources, nil
}

// format renders matches as labeled blocks separated by blank lines:
//
//	[Course Title - Lesson 3]
//	chunk text
//
// with one source per match.
func (t *CourseSearch) format(ctx context.Context, matches []index.Match) (string, []Source) {
	var blocks []string
	var sources []Source

	for _, m := range matches {
		label := m.CourseTitle
		src := Source{Text: m.CourseTitle}
		if m.LessonNumber != nil {
			label = fmt.Sprintf("%s - Lesson %d", m.CourseTitle, *m.LessonNumber)
			src.Text = label
			if link, ok, err := t.searcher.GetLessonLink(ctx, m.CourseTitle, *m.LessonNumber); err != nil {
				t.logger.Warn("lesson link lookup failed",
					"course", m.CourseTitle, "lesson", *m.LessonNumber, "error", err)
			} else if ok {
				src.Link = link
			}
		}
		blocks = append(blocks, fmt.Sprintf("[%s]\n%s", label, m.Content))
		sources = append(sources, src)
	}

	return strings.Join(blocks, "\n\n"), sources
}

func emptyMessage(courseName string, lesson int, hasLesson bool) string {
	var b strings.Builder
	b.WriteString("No relevant content found")
	if courseName != "" {
		fmt.Fprintf(&b, " in course '%s'", courseName)
	}
	if hasLesson {
		fmt.Fprintf(&b, " in lesson %d", lesson)
	}
	b.WriteByte('.')
	return b.String()
}

// intArg coerces a JSON-decoded argument to int. Models send numbers, which
// decode as float64.
func intArg(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	}
	return 0, false
}
