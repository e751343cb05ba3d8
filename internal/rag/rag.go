// Package rag wires the chunker, course index, session store, and generator
// into the question-answering system.
package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/coursemate/coursemate/internal/course"
	"github.com/coursemate/coursemate/internal/generator"
	"github.com/coursemate/coursemate/internal/index"
	"github.com/coursemate/coursemate/internal/log"
	"github.com/coursemate/coursemate/internal/session"
	"github.com/coursemate/coursemate/internal/tool"
)

// Config contains the components the system orchestrates.
type Config struct {
	Index     *index.CourseIndex
	Chunker   *course.Chunker
	Sessions  *session.Store
	Generator generator.Generator
	Logger    log.Logger
}

func (cfg Config) validate() error {
	if cfg.Index == nil {
		return errors.New("index is required")
	}
	if cfg.Chunker == nil {
		return errors.New("chunker is required")
	}
	if cfg.Sessions == nil {
		return errors.New("session store is required")
	}
	if cfg.Generator == nil {
		return errors.New("generator is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// System is the orchestrator: it owns the query path (history, generation,
// memory update) and the ingestion path (chunking, indexing).
type System struct {
	index     *index.CourseIndex
	chunker   *course.Chunker
	sessions  *session.Store
	generator generator.Generator
	logger    log.Logger
}

// New creates the system from its components.
func New(cfg Config) (*System, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &System{
		index:     cfg.Index,
		chunker:   cfg.Chunker,
		sessions:  cfg.Sessions,
		generator: cfg.Generator,
		logger:    cfg.Logger,
	}, nil
}

// Query answers one question. An empty sessionID starts a new conversation;
// a caller-supplied ID the store has never seen starts with empty history.
// The (possibly minted) session ID is always returned so the caller can
// continue it. The exchange is recorded only after generation succeeds, so
// a failed turn leaves the conversation memory untouched.
func (s *System) Query(ctx context.Context, query, sessionID string) (answer string, sources []tool.Source, sid string, err error) {
	if strings.TrimSpace(query) == "" {
		return "", nil, "", errors.New("query is empty")
	}

	if sessionID == "" {
		sessionID = s.sessions.Create()
	}
	history := s.sessions.History(sessionID)

	answer, sources, err = s.generator.Generate(ctx, query, history)
	if err != nil {
		return "", nil, "", fmt.Errorf("generating answer: %w", err)
	}

	s.sessions.AddExchange(sessionID, query, answer)
	return answer, sources, sessionID, nil
}

// AddCourse chunks and indexes one parsed course document. A duplicate
// title reports added false with no error and leaves the index unchanged.
func (s *System) AddCourse(ctx context.Context, doc course.Document) (added bool, chunks int, err error) {
	cs := s.chunker.ChunkDocument(doc)
	added, err = s.index.AddCourse(ctx, doc.Course(), cs)
	if err != nil {
		return false, 0, err
	}
	if !added {
		return false, 0, nil
	}
	return true, len(cs), nil
}

// AddCourseDir ingests every course document (*.json) in dir, skipping
// duplicates. With clear set, the index is emptied first for a full
// rebuild. Returns the number of courses and chunks actually added.
func (s *System) AddCourseDir(ctx context.Context, dir string, clear bool) (courses, chunks int, err error) {
	if clear {
		if err := s.index.Clear(ctx); err != nil {
			return 0, 0, fmt.Errorf("clearing index: %w", err)
		}
		s.logger.Info("index cleared for rebuild")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("reading course directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		doc, err := loadDocument(path)
		if err != nil {
			return courses, chunks, err
		}
		added, n, err := s.AddCourse(ctx, doc)
		if err != nil {
			return courses, chunks, fmt.Errorf("ingesting %s: %w", entry.Name(), err)
		}
		if added {
			courses++
			chunks += n
		}
	}
	return courses, chunks, nil
}

func loadDocument(path string) (course.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return course.Document{}, fmt.Errorf("reading %s: %w", path, err)
	}
	var doc course.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return course.Document{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	if doc.Title == "" {
		return course.Document{}, fmt.Errorf("%s: course title is required", path)
	}
	return doc, nil
}

// Analytics is the catalog summary served to clients.
type Analytics struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}

// CourseAnalytics reports the indexed catalog.
func (s *System) CourseAnalytics(ctx context.Context) (Analytics, error) {
	count, err := s.index.CourseCount(ctx)
	if err != nil {
		return Analytics{}, fmt.Errorf("counting courses: %w", err)
	}
	titles, err := s.index.CourseTitles(ctx)
	if err != nil {
		return Analytics{}, fmt.Errorf("listing courses: %w", err)
	}
	return Analytics{TotalCourses: count, CourseTitles: titles}, nil
}

// NewSession mints a fresh conversation and returns its ID.
func (s *System) NewSession() string {
	return s.sessions.Create()
}
