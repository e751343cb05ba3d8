package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/coursemate/coursemate/internal/course"
	"github.com/coursemate/coursemate/internal/log"
)

// Config contains the required parameters for a CourseIndex.
type Config struct {
	Catalog  Collection // course metadata vectors, one per course
	Content  Collection // chunk vectors
	Embedder Embedder
	Logger   log.Logger

	// TopK is the default number of content results per search.
	TopK int

	// MinSimilarity is the floor for fuzzy course name resolution; the
	// nearest catalog match below it is reported as not found. A fixed
	// configuration constant, never derived at runtime.
	MinSimilarity float32
}

func (cfg Config) validate() error {
	if cfg.Catalog == nil {
		return errors.New("catalog collection is required")
	}
	if cfg.Content == nil {
		return errors.New("content collection is required")
	}
	if cfg.Embedder == nil {
		return errors.New("embedder is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.TopK < 1 {
		return errors.New("top-K must be positive")
	}
	if cfg.MinSimilarity < 0 || cfg.MinSimilarity > 1 {
		return errors.New("similarity floor must be within [0, 1]")
	}
	return nil
}

// CourseIndex owns all Course/Lesson/Chunk data and every embedding.
//
// Reads (searches, lookups) are safe without external locking. Ingestion is
// an administrative, low-frequency operation guarded by a single mutex;
// concurrent searches may briefly block inside a collection during a bulk
// insert but are never serialized against each other.
type CourseIndex struct {
	catalog  Collection
	content  Collection
	embedder Embedder
	logger   log.Logger

	topK          int
	minSimilarity float32

	ingestMu sync.Mutex // serializes AddCourse/Clear
}

// New creates a CourseIndex with the given configuration.
func New(cfg Config) (*CourseIndex, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &CourseIndex{
		catalog:       cfg.Catalog,
		content:       cfg.Content,
		embedder:      cfg.Embedder,
		logger:        cfg.Logger,
		topK:          cfg.TopK,
		minSimilarity: cfg.MinSimilarity,
	}, nil
}

// AddCourse indexes a course's metadata and its content chunks. A course
// whose title is already present is skipped: added is false and err is nil,
// and the existing content is left untouched.
//
// The whole batch is embedded and validated before anything is inserted, so
// a dimension mismatch (ErrCorruptIndex) halts ingestion of the course
// without leaving partial state behind.
func (ci *CourseIndex) AddCourse(ctx context.Context, c course.Course, chunks []course.Chunk) (added bool, err error) {
	if c.Title == "" {
		return false, errors.New("course title is required")
	}

	ci.ingestMu.Lock()
	defer ci.ingestMu.Unlock()

	if _, exists, err := ci.catalog.Get(ctx, c.Title); err != nil {
		return false, fmt.Errorf("checking catalog for %q: %w", c.Title, err)
	} else if exists {
		ci.logger.Info("course already exists, skipping", "title", c.Title)
		return false, nil
	}

	catalogRec, err := ci.catalogRecord(ctx, c)
	if err != nil {
		return false, err
	}

	contentRecs := make([]Record, 0, len(chunks))
	for _, chunk := range chunks {
		rec, err := ci.contentRecord(ctx, c.Title, chunk)
		if err != nil {
			return false, err
		}
		contentRecs = append(contentRecs, rec)
	}

	if err := ci.catalog.Add(ctx, []Record{catalogRec}); err != nil {
		return false, fmt.Errorf("adding catalog entry for %q: %w", c.Title, err)
	}
	if err := ci.content.Add(ctx, contentRecs); err != nil {
		return false, fmt.Errorf("adding content for %q: %w", c.Title, err)
	}

	ci.logger.Info("course indexed", "title", c.Title, "chunks", len(chunks))
	return true, nil
}

// catalogRecord builds the course's catalog entry. The embedding is derived
// from the title and description so a fuzzy name can match either.
func (ci *CourseIndex) catalogRecord(ctx context.Context, c course.Course) (Record, error) {
	text := c.Title
	if c.Description != "" {
		text += "\n" + c.Description
	}
	vec, err := ci.embedder.Embed(ctx, text)
	if err != nil {
		return Record{}, fmt.Errorf("embedding catalog entry for %q: %w", c.Title, err)
	}
	if len(vec) != ci.embedder.Dim() {
		return Record{}, fmt.Errorf("%w: catalog embedding for %q has dimension %d, want %d",
			ErrCorruptIndex, c.Title, len(vec), ci.embedder.Dim())
	}

	lessonsJSON, err := json.Marshal(c.Lessons)
	if err != nil {
		return Record{}, fmt.Errorf("marshal lessons for %q: %w", c.Title, err)
	}

	meta := map[string]string{MetaLessons: string(lessonsJSON)}
	if c.Instructor != "" {
		meta[MetaInstructor] = c.Instructor
	}
	if c.Link != "" {
		meta[MetaCourseLink] = c.Link
	}

	return Record{ID: c.Title, Content: text, Metadata: meta, Embedding: vec}, nil
}

// contentRecord builds one chunk's content entry.
func (ci *CourseIndex) contentRecord(ctx context.Context, title string, chunk course.Chunk) (Record, error) {
	vec, err := ci.embedder.Embed(ctx, chunk.Content)
	if err != nil {
		return Record{}, fmt.Errorf("embedding chunk %d of %q: %w", chunk.Sequence, title, err)
	}
	if len(vec) != ci.embedder.Dim() {
		return Record{}, fmt.Errorf("%w: chunk %d of %q has embedding dimension %d, want %d",
			ErrCorruptIndex, chunk.Sequence, title, len(vec), ci.embedder.Dim())
	}

	meta := map[string]string{
		MetaCourseTitle: title,
		MetaSequence:    strconv.Itoa(chunk.Sequence),
	}
	if chunk.LessonNumber != nil {
		meta[MetaLessonNumber] = strconv.Itoa(*chunk.LessonNumber)
	}

	return Record{
		ID:        fmt.Sprintf("%s_%d", title, chunk.Sequence),
		Content:   chunk.Content,
		Metadata:  meta,
		Embedding: vec,
	}, nil
}

// ResolveCourseName resolves a fuzzy course name to the exact indexed title.
// Callers only ever hold an approximate name (typed by a user or guessed by
// a model) while the content collection is keyed by exact title, so every
// filtered search goes through here first.
//
// Returns ErrCourseNotFound when the catalog is empty or the nearest match
// falls below the similarity floor.
func (ci *CourseIndex) ResolveCourseName(ctx context.Context, name string) (string, error) {
	vec, err := ci.embedder.Embed(ctx, name)
	if err != nil {
		return "", fmt.Errorf("embedding course name %q: %w", name, err)
	}

	hits, err := ci.catalog.Search(ctx, vec, 1, nil)
	if err != nil {
		return "", fmt.Errorf("catalog search for %q: %w", name, err)
	}
	if len(hits) == 0 || hits[0].Similarity < ci.minSimilarity {
		return "", fmt.Errorf("%w: %q", ErrCourseNotFound, name)
	}
	return hits[0].ID, nil
}

// Search embeds the query and returns the top-K nearest content chunks,
// ordered by descending similarity with insertion-order tie-breaks.
//
// A course filter that fails to resolve fails the whole search with
// ErrCourseNotFound; it never falls back to an unfiltered search. An empty
// result set is a valid, non-error outcome.
func (ci *CourseIndex) Search(ctx context.Context, query string, opts ...SearchOption) ([]Match, error) {
	cfg := searchConfig{topK: ci.topK}
	for _, opt := range opts {
		opt(&cfg)
	}

	filter := make(map[string]string)
	if cfg.courseName != "" {
		title, err := ci.ResolveCourseName(ctx, cfg.courseName)
		if err != nil {
			return nil, err
		}
		filter[MetaCourseTitle] = title
	}
	if cfg.lesson != nil {
		filter[MetaLessonNumber] = strconv.Itoa(*cfg.lesson)
	}
	if len(filter) == 0 {
		filter = nil
	}

	vec, err := ci.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	hits, err := ci.content.Search(ctx, vec, cfg.topK, filter)
	if err != nil {
		return nil, fmt.Errorf("content search: %w", err)
	}

	matches := make([]Match, 0, len(hits))
	for _, hit := range hits {
		m := Match{
			Content:     hit.Content,
			CourseTitle: hit.Metadata[MetaCourseTitle],
			Similarity:  hit.Similarity,
		}
		if s, ok := hit.Metadata[MetaLessonNumber]; ok {
			if n, err := strconv.Atoi(s); err == nil {
				m.LessonNumber = &n
			}
		}
		if s, ok := hit.Metadata[MetaSequence]; ok {
			m.Sequence, _ = strconv.Atoi(s)
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// GetLessonLink returns the link recorded for a lesson of an exactly-titled
// course. Pure metadata lookup: no embedding is involved.
func (ci *CourseIndex) GetLessonLink(ctx context.Context, courseTitle string, lessonNumber int) (string, bool, error) {
	rec, ok, err := ci.catalog.Get(ctx, courseTitle)
	if err != nil {
		return "", false, fmt.Errorf("catalog lookup for %q: %w", courseTitle, err)
	}
	if !ok {
		return "", false, nil
	}

	var lessons []course.Lesson
	if err := json.Unmarshal([]byte(rec.Metadata[MetaLessons]), &lessons); err != nil {
		return "", false, fmt.Errorf("%w: unreadable lesson metadata for %q: %w", ErrCorruptIndex, courseTitle, err)
	}
	for _, l := range lessons {
		if l.Number == lessonNumber {
			return l.Link, l.Link != "", nil
		}
	}
	return "", false, nil
}

// CourseCount returns the number of indexed courses.
func (ci *CourseIndex) CourseCount(ctx context.Context) (int, error) {
	return ci.catalog.Count(ctx)
}

// CourseTitles returns all indexed course titles in ingestion order.
func (ci *CourseIndex) CourseTitles(ctx context.Context) ([]string, error) {
	return ci.catalog.IDs(ctx)
}

// Clear removes all courses and content, for a fresh rebuild.
func (ci *CourseIndex) Clear(ctx context.Context) error {
	ci.ingestMu.Lock()
	defer ci.ingestMu.Unlock()

	if err := ci.catalog.Clear(ctx); err != nil {
		return fmt.Errorf("clearing catalog: %w", err)
	}
	if err := ci.content.Clear(ctx); err != nil {
		return fmt.Errorf("clearing content: %w", err)
	}
	return nil
}
