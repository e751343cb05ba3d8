// Package index implements the dual-collection semantic course index.
//
// Two independent similarity collections share one embedding function:
//
//   - the course catalog holds one vector per course (title + description),
//     used only to resolve fuzzy course names to exact titles;
//   - the content collection holds one vector per chunk, carrying course
//     title, lesson number, and sequence index as metadata, used for
//     answer-relevant retrieval.
//
// Keeping the collections separate means fuzzy-name resolution never scans
// chunk vectors and content search never pays a type-discriminator filter.
package index

import (
	"context"
	"errors"
)

// Sentinel errors. Check with errors.Is().
var (
	// ErrCourseNotFound indicates a fuzzy course name did not resolve to any
	// indexed course within the similarity floor. A filtered search that hits
	// this fails outright rather than silently broadening.
	ErrCourseNotFound = errors.New("course not found")

	// ErrCorruptIndex indicates an embedding/metadata mismatch. Ingestion of
	// the affected course halts and reports; nothing is silently skipped.
	ErrCorruptIndex = errors.New("index corruption")
)

// Embedder maps text to a fixed-length vector. Implementations must be
// deterministic for a given input and safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dim() int
}

// Record is one stored entry of a collection: content, metadata, and the
// content's embedding.
type Record struct {
	ID        string
	Content   string
	Metadata  map[string]string
	Embedding []float32
}

// Hit is a single similarity-search result.
type Hit struct {
	Record
	Similarity float32
}

// Collection is the storage contract the index depends on. Implementations:
// Memory (embedded, default) and Postgres (pgvector-backed).
//
// Add is atomic over its batch. Search returns hits ordered by descending
// similarity with ties broken by insertion order; a nil filter matches
// everything, otherwise every key/value pair must match the record's
// metadata exactly.
type Collection interface {
	Add(ctx context.Context, records []Record) error
	Get(ctx context.Context, id string) (Record, bool, error)
	Search(ctx context.Context, embedding []float32, k int, filter map[string]string) ([]Hit, error)
	Count(ctx context.Context) (int, error)
	IDs(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
}

// Metadata keys attached to content records.
const (
	MetaCourseTitle  = "course_title"
	MetaLessonNumber = "lesson_number"
	MetaSequence     = "sequence"
)

// Metadata keys attached to catalog records.
const (
	MetaInstructor = "instructor"
	MetaCourseLink = "link"
	MetaLessons    = "lessons" // JSON-encoded lesson list, carries lesson links
)

// Match is one content search result mapped back to the domain model.
type Match struct {
	Content      string
	CourseTitle  string
	LessonNumber *int // nil when the chunk is not attributed to a lesson
	Sequence     int
	Similarity   float32
}

// SearchOption configures a content search using the functional options
// pattern.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK       int
	courseName string
	lesson     *int
}

// WithTopK overrides the index's configured top-K for one search.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithCourse restricts the search to one course. The name may be fuzzy: it
// is resolved against the catalog first, and resolution failure fails the
// whole search with ErrCourseNotFound.
func WithCourse(name string) SearchOption {
	return func(c *searchConfig) {
		c.courseName = name
	}
}

// WithLesson adds an exact-match lesson number filter.
func WithLesson(number int) SearchOption {
	return func(c *searchConfig) {
		n := number
		c.lesson = &n
	}
}
