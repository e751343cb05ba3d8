// Package course defines the course-material domain model and the chunker
// that splits lesson text into overlapping windows for indexing.
package course

// Course describes one indexed course. The title is the natural key: it must
// be unique across the index, and re-adding a course with the same title is
// a reported skip, not an overwrite.
type Course struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Link        string   `json:"link,omitempty"`
	Instructor  string   `json:"instructor,omitempty"`
	Lessons     []Lesson `json:"lessons,omitempty"`
}

// Lesson belongs to exactly one course. The number is unique within its
// course; the link, once indexed, is immutable for the life of the index.
type Lesson struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Link   string `json:"link,omitempty"`
}

// Chunk is a contiguous slice of a lesson's text. Chunks are immutable once
// created; re-ingesting a course discards and rebuilds them.
type Chunk struct {
	// Content is the chunk text. Always at most the configured window size.
	Content string

	// CourseTitle is the owning course's exact title.
	CourseTitle string

	// LessonNumber is the owning lesson, or nil when the text cannot be
	// attributed to a lesson.
	LessonNumber *int

	// Sequence is the chunk's position within the source document.
	Sequence int
}

// Document is the already-parsed form a document source supplies: course
// metadata plus the raw text of each lesson. Raw extraction (PDF/DOCX/TXT)
// happens upstream.
type Document struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Link        string       `json:"link,omitempty"`
	Instructor  string       `json:"instructor,omitempty"`
	Lessons     []LessonText `json:"lessons"`
}

// LessonText is one lesson's metadata together with its raw text.
type LessonText struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Link   string `json:"link,omitempty"`
	Text   string `json:"text"`
}

// Course returns the metadata-only view of the document.
func (d Document) Course() Course {
	lessons := make([]Lesson, len(d.Lessons))
	for i, l := range d.Lessons {
		lessons[i] = Lesson{Number: l.Number, Title: l.Title, Link: l.Link}
	}
	return Course{
		Title:       d.Title,
		Description: d.Description,
		Link:        d.Link,
		Instructor:  d.Instructor,
		Lessons:     lessons,
	}
}
