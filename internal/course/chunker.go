package course

import (
	"errors"
	"fmt"
	"iter"
)

// ErrInvalidChunking indicates chunk window/overlap sizing that the chunker
// cannot operate with. Fatal at construction time.
var ErrInvalidChunking = errors.New("invalid chunking configuration")

// Piece is one window of lesson text, in document order.
type Piece struct {
	Index int    // position within the lesson, starting at 0
	Text  string // at most the configured window size
}

// Chunker splits raw lesson text into overlapping fixed-size windows.
// It is a pure function of its configuration: the same text always yields
// the same pieces. Safe for concurrent use.
//
// A window is cut at the last sentence or line boundary found near the
// window edge, so a sentence is not silently split mid-way; the next window
// starts exactly overlap runes before the previous cut, which means
// concatenating the pieces and dropping each piece's leading overlap
// reconstructs the original text exactly.
type Chunker struct {
	window  int
	overlap int
	slack   int // how far back from the window edge a boundary may pull the cut
}

// NewChunker creates a chunker with the given window and overlap sizes,
// counted in runes so a multi-byte character is never split across pieces.
// Overlap must be strictly smaller than the window.
func NewChunker(window, overlap int) (*Chunker, error) {
	if window < 1 {
		return nil, fmt.Errorf("%w: window must be positive, got %d", ErrInvalidChunking, window)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap cannot be negative, got %d", ErrInvalidChunking, overlap)
	}
	if overlap >= window {
		return nil, fmt.Errorf("%w: overlap (%d) must be smaller than window (%d)",
			ErrInvalidChunking, overlap, window)
	}

	// The boundary search zone must leave more than overlap runes of fresh
	// text per window, or chunking stops making forward progress.
	slack := window / 5
	if slack > window-overlap-1 {
		slack = window - overlap - 1
	}
	if slack < 0 {
		slack = 0
	}

	return &Chunker{window: window, overlap: overlap, slack: slack}, nil
}

// Window returns the configured window size.
func (c *Chunker) Window() int { return c.window }

// Overlap returns the configured overlap size.
func (c *Chunker) Overlap() int { return c.overlap }

// Split returns a lazy, restartable sequence of the text's pieces in
// document order. Text that fits in one window yields exactly one piece;
// empty text yields none.
func (c *Chunker) Split(text string) iter.Seq[Piece] {
	return func(yield func(Piece) bool) {
		if text == "" {
			return
		}

		runes := []rune(text)
		pos := 0
		for index := 0; ; index++ {
			end := pos + c.window
			if end >= len(runes) {
				yield(Piece{Index: index, Text: string(runes[pos:])})
				return
			}

			if cut := c.boundaryCut(runes, pos, end); cut > pos {
				end = cut
			}

			if !yield(Piece{Index: index, Text: string(runes[pos:end])}) {
				return
			}
			pos = end - c.overlap
		}
	}
}

// boundaryCut finds the latest sentence or line boundary inside the last
// slack runes before end. Returns pos if no boundary is found there, which
// keeps the full window.
func (c *Chunker) boundaryCut(runes []rune, pos, end int) int {
	lo := end - c.slack
	if lo < pos {
		lo = pos
	}
	for i := end - 1; i >= lo; i-- {
		switch runes[i] {
		case '\n':
			return i + 1
		case '.', '!', '?':
			// Only a sentence end when followed by whitespace; keeps
			// decimals and abbreviations like "3.14" intact.
			if i+1 < len(runes) && (runes[i+1] == ' ' || runes[i+1] == '\n') {
				return i + 2
			}
		}
	}
	return pos
}

// ChunkLesson splits one lesson's text into Chunks attributed to the given
// course and lesson. Sequence numbers continue from startSequence, so a
// multi-lesson document keeps one running sequence. A nil lessonNumber marks
// text that cannot be attributed to a lesson.
func (c *Chunker) ChunkLesson(courseTitle string, lessonNumber *int, text string, startSequence int) []Chunk {
	var chunks []Chunk
	for piece := range c.Split(text) {
		chunks = append(chunks, Chunk{
			Content:      piece.Text,
			CourseTitle:  courseTitle,
			LessonNumber: lessonNumber,
			Sequence:     startSequence + piece.Index,
		})
	}
	return chunks
}

// ChunkDocument splits every lesson of a document, returning all chunks in
// document order with a single running sequence.
func (c *Chunker) ChunkDocument(doc Document) []Chunk {
	var chunks []Chunk
	for _, lesson := range doc.Lessons {
		n := lesson.Number
		chunks = append(chunks, c.ChunkLesson(doc.Title, &n, lesson.Text, len(chunks))...)
	}
	return chunks
}
