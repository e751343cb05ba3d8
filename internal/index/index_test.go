package index_test

import (
	"context"
	"errors"
	"testing"

	"github.com/coursemate/coursemate/internal/course"
	"github.com/coursemate/coursemate/internal/index"
	"github.com/coursemate/coursemate/internal/log"
	"github.com/coursemate/coursemate/internal/testutil"
)

func newTestIndex(t *testing.T) *index.CourseIndex {
	t.Helper()
	ci, err := index.New(index.Config{
		Catalog:       index.NewMemory(),
		Content:       index.NewMemory(),
		Embedder:      testutil.NewHashEmbedder(64),
		Logger:        log.NewNop(),
		TopK:          5,
		MinSimilarity: 0.30,
	})
	if err != nil {
		t.Fatal(err)
	}
	return ci
}

func lessonPtr(n int) *int { return &n }

func goCourse() (course.Course, []course.Chunk) {
	c := course.Course{
		Title:       "Introduction to Go Programming",
		Description: "Learn the Go language from scratch",
		Instructor:  "Rob",
		Link:        "https://example.com/go",
		Lessons: []course.Lesson{
			{Number: 1, Title: "Getting Started", Link: "https://example.com/go/1"},
			{Number: 2, Title: "Goroutines", Link: "https://example.com/go/2"},
		},
	}
	chunks := []course.Chunk{
		{Content: "Installing the Go toolchain and writing hello world", CourseTitle: c.Title, LessonNumber: lessonPtr(1), Sequence: 0},
		{Content: "Goroutines run functions concurrently with the go keyword", CourseTitle: c.Title, LessonNumber: lessonPtr(2), Sequence: 1},
	}
	return c, chunks
}

func pythonCourse() (course.Course, []course.Chunk) {
	c := course.Course{
		Title:       "Advanced Python Patterns",
		Description: "Decorators, metaclasses, and descriptors",
		Lessons:     []course.Lesson{{Number: 1, Title: "Decorators"}},
	}
	chunks := []course.Chunk{
		{Content: "Decorators wrap callables to extend their behavior", CourseTitle: c.Title, LessonNumber: lessonPtr(1), Sequence: 0},
	}
	return c, chunks
}

func TestAddCourse(t *testing.T) {
	ctx := context.Background()
	ci := newTestIndex(t)
	c, chunks := goCourse()

	added, err := ci.AddCourse(ctx, c, chunks)
	if err != nil {
		t.Fatal(err)
	}
	if !added {
		t.Fatal("first AddCourse reported not added")
	}

	n, err := ci.CourseCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("CourseCount = %d, want 1", n)
	}
}

func TestAddCourseDuplicateSkipped(t *testing.T) {
	ctx := context.Background()
	ci := newTestIndex(t)
	c, chunks := goCourse()

	if _, err := ci.AddCourse(ctx, c, chunks); err != nil {
		t.Fatal(err)
	}

	// Same title again, with different content: a reported skip, no error,
	// and the original content stays.
	added, err := ci.AddCourse(ctx, c, []course.Chunk{
		{Content: "entirely different text", CourseTitle: c.Title, Sequence: 0},
	})
	if err != nil {
		t.Fatalf("duplicate AddCourse returned error: %v", err)
	}
	if added {
		t.Error("duplicate AddCourse reported added")
	}
	if n, _ := ci.CourseCount(ctx); n != 1 {
		t.Errorf("CourseCount = %d after duplicate, want 1", n)
	}

	matches, err := ci.Search(ctx, "goroutines concurrently")
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) == 0 || matches[0].Content == "entirely different text" {
		t.Error("duplicate ingestion replaced the original content")
	}
}

func TestAddCourseDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	ci, err := index.New(index.Config{
		Catalog:       index.NewMemory(),
		Content:       index.NewMemory(),
		Embedder:      &testutil.WrongDimEmbedder{HashEmbedder: testutil.NewHashEmbedder(64)},
		Logger:        log.NewNop(),
		TopK:          5,
		MinSimilarity: 0.30,
	})
	if err != nil {
		t.Fatal(err)
	}

	c, chunks := goCourse()
	if _, err := ci.AddCourse(ctx, c, chunks); !errors.Is(err, index.ErrCorruptIndex) {
		t.Fatalf("AddCourse error = %v, want ErrCorruptIndex", err)
	}
	if n, _ := ci.CourseCount(ctx); n != 0 {
		t.Errorf("CourseCount = %d after halted ingestion, want 0", n)
	}
}

func TestResolveCourseName(t *testing.T) {
	ctx := context.Background()
	ci := newTestIndex(t)

	for _, mk := range []func() (course.Course, []course.Chunk){goCourse, pythonCourse} {
		c, chunks := mk()
		if _, err := ci.AddCourse(ctx, c, chunks); err != nil {
			t.Fatal(err)
		}
	}

	t.Run("partial name resolves", func(t *testing.T) {
		got, err := ci.ResolveCourseName(ctx, "Introduction Go")
		if err != nil {
			t.Fatal(err)
		}
		if got != "Introduction to Go Programming" {
			t.Errorf("resolved %q", got)
		}
	})

	t.Run("exact name resolves", func(t *testing.T) {
		got, err := ci.ResolveCourseName(ctx, "Advanced Python Patterns")
		if err != nil {
			t.Fatal(err)
		}
		if got != "Advanced Python Patterns" {
			t.Errorf("resolved %q", got)
		}
	})

	t.Run("unrelated name fails", func(t *testing.T) {
		_, err := ci.ResolveCourseName(ctx, "underwater basket weaving")
		if !errors.Is(err, index.ErrCourseNotFound) {
			t.Fatalf("error = %v, want ErrCourseNotFound", err)
		}
	})
}

func TestResolveCourseNameEmptyCatalog(t *testing.T) {
	ci := newTestIndex(t)
	_, err := ci.ResolveCourseName(context.Background(), "anything")
	if !errors.Is(err, index.ErrCourseNotFound) {
		t.Fatalf("error = %v, want ErrCourseNotFound", err)
	}
}

func TestSearchWithCourseFilter(t *testing.T) {
	ctx := context.Background()
	ci := newTestIndex(t)

	for _, mk := range []func() (course.Course, []course.Chunk){goCourse, pythonCourse} {
		c, chunks := mk()
		if _, err := ci.AddCourse(ctx, c, chunks); err != nil {
			t.Fatal(err)
		}
	}

	matches, err := ci.Search(ctx, "wrap callables behavior", index.WithCourse("Python Patterns"))
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range matches {
		if m.CourseTitle != "Advanced Python Patterns" {
			t.Errorf("filtered search leaked %q", m.CourseTitle)
		}
	}
	if len(matches) == 0 {
		t.Error("filtered search found nothing")
	}
}

// An unresolvable course filter fails the search; it never silently widens
// to the whole index.
func TestSearchUnresolvableCourse(t *testing.T) {
	ctx := context.Background()
	ci := newTestIndex(t)

	c, chunks := goCourse()
	if _, err := ci.AddCourse(ctx, c, chunks); err != nil {
		t.Fatal(err)
	}

	matches, err := ci.Search(ctx, "goroutines", index.WithCourse("underwater basket weaving"))
	if !errors.Is(err, index.ErrCourseNotFound) {
		t.Fatalf("error = %v, want ErrCourseNotFound", err)
	}
	if matches != nil {
		t.Errorf("got %d matches alongside the error", len(matches))
	}
}

func TestSearchWithLessonFilter(t *testing.T) {
	ctx := context.Background()
	ci := newTestIndex(t)

	c, chunks := goCourse()
	if _, err := ci.AddCourse(ctx, c, chunks); err != nil {
		t.Fatal(err)
	}

	matches, err := ci.Search(ctx, "go", index.WithCourse("Go Programming"), index.WithLesson(2))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if matches[0].LessonNumber == nil || *matches[0].LessonNumber != 2 {
		t.Errorf("LessonNumber = %v, want 2", matches[0].LessonNumber)
	}
}

func TestSearchEmptyResultIsNotError(t *testing.T) {
	ctx := context.Background()
	ci := newTestIndex(t)

	c, chunks := goCourse()
	if _, err := ci.AddCourse(ctx, c, chunks); err != nil {
		t.Fatal(err)
	}

	// Lesson 99 does not exist; filters match nothing, which is valid.
	matches, err := ci.Search(ctx, "go", index.WithCourse("Go Programming"), index.WithLesson(99))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Errorf("got %d matches for absent lesson, want 0", len(matches))
	}
}

func TestGetLessonLink(t *testing.T) {
	ctx := context.Background()
	ci := newTestIndex(t)

	c, chunks := goCourse()
	if _, err := ci.AddCourse(ctx, c, chunks); err != nil {
		t.Fatal(err)
	}

	link, ok, err := ci.GetLessonLink(ctx, "Introduction to Go Programming", 2)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || link != "https://example.com/go/2" {
		t.Errorf("GetLessonLink = %q, %v", link, ok)
	}

	if _, ok, _ := ci.GetLessonLink(ctx, "Introduction to Go Programming", 99); ok {
		t.Error("found a link for an absent lesson")
	}
	if _, ok, _ := ci.GetLessonLink(ctx, "No Such Course", 1); ok {
		t.Error("found a link for an absent course")
	}
}

func TestCourseTitlesAndClear(t *testing.T) {
	ctx := context.Background()
	ci := newTestIndex(t)

	for _, mk := range []func() (course.Course, []course.Chunk){goCourse, pythonCourse} {
		c, chunks := mk()
		if _, err := ci.AddCourse(ctx, c, chunks); err != nil {
			t.Fatal(err)
		}
	}

	titles, err := ci.CourseTitles(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Introduction to Go Programming", "Advanced Python Patterns"}
	if len(titles) != len(want) {
		t.Fatalf("titles = %v", titles)
	}
	for i := range want {
		if titles[i] != want[i] {
			t.Errorf("titles[%d] = %q, want %q", i, titles[i], want[i])
		}
	}

	if err := ci.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if n, _ := ci.CourseCount(ctx); n != 0 {
		t.Errorf("CourseCount = %d after Clear, want 0", n)
	}
}
