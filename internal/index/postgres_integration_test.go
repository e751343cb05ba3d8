package index_test

import (
	"context"
	"testing"

	"github.com/coursemate/coursemate/internal/index"
	"github.com/coursemate/coursemate/internal/testutil"
)

func TestPostgresCollection(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()
	pool, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	coll, err := index.NewPostgres(pool, "content_test", 3)
	if err != nil {
		t.Fatal(err)
	}
	if err := coll.Migrate(ctx); err != nil {
		t.Fatal(err)
	}

	records := []index.Record{
		{ID: "a", Content: "alpha", Embedding: []float32{1, 0, 0},
			Metadata: map[string]string{index.MetaCourseTitle: "A", index.MetaLessonNumber: "1"}},
		{ID: "b", Content: "beta", Embedding: []float32{0, 1, 0},
			Metadata: map[string]string{index.MetaCourseTitle: "B", index.MetaLessonNumber: "1"}},
		{ID: "c", Content: "gamma", Embedding: []float32{0.9, 0.1, 0},
			Metadata: map[string]string{index.MetaCourseTitle: "A", index.MetaLessonNumber: "2"}},
	}
	if err := coll.Add(ctx, records); err != nil {
		t.Fatal(err)
	}

	t.Run("get", func(t *testing.T) {
		rec, ok, err := coll.Get(ctx, "a")
		if err != nil || !ok {
			t.Fatalf("Get(a) = %v, %v", ok, err)
		}
		if rec.Content != "alpha" || rec.Metadata[index.MetaCourseTitle] != "A" {
			t.Errorf("record = %+v", rec)
		}
		if _, ok, _ := coll.Get(ctx, "zzz"); ok {
			t.Error("Get(zzz) reported a record")
		}
	})

	t.Run("search ordering", func(t *testing.T) {
		hits, err := coll.Search(ctx, []float32{1, 0, 0}, 3, nil)
		if err != nil {
			t.Fatal(err)
		}
		if len(hits) != 3 {
			t.Fatalf("got %d hits", len(hits))
		}
		if hits[0].ID != "a" || hits[1].ID != "c" || hits[2].ID != "b" {
			t.Errorf("order = %s, %s, %s", hits[0].ID, hits[1].ID, hits[2].ID)
		}
		if hits[0].Similarity < 0.99 {
			t.Errorf("exact match similarity = %v", hits[0].Similarity)
		}
	})

	t.Run("search filtered", func(t *testing.T) {
		hits, err := coll.Search(ctx, []float32{1, 0, 0}, 10, map[string]string{
			index.MetaCourseTitle:  "A",
			index.MetaLessonNumber: "2",
		})
		if err != nil {
			t.Fatal(err)
		}
		if len(hits) != 1 || hits[0].ID != "c" {
			t.Fatalf("filtered hits = %+v", hits)
		}
	})

	t.Run("upsert", func(t *testing.T) {
		if err := coll.Add(ctx, []index.Record{
			{ID: "a", Content: "alpha v2", Embedding: []float32{1, 0, 0}},
		}); err != nil {
			t.Fatal(err)
		}
		rec, _, err := coll.Get(ctx, "a")
		if err != nil {
			t.Fatal(err)
		}
		if rec.Content != "alpha v2" {
			t.Errorf("Content = %q after upsert", rec.Content)
		}
		if n, _ := coll.Count(ctx); n != 3 {
			t.Errorf("Count = %d after upsert, want 3", n)
		}
	})

	t.Run("ids in insertion order", func(t *testing.T) {
		ids, err := coll.IDs(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
			t.Errorf("IDs = %v", ids)
		}
	})

	t.Run("clear", func(t *testing.T) {
		if err := coll.Clear(ctx); err != nil {
			t.Fatal(err)
		}
		if n, _ := coll.Count(ctx); n != 0 {
			t.Errorf("Count = %d after Clear", n)
		}
	})
}

func TestNewPostgresValidation(t *testing.T) {
	if _, err := index.NewPostgres(nil, "ok_table", 0); err == nil {
		t.Error("zero dimension accepted")
	}
	for _, name := range []string{"", "1table", "table; DROP", "Upper"} {
		if _, err := index.NewPostgres(nil, name, 3); err == nil {
			t.Errorf("table name %q accepted", name)
		}
	}
}
