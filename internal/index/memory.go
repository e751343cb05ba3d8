package index

import (
	"context"
	"math"
	"sort"
	"sync"
)

// Memory is an embedded, in-process Collection using brute-force cosine
// similarity. Reads take a shared lock, so concurrent searches never
// serialize against each other; writes (ingestion) take the exclusive lock.
//
// The zero value is not useful; use NewMemory.
type Memory struct {
	mu      sync.RWMutex
	records []Record
	byID    map[string]int // id -> position in records
}

// NewMemory creates an empty in-memory collection.
func NewMemory() *Memory {
	return &Memory{byID: make(map[string]int)}
}

// Add inserts the batch, replacing any records with the same ID. The batch
// is applied atomically under the write lock.
func (m *Memory) Add(_ context.Context, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		if i, ok := m.byID[rec.ID]; ok {
			m.records[i] = rec
			continue
		}
		m.byID[rec.ID] = len(m.records)
		m.records = append(m.records, rec)
	}
	return nil
}

// Get returns the record with the given ID.
func (m *Memory) Get(_ context.Context, id string) (Record, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.byID[id]
	if !ok {
		return Record{}, false, nil
	}
	return m.records[i], true, nil
}

// Search returns the k nearest records by cosine similarity, ordered by
// descending similarity with ties broken by insertion order.
func (m *Memory) Search(_ context.Context, embedding []float32, k int, filter map[string]string) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if k <= 0 {
		return nil, nil
	}

	hits := make([]Hit, 0, len(m.records))
	for _, rec := range m.records {
		if !matchesFilter(rec.Metadata, filter) {
			continue
		}
		hits = append(hits, Hit{Record: rec, Similarity: cosineSimilarity(rec.Embedding, embedding)})
	}

	// Stable sort keeps insertion order among equal similarities.
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Count returns the number of stored records.
func (m *Memory) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

// IDs returns all record IDs in insertion order.
func (m *Memory) IDs(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, len(m.records))
	for i, rec := range m.records {
		ids[i] = rec.ID
	}
	return ids, nil
}

// Clear removes all records.
func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
	m.byID = make(map[string]int)
	return nil
}

// matchesFilter reports whether metadata satisfies every filter pair.
func matchesFilter(metadata, filter map[string]string) bool {
	for k, v := range filter {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

// cosineSimilarity computes the cosine of the angle between a and b.
// Returns 0 when either vector has zero magnitude or lengths differ.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
