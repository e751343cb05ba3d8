// Package testutil provides deterministic fakes for tests: a hash-based
// embedder whose similarity tracks word overlap, and a scripted generation
// backend.
package testutil

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"

	"github.com/coursemate/coursemate/internal/generator"
)

// HashEmbedder maps text to a fixed-length bag-of-words vector: each
// lowercased word hashes to a bucket. Texts sharing words get high cosine
// similarity and disjoint texts get (near) zero, which is enough to drive
// the index's nearest-neighbor behavior deterministically.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder creates an embedder with the given dimension.
func NewHashEmbedder(dim int) *HashEmbedder {
	return &HashEmbedder{dim: dim}
}

// Embed implements index.Embedder.
func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?:;'\"()[]")
		if word == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[int(h.Sum32())%e.dim]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

// Dim implements index.Embedder.
func (e *HashEmbedder) Dim() int { return e.dim }

// WrongDimEmbedder wraps an embedder and returns vectors of a different
// length than it declares, to exercise corruption detection.
type WrongDimEmbedder struct {
	*HashEmbedder
}

// Dim reports one more than the actual vector length.
func (e *WrongDimEmbedder) Dim() int { return e.HashEmbedder.dim + 1 }

// ScriptedBackend replays canned responses in order and records every
// request it receives. Safe for concurrent use.
type ScriptedBackend struct {
	mu        sync.Mutex
	responses []*generator.Response
	errs      []error
	requests  []*generator.Request
}

// NewScriptedBackend creates an empty backend; queue responses with Reply
// and Fail.
func NewScriptedBackend() *ScriptedBackend {
	return &ScriptedBackend{}
}

// Reply queues a successful text response.
func (b *ScriptedBackend) Reply(text string) *ScriptedBackend {
	return b.push(&generator.Response{Text: text}, nil)
}

// ReplyWith queues an arbitrary response.
func (b *ScriptedBackend) ReplyWith(resp *generator.Response) *ScriptedBackend {
	return b.push(resp, nil)
}

// Fail queues an error.
func (b *ScriptedBackend) Fail(err error) *ScriptedBackend {
	return b.push(nil, err)
}

func (b *ScriptedBackend) push(resp *generator.Response, err error) *ScriptedBackend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.responses = append(b.responses, resp)
	b.errs = append(b.errs, err)
	return b
}

// Complete implements generator.Backend. Running off the end of the script
// returns an empty response rather than panicking.
func (b *ScriptedBackend) Complete(_ context.Context, req *generator.Request) (*generator.Response, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.requests = append(b.requests, req)
	if len(b.responses) == 0 {
		return &generator.Response{}, nil
	}
	resp, err := b.responses[0], b.errs[0]
	b.responses, b.errs = b.responses[1:], b.errs[1:]
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Requests returns every request received so far, in order.
func (b *ScriptedBackend) Requests() []*generator.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*generator.Request, len(b.requests))
	copy(out, b.requests)
	return out
}

// Calls returns the number of completions requested.
func (b *ScriptedBackend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}
