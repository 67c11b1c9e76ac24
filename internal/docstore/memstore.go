package docstore

import (
	"context"
	"slices"
	"sync"
)

// MemStore is an in-memory [Store] for tests and for running without a
// database. All methods are safe for concurrent use.
type MemStore struct {
	mu       sync.RWMutex
	docs     map[int64]Document
	segments map[int64][]Segment
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		docs:     make(map[int64]Document),
		segments: make(map[int64][]Segment),
	}
}

// AddDocument stores doc and its segments, replacing any previous content
// for the same document ID. Segments are kept sorted by Order.
func (s *MemStore) AddDocument(doc Document, segs []Segment) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs[doc.ID] = doc
	cp := make([]Segment, len(segs))
	copy(cp, segs)
	slices.SortFunc(cp, func(a, b Segment) int { return a.Order - b.Order })
	s.segments[doc.ID] = cp
}

// GetDocument implements [Store].
func (s *MemStore) GetDocument(_ context.Context, documentID int64) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[documentID]
	if !ok {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

// ListSegments implements [Store] with the same vetted-first fallback as
// the Postgres store.
func (s *MemStore) ListSegments(_ context.Context, documentID int64) ([]Segment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.segments[documentID]
	var vetted []Segment
	for _, seg := range all {
		if seg.Vetted && seg.Translation != "" {
			vetted = append(vetted, seg)
		}
	}
	if len(vetted) > 0 {
		return vetted, nil
	}
	out := make([]Segment, len(all))
	copy(out, all)
	return out, nil
}
