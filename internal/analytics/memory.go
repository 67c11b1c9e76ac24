package analytics

import (
	"context"
	"sync"

	"github.com/MrWong99/versecast/internal/align"
)

// Memory is an in-process Sink. It backs tests and ad-hoc runs without a
// database. Safe for concurrent use.
type Memory struct {
	mu       sync.Mutex
	nextID   int64
	sessions map[int64]*MemorySession
}

// MemorySession is one recorded session.
type MemorySession struct {
	DocumentID int64
	Events     []align.Event
	Summary    *align.Summary
}

// NewMemory returns an empty Memory sink.
func NewMemory() *Memory {
	return &Memory{sessions: make(map[int64]*MemorySession)}
}

// StartSession implements [Sink].
func (m *Memory) StartSession(_ context.Context, documentID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.sessions[m.nextID] = &MemorySession{DocumentID: documentID}
	return m.nextID, nil
}

// LogEvent implements [Sink]. Unlike the Postgres sink it keeps every
// event, rejected cycles included, which tests rely on.
func (m *Memory) LogEvent(_ context.Context, sessionID int64, ev align.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		s.Events = append(s.Events, ev)
	}
	return nil
}

// Finalize implements [Sink].
func (m *Memory) Finalize(_ context.Context, sessionID int64, sum align.Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		s.Summary = &sum
	}
	return nil
}

// Session returns a copy-free view of a recorded session, or nil.
func (m *Memory) Session(id int64) *MemorySession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}
