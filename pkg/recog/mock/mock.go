// Package mock provides a scriptable recog.Source for tests.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/versecast/pkg/recog"
)

// Source is a test double implementing [recog.Source]. Chunks are pushed
// by the test through [Source.Emit]; Start and RequestStop calls are
// counted for lifecycle assertions. All methods are safe for concurrent
// use.
type Source struct {
	mu      sync.Mutex
	ch      chan recog.Chunk
	stopped bool

	// StartErr, when non-nil, is returned by the next Start call.
	StartErr error

	startCalls int
	stopCalls  int
}

// New creates an idle mock Source.
func New() *Source {
	return &Source{}
}

// Start implements [recog.Source].
func (s *Source) Start(ctx context.Context) (<-chan recog.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.startCalls++
	if s.StartErr != nil {
		return nil, s.StartErr
	}
	s.ch = make(chan recog.Chunk, 64)
	s.stopped = false

	ch := s.ch
	go func() {
		<-ctx.Done()
		s.closeStream()
	}()
	return ch, nil
}

// Emit pushes one chunk to the active stream. It is a no-op when the
// source is not started or already stopped.
func (s *Source) Emit(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ch == nil || s.stopped {
		return
	}
	s.ch <- recog.Chunk{Text: text, At: time.Now()}
}

// RequestStop implements [recog.Source]. It closes the active stream.
func (s *Source) RequestStop() {
	s.mu.Lock()
	s.stopCalls++
	s.mu.Unlock()
	s.closeStream()
}

// Fail simulates the recognition stream dying on the source side, the
// way a device or network failure would: the chunk channel closes
// without RequestStop being involved.
func (s *Source) Fail() {
	s.closeStream()
}

// StartCalls reports how many times Start was invoked.
func (s *Source) StartCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startCalls
}

// StopCalls reports how many times RequestStop was invoked.
func (s *Source) StopCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopCalls
}

func (s *Source) closeStream() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ch != nil && !s.stopped {
		close(s.ch)
		s.stopped = true
	}
}
