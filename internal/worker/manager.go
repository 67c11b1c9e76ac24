// Package worker manages the shared speech recognizer. Exactly one
// recognition stream runs no matter how many live sessions are attached:
// the first Acquire starts it, the last Close stops it, and every chunk
// the stream produces is fanned out to all attached subscriptions.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/MrWong99/versecast/pkg/recog"
)

// Manager owns the recognizer lifecycle. It reference-counts attached
// subscriptions and keeps the recognition stream running while at least
// one is attached. Safe for concurrent use.
type Manager struct {
	source recog.Source
	hub    *Hub
	log    *slog.Logger

	mu      sync.Mutex
	count   int
	running bool
	gen     uint64
	cancel  context.CancelFunc
}

// NewManager wraps source. queueSize bounds each subscription's chunk
// queue.
func NewManager(source recog.Source, queueSize int, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		source: source,
		hub:    newHub(queueSize, log),
		log:    log,
	}
}

// Acquire attaches a new subscription, starting the recognition stream if
// it is not already running. Callers must Close the subscription exactly
// once; Close is idempotent so deferring it alongside an explicit call is
// safe.
func (m *Manager) Acquire() (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		ctx, cancel := context.WithCancel(context.Background())
		stream, err := m.source.Start(ctx)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("worker: start recognizer: %w", err)
		}
		m.cancel = cancel
		m.running = true
		m.gen++
		go m.pump(m.gen, stream)
		m.log.Info("recognizer started")
	}

	m.count++
	m.log.Debug("subscription attached", "subscribers", m.count)

	sub := &Subscription{ch: make(chan recog.Chunk, m.hub.queueSize)}
	sub.release = func() {
		m.hub.detach(sub)
		m.release()
	}
	m.hub.attach(sub)
	return sub, nil
}

// release decrements the refcount and stops the stream when it reaches
// zero.
func (m *Manager) release() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.count <= 0 {
		// A correct Subscription.Close cannot get here; the clamp keeps a
		// bookkeeping bug from wedging the counter negative.
		m.log.Error("subscription released with no subscribers attached")
		m.count = 0
		return
	}

	m.count--
	m.log.Debug("subscription detached", "subscribers", m.count)
	if m.count == 0 {
		m.stopLocked()
	}
}

// stopLocked cancels the stream context and asks the source to wind down.
// Callers must hold m.mu.
func (m *Manager) stopLocked() {
	if !m.running {
		return
	}
	m.running = false
	m.cancel()
	m.cancel = nil
	m.source.RequestStop()
	m.log.Info("recognizer stopped")
}

// pump forwards the recognition stream into the hub until the stream
// closes. A stream that dies while subscribers remain is a permanent
// failure for those sessions: their queues are closed so each session
// loop observes the end instead of idling forever, the source is asked
// to wind down so it can be restarted, and the running flag is cleared
// so the next Acquire starts a fresh stream.
// The generation check keeps a pump that finishes late, after a normal
// stop and restart, from tearing down its successor's stream.
func (m *Manager) pump(gen uint64, stream <-chan recog.Chunk) {
	for chunk := range stream {
		m.hub.broadcast(chunk)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running && m.gen == gen {
		m.running = false
		m.cancel()
		m.cancel = nil
		m.source.RequestStop()
		m.hub.closeAll()
		m.log.Warn("recognition stream ended with subscribers attached", "subscribers", m.count)
	}
}

// Subscribers reports the number of attached subscriptions.
func (m *Manager) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// Subscription is one attached consumer of the shared recognition stream.
type Subscription struct {
	ch      chan recog.Chunk
	dropped atomic.Int64

	once    sync.Once
	release func()
}

// Chunks returns the subscription's chunk queue. The channel is closed
// when the recognition stream ends permanently; a consumer that is done
// earlier just Closes the subscription and stops reading.
func (s *Subscription) Chunks() <-chan recog.Chunk {
	return s.ch
}

// Dropped reports how many chunks were discarded because this
// subscription's queue was full.
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// Close detaches the subscription. Idempotent; only the first call
// releases the manager's reference.
func (s *Subscription) Close() {
	s.once.Do(s.release)
}
