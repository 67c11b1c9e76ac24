package worker

import (
	"log/slog"
	"sync"

	"github.com/MrWong99/versecast/pkg/recog"
)

// Hub fans recognition chunks out to the attached subscriptions. Sends
// never block: when a subscription's queue is full the newest chunk is
// dropped for that subscription only, so one stalled session cannot hold
// back the stream for the others.
type Hub struct {
	queueSize int
	log       *slog.Logger

	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

func newHub(queueSize int, log *slog.Logger) *Hub {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Hub{
		queueSize: queueSize,
		log:       log,
		subs:      make(map[*Subscription]struct{}),
	}
}

func (h *Hub) attach(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[sub] = struct{}{}
}

func (h *Hub) detach(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, sub)
}

// closeAll detaches every subscription and closes its queue, telling
// consumers the stream ended for good. Must not race broadcast; the
// caller guarantees the pump goroutine is done sending.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs {
		close(sub.ch)
		delete(h.subs, sub)
	}
}

// broadcast delivers chunk to every attached subscription, dropping it
// per-subscription on overflow.
func (h *Hub) broadcast(chunk recog.Chunk) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs {
		select {
		case sub.ch <- chunk:
		default:
			sub.dropped.Add(1)
			h.log.Debug("subscription queue full, dropping chunk",
				"dropped_total", sub.dropped.Load())
		}
	}
}
