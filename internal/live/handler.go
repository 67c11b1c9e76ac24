// Package live serves the WebSocket endpoint that follows a spoken
// document. Each connection gets its own alignment session fed from the
// shared recognizer; every processing cycle's outcome is pushed to the
// client as a JSON frame and mirrored to analytics and the event
// publisher.
package live

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/versecast/internal/align"
	"github.com/MrWong99/versecast/internal/analytics"
	"github.com/MrWong99/versecast/internal/config"
	"github.com/MrWong99/versecast/internal/docstore"
	"github.com/MrWong99/versecast/internal/events"
	"github.com/MrWong99/versecast/internal/observe"
	"github.com/MrWong99/versecast/internal/worker"
	"github.com/MrWong99/versecast/pkg/recog"
)

// Handler upgrades /live/{documentID} requests and runs the session loop.
type Handler struct {
	store     docstore.Store
	manager   *worker.Manager
	sink      analytics.Sink
	publisher *events.Publisher
	metrics   *observe.Metrics
	cfg       config.AlignConfig
	log       *slog.Logger
}

// New assembles a Handler. sink and publisher may not be nil; use
// [analytics.Nop] and a disabled [events.Publisher] when those backends
// are not configured.
func New(store docstore.Store, manager *worker.Manager, sink analytics.Sink, publisher *events.Publisher, metrics *observe.Metrics, cfg config.AlignConfig, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		store:     store,
		manager:   manager,
		sink:      sink,
		publisher: publisher,
		metrics:   metrics,
		cfg:       cfg,
		log:       log,
	}
}

// Register adds the live route to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /live/{documentID}", h.Serve)
}

// statusFrame is the first frame of every session: "started" with the
// document metadata, or a terminal error before any events flow.
type statusFrame struct {
	Type       string `json:"type"`
	DocumentID int64  `json:"document_id,omitempty"`
	Title      string `json:"title,omitempty"`
	Segments   int    `json:"segments,omitempty"`
	Error      string `json:"error,omitempty"`
}

// eventFrame wraps one cycle event for the wire.
type eventFrame struct {
	Type string `json:"type"`
	align.Event
}

// Serve handles one live connection from upgrade to teardown.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	documentID, err := strconv.ParseInt(r.PathValue("documentID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid document ID", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Error("websocket accept failed", "err", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "session aborted")

	log := h.log.With("document_id", documentID)
	ctx := r.Context()

	doc, segments, err := h.loadDocument(ctx, documentID)
	if err != nil {
		var frame statusFrame
		switch {
		case errors.Is(err, docstore.ErrNotFound):
			frame = statusFrame{Type: "error", Error: "document not found"}
		default:
			log.Error("failed to load document", "err", err)
			frame = statusFrame{Type: "error", Error: "failed to load document"}
		}
		_ = wsjson.Write(ctx, conn, frame)
		conn.Close(websocket.StatusNormalClosure, frame.Error)
		return
	}
	if len(segments) == 0 {
		_ = wsjson.Write(ctx, conn, statusFrame{Type: "error", Error: "document has no segments"})
		conn.Close(websocket.StatusNormalClosure, "document has no segments")
		return
	}

	// Session record is best effort. A dead analytics store must not keep
	// the projection from running.
	sessionID, err := h.sink.StartSession(ctx, documentID)
	if err != nil {
		log.Warn("analytics session not recorded", "err", err)
		sessionID = 0
	}

	sub, err := h.manager.Acquire()
	if err != nil {
		log.Error("recognizer unavailable", "err", err)
		_ = wsjson.Write(ctx, conn, statusFrame{Type: "error", Error: "recognizer unavailable"})
		conn.Close(websocket.StatusInternalError, "recognizer unavailable")
		return
	}
	defer sub.Close()

	err = wsjson.Write(ctx, conn, statusFrame{
		Type:       "started",
		DocumentID: doc.ID,
		Title:      doc.Title,
		Segments:   len(segments),
	})
	if err != nil {
		log.Debug("client gone before session start", "err", err)
		return
	}

	session := align.NewSession(align.SessionConfig{
		Segments:        segments,
		LookaheadLimit:  h.cfg.LookaheadLimit,
		BufferMaxChunks: h.cfg.BufferMaxChunks,
		BufferMaxChars:  h.cfg.BufferMaxChars,
		Policy: align.PolicyConfig{
			Threshold:  h.cfg.InitialThreshold,
			Adaptive:   h.cfg.Adaptive,
			StepUp:     h.cfg.ThresholdStepUp,
			StepDown:   h.cfg.ThresholdStepDown,
			Floor:      h.cfg.ThresholdFloor,
			Ceiling:    h.cfg.ThresholdCeiling,
			MissWindow: h.cfg.MissWindow,
		},
	})

	if h.metrics != nil {
		h.metrics.ActiveSessions.Add(ctx, 1)
		defer h.metrics.ActiveSessions.Add(context.Background(), -1)
	}
	log.Info("live session started", "session_id", sessionID, "segments", len(segments))

	finalOrder := segments[len(segments)-1].Order
	status, errMsg := h.run(ctx, conn, log, documentID, sessionID, finalOrder, session, sub)

	// Finalize with a short grace context; the request context is usually
	// already canceled at this point.
	finCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if sessionID != 0 {
		if err := h.sink.Finalize(finCtx, sessionID, session.Summarize(status, errMsg)); err != nil {
			log.Warn("analytics finalize failed", "err", err)
		}
	}
	if h.metrics != nil && sub.Dropped() > 0 {
		h.metrics.DroppedChunks.Add(finCtx, sub.Dropped())
	}
	log.Info("live session ended",
		"session_id", sessionID,
		"status", status,
		"last_matched_order", session.LastMatchedOrder(),
		"dropped_chunks", sub.Dropped())

	switch status {
	case "completed", "interrupted":
		conn.Close(websocket.StatusNormalClosure, "session ended")
	case "error":
		_ = wsjson.Write(finCtx, conn, statusFrame{Type: "error", Error: errMsg})
		conn.Close(websocket.StatusInternalError, errMsg)
	}
}

// loadDocument fetches the document and its segment list.
func (h *Handler) loadDocument(ctx context.Context, documentID int64) (docstore.Document, []docstore.Segment, error) {
	doc, err := h.store.GetDocument(ctx, documentID)
	if err != nil {
		return docstore.Document{}, nil, err
	}
	segments, err := h.store.ListSegments(ctx, documentID)
	if err != nil {
		return docstore.Document{}, nil, err
	}
	return doc, segments, nil
}

// run is the session loop: consume recognition chunks, step the alignment
// session, push frames. Returns the terminal status and error message for
// the analytics summary.
//
// The loop watches three signals: the client connection (via CloseRead),
// incoming chunks, and a poll tick that keeps the loop responsive when
// recognition is silent.
func (h *Handler) run(ctx context.Context, conn *websocket.Conn, log *slog.Logger, documentID, sessionID int64, finalOrder int, session *align.Session, sub *worker.Subscription) (status, errMsg string) {
	// No inbound frames are expected; CloseRead surfaces disconnects as
	// context cancellation.
	readCtx := conn.CloseRead(ctx)

	poll := time.Duration(h.cfg.PollTimeout)
	timer := time.NewTimer(poll)
	defer timer.Stop()

	for {
		select {
		case <-readCtx.Done():
			return "interrupted", ""

		case <-timer.C:
			// Idle tick. Nothing to process, keep waiting.
			timer.Reset(poll)

		case chunk, ok := <-sub.Chunks():
			if !ok {
				return "error", "recognition stream ended"
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(poll)

			ev := h.step(ctx, log, documentID, sessionID, session, chunk)
			if err := wsjson.Write(ctx, conn, eventFrame{Type: "event", Event: ev}); err != nil {
				if readCtx.Err() != nil || ctx.Err() != nil {
					return "interrupted", ""
				}
				log.Debug("failed to push event frame", "err", err)
				return "error", "failed to push event frame"
			}

			if session.LastMatchedOrder() >= finalOrder {
				return "completed", ""
			}
		}
	}
}

// step runs one cycle and mirrors its outcome to metrics, analytics and
// the event publisher. Sink and publisher failures are logged and
// swallowed; the live stream has priority.
func (h *Handler) step(ctx context.Context, log *slog.Logger, documentID, sessionID int64, session *align.Session, chunk recog.Chunk) align.Event {
	start := time.Now()
	ev := session.Step(chunk.Text)

	if h.metrics != nil {
		docAttr := strconv.FormatInt(documentID, 10)
		h.metrics.CycleDuration.Record(ctx, time.Since(start).Seconds())
		if ev.Matched {
			h.metrics.RecordMatch(ctx, docAttr, ev.Score)
		}
		if n := len(ev.Skipped); n > 0 {
			h.metrics.RecordSkips(ctx, docAttr, n)
		}
	}

	if sessionID != 0 {
		if err := h.sink.LogEvent(ctx, sessionID, ev); err != nil {
			log.Warn("analytics log failed", "err", err)
		}
	}
	if h.publisher != nil {
		if err := h.publisher.Publish(ctx, documentID, ev); err != nil {
			log.Warn("event publish failed", "err", err)
		}
	}
	return ev
}
