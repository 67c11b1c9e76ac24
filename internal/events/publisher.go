// Package events publishes alignment outcomes to Kafka so downstream
// consumers (overlay renderers, archive jobs) can follow a live session
// without talking to the server. Matched and skipped segments go to
// separate topics. When Kafka is disabled the publisher degrades to
// log-only mode, so callers never need to branch on configuration.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/MrWong99/versecast/internal/align"
	"github.com/MrWong99/versecast/internal/config"
)

// Publisher writes matched and skipped segment events to their topics.
type Publisher struct {
	writerMatched *kafka.Writer
	writerSkipped *kafka.Writer
	enabled       bool
}

// New creates a Publisher from configuration. With Kafka disabled or no
// brokers configured it returns a log-only publisher.
func New(cfg config.KafkaConfig) *Publisher {
	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		slog.Info("kafka disabled, events in log-only mode")
		return &Publisher{}
	}

	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{Dial: dialer.DialFunc}

	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
			Transport:    transport,
		}
	}

	slog.Info("kafka publisher initialized",
		"brokers", cfg.Brokers,
		"topic_matched", cfg.TopicMatched,
		"topic_skipped", cfg.TopicSkipped)

	return &Publisher{
		writerMatched: newWriter(cfg.TopicMatched),
		writerSkipped: newWriter(cfg.TopicSkipped),
		enabled:       true,
	}
}

// matchedEvent is the payload written to the matched topic.
type matchedEvent struct {
	DocumentID int64                `json:"document_id"`
	Segment    align.SegmentPayload `json:"segment"`
	Score      float64              `json:"score"`
	Threshold  float64              `json:"threshold"`
	At         time.Time            `json:"at"`
}

// skippedEvent is the payload written to the skipped topic.
type skippedEvent struct {
	DocumentID int64                  `json:"document_id"`
	From       int                    `json:"from"`
	To         int                    `json:"to"`
	Segments   []align.SegmentPayload `json:"segments"`
	At         time.Time              `json:"at"`
}

// Publish emits the Kafka messages for one cycle event: nothing on
// rejection, a matched message on acceptance, and an additional skipped
// message when the acceptance jumped over segments. Messages are keyed by
// document ID so one document's events stay ordered within a partition.
func (p *Publisher) Publish(ctx context.Context, documentID int64, ev align.Event) error {
	if !ev.Matched || ev.Segment == nil {
		return nil
	}

	now := time.Now().UTC()
	err := p.write(ctx, p.writerMatched, documentID, matchedEvent{
		DocumentID: documentID,
		Segment:    *ev.Segment,
		Score:      ev.Score,
		Threshold:  ev.Threshold,
		At:         now,
	})
	if err != nil {
		return err
	}

	if len(ev.Skipped) == 0 || ev.SkippedFrom == nil || ev.SkippedTo == nil {
		return nil
	}
	return p.write(ctx, p.writerSkipped, documentID, skippedEvent{
		DocumentID: documentID,
		From:       *ev.SkippedFrom,
		To:         *ev.SkippedTo,
		Segments:   ev.Skipped,
		At:         now,
	})
}

func (p *Publisher) write(ctx context.Context, writer *kafka.Writer, documentID int64, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: marshal event: %w", err)
	}

	if !p.enabled || writer == nil {
		slog.Debug("event (log-only)", "document_id", documentID, "payload", string(payload))
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(documentID, 10)),
		Value: payload,
	}
	if err := writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("events: write to %s: %w", writer.Topic, err)
	}
	return nil
}

// Close shuts down both writers.
func (p *Publisher) Close() error {
	var firstErr error
	for _, w := range []*kafka.Writer{p.writerMatched, p.writerSkipped} {
		if w == nil {
			continue
		}
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("events: close writer for %s: %w", w.Topic, err)
		}
	}
	return firstErr
}
