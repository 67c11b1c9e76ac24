package events

import (
	"context"
	"testing"

	"github.com/MrWong99/versecast/internal/align"
	"github.com/MrWong99/versecast/internal/config"
)

func matchedEventFixture(withSkips bool) align.Event {
	ev := align.Event{
		Spoken:  "tentang kasih sayang",
		Score:   0.91,
		Matched: true,
		Segment: &align.SegmentPayload{SegmentID: 12, Order: 2, Text: "tentang kasih sayang"},
	}
	if withSkips {
		from, to := -1, 2
		ev.SkippedFrom = &from
		ev.SkippedTo = &to
		ev.Skipped = []align.SegmentPayload{
			{SegmentID: 10, Order: 0, Text: "selamat pagi semua"},
			{SegmentID: 11, Order: 1, Text: "hari ini kita berkongsi"},
		}
	}
	return ev
}

func TestPublisher_DisabledModeNeverErrors(t *testing.T) {
	p := New(config.KafkaConfig{Enabled: false})
	defer p.Close()

	if err := p.Publish(context.Background(), 1, matchedEventFixture(true)); err != nil {
		t.Errorf("Publish in log-only mode: %v", err)
	}
}

func TestPublisher_EnabledWithoutBrokersFallsBack(t *testing.T) {
	p := New(config.KafkaConfig{Enabled: true})
	defer p.Close()

	if err := p.Publish(context.Background(), 1, matchedEventFixture(false)); err != nil {
		t.Errorf("Publish without brokers: %v", err)
	}
}

func TestPublisher_IgnoresRejectedCycles(t *testing.T) {
	p := New(config.KafkaConfig{})
	defer p.Close()

	ev := align.Event{Spoken: "zzz", Score: 0.2, Matched: false}
	if err := p.Publish(context.Background(), 1, ev); err != nil {
		t.Errorf("Publish of rejected cycle: %v", err)
	}
}

func TestPublisher_CloseIsSafeWhenDisabled(t *testing.T) {
	p := New(config.KafkaConfig{})
	if err := p.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
