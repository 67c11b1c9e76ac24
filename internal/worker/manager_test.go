package worker_test

import (
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/versecast/internal/worker"
	"github.com/MrWong99/versecast/pkg/recog"
	"github.com/MrWong99/versecast/pkg/recog/mock"
)

func waitChunk(t *testing.T, ch <-chan recog.Chunk) string {
	t.Helper()
	select {
	case c := <-ch:
		return c.Text
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for chunk")
		return ""
	}
}

func TestManager_FirstAcquireStartsSource(t *testing.T) {
	src := mock.New()
	m := worker.NewManager(src, 8, nil)

	sub, err := m.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer sub.Close()

	if src.StartCalls() != 1 {
		t.Errorf("StartCalls = %d, want 1", src.StartCalls())
	}
	if m.Subscribers() != 1 {
		t.Errorf("Subscribers() = %d, want 1", m.Subscribers())
	}
}

func TestManager_SecondAcquireSharesStream(t *testing.T) {
	src := mock.New()
	m := worker.NewManager(src, 8, nil)

	a, err := m.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer a.Close()
	b, err := m.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer b.Close()

	if src.StartCalls() != 1 {
		t.Errorf("StartCalls = %d, want 1: the stream is shared", src.StartCalls())
	}

	src.Emit("selamat pagi")
	if got := waitChunk(t, a.Chunks()); got != "selamat pagi" {
		t.Errorf("subscription a got %q", got)
	}
	if got := waitChunk(t, b.Chunks()); got != "selamat pagi" {
		t.Errorf("subscription b got %q", got)
	}
}

func TestManager_LastCloseStopsSource(t *testing.T) {
	src := mock.New()
	m := worker.NewManager(src, 8, nil)

	a, _ := m.Acquire()
	b, _ := m.Acquire()

	a.Close()
	if src.StopCalls() != 0 {
		t.Errorf("StopCalls = %d after first close, want 0", src.StopCalls())
	}

	b.Close()
	if src.StopCalls() != 1 {
		t.Errorf("StopCalls = %d after last close, want 1", src.StopCalls())
	}
	if m.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d, want 0", m.Subscribers())
	}
}

func TestManager_CloseIsIdempotent(t *testing.T) {
	src := mock.New()
	m := worker.NewManager(src, 8, nil)

	a, _ := m.Acquire()
	b, _ := m.Acquire()

	a.Close()
	a.Close()
	a.Close()

	if m.Subscribers() != 1 {
		t.Errorf("Subscribers() = %d, want 1: repeated Close must release once", m.Subscribers())
	}
	if src.StopCalls() != 0 {
		t.Errorf("StopCalls = %d, want 0 while a subscriber remains", src.StopCalls())
	}
	b.Close()
}

func TestManager_RestartsAfterFullStop(t *testing.T) {
	src := mock.New()
	m := worker.NewManager(src, 8, nil)

	a, _ := m.Acquire()
	a.Close()

	b, err := m.Acquire()
	if err != nil {
		t.Fatalf("Acquire after stop: %v", err)
	}
	defer b.Close()

	if src.StartCalls() != 2 {
		t.Errorf("StartCalls = %d, want 2: stream restarts for a new subscriber", src.StartCalls())
	}

	src.Emit("hari ini")
	if got := waitChunk(t, b.Chunks()); got != "hari ini" {
		t.Errorf("chunk after restart = %q", got)
	}
}

func TestManager_StartErrorPropagates(t *testing.T) {
	src := mock.New()
	src.StartErr = errors.New("model not loaded")
	m := worker.NewManager(src, 8, nil)

	if _, err := m.Acquire(); err == nil {
		t.Fatal("Acquire succeeded despite Start error")
	}
	if m.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d, want 0 after failed Acquire", m.Subscribers())
	}

	// The failure must not wedge the manager.
	src.StartErr = nil
	sub, err := m.Acquire()
	if err != nil {
		t.Fatalf("Acquire after recovery: %v", err)
	}
	sub.Close()
}

func waitStreamEnd(t *testing.T, name string, ch <-chan recog.Chunk) {
	t.Helper()
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("subscription %s never observed the stream ending", name)
		}
	}
}

func TestManager_StreamDeathClosesSubscriptions(t *testing.T) {
	src := mock.New()
	m := worker.NewManager(src, 8, nil)

	a, _ := m.Acquire()
	defer a.Close()
	b, _ := m.Acquire()
	defer b.Close()

	src.Fail()

	// Both sessions must see the end of the stream rather than idling on
	// an open channel forever.
	waitStreamEnd(t, "a", a.Chunks())
	waitStreamEnd(t, "b", b.Chunks())

	if src.StopCalls() != 1 {
		t.Errorf("StopCalls = %d, want 1: a dead source must be asked to wind down", src.StopCalls())
	}
}

func TestManager_RestartsAfterStreamDeath(t *testing.T) {
	src := mock.New()
	m := worker.NewManager(src, 8, nil)

	a, _ := m.Acquire()
	src.Fail()
	waitStreamEnd(t, "a", a.Chunks())
	a.Close()

	b, err := m.Acquire()
	if err != nil {
		t.Fatalf("Acquire after stream death: %v", err)
	}
	defer b.Close()

	if src.StartCalls() != 2 {
		t.Errorf("StartCalls = %d, want 2: a fresh stream after the old one died", src.StartCalls())
	}
	src.Emit("petang ini")
	if got := waitChunk(t, b.Chunks()); got != "petang ini" {
		t.Errorf("chunk after restart = %q", got)
	}
}

func TestManager_DropsNewestOnFullQueue(t *testing.T) {
	src := mock.New()
	m := worker.NewManager(src, 1, nil)

	sub, err := m.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer sub.Close()

	// Nobody reads; with a queue of one, later chunks must be dropped
	// without blocking the pump.
	src.Emit("satu")
	src.Emit("dua")
	src.Emit("tiga")

	deadline := time.Now().Add(2 * time.Second)
	for sub.Dropped() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := sub.Dropped(); got != 2 {
		t.Fatalf("Dropped() = %d, want 2", got)
	}

	if got := waitChunk(t, sub.Chunks()); got != "satu" {
		t.Errorf("surviving chunk = %q, want the oldest %q", got, "satu")
	}
}
