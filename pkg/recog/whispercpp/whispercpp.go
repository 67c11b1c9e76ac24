// Package whispercpp implements recog.Source on the whisper.cpp CGO
// bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH.
//
// Audio enters through [Source.SendAudio] as raw 16-bit little-endian
// signed PCM (typically fed by the pkg/audio capture callback). The source
// buffers speech, detects trailing silence by RMS energy, and runs one
// whisper inference per detected utterance, emitting the text as a chunk.
package whispercpp

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/versecast/pkg/recog"
)

const (
	defaultLanguage            = "ms"
	defaultSampleRate          = 16000
	defaultSilenceThresholdMs  = 500
	defaultMaxBufferDurationMs = 8000
	defaultMinChars            = 6

	bitsPerSample   = 16
	rmsSpeechFloor  = 0.015
	audioQueueDepth = 256
	chunkQueueDepth = 64
)

// Option is a functional option for configuring a [Source].
type Option func(*Source)

// WithLanguage sets the recognition language code (e.g., "ms", "en").
// Defaults to "ms".
func WithLanguage(lang string) Option {
	return func(s *Source) { s.language = lang }
}

// WithSampleRate sets the PCM sample rate in Hz. Must match the audio
// delivered via SendAudio. Defaults to 16000.
func WithSampleRate(rate int) Option {
	return func(s *Source) { s.sampleRate = rate }
}

// WithSilenceThresholdMs sets the consecutive-silence duration (ms) that
// flushes the speech buffer to inference. Defaults to 500 ms.
func WithSilenceThresholdMs(ms int) Option {
	return func(s *Source) { s.silenceThresholdMs = ms }
}

// WithMaxBufferDurationMs sets the maximum buffered speech duration (ms)
// before a forced flush. Defaults to 8000 ms.
func WithMaxBufferDurationMs(ms int) Option {
	return func(s *Source) { s.maxBufferDurationMs = ms }
}

// Source implements [recog.Source] backed by a whisper.cpp model. The
// model is loaded once in [New] and shared across restarts; each inference
// uses a fresh whisper context (contexts are not thread-safe, the model
// is).
type Source struct {
	model    whisperlib.Model
	language string

	sampleRate          int
	silenceThresholdMs  int
	maxBufferDurationMs int

	mu      sync.Mutex
	audioCh chan []byte
	stop    chan struct{}
	running bool
}

// New loads the whisper.cpp model from modelPath. The caller must call
// Close when the source is no longer needed.
func New(modelPath string, opts ...Option) (*Source, error) {
	if modelPath == "" {
		return nil, errors.New("whispercpp: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whispercpp: load model %q: %w", modelPath, err)
	}

	s := &Source{
		model:               model,
		language:            defaultLanguage,
		sampleRate:          defaultSampleRate,
		silenceThresholdMs:  defaultSilenceThresholdMs,
		maxBufferDurationMs: defaultMaxBufferDurationMs,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Close releases the whisper model.
func (s *Source) Close() error {
	if s.model != nil {
		return s.model.Close()
	}
	return nil
}

// Start implements [recog.Source]. It spawns the processing goroutine and
// returns the chunk stream.
func (s *Source) Start(ctx context.Context) (<-chan recog.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil, errors.New("whispercpp: already started")
	}
	s.audioCh = make(chan []byte, audioQueueDepth)
	s.stop = make(chan struct{})
	s.running = true

	out := make(chan recog.Chunk, chunkQueueDepth)
	go s.processLoop(ctx, s.audioCh, s.stop, out)
	return out, nil
}

// RequestStop implements [recog.Source].
func (s *Source) RequestStop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		close(s.stop)
		s.running = false
	}
}

// SendAudio queues a block of raw PCM for silence analysis and buffering.
// Blocks are dropped when the source is not running or its queue is full;
// capture must never stall on recognition.
func (s *Source) SendAudio(pcm []byte) {
	s.mu.Lock()
	ch := s.audioCh
	running := s.running
	s.mu.Unlock()

	if !running || ch == nil {
		return
	}
	select {
	case ch <- pcm:
	default:
		slog.Debug("whispercpp: audio queue full, dropping block")
	}
}

// loopDone clears the running state when the processing loop exits, so a
// later Start begins a fresh stream even if the loop died from context
// cancellation alone. The channel comparison keeps a stale loop from
// clobbering the state of a newer one.
func (s *Source) loopDone(stop <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stop != (<-chan struct{})(s.stop) {
		return
	}
	s.running = false
	s.audioCh = nil
	s.stop = nil
}

// processLoop owns all buffering and silence-detection state.
func (s *Source) processLoop(ctx context.Context, audio <-chan []byte, stop <-chan struct{}, out chan<- recog.Chunk) {
	// loopDone runs before the channel close, so by the time a consumer
	// observes the end of the stream the source is restartable.
	defer close(out)
	defer s.loopDone(stop)

	var (
		buffer    []byte
		hadSpeech bool
		silenceMs int
		lastText  string
	)

	bytesPerMs := s.sampleRate * (bitsPerSample / 8) / 1000
	if bytesPerMs <= 0 {
		bytesPerMs = 32
	}
	maxBufferBytes := s.maxBufferDurationMs * bytesPerMs

	flush := func() {
		pcm := buffer
		spoke := hadSpeech
		buffer = nil
		hadSpeech = false
		silenceMs = 0
		if len(pcm) == 0 || !spoke {
			return
		}

		text, err := s.infer(pcm)
		if err != nil {
			// Transient inference failure: log and keep listening.
			slog.Error("whispercpp: inference failed", "err", err)
			return
		}
		if len(text) < defaultMinChars || text == lastText {
			return
		}
		lastText = text

		select {
		case out <- recog.Chunk{Text: text, At: time.Now()}:
		default:
			slog.Debug("whispercpp: chunk queue full, dropping transcript")
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-stop:
			flush()
			return
		case block := <-audio:
			rms := computeRMS(block)
			blockMs := len(block) / bytesPerMs

			if rms < rmsSpeechFloor {
				if hadSpeech {
					silenceMs += blockMs
					buffer = append(buffer, block...)
					if silenceMs >= s.silenceThresholdMs {
						flush()
					}
				}
				continue
			}

			hadSpeech = true
			silenceMs = 0
			buffer = append(buffer, block...)
			if maxBufferBytes > 0 && len(buffer) >= maxBufferBytes {
				flush()
			}
		}
	}
}

// infer converts buffered PCM to float32 samples and runs whisper.cpp
// inference on a fresh context.
func (s *Source) infer(pcm []byte) (string, error) {
	samples := pcmToFloat32(pcm)

	wctx, err := s.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whispercpp: create context: %w", err)
	}
	if err := wctx.SetLanguage(s.language); err != nil {
		slog.Warn("whispercpp: failed to set language, using default", "language", s.language, "err", err)
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whispercpp: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whispercpp: read segment: %w", err)
		}
		if t := strings.TrimSpace(segment.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " "), nil
}

// pcmToFloat32 converts 16-bit little-endian signed mono PCM to float32
// samples in [-1, 1].
func pcmToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(pcm[2*i:]))
		samples[i] = float32(v) / math.MaxInt16
	}
	return samples
}

// computeRMS returns the root-mean-square energy of a 16-bit PCM block,
// normalized to [0, 1].
func computeRMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[2*i:]))) / math.MaxInt16
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}
