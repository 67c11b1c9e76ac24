// Package google implements recog.Source on Google Cloud Speech-to-Text
// streaming recognition. Requires GOOGLE_APPLICATION_CREDENTIALS to be set
// in the environment.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/MrWong99/versecast/pkg/recog"
)

const chunkQueueDepth = 64

// Option is a functional option for configuring a [Source].
type Option func(*Source)

// WithLanguage sets the BCP-47 language code sent to the API, e.g. "ms-MY"
// or "en-US". Defaults to "ms-MY".
func WithLanguage(code string) Option {
	return func(s *Source) { s.language = code }
}

// WithSampleRate sets the PCM sample rate in Hz. Defaults to 16000.
func WithSampleRate(rate int) Option {
	return func(s *Source) { s.sampleRate = rate }
}

// Source implements [recog.Source] backed by a Google Cloud Speech
// bidirectional stream. Audio enters through [Source.SendAudio] as raw
// 16-bit little-endian signed PCM; final transcripts are emitted as
// chunks.
type Source struct {
	client     *speech.Client
	language   string
	sampleRate int

	mu      sync.Mutex
	stream  speechpb.Speech_StreamingRecognizeClient
	stop    chan struct{}
	running bool
}

// New creates the Speech client. The caller must call Close when the
// source is no longer needed.
func New(ctx context.Context, opts ...Option) (*Source, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("google: create speech client: %w", err)
	}
	s := &Source{
		client:     client,
		language:   "ms-MY",
		sampleRate: 16000,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Close releases the underlying Speech client.
func (s *Source) Close() error {
	return s.client.Close()
}

// Start implements [recog.Source]. It opens the bidirectional stream,
// sends the streaming config as the first message and spawns the receive
// loop.
func (s *Source) Start(ctx context.Context) (<-chan recog.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil, errors.New("google: already started")
	}

	stream, err := s.client.StreamingRecognize(ctx)
	if err != nil {
		return nil, fmt.Errorf("google: open streaming recognize: %w", err)
	}

	// First message must carry the config, audio follows.
	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz: int32(s.sampleRate),
					LanguageCode:    s.language,
				},
				InterimResults: false,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("google: send streaming config: %w", err)
	}

	s.stream = stream
	s.stop = make(chan struct{})
	s.running = true

	out := make(chan recog.Chunk, chunkQueueDepth)
	go s.receiveLoop(stream, s.stop, out)
	return out, nil
}

// RequestStop implements [recog.Source]. It half-closes the stream; the
// receive loop drains the remaining responses and closes the chunk
// channel.
func (s *Source) RequestStop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	close(s.stop)
	if err := s.stream.CloseSend(); err != nil {
		slog.Debug("google: close send", "err", err)
	}
}

// SendAudio forwards a block of raw PCM to the open stream. Blocks sent
// while the source is not running are dropped.
func (s *Source) SendAudio(pcm []byte) {
	s.mu.Lock()
	stream := s.stream
	running := s.running
	s.mu.Unlock()

	if !running || stream == nil {
		return
	}
	err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: pcm,
		},
	})
	if err != nil {
		slog.Error("google: send audio", "err", err)
	}
}

// streamDone clears the running state when the receive loop for stream
// exits on its own, so a later Start opens a fresh stream instead of
// failing with "already started". The stream comparison keeps a stale
// loop from clobbering the state of a newer stream.
func (s *Source) streamDone(stream speechpb.Speech_StreamingRecognizeClient) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream != stream {
		return
	}
	s.running = false
	s.stream = nil
	s.stop = nil
}

func (s *Source) receiveLoop(stream speechpb.Speech_StreamingRecognizeClient, stop <-chan struct{}, out chan<- recog.Chunk) {
	// streamDone runs before the channel close, so by the time a consumer
	// observes the end of the stream the source is restartable.
	defer close(out)
	defer s.streamDone(stream)

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			select {
			case <-stop:
				// Expected after CloseSend or context cancellation.
			default:
				slog.Error("google: receive transcript", "err", err)
			}
			return
		}

		for _, result := range resp.Results {
			if !result.IsFinal || len(result.Alternatives) == 0 {
				continue
			}
			text := strings.TrimSpace(result.Alternatives[0].Transcript)
			if text == "" {
				continue
			}
			select {
			case out <- recog.Chunk{Text: text, At: time.Now()}:
			default:
				slog.Debug("google: chunk queue full, dropping transcript")
			}
		}
	}
}
