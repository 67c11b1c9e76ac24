// Command versecast is the live alignment server: it follows a spoken
// document through the configured speech recognizer and streams segment
// matches to connected WebSocket clients.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/versecast/internal/analytics"
	"github.com/MrWong99/versecast/internal/config"
	"github.com/MrWong99/versecast/internal/docstore"
	"github.com/MrWong99/versecast/internal/events"
	"github.com/MrWong99/versecast/internal/health"
	"github.com/MrWong99/versecast/internal/live"
	"github.com/MrWong99/versecast/internal/observe"
	"github.com/MrWong99/versecast/internal/worker"
	"github.com/MrWong99/versecast/pkg/audio"
	"github.com/MrWong99/versecast/pkg/recog"
	googlerecog "github.com/MrWong99/versecast/pkg/recog/google"
	"github.com/MrWong99/versecast/pkg/recog/mock"
	"github.com/MrWong99/versecast/pkg/recog/whispercpp"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	listDevices := flag.Bool("list-devices", false, "list audio capture devices and exit")
	flag.Parse()

	if *listDevices {
		return printCaptureDevices()
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "versecast: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "versecast: %v\n", err)
		}
		return 1
	}
	config.ApplyEnv(cfg)

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("versecast starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"recognizer", cfg.Recognizer.Name,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Metrics provider, bridged to /metrics via the Prometheus exporter.
	metricsShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "versecast"})
	if err != nil {
		slog.Error("failed to initialise metrics", "err", err)
		return 1
	}
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsShutdown(shCtx); err != nil {
			slog.Warn("metrics shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// Document store and analytics sink. Without a database the server
	// still runs: documents come from an empty in-memory store and
	// analytics are discarded.
	var (
		store    docstore.Store
		sink     analytics.Sink = analytics.Nop{}
		checkers []health.Checker
	)
	if cfg.Database.DSN != "" {
		pool, err := pgxpool.New(ctx, cfg.Database.DSN)
		if err != nil {
			slog.Error("failed to create database pool", "err", err)
			return 1
		}
		defer pool.Close()

		pg := docstore.NewPostgres(pool)
		store = pg
		sink = analytics.NewPostgres(pool)
		checkers = append(checkers, health.Database(pg))
	} else {
		slog.Warn("no database configured, serving an empty in-memory document store")
		store = docstore.NewMemStore()
	}

	// Recognizer and, for device-backed recognizers, microphone capture.
	source, cleanup, err := buildRecognizer(ctx, cfg.Recognizer)
	if err != nil {
		slog.Error("failed to build recognizer", "err", err)
		return 1
	}
	defer cleanup()

	manager := worker.NewManager(source, cfg.Align.QueueSize, logger)
	publisher := events.New(cfg.Kafka)
	defer func() {
		if err := publisher.Close(); err != nil {
			slog.Warn("event publisher close error", "err", err)
		}
	}()

	mux := http.NewServeMux()
	live.New(store, manager, sink, publisher, metrics, cfg.Align, logger).Register(mux)
	health.New(checkers...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server listening", "addr", cfg.Server.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen and serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, stopping")
		shCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// buildRecognizer constructs the configured recog.Source. For recognizers
// that consume raw PCM it also opens and starts microphone capture; the
// returned cleanup releases everything in reverse order.
func buildRecognizer(ctx context.Context, cfg config.RecognizerConfig) (recog.Source, func(), error) {
	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 16000
	}

	switch cfg.Name {
	case "whispercpp":
		var opts []whispercpp.Option
		if cfg.Language != "" {
			opts = append(opts, whispercpp.WithLanguage(cfg.Language))
		}
		opts = append(opts, whispercpp.WithSampleRate(sampleRate))

		src, err := whispercpp.New(cfg.ModelPath, opts...)
		if err != nil {
			return nil, nil, err
		}
		captureCleanup, err := startCapture(cfg.CaptureDevice, sampleRate, src.SendAudio)
		if err != nil {
			_ = src.Close()
			return nil, nil, err
		}
		return src, func() {
			captureCleanup()
			if err := src.Close(); err != nil {
				slog.Warn("recognizer close error", "err", err)
			}
		}, nil

	case "google":
		var opts []googlerecog.Option
		if cfg.Language != "" {
			opts = append(opts, googlerecog.WithLanguage(cfg.Language))
		}
		opts = append(opts, googlerecog.WithSampleRate(sampleRate))

		src, err := googlerecog.New(ctx, opts...)
		if err != nil {
			return nil, nil, err
		}
		captureCleanup, err := startCapture(cfg.CaptureDevice, sampleRate, src.SendAudio)
		if err != nil {
			_ = src.Close()
			return nil, nil, err
		}
		return src, func() {
			captureCleanup()
			if err := src.Close(); err != nil {
				slog.Warn("recognizer close error", "err", err)
			}
		}, nil

	case "mock":
		return mock.New(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown recognizer %q", cfg.Name)
	}
}

// startCapture opens the microphone and begins feeding PCM blocks to
// sendAudio. The returned cleanup stops and releases the device and the
// backend context.
func startCapture(deviceID string, sampleRate int, sendAudio func([]byte)) (func(), error) {
	audioCtx, err := audio.NewContext()
	if err != nil {
		return nil, err
	}

	capture, err := audioCtx.NewCapture(deviceID, audio.CaptureConfig{
		SampleRate: uint32(sampleRate),
		Channels:   1,
	}, sendAudio)
	if err != nil {
		audioCtx.Close()
		return nil, err
	}
	if err := capture.Start(); err != nil {
		capture.Close()
		audioCtx.Close()
		return nil, err
	}

	return func() {
		capture.Stop()
		capture.Close()
		audioCtx.Close()
	}, nil
}

// printCaptureDevices lists the available microphones for the
// capture_device config field.
func printCaptureDevices() int {
	audioCtx, err := audio.NewContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "versecast: %v\n", err)
		return 1
	}
	defer audioCtx.Close()

	devices, err := audioCtx.Devices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "versecast: %v\n", err)
		return 1
	}
	for _, d := range devices {
		fmt.Printf("%s\t%s\n", d.ID, d.Name)
	}
	return 0
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
