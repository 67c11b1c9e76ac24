package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Environment variable names for the engine knobs. The names predate the
// YAML config and are kept so existing deployments keep working.
const (
	EnvLookaheadLimit    = "LIVE_LOOKAHEAD_LIMIT"
	EnvBufferMaxChunks   = "LIVE_BUFFER_CHUNKS"
	EnvBufferMaxChars    = "LIVE_BUFFER_CHARS"
	EnvInitialThreshold  = "LIVE_INITIAL_THRESHOLD"
	EnvAdaptive          = "LIVE_ADAPTIVE"
	EnvThresholdStepUp   = "LIVE_THRESHOLD_STEP_UP"
	EnvThresholdStepDown = "LIVE_THRESHOLD_STEP_DOWN"
	EnvThresholdFloor    = "LIVE_THRESHOLD_FLOOR"
	EnvThresholdCeiling  = "LIVE_THRESHOLD_CEILING"
	EnvMissWindow        = "LIVE_MISS_WINDOW"
	EnvQueueSize         = "LIVE_QUEUE_SIZE"
	EnvPollTimeout       = "LIVE_POLL_TIMEOUT"
)

// ApplyEnv overrides the engine knobs in cfg from environment variables.
// Unset variables leave the config untouched; unparseable values are
// logged and skipped rather than failing startup.
func ApplyEnv(cfg *Config) {
	envInt(EnvLookaheadLimit, &cfg.Align.LookaheadLimit)
	envInt(EnvBufferMaxChunks, &cfg.Align.BufferMaxChunks)
	envInt(EnvBufferMaxChars, &cfg.Align.BufferMaxChars)
	envFloat(EnvInitialThreshold, &cfg.Align.InitialThreshold)
	envBool(EnvAdaptive, &cfg.Align.Adaptive)
	envFloat(EnvThresholdStepUp, &cfg.Align.ThresholdStepUp)
	envFloat(EnvThresholdStepDown, &cfg.Align.ThresholdStepDown)
	envFloat(EnvThresholdFloor, &cfg.Align.ThresholdFloor)
	envFloat(EnvThresholdCeiling, &cfg.Align.ThresholdCeiling)
	envInt(EnvMissWindow, &cfg.Align.MissWindow)
	envInt(EnvQueueSize, &cfg.Align.QueueSize)
	envDuration(EnvPollTimeout, &cfg.Align.PollTimeout)
}

func envInt(name string, dst *int) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("ignoring unparseable environment override", "name", name, "value", v, "err", err)
		return
	}
	*dst = n
}

func envFloat(name string, dst *float64) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("ignoring unparseable environment override", "name", name, "value", v, "err", err)
		return
	}
	*dst = f
}

func envBool(name string, dst *bool) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("ignoring unparseable environment override", "name", name, "value", v, "err", err)
		return
	}
	*dst = b
}

func envDuration(name string, dst *Duration) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("ignoring unparseable environment override", "name", name, "value", v, "err", err)
		return
	}
	*dst = Duration(d)
}
