package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidRecognizerNames lists the recognizer implementations that ship with
// Versecast. Used by [Validate] to warn about unrecognised names.
var ValidRecognizerNames = []string{"whispercpp", "google", "mock"}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, fills engine defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	fillAlignDefaults(&cfg.Align)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fillAlignDefaults replaces zero-valued engine knobs with the defaults
// from [DefaultAlign].
func fillAlignDefaults(a *AlignConfig) {
	def := DefaultAlign()
	if a.LookaheadLimit <= 0 {
		a.LookaheadLimit = def.LookaheadLimit
	}
	if a.BufferMaxChunks <= 0 {
		a.BufferMaxChunks = def.BufferMaxChunks
	}
	if a.BufferMaxChars <= 0 {
		a.BufferMaxChars = def.BufferMaxChars
	}
	if a.InitialThreshold <= 0 {
		a.InitialThreshold = def.InitialThreshold
	}
	if a.ThresholdStepUp <= 0 {
		a.ThresholdStepUp = def.ThresholdStepUp
	}
	if a.ThresholdStepDown <= 0 {
		a.ThresholdStepDown = def.ThresholdStepDown
	}
	if a.ThresholdFloor <= 0 {
		a.ThresholdFloor = def.ThresholdFloor
	}
	if a.ThresholdCeiling <= 0 {
		a.ThresholdCeiling = def.ThresholdCeiling
	}
	if a.MissWindow <= 0 {
		a.MissWindow = def.MissWindow
	}
	if a.QueueSize <= 0 {
		a.QueueSize = def.QueueSize
	}
	if a.PollTimeout <= 0 {
		a.PollTimeout = def.PollTimeout
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Recognizer
	if name := cfg.Recognizer.Name; name != "" && !slices.Contains(ValidRecognizerNames, name) {
		slog.Warn("unknown recognizer name, may be a typo",
			"name", name,
			"known", ValidRecognizerNames,
		)
	}
	if cfg.Recognizer.Name == "whispercpp" && cfg.Recognizer.ModelPath == "" {
		errs = append(errs, errors.New("recognizer.model_path is required when recognizer.name is whispercpp"))
	}
	if cfg.Recognizer.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("recognizer.sample_rate %d must not be negative", cfg.Recognizer.SampleRate))
	}

	// Database availability
	if cfg.Database.DSN == "" {
		slog.Warn("database.dsn is empty; documents must be served from a pre-loaded store and session analytics will not be persisted")
	}

	// Kafka
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers is required when kafka.enabled is true"))
	}

	// Align knobs
	a := cfg.Align
	if a.InitialThreshold < 0 || a.InitialThreshold > 1 {
		errs = append(errs, fmt.Errorf("align.initial_threshold %.3f is out of range [0, 1]", a.InitialThreshold))
	}
	if a.ThresholdFloor > a.ThresholdCeiling {
		errs = append(errs, fmt.Errorf("align.threshold_floor %.3f exceeds align.threshold_ceiling %.3f", a.ThresholdFloor, a.ThresholdCeiling))
	}
	if a.Adaptive && (a.InitialThreshold < a.ThresholdFloor || a.InitialThreshold > a.ThresholdCeiling) {
		errs = append(errs, fmt.Errorf("align.initial_threshold %.3f is outside [floor %.3f, ceiling %.3f]", a.InitialThreshold, a.ThresholdFloor, a.ThresholdCeiling))
	}

	return errors.Join(errs...)
}
