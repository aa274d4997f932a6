// Package config loads engine tuning from JSON files. Omitted fields fall
// back to compiled defaults, so partial override files are safe.
package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/bemo-play/tangram-engine/internal/engine"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/engine.defaults.json"

// TuningConfig represents the tunable engine parameters. The schema matches
// the /api/config endpoint so the same JSON can be used for both startup
// configuration and inspection.
type TuningConfig struct {
	// Validation tolerances. Rotation is written in degrees in config
	// files; the engine works in radians.
	PositionTolerance        *float64 `json:"position_tolerance,omitempty"`
	RotationToleranceDegrees *float64 `json:"rotation_tolerance_degrees,omitempty"`

	// Anchor stability windows, in consecutive observation ticks.
	StableTicks     *int `json:"stable_ticks,omitempty"`
	VisionLossTicks *int `json:"vision_loss_ticks,omitempty"`
	TouchLossTicks  *int `json:"touch_loss_ticks,omitempty"`

	// Vision frame intake.
	MinFrameQuality *float64 `json:"min_frame_quality,omitempty"`

	// Session housekeeping (duration strings like "10m").
	SessionIdleTimeout  *string `json:"session_idle_timeout,omitempty"`
	ExpirySweepInterval *string `json:"expiry_sweep_interval,omitempty"`

	// Difficulty scaling applied to both tolerances.
	RelaxedMultiplier *float64 `json:"relaxed_multiplier,omitempty"`
	PreciseMultiplier *float64 `json:"precise_multiplier,omitempty"`

	// Strict makes catalog/puzzle-data mismatches panic instead of being
	// logged and screened. Development builds only.
	Strict *bool `json:"strict,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated
// with its compiled default.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		PositionTolerance:        ptrFloat64(10),
		RotationToleranceDegrees: ptrFloat64(5),
		StableTicks:              ptrInt(3),
		VisionLossTicks:          ptrInt(5),
		TouchLossTicks:           ptrInt(1),
		MinFrameQuality:          ptrFloat64(0.5),
		SessionIdleTimeout:       ptrString("10m"),
		ExpirySweepInterval:      ptrString("1m"),
		RelaxedMultiplier:        ptrFloat64(1.5),
		PreciseMultiplier:        ptrFloat64(0.6),
		Strict:                   ptrBool(false),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the
// max file size. Fields omitted from the JSON file retain their default
// values, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	// Try paths from current dir up to repo root
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/tools/*
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.PositionTolerance != nil && *c.PositionTolerance <= 0 {
		return fmt.Errorf("position_tolerance must be positive, got %f", *c.PositionTolerance)
	}

	if c.RotationToleranceDegrees != nil {
		if *c.RotationToleranceDegrees <= 0 || *c.RotationToleranceDegrees > 180 {
			return fmt.Errorf("rotation_tolerance_degrees must be in (0, 180], got %f", *c.RotationToleranceDegrees)
		}
	}

	if c.StableTicks != nil && *c.StableTicks < 1 {
		return fmt.Errorf("stable_ticks must be >= 1, got %d", *c.StableTicks)
	}
	if c.VisionLossTicks != nil && *c.VisionLossTicks < 1 {
		return fmt.Errorf("vision_loss_ticks must be >= 1, got %d", *c.VisionLossTicks)
	}
	if c.TouchLossTicks != nil && *c.TouchLossTicks < 1 {
		return fmt.Errorf("touch_loss_ticks must be >= 1, got %d", *c.TouchLossTicks)
	}

	if c.MinFrameQuality != nil {
		if *c.MinFrameQuality < 0 || *c.MinFrameQuality > 1 {
			return fmt.Errorf("min_frame_quality must be between 0 and 1, got %f", *c.MinFrameQuality)
		}
	}

	if c.SessionIdleTimeout != nil && *c.SessionIdleTimeout != "" {
		if _, err := time.ParseDuration(*c.SessionIdleTimeout); err != nil {
			return fmt.Errorf("invalid session_idle_timeout '%s': %w", *c.SessionIdleTimeout, err)
		}
	}
	if c.ExpirySweepInterval != nil && *c.ExpirySweepInterval != "" {
		if _, err := time.ParseDuration(*c.ExpirySweepInterval); err != nil {
			return fmt.Errorf("invalid expiry_sweep_interval '%s': %w", *c.ExpirySweepInterval, err)
		}
	}

	if c.RelaxedMultiplier != nil && *c.RelaxedMultiplier <= 0 {
		return fmt.Errorf("relaxed_multiplier must be positive, got %f", *c.RelaxedMultiplier)
	}
	if c.PreciseMultiplier != nil && *c.PreciseMultiplier <= 0 {
		return fmt.Errorf("precise_multiplier must be positive, got %f", *c.PreciseMultiplier)
	}

	return nil
}

// GetPositionTolerance returns the position_tolerance value or the default.
func (c *TuningConfig) GetPositionTolerance() float64 {
	if c.PositionTolerance == nil {
		return 10
	}
	return *c.PositionTolerance
}

// GetRotationToleranceDegrees returns the rotation_tolerance_degrees value or the default.
func (c *TuningConfig) GetRotationToleranceDegrees() float64 {
	if c.RotationToleranceDegrees == nil {
		return 5
	}
	return *c.RotationToleranceDegrees
}

// GetStableTicks returns the stable_ticks value or the default.
func (c *TuningConfig) GetStableTicks() int {
	if c.StableTicks == nil {
		return 3
	}
	return *c.StableTicks
}

// GetVisionLossTicks returns the vision_loss_ticks value or the default.
func (c *TuningConfig) GetVisionLossTicks() int {
	if c.VisionLossTicks == nil {
		return 5
	}
	return *c.VisionLossTicks
}

// GetTouchLossTicks returns the touch_loss_ticks value or the default.
func (c *TuningConfig) GetTouchLossTicks() int {
	if c.TouchLossTicks == nil {
		return 1
	}
	return *c.TouchLossTicks
}

// GetMinFrameQuality returns the min_frame_quality value or the default.
func (c *TuningConfig) GetMinFrameQuality() float64 {
	if c.MinFrameQuality == nil {
		return 0.5
	}
	return *c.MinFrameQuality
}

// GetSessionIdleTimeout parses and returns the SessionIdleTimeout as a time.Duration.
func (c *TuningConfig) GetSessionIdleTimeout() time.Duration {
	if c.SessionIdleTimeout == nil || *c.SessionIdleTimeout == "" {
		return 10 * time.Minute
	}
	d, err := time.ParseDuration(*c.SessionIdleTimeout)
	if err != nil {
		return 10 * time.Minute
	}
	return d
}

// GetExpirySweepInterval parses and returns the ExpirySweepInterval as a time.Duration.
func (c *TuningConfig) GetExpirySweepInterval() time.Duration {
	if c.ExpirySweepInterval == nil || *c.ExpirySweepInterval == "" {
		return time.Minute
	}
	d, err := time.ParseDuration(*c.ExpirySweepInterval)
	if err != nil {
		return time.Minute
	}
	return d
}

// GetRelaxedMultiplier returns the relaxed_multiplier value or the default.
func (c *TuningConfig) GetRelaxedMultiplier() float64 {
	if c.RelaxedMultiplier == nil {
		return 1.5
	}
	return *c.RelaxedMultiplier
}

// GetPreciseMultiplier returns the precise_multiplier value or the default.
func (c *TuningConfig) GetPreciseMultiplier() float64 {
	if c.PreciseMultiplier == nil {
		return 0.6
	}
	return *c.PreciseMultiplier
}

// GetStrict returns the strict value or the default.
func (c *TuningConfig) GetStrict() bool {
	if c.Strict == nil {
		return false
	}
	return *c.Strict
}

// Difficulties lists the difficulty names EngineConfig accepts, in
// ascending strictness.
func Difficulties() []string {
	return []string{"relaxed", "standard", "precise"}
}

// EngineConfig builds the engine configuration for a difficulty level.
// Difficulty scales both tolerances; the empty string means standard.
func (c *TuningConfig) EngineConfig(difficulty string) (engine.Config, error) {
	multiplier := 1.0
	switch difficulty {
	case "", "standard":
	case "relaxed":
		multiplier = c.GetRelaxedMultiplier()
	case "precise":
		multiplier = c.GetPreciseMultiplier()
	default:
		return engine.Config{}, fmt.Errorf("unknown difficulty %q", difficulty)
	}

	cfg := engine.Config{
		PositionTolerance: c.GetPositionTolerance() * multiplier,
		RotationTolerance: c.GetRotationToleranceDegrees() * multiplier * math.Pi / 180,
		StableTicks:       c.GetStableTicks(),
		LossTicksVision:   c.GetVisionLossTicks(),
		LossTicksTouch:    c.GetTouchLossTicks(),
		Strict:            c.GetStrict(),
	}
	if cfg.RotationTolerance > math.Pi {
		cfg.RotationTolerance = math.Pi
	}
	if err := cfg.Validate(); err != nil {
		return engine.Config{}, err
	}
	return cfg, nil
}
