package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bemo-play/tangram-engine/internal/engine"
)

func TestDefaultTuningConfig(t *testing.T) {
	cfg := DefaultTuningConfig()

	if cfg.PositionTolerance == nil || *cfg.PositionTolerance != 10 {
		t.Errorf("expected PositionTolerance 10, got %v", cfg.PositionTolerance)
	}
	if cfg.RotationToleranceDegrees == nil || *cfg.RotationToleranceDegrees != 5 {
		t.Errorf("expected RotationToleranceDegrees 5, got %v", cfg.RotationToleranceDegrees)
	}
	if cfg.StableTicks == nil || *cfg.StableTicks != 3 {
		t.Errorf("expected StableTicks 3, got %v", cfg.StableTicks)
	}
	if cfg.VisionLossTicks == nil || *cfg.VisionLossTicks != 5 {
		t.Errorf("expected VisionLossTicks 5, got %v", cfg.VisionLossTicks)
	}
	if cfg.TouchLossTicks == nil || *cfg.TouchLossTicks != 1 {
		t.Errorf("expected TouchLossTicks 1, got %v", cfg.TouchLossTicks)
	}
	if cfg.MinFrameQuality == nil || *cfg.MinFrameQuality != 0.5 {
		t.Errorf("expected MinFrameQuality 0.5, got %v", cfg.MinFrameQuality)
	}
	if cfg.Strict == nil || *cfg.Strict {
		t.Errorf("expected Strict false, got %v", cfg.Strict)
	}

	// Getter methods should agree with the populated pointers.
	if got := cfg.GetPositionTolerance(); got != 10 {
		t.Errorf("GetPositionTolerance() = %v, want 10", got)
	}
	if got := cfg.GetSessionIdleTimeout(); got != 10*time.Minute {
		t.Errorf("GetSessionIdleTimeout() = %v, want 10m", got)
	}
	if got := cfg.GetExpirySweepInterval(); got != time.Minute {
		t.Errorf("GetExpirySweepInterval() = %v, want 1m", got)
	}
}

func TestGetterFallbacks(t *testing.T) {
	cfg := EmptyTuningConfig()

	if got := cfg.GetPositionTolerance(); got != 10 {
		t.Errorf("GetPositionTolerance() = %v, want 10", got)
	}
	if got := cfg.GetRotationToleranceDegrees(); got != 5 {
		t.Errorf("GetRotationToleranceDegrees() = %v, want 5", got)
	}
	if got := cfg.GetStableTicks(); got != 3 {
		t.Errorf("GetStableTicks() = %v, want 3", got)
	}
	if got := cfg.GetVisionLossTicks(); got != 5 {
		t.Errorf("GetVisionLossTicks() = %v, want 5", got)
	}
	if got := cfg.GetTouchLossTicks(); got != 1 {
		t.Errorf("GetTouchLossTicks() = %v, want 1", got)
	}
	if got := cfg.GetMinFrameQuality(); got != 0.5 {
		t.Errorf("GetMinFrameQuality() = %v, want 0.5", got)
	}
	if got := cfg.GetSessionIdleTimeout(); got != 10*time.Minute {
		t.Errorf("GetSessionIdleTimeout() = %v, want 10m", got)
	}
	if got := cfg.GetExpirySweepInterval(); got != time.Minute {
		t.Errorf("GetExpirySweepInterval() = %v, want 1m", got)
	}
	if got := cfg.GetRelaxedMultiplier(); got != 1.5 {
		t.Errorf("GetRelaxedMultiplier() = %v, want 1.5", got)
	}
	if got := cfg.GetPreciseMultiplier(); got != 0.6 {
		t.Errorf("GetPreciseMultiplier() = %v, want 0.6", got)
	}
	if cfg.GetStrict() {
		t.Error("GetStrict() = true, want false")
	}
}

func TestLoadTuningConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.json")
	content := `{
		"position_tolerance": 15.5,
		"stable_ticks": 4,
		"session_idle_timeout": "5m"
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadTuningConfig(path)
	if err != nil {
		t.Fatalf("LoadTuningConfig failed: %v", err)
	}

	// Overridden fields.
	if got := cfg.GetPositionTolerance(); got != 15.5 {
		t.Errorf("GetPositionTolerance() = %v, want 15.5", got)
	}
	if got := cfg.GetStableTicks(); got != 4 {
		t.Errorf("GetStableTicks() = %v, want 4", got)
	}
	if got := cfg.GetSessionIdleTimeout(); got != 5*time.Minute {
		t.Errorf("GetSessionIdleTimeout() = %v, want 5m", got)
	}

	// Omitted fields fall back to defaults.
	if got := cfg.GetRotationToleranceDegrees(); got != 5 {
		t.Errorf("GetRotationToleranceDegrees() = %v, want default 5", got)
	}
	if cfg.RotationToleranceDegrees != nil {
		t.Error("expected omitted field to stay nil")
	}
}

func TestLoadTuningConfigMissing(t *testing.T) {
	_, err := LoadTuningConfig(filepath.Join(t.TempDir(), "nonexistent.json"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadTuningConfigInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`{"position_tolerance": `), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadTuningConfig(path)
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	if !strings.Contains(err.Error(), "parse") {
		t.Errorf("expected parse error, got: %v", err)
	}
}

func TestLoadTuningConfigWrongExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadTuningConfig(path)
	if err == nil {
		t.Fatal("expected error for non-json extension")
	}
	if !strings.Contains(err.Error(), ".json") {
		t.Errorf("expected extension error, got: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     TuningConfig
		wantErr bool
	}{
		{
			name:    "empty config is valid",
			cfg:     TuningConfig{},
			wantErr: false,
		},
		{
			name:    "valid overrides",
			cfg:     TuningConfig{PositionTolerance: ptrFloat64(20), StableTicks: ptrInt(5)},
			wantErr: false,
		},
		{
			name:    "negative position tolerance",
			cfg:     TuningConfig{PositionTolerance: ptrFloat64(-1)},
			wantErr: true,
		},
		{
			name:    "zero position tolerance",
			cfg:     TuningConfig{PositionTolerance: ptrFloat64(0)},
			wantErr: true,
		},
		{
			name:    "rotation tolerance over 180",
			cfg:     TuningConfig{RotationToleranceDegrees: ptrFloat64(200)},
			wantErr: true,
		},
		{
			name:    "zero stable ticks",
			cfg:     TuningConfig{StableTicks: ptrInt(0)},
			wantErr: true,
		},
		{
			name:    "zero vision loss ticks",
			cfg:     TuningConfig{VisionLossTicks: ptrInt(0)},
			wantErr: true,
		},
		{
			name:    "frame quality above 1",
			cfg:     TuningConfig{MinFrameQuality: ptrFloat64(1.5)},
			wantErr: true,
		},
		{
			name:    "negative frame quality",
			cfg:     TuningConfig{MinFrameQuality: ptrFloat64(-0.1)},
			wantErr: true,
		},
		{
			name:    "unparseable idle timeout",
			cfg:     TuningConfig{SessionIdleTimeout: ptrString("banana")},
			wantErr: true,
		},
		{
			name:    "unparseable sweep interval",
			cfg:     TuningConfig{ExpirySweepInterval: ptrString("10 minutes")},
			wantErr: true,
		},
		{
			name:    "zero relaxed multiplier",
			cfg:     TuningConfig{RelaxedMultiplier: ptrFloat64(0)},
			wantErr: true,
		},
		{
			name:    "negative precise multiplier",
			cfg:     TuningConfig{PreciseMultiplier: ptrFloat64(-0.5)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEngineConfigStandard(t *testing.T) {
	cfg := EmptyTuningConfig()

	for _, difficulty := range []string{"", "standard"} {
		got, err := cfg.EngineConfig(difficulty)
		if err != nil {
			t.Fatalf("EngineConfig(%q) failed: %v", difficulty, err)
		}
		want := engine.DefaultConfig()
		if got != want {
			t.Errorf("EngineConfig(%q) = %+v, want %+v", difficulty, got, want)
		}
	}
}

func TestEngineConfigDifficultyScaling(t *testing.T) {
	cfg := EmptyTuningConfig()

	relaxed, err := cfg.EngineConfig("relaxed")
	if err != nil {
		t.Fatalf("EngineConfig(relaxed) failed: %v", err)
	}
	if got, want := relaxed.PositionTolerance, 15.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("relaxed PositionTolerance = %v, want %v", got, want)
	}
	if got, want := relaxed.RotationTolerance, 7.5*math.Pi/180; math.Abs(got-want) > 1e-9 {
		t.Errorf("relaxed RotationTolerance = %v, want %v", got, want)
	}

	precise, err := cfg.EngineConfig("precise")
	if err != nil {
		t.Fatalf("EngineConfig(precise) failed: %v", err)
	}
	if got, want := precise.PositionTolerance, 6.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("precise PositionTolerance = %v, want %v", got, want)
	}
	if got, want := precise.RotationTolerance, 3.0*math.Pi/180; math.Abs(got-want) > 1e-9 {
		t.Errorf("precise RotationTolerance = %v, want %v", got, want)
	}

	// Ticks are never scaled by difficulty.
	if relaxed.StableTicks != 3 || precise.StableTicks != 3 {
		t.Error("difficulty must not change StableTicks")
	}
}

func TestEngineConfigUnknownDifficulty(t *testing.T) {
	_, err := EmptyTuningConfig().EngineConfig("nightmare")
	if err == nil {
		t.Fatal("expected error for unknown difficulty")
	}
	if !strings.Contains(err.Error(), "nightmare") {
		t.Errorf("expected difficulty name in error, got: %v", err)
	}
}

func TestEngineConfigRotationClamp(t *testing.T) {
	// A huge relaxed multiplier must not push rotation tolerance past pi.
	cfg := &TuningConfig{
		RotationToleranceDegrees: ptrFloat64(170),
		RelaxedMultiplier:        ptrFloat64(100),
	}
	got, err := cfg.EngineConfig("relaxed")
	if err != nil {
		t.Fatalf("EngineConfig failed: %v", err)
	}
	if got.RotationTolerance != math.Pi {
		t.Errorf("RotationTolerance = %v, want clamped to pi", got.RotationTolerance)
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()

	// The defaults file spells out every value explicitly; it must agree
	// with the compiled defaults.
	if got := cfg.GetPositionTolerance(); got != 10 {
		t.Errorf("GetPositionTolerance() = %v, want 10", got)
	}
	if cfg.PositionTolerance == nil {
		t.Error("defaults file should populate position_tolerance")
	}
	if got := cfg.GetRelaxedMultiplier(); got != 1.5 {
		t.Errorf("GetRelaxedMultiplier() = %v, want 1.5", got)
	}
}

func TestDifficulties(t *testing.T) {
	ds := Difficulties()
	if len(ds) != 3 {
		t.Fatalf("expected 3 difficulties, got %d", len(ds))
	}
	for _, d := range ds {
		if _, err := EmptyTuningConfig().EngineConfig(d); err != nil {
			t.Errorf("EngineConfig(%q) failed: %v", d, err)
		}
	}
}
