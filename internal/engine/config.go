package engine

import (
	"fmt"
	"math"
)

// Config carries the validation tolerances and anchor debounce windows for
// one session. Values are fixed at session start; difficulty scaling happens
// in the config loader before a session is created.
type Config struct {
	// PositionTolerance is the maximum Euclidean placement error, in the
	// linear units of the puzzle (board millimetres for vision tables,
	// points for touch).
	PositionTolerance float64

	// RotationTolerance is the maximum angular placement error in radians,
	// applied per symmetry branch.
	RotationTolerance float64

	// StableTicks is the number of consecutive motionless observations
	// before a piece counts as stable (placed rather than mid-drag).
	StableTicks int

	// LossTicksVision and LossTicksTouch are the anchor hysteresis windows:
	// the anchor is dropped on the Nth consecutive tick it is missing or
	// moving. Vision tolerates brief occlusion; touch drops on the first
	// tick because a released piece is gone for certain.
	LossTicksVision int
	LossTicksTouch  int

	// Strict panics on catalog/puzzle-data mismatches instead of logging
	// and returning a no-match verdict. Enabled in development builds.
	Strict bool
}

// DefaultConfig returns the tolerances used when no tuning file overrides
// them: 10 linear units, 5 degrees, three-tick stability, five-tick vision
// occlusion allowance.
func DefaultConfig() Config {
	return Config{
		PositionTolerance: 10,
		RotationTolerance: 5 * math.Pi / 180,
		StableTicks:       3,
		LossTicksVision:   5,
		LossTicksTouch:    1,
	}
}

// Validate rejects configurations that would make the engine vacuous or
// wedge the anchor tracker.
func (c Config) Validate() error {
	if c.PositionTolerance <= 0 {
		return fmt.Errorf("engine: position tolerance must be positive, got %v", c.PositionTolerance)
	}
	if c.RotationTolerance <= 0 || c.RotationTolerance > math.Pi {
		return fmt.Errorf("engine: rotation tolerance must be in (0, pi], got %v", c.RotationTolerance)
	}
	if c.StableTicks < 1 {
		return fmt.Errorf("engine: stable ticks must be >= 1, got %d", c.StableTicks)
	}
	if c.LossTicksVision < 1 || c.LossTicksTouch < 1 {
		return fmt.Errorf("engine: loss ticks must be >= 1, got vision=%d touch=%d", c.LossTicksVision, c.LossTicksTouch)
	}
	return nil
}

// lossTicks selects the hysteresis window for the session's input source.
func (c Config) lossTicks(src InputSource) int {
	if src == SourceTouch {
		return c.LossTicksTouch
	}
	return c.LossTicksVision
}
