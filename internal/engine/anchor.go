package engine

import (
	"sort"

	"honnef.co/go/curve"

	"github.com/bemo-play/tangram-engine/internal/geom"
	"github.com/bemo-play/tangram-engine/internal/monitoring"
	"github.com/bemo-play/tangram-engine/internal/tangram"
)

// AnchorTracker selects and maintains the anchor piece for a session running
// in anchor-relative mode, and keeps the per-piece stability streaks every
// mode uses for completion gating.
//
// Each session owns exactly one tracker instance; nothing else mutates its
// state. The first piece to become stable with no anchor held takes the
// role. A held anchor is never displaced by a better-placed competitor: it
// changes only after the hysteresis window of consecutive missing/moving
// ticks, at which point the next-most-stable piece is promoted.
type AnchorTracker struct {
	stableTicks int
	lossTicks   int

	anchorID string
	missing  int

	// streaks counts consecutive motionless sightings per observed id.
	// Absence from a tick resets the streak to zero.
	streaks map[string]int

	// denied pieces are permanently ineligible for the anchor role this
	// session (extra twins with no target slot to bind).
	denied map[string]bool
}

// NewAnchorTracker builds a tracker with the session's debounce windows.
func NewAnchorTracker(cfg Config, src InputSource) *AnchorTracker {
	return &AnchorTracker{
		stableTicks: cfg.StableTicks,
		lossTicks:   cfg.lossTicks(src),
		streaks:     make(map[string]int),
		denied:      make(map[string]bool),
	}
}

// Observe advances the tracker by one tick. present holds every piece seen
// this tick keyed by id, including pieces in motion.
func (at *AnchorTracker) Observe(present map[string]ObservedPiece) {
	for id := range at.streaks {
		if p, ok := present[id]; !ok || p.Moving {
			delete(at.streaks, id)
		}
	}
	for id, p := range present {
		if !p.Moving {
			at.streaks[id]++
		}
	}

	if at.anchorID == "" {
		at.promote("")
		return
	}

	if at.Stable(at.anchorID) {
		at.missing = 0
		return
	}

	at.missing++
	if at.missing >= at.lossTicks {
		lost := at.anchorID
		at.anchorID = ""
		at.missing = 0
		at.promote(lost)
	}
}

// promote hands the anchor role to the longest-streak stable piece,
// excluding the one just lost. Ties break on the smaller id so promotion is
// deterministic. With no stable candidate the role stays empty and
// relative-mode verdicts are withheld until a piece stabilizes.
func (at *AnchorTracker) promote(exclude string) {
	ids := make([]string, 0, len(at.streaks))
	for id, streak := range at.streaks {
		if id == exclude || at.denied[id] || streak < at.stableTicks {
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return
	}
	sort.Slice(ids, func(i, j int) bool {
		if at.streaks[ids[i]] != at.streaks[ids[j]] {
			return at.streaks[ids[i]] > at.streaks[ids[j]]
		}
		return ids[i] < ids[j]
	})
	at.anchorID = ids[0]
	at.missing = 0
	if exclude != "" {
		monitoring.Logf("[engine] anchor lost (%s), promoted %s", exclude, at.anchorID)
	} else {
		monitoring.Logf("[engine] anchor acquired: %s", at.anchorID)
	}
}

// Disqualify permanently bars a piece from the anchor role and vacates the
// role if that piece holds it. Used when the current anchor turns out to
// have no target slot to bind to.
func (at *AnchorTracker) Disqualify(id string) {
	at.denied[id] = true
	if at.anchorID == id {
		at.anchorID = ""
		at.missing = 0
		at.promote(id)
	}
}

// Stable reports whether a piece has been motionless for the debounce
// window.
func (at *AnchorTracker) Stable(id string) bool {
	return at.streaks[id] >= at.stableTicks
}

// Streak returns the current consecutive-stable-tick count for a piece.
func (at *AnchorTracker) Streak(id string) int { return at.streaks[id] }

// AnchorID returns the current anchor piece id, or "" when the role is
// empty.
func (at *AnchorTracker) AnchorID() string { return at.anchorID }

// State snapshots the tracker for reporting.
func (at *AnchorTracker) State() AnchorState {
	return AnchorState{PieceID: at.anchorID, MissingTicks: at.missing}
}

// RelativeTo re-expresses a raw pose in the frame of an anchor pose: the
// position delta rotated back by the anchor rotation, the rotation delta
// normalized, the mirror state untouched. The identical formula serves the
// observed set (relative to the observed anchor) and the target set
// (relative to the target bound to the anchor piece), which is what makes
// the two relative frames comparable.
func RelativeTo(p, anchor tangram.RawPose) tangram.RawPose {
	delta := curve.Pt(p.Position.X-anchor.Position.X, p.Position.Y-anchor.Position.Y)
	return tangram.RawPose{
		Position: delta.Transform(curve.Rotate(-anchor.Rotation)),
		Rotation: geom.NormalizeAngle(p.Rotation - anchor.Rotation),
		Mirrored: p.Mirrored,
	}
}
