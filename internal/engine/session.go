package engine

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/bemo-play/tangram-engine/internal/geom"
	"github.com/bemo-play/tangram-engine/internal/monitoring"
	"github.com/bemo-play/tangram-engine/internal/tangram"
	"github.com/bemo-play/tangram-engine/internal/timeutil"
)

// TickReport is the outcome of one observation batch: the verdicts, the
// aggregate completion state, the one-shot edge event if the state changed,
// and the anchor snapshot for the renderer's anchor badge.
type TickReport struct {
	Seq     uint64          `json:"seq"`
	State   CompletionState `json:"state"`
	Event   Event           `json:"event"`
	Matched int             `json:"matched"`
	Total   int             `json:"total"`
	Anchor  AnchorState     `json:"anchor"`

	// Withheld marks a relative-mode tick with no usable anchor frame:
	// a normal transient state, not an error. Verdicts are absent and the
	// completion state is indeterminate (reported NotStarted).
	Withheld bool `json:"withheld,omitempty"`

	// Verdicts holds one entry per target whose bound piece was seen this
	// tick, ordered by target id. Targets with no visible bound piece have
	// no verdict; absence is the signal.
	Verdicts []Verdict `json:"verdicts"`

	// Dropped counts observations discarded by boundary screening.
	Dropped int `json:"dropped,omitempty"`
}

// Session validates one puzzle attempt. All mutable state (anchor, bindings,
// stability streaks, last verdicts) is owned by the session; the catalog and
// geometry helpers it shares are read-only. Observe is synchronous with no
// internal concurrency; the mutex only guards against the HTTP and vision
// adapters calling from different goroutines.
type Session struct {
	mu sync.Mutex

	id     string
	puzzle Puzzle
	mode   Mode
	source InputSource
	cfg    Config
	clock  timeutil.Clock

	anchor *AnchorTracker

	// binding maps observed id -> target id, and bound is its inverse.
	// Entries are written once at first stabilization and never change for
	// the life of the session, so a piece cannot oscillate between two
	// equally close twin targets.
	binding map[string]string
	bound   map[string]string

	// kinds is the set of piece kinds the puzzle actually uses; foreign
	// pieces on the table are invisible to this session.
	kinds map[tangram.Kind]bool

	targetsByID map[string]TargetPiece

	seq          uint64
	prevState    CompletionState
	lastReport   TickReport
	lastPresent  map[string]ObservedPiece
	startedAt    time.Time
	lastObserved time.Time
	completedAt  time.Time
}

// NewSession validates the configuration and target set and builds a
// session. Target piece types outside the catalog are rejected here, once,
// rather than per tick.
func NewSession(id string, puzzle Puzzle, mode Mode, source InputSource, cfg Config, clock timeutil.Clock) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(puzzle.Targets) == 0 {
		return nil, fmt.Errorf("engine: puzzle %q has no targets", puzzle.Name)
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	s := &Session{
		id:          id,
		puzzle:      puzzle,
		mode:        mode,
		source:      source,
		cfg:         cfg,
		clock:       clock,
		anchor:      NewAnchorTracker(cfg, source),
		binding:     make(map[string]string),
		bound:       make(map[string]string),
		kinds:       make(map[tangram.Kind]bool),
		targetsByID: make(map[string]TargetPiece, len(puzzle.Targets)),
		startedAt:   clock.Now(),
	}
	for _, t := range puzzle.Targets {
		if _, err := tangram.LookupShape(t.Type); err != nil {
			return nil, fmt.Errorf("engine: puzzle %q target %s: %w", puzzle.Name, t.ID, err)
		}
		if _, dup := s.targetsByID[t.ID]; dup {
			return nil, fmt.Errorf("engine: puzzle %q has duplicate target id %s", puzzle.Name, t.ID)
		}
		s.targetsByID[t.ID] = t
		s.kinds[t.Type.Kind()] = true
	}
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// PuzzleID returns the id of the puzzle under validation.
func (s *Session) PuzzleID() int64 { return s.puzzle.ID }

// Mode returns the session's comparison frame mode.
func (s *Session) Mode() Mode { return s.mode }

// Observe runs one validation tick over an observation batch and returns
// the tick report. It never fails: malformed observations are dropped
// piece-wise and counted, per the containment policy that one bad piece
// must not halt evaluation of the other six.
func (s *Session) Observe(batch []ObservedPiece) TickReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	s.lastObserved = s.clock.Now()

	present, dropped := s.screen(batch)
	s.lastPresent = present
	s.anchor.Observe(present)

	report := TickReport{
		Seq:     s.seq,
		Total:   len(s.puzzle.Targets),
		Anchor:  s.anchor.State(),
		Dropped: dropped,
	}

	switch s.mode {
	case Absolute:
		s.ensureBindings(present, renderFrame, renderFrame)
		report.Verdicts = s.validateAll(present, renderFrame, renderFrame)
	case AnchorRelative:
		obsFrame, tgtFrame, ok := s.anchorFrames(present)
		if !ok {
			report.Withheld = true
			break
		}
		s.ensureBindings(present, obsFrame, tgtFrame)
		report.Verdicts = s.validateAll(present, obsFrame, tgtFrame)
	}

	for _, v := range report.Verdicts {
		if v.Match && s.anchor.Stable(v.ObservedID) {
			report.Matched++
		}
	}
	report.State = evaluateCompletion(report.Matched, report.Total)
	report.Event = completionEvent(s.prevState, report.State)
	s.prevState = report.State

	if report.Event != EventNone {
		monitoring.Logf("[session %s] %s (%d/%d matched, seq %d)",
			s.id, report.Event, report.Matched, report.Total, report.Seq)
	}
	if report.Event == EventCompleted && s.completedAt.IsZero() {
		s.completedAt = s.lastObserved
	}

	s.lastReport = report
	return report
}

// screen drops observations the engine must never ingest: non-finite poses,
// class ids outside the catalog, and pieces whose kind the puzzle does not
// use. Duplicated ids keep the highest sequence number.
func (s *Session) screen(batch []ObservedPiece) (map[string]ObservedPiece, int) {
	present := make(map[string]ObservedPiece, len(batch))
	dropped := 0
	for _, o := range batch {
		if _, err := tangram.LookupShape(o.Type); err != nil {
			if s.cfg.Strict {
				panic(err)
			}
			monitoring.Logf("[session %s] dropping observation %s: %v", s.id, o.ID, err)
			dropped++
			continue
		}
		if !finitePose(o.Pose) {
			monitoring.Logf("[session %s] dropping observation %s: non-finite pose", s.id, o.ID)
			dropped++
			continue
		}
		if !s.kinds[o.Type.Kind()] {
			continue
		}
		if prev, ok := present[o.ID]; ok && prev.Seq > o.Seq {
			continue
		}
		present[o.ID] = o
	}
	return present, dropped
}

func finitePose(p tangram.RawPose) bool {
	for _, v := range []float64{p.Position.X, p.Position.Y, p.Rotation} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// anchorFrames builds the two comparison-frame mappers for anchor-relative
// mode: observations relative to the observed anchor pose, targets relative
// to the target bound to the anchor piece. Returns ok=false when no anchor
// is held or the anchor was not seen this tick.
func (s *Session) anchorFrames(present map[string]ObservedPiece) (obsFrame, tgtFrame func(tangram.RawPose) PlacedPose, ok bool) {
	anchorID := s.anchor.AnchorID()
	if anchorID == "" {
		return nil, nil, false
	}
	anchorObs, seen := present[anchorID]
	if !seen {
		return nil, nil, false
	}

	targetID, bound := s.binding[anchorID]
	if !bound {
		targetID, bound = s.bindAnchor(anchorObs)
		if !bound {
			// The anchor has no target slot left for its kind (an extra
			// twin on the table). Disqualify it so a bindable piece can be
			// promoted next tick.
			monitoring.Logf("[session %s] anchor %s has no bindable target; disqualifying", s.id, anchorID)
			s.anchor.Disqualify(anchorID)
			return nil, nil, false
		}
	}
	anchorTarget := s.targetsByID[targetID]

	obsFrame = func(p tangram.RawPose) PlacedPose { return anchorFrame(p, anchorObs.Pose) }
	tgtFrame = func(p tangram.RawPose) PlacedPose { return anchorFrame(p, anchorTarget.Pose) }
	return obsFrame, tgtFrame, true
}

// bindAnchor binds the anchor piece to the lowest-id unbound target of its
// kind. With no absolute frame and no prior bindings there is no metric to
// prefer one twin slot over the other; the choice is arbitrary but
// deterministic, and every later binding is made relative to it.
func (s *Session) bindAnchor(anchor ObservedPiece) (string, bool) {
	var ids []string
	for id, t := range s.targetsByID {
		if _, taken := s.bound[id]; taken {
			continue
		}
		if t.Type.Kind() == anchor.Type.Kind() {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return "", false
	}
	sort.Strings(ids)
	s.bind(anchor.ID, ids[0])
	return ids[0], true
}

// ensureBindings binds stable, unbound observed pieces to unbound targets of
// the same kind, kind by kind, using an optimal assignment over
// comparison-frame distances. Bindings freeze at first stabilization; they
// are never re-derived, so verdicts cannot flap between twin targets.
func (s *Session) ensureBindings(present map[string]ObservedPiece, obsFrame, tgtFrame func(tangram.RawPose) PlacedPose) {
	byKind := make(map[tangram.Kind][]ObservedPiece)
	for _, o := range present {
		if _, bound := s.binding[o.ID]; bound {
			continue
		}
		if !s.anchor.Stable(o.ID) {
			continue
		}
		byKind[o.Type.Kind()] = append(byKind[o.Type.Kind()], o)
	}
	if len(byKind) == 0 {
		return
	}

	for kind, obs := range byKind {
		var targets []TargetPiece
		for _, t := range s.puzzle.Targets {
			if t.Type.Kind() != kind {
				continue
			}
			if _, taken := s.bound[t.ID]; taken {
				continue
			}
			targets = append(targets, t)
		}
		if len(targets) == 0 {
			continue
		}
		sort.Slice(obs, func(i, j int) bool { return obs[i].ID < obs[j].ID })
		sort.Slice(targets, func(i, j int) bool { return targets[i].ID < targets[j].ID })

		cost := make([][]float64, len(obs))
		for i, o := range obs {
			cost[i] = make([]float64, len(targets))
			op := obsFrame(o.Pose)
			for j, t := range targets {
				cost[i][j] = geom.Distance(op.Position, tgtFrame(t.Pose).Position)
			}
		}
		for i, j := range solveAssignment(cost) {
			if j >= 0 {
				s.bind(obs[i].ID, targets[j].ID)
			}
		}
	}
}

func (s *Session) bind(observedID, targetID string) {
	s.binding[observedID] = targetID
	s.bound[targetID] = observedID
	monitoring.Logf("[session %s] bound piece %s to target %s", s.id, observedID, targetID)
}

// validateAll produces one verdict per target whose bound piece was seen
// this tick, ordered by target id.
func (s *Session) validateAll(present map[string]ObservedPiece, obsFrame, tgtFrame func(tangram.RawPose) PlacedPose) []Verdict {
	ids := make([]string, 0, len(s.targetsByID))
	for id := range s.targetsByID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var verdicts []Verdict
	for _, targetID := range ids {
		observedID, ok := s.bound[targetID]
		if !ok {
			continue
		}
		o, seen := present[observedID]
		if !seen {
			continue
		}
		t := s.targetsByID[targetID]
		res := Validate(t.Type, obsFrame(o.Pose), tgtFrame(t.Pose), s.cfg)
		verdicts = append(verdicts, Verdict{
			TargetID:      targetID,
			ObservedID:    observedID,
			Match:         res.Match,
			PositionError: res.PositionError,
			RotationError: res.RotationError,
			Branch:        res.Branch,
		})
	}
	return verdicts
}

// LastReport returns the most recent tick report.
func (s *Session) LastReport() TickReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReport
}

// PieceSnapshot is the current sighting of one observed piece, for the
// status page and board renderer.
type PieceSnapshot struct {
	ID       string            `json:"id"`
	Type     tangram.PieceType `json:"class_id"`
	Pose     tangram.RawPose   `json:"-"`
	Stable   bool              `json:"stable"`
	Moving   bool              `json:"moving"`
	TargetID string            `json:"target_id,omitempty"`
}

// Snapshot captures the session's externally visible state under one lock
// acquisition.
type Snapshot struct {
	ID          string          `json:"id"`
	PuzzleID    int64           `json:"puzzle_id"`
	PuzzleName  string          `json:"puzzle_name"`
	Mode        string          `json:"mode"`
	Source      string          `json:"source"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Last        TickReport      `json:"last"`
	Pieces      []PieceSnapshot `json:"pieces"`
	Targets     []TargetPiece   `json:"-"`
}

// Snapshot returns the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:         s.id,
		PuzzleID:   s.puzzle.ID,
		PuzzleName: s.puzzle.Name,
		Mode:       s.mode.String(),
		Source:     s.source.String(),
		StartedAt:  s.startedAt,
		Last:       s.lastReport,
		Targets:    s.puzzle.Targets,
	}
	if !s.completedAt.IsZero() {
		t := s.completedAt
		snap.CompletedAt = &t
	}
	ids := make([]string, 0, len(s.lastPresent))
	for id := range s.lastPresent {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		o := s.lastPresent[id]
		snap.Pieces = append(snap.Pieces, PieceSnapshot{
			ID:       id,
			Type:     o.Type,
			Pose:     o.Pose,
			Stable:   s.anchor.Stable(id),
			Moving:   o.Moving,
			TargetID: s.binding[id],
		})
	}
	return snap
}

// StartedAt returns the session creation time.
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}

// CompletedAt returns the first completion time and whether one occurred.
func (s *Session) CompletedAt() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completedAt, !s.completedAt.IsZero()
}

// LastObservedAt returns the time of the most recent batch, for idle
// expiry.
func (s *Session) LastObservedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastObserved.IsZero() {
		return s.startedAt
	}
	return s.lastObserved
}
