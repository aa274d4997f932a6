package engine

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bemo-play/tangram-engine/internal/monitoring"
	"github.com/bemo-play/tangram-engine/internal/timeutil"
)

// PlacementRecord is one piece's placement result at the moment a puzzle
// completed.
type PlacementRecord struct {
	TargetID      string
	ObservedID    string
	PositionError float64
	RotationError float64
	Branch        int
}

// CompletionRecord is the persistence payload emitted once per session on
// the completion edge.
type CompletionRecord struct {
	SessionID   string
	PuzzleID    int64
	CompletedAt time.Time
	Duration    time.Duration
	Placements  []PlacementRecord
}

// Recorder persists completion records. The SQLite store implements it;
// tests substitute a stub. A nil Recorder disables persistence.
type Recorder interface {
	SessionCompleted(rec CompletionRecord) error
}

// Manager owns session lifecycle: creation, lookup, routing of vision
// frames to the single attached table session, persistence of completion
// events and idle expiry. Each session's mutable state stays its own; the
// manager only holds the registry.
type Manager struct {
	mu       sync.Mutex
	clock    timeutil.Clock
	rec      Recorder
	sessions map[string]*Session

	// visionID names the session currently fed by the vision link. Vision
	// deployments run one table session at a time.
	visionID string

	framesRouted  uint64
	framesDropped uint64
}

// NewManager builds a session manager. clock may be nil for real time.
func NewManager(rec Recorder, clock timeutil.Clock) *Manager {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Manager{
		clock:    clock,
		rec:      rec,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session for a puzzle and registers it. Vision-sourced
// sessions also become the vision frame target, displacing any previous
// one.
func (m *Manager) Create(puzzle Puzzle, mode Mode, source InputSource, cfg Config) (*Session, error) {
	s, err := NewSession(uuid.NewString(), puzzle, mode, source, cfg, m.clock)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID()] = s
	if source == SourceVision {
		if m.visionID != "" {
			monitoring.Logf("[manager] vision link moves from session %s to %s", m.visionID, s.ID())
		}
		m.visionID = s.ID()
	}
	monitoring.Logf("[manager] session %s started (puzzle %q, mode %s, source %s)",
		s.ID(), puzzle.Name, mode, source)
	return s, nil
}

// Get returns a session by id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Sessions returns all registered sessions ordered by start time.
func (m *Manager) Sessions() []*Session {
	m.mu.Lock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt().Before(out[j].StartedAt()) })
	return out
}

// Observe routes a touch observation batch to a session and persists any
// completion edge.
func (m *Manager) Observe(id string, batch []ObservedPiece) (TickReport, error) {
	s, ok := m.Get(id)
	if !ok {
		return TickReport{}, fmt.Errorf("engine: no session %s", id)
	}
	report := s.Observe(batch)
	m.handleEvent(s, report)
	return report, nil
}

// ObserveVision feeds a frame's observations to the attached vision
// session. Frames with no session attached are counted and dropped.
func (m *Manager) ObserveVision(batch []ObservedPiece) (TickReport, bool) {
	m.mu.Lock()
	s := m.sessions[m.visionID]
	if s == nil {
		m.framesDropped++
		m.mu.Unlock()
		return TickReport{}, false
	}
	m.framesRouted++
	m.mu.Unlock()

	report := s.Observe(batch)
	m.handleEvent(s, report)
	return report, true
}

// VisionSession returns the session currently receiving vision frames.
func (m *Manager) VisionSession() (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[m.visionID]
	return s, ok
}

// handleEvent persists the completion edge. Recorder failures are logged,
// never propagated: losing a stats row must not disturb a running game.
func (m *Manager) handleEvent(s *Session, report TickReport) {
	if report.Event != EventCompleted || m.rec == nil {
		return
	}
	completedAt, ok := s.CompletedAt()
	if !ok {
		return
	}
	rec := CompletionRecord{
		SessionID:   s.ID(),
		PuzzleID:    s.PuzzleID(),
		CompletedAt: completedAt,
		Duration:    completedAt.Sub(s.StartedAt()),
	}
	for _, v := range report.Verdicts {
		rec.Placements = append(rec.Placements, PlacementRecord{
			TargetID:      v.TargetID,
			ObservedID:    v.ObservedID,
			PositionError: v.PositionError,
			RotationError: v.RotationError,
			Branch:        v.Branch,
		})
	}
	if err := m.rec.SessionCompleted(rec); err != nil {
		monitoring.Logf("[manager] recording completion of session %s: %v", s.ID(), err)
	}
}

// ExpireIdle drops sessions with no observations for longer than maxIdle
// and returns how many were removed. The attached vision session detaches
// when expired.
func (m *Manager) ExpireIdle(maxIdle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	removed := 0
	for id, s := range m.sessions {
		if now.Sub(s.LastObservedAt()) <= maxIdle {
			continue
		}
		delete(m.sessions, id)
		if m.visionID == id {
			m.visionID = ""
		}
		removed++
		monitoring.Logf("[manager] expired idle session %s", id)
	}
	return removed
}

// Stats reports frame routing counters for the status page.
func (m *Manager) Stats() (routed, dropped uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.framesRouted, m.framesDropped
}
