package flow

import "github.com/BTreeMap/IntakePipe/internal/models"

// Session is one intake conversation: the accumulated record and the current step.
// A Session has a single owner; callers serialize turns on it.
type Session struct {
	id    string
	state models.IntakeState
	step  models.Step
}

// NewSession creates a session at the first step with an empty record.
func NewSession(id string) *Session {
	return &Session{id: id, state: models.EmptyState(), step: models.StepFullName}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Step returns the current step.
func (s *Session) Step() models.Step { return s.step }

// State returns a copy of the accumulated record.
func (s *Session) State() models.IntakeState { return s.state.Clone() }

// Done reports whether the session reached the terminal step.
func (s *Session) Done() bool { return s.step.Terminal() }

// Snapshot returns the externally visible view of the session.
func (s *Session) Snapshot() models.SessionSnapshot {
	return models.SessionSnapshot{SessionID: s.id, Step: s.step, State: s.State()}
}

// reset discards everything collected and returns to the first step.
func (s *Session) reset() {
	s.state = models.EmptyState()
	s.step = models.StepFullName
}
