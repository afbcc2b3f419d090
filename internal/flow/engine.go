// Package flow implements the intake step machine.
//
// An Engine holds the collaborators (field extractor, address verifier, slot catalog)
// and is shared by any number of sessions. Each turn runs against one Session: the
// appointment and confirm steps are resolved locally, every other step calls the
// extractor, merges the result under first-write-wins, and then either asks a clarifying
// question or advances to the next step.
package flow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/BTreeMap/IntakePipe/internal/catalog"
	"github.com/BTreeMap/IntakePipe/internal/extractor"
	"github.com/BTreeMap/IntakePipe/internal/geocode"
	"github.com/BTreeMap/IntakePipe/internal/metrics"
	"github.com/BTreeMap/IntakePipe/internal/models"
)

// Default collaborator timeouts.
const (
	DefaultExtractTimeout = 30 * time.Second
	DefaultVerifyTimeout  = 10 * time.Second
)

// ErrSessionComplete is returned for turns on a session that already reached done.
var ErrSessionComplete = errors.New("intake session already complete")

// Engine processes turns. It holds no per-session state and is safe for concurrent use.
type Engine struct {
	extractor      extractor.Extractor
	verifier       geocode.Verifier
	catalog        *catalog.Catalog
	metrics        *metrics.IntakeMetrics
	extractTimeout time.Duration
	verifyTimeout  time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithExtractTimeout bounds each extractor call. Zero disables the bound.
func WithExtractTimeout(d time.Duration) Option {
	return func(e *Engine) { e.extractTimeout = d }
}

// WithVerifyTimeout bounds each address verifier call. Zero disables the bound.
func WithVerifyTimeout(d time.Duration) Option {
	return func(e *Engine) { e.verifyTimeout = d }
}

// WithMetrics records turn and transition counters.
func WithMetrics(m *metrics.IntakeMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine wires the collaborators.
func NewEngine(ext extractor.Extractor, ver geocode.Verifier, cat *catalog.Catalog, opts ...Option) (*Engine, error) {
	if ext == nil {
		return nil, errors.New("field extractor is required")
	}
	if ver == nil {
		return nil, errors.New("address verifier is required")
	}
	if cat == nil {
		return nil, errors.New("slot catalog is required")
	}
	e := &Engine{
		extractor:      ext,
		verifier:       ver,
		catalog:        cat,
		extractTimeout: DefaultExtractTimeout,
		verifyTimeout:  DefaultVerifyTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Catalog returns the slot catalog the engine books against.
func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

// HandleTurn processes one user message and returns the reply. Collaborator failures
// are reported in the reply with the step unchanged; the only error is ErrSessionComplete.
func (e *Engine) HandleTurn(ctx context.Context, sess *Session, msg string) (string, error) {
	if sess.step.Terminal() {
		return CompletedMessage, ErrSessionComplete
	}
	e.metrics.ObserveTurn(sess.step.String())
	slog.Debug("Engine.HandleTurn: processing turn", "session_id", sess.id, "step", sess.step)

	switch sess.step {
	case models.StepAppointment:
		return e.handleAppointment(sess, msg), nil
	case models.StepConfirm:
		return e.handleConfirm(sess, msg), nil
	}

	rule, ok := transitions[sess.step]
	if !ok {
		slog.Error("Engine.HandleTurn: no transition for step", "session_id", sess.id, "step", sess.step)
		return RetryMessage, nil
	}

	extraction, err := e.extract(ctx, sess, msg)
	if err != nil {
		if !errors.Is(err, extractor.ErrContractViolation) {
			e.metrics.ObserveFailure("extractor", failureReason(err))
			slog.Warn("Engine.HandleTurn: extraction failed, step unchanged", "session_id", sess.id, "step", sess.step, "error", err)
			return RetryMessage, nil
		}
		e.metrics.ObserveFailure("extractor", "contract_violation")
		slog.Warn("Engine.HandleTurn: extraction violated schema, treating as empty", "session_id", sess.id, "step", sess.step, "error", err)
		extraction = models.Extraction{}
	}

	written := Merge(&sess.state, extraction.Fields)
	slog.Debug("Engine.HandleTurn: merged extraction", "session_id", sess.id, "step", sess.step, "fields", written)

	if clarify, complete := rule.check(ctx, e, sess, extraction.Fields); !complete {
		return clarify, nil
	}
	e.advance(sess, rule.next)
	return e.prompt(sess), nil
}

func (e *Engine) extract(ctx context.Context, sess *Session, msg string) (models.Extraction, error) {
	if e.extractTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.extractTimeout)
		defer cancel()
	}
	return e.extractor.Extract(ctx, sess.step, sess.state.Clone(), msg)
}

func (e *Engine) verify(ctx context.Context, addr models.AddressRecord) geocode.Verdict {
	if e.verifyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.verifyTimeout)
		defer cancel()
	}
	return e.verifier.Verify(ctx, addr)
}

// advance moves the session to next, which must be the successor of the current step.
func (e *Engine) advance(sess *Session, next models.Step) {
	from := sess.step
	if want, ok := from.Next(); !ok || want != next {
		slog.Error("Engine.advance: refusing non-sequential transition", "session_id", sess.id, "from", from, "to", next)
		return
	}
	sess.step = next
	e.metrics.ObserveTransition(from.String(), next.String())
	slog.Info("Engine.advance: step advanced", "session_id", sess.id, "from", from, "to", next)
	if next.Terminal() {
		e.metrics.ObserveCompleted()
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "transport"
	}
}
