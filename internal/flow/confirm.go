package flow

import (
	"log/slog"
	"strings"

	"github.com/BTreeMap/IntakePipe/internal/models"
)

var (
	affirmative = map[string]bool{"yes": true, "y": true, "confirm": true, "confirmed": true, "looks good": true}
	negative    = map[string]bool{"no": true, "n": true, "change": true, "edit": true}
)

// handleConfirm finishes the intake on yes, restarts from scratch on no, and re-prompts otherwise.
func (e *Engine) handleConfirm(sess *Session, msg string) string {
	answer := strings.TrimRight(strings.ToLower(strings.TrimSpace(msg)), ".!")

	switch {
	case affirmative[answer]:
		e.advance(sess, models.StepDone)
		return ClosingMessage
	case negative[answer]:
		from := sess.step
		sess.reset()
		e.metrics.ObserveRestarted()
		e.metrics.ObserveTransition(from.String(), sess.step.String())
		slog.Info("Engine.handleConfirm: intake restarted", "session_id", sess.id)
		return RestartMessage
	default:
		return ConfirmReprompt
	}
}
