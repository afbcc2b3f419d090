package flow

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/BTreeMap/IntakePipe/internal/models"
)

var positionalPick = regexp.MustCompile(`^(\d+)\.(\d+)$`)

// handleAppointment resolves the patient's choice to a provider and slot. Inputs are tried
// in order: "menu"/"list", a slot id, then "<provider>.<slot>" 1-based positions.
func (e *Engine) handleAppointment(sess *Session, msg string) string {
	choice := strings.ToLower(strings.TrimSpace(msg))

	if choice == "menu" || choice == "list" {
		return appointmentMenu(e.catalog)
	}

	if slot, ok := e.catalog.Slot(choice); ok {
		providerID := slot.ProviderID
		if p, ok := e.catalog.Provider(slot.ProviderID); ok {
			providerID = p.ID
		} else {
			slog.Warn("Engine.handleAppointment: slot references unknown provider", "session_id", sess.id, "slot_id", slot.ID, "provider_id", slot.ProviderID)
		}
		return e.book(sess, providerID, slot.ID)
	}

	if m := positionalPick.FindStringSubmatch(choice); m != nil {
		pi, errP := strconv.Atoi(m[1])
		si, errS := strconv.Atoi(m[2])
		if errP == nil && errS == nil {
			if p, s, ok := e.catalog.At(pi, si); ok {
				return e.book(sess, p.ID, s.ID)
			}
		}
	}

	slog.Debug("Engine.handleAppointment: unrecognized selection", "session_id", sess.id)
	return AppointmentHelp
}

func (e *Engine) book(sess *Session, providerID, slotID string) string {
	sess.state.Appointment.ProviderID = models.String(providerID)
	sess.state.Appointment.SlotID = models.String(slotID)
	slog.Info("Engine.book: slot selected", "session_id", sess.id, "provider_id", providerID, "slot_id", slotID)
	e.advance(sess, models.StepConfirm)
	return e.prompt(sess)
}
