package flow

import (
	"context"
	"log/slog"
	"strings"

	"github.com/BTreeMap/IntakePipe/internal/models"
)

// checkFunc decides whether the current step is complete after a merge. When it is not,
// it returns the clarifying question to ask.
type checkFunc func(ctx context.Context, e *Engine, sess *Session, fields models.ExtractedFields) (string, bool)

type transition struct {
	check checkFunc
	next  models.Step
}

// transitions covers every step that uses the field extractor. The appointment and
// confirm steps are handled by their own controllers; done has no outgoing transition.
var transitions = map[models.Step]transition{
	models.StepFullName: {
		check: requireField(func(s models.IntakeState) *string { return s.Patient.FullName },
			"Could you please provide your full name?"),
		next: models.StepDOB,
	},
	models.StepDOB: {
		check: requireField(func(s models.IntakeState) *string { return s.Patient.DOB },
			"Could you please provide your date of birth? (e.g. MM/DD/YYYY)"),
		next: models.StepPayerName,
	},
	models.StepPayerName: {
		check: requireField(func(s models.IntakeState) *string { return s.Insurance.PayerName },
			"Could you please provide the name of your insurance provider?"),
		next: models.StepAddress,
	},
	models.StepAddress: {
		check: checkAddress,
		next:  models.StepInsuranceID,
	},
	models.StepInsuranceID: {
		check: checkInsuranceID,
		next:  models.StepChiefComplaint,
	},
	models.StepChiefComplaint: {
		check: requireField(func(s models.IntakeState) *string { return s.Medical.ChiefComplaint },
			"Could you please briefly describe your chief medical complaint or reason for the visit?"),
		next: models.StepAppointment,
	},
}

func requireField(get func(models.IntakeState) *string, clarify string) checkFunc {
	return func(_ context.Context, _ *Engine, sess *Session, _ models.ExtractedFields) (string, bool) {
		if models.IsSet(get(sess.state)) {
			return "", true
		}
		return clarify, false
	}
}

// checkAddress requires all four subfields and an accepting verifier. An accepted address
// is replaced by the verifier's normalized form. An address rejected on its own merits is
// cleared so the patient can submit a corrected one.
func checkAddress(ctx context.Context, e *Engine, sess *Session, _ models.ExtractedFields) (string, bool) {
	addr := &sess.state.Demographics.Address
	if missing := addr.Missing(); len(missing) > 0 {
		return "Could you please provide your address? Missing fields: " + strings.Join(missing, ", "), false
	}

	verdict := e.verify(ctx, addr.Clone())
	if !verdict.Accepted {
		e.metrics.ObserveFailure("address_verifier", string(verdict.Reason))
		if verdict.Reason.AddressRejected() {
			*addr = models.AddressRecord{}
		}
		slog.Info("Engine.checkAddress: address rejected", "session_id", sess.id, "reason", verdict.Reason, "cleared", verdict.Reason.AddressRejected())
		return verdict.Message, false
	}
	if verdict.Normalized != nil {
		*addr = verdict.Normalized.Clone()
	}
	return "", true
}

// checkInsuranceID never blocks: the id is optional. An explicit skip with no id leaves it unset.
func checkInsuranceID(_ context.Context, _ *Engine, sess *Session, fields models.ExtractedFields) (string, bool) {
	if fields.InsuranceID() == nil && fields.SkipInsuranceID() {
		slog.Debug("Engine.checkInsuranceID: patient skipped insurance id", "session_id", sess.id)
	}
	return "", true
}
