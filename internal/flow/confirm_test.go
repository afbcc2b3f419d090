package flow

import (
	"reflect"
	"testing"

	"github.com/BTreeMap/IntakePipe/internal/metrics"
	"github.com/BTreeMap/IntakePipe/internal/models"
	"github.com/prometheus/client_golang/prometheus"
)

func bookedSession() *Session {
	sess := sessionAt(models.StepConfirm)
	sess.state.Appointment.ProviderID = models.String("p1")
	sess.state.Appointment.SlotID = models.String("s1")
	return sess
}

func TestHandleConfirm_Yes(t *testing.T) {
	for _, in := range []string{"yes", "Y", "Confirm.", "looks good!"} {
		t.Run(in, func(t *testing.T) {
			e := newTestEngine(t, nil, nil)
			sess := bookedSession()
			if reply := mustTurn(t, e, sess, in); reply != ClosingMessage {
				t.Errorf("expected closing message, got %q", reply)
			}
			if !sess.Done() {
				t.Errorf("expected done, got %s", sess.Step())
			}
			if models.Value(sess.State().Appointment.SlotID) != "s1" {
				t.Error("confirmed record must be kept")
			}
		})
	}
}

func TestHandleConfirm_NoRestarts(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := newTestEngine(t, nil, nil, WithMetrics(metrics.NewIntakeMetrics(reg)))
	sess := bookedSession()
	if reply := mustTurn(t, e, sess, "no"); reply != RestartMessage {
		t.Errorf("expected restart message, got %q", reply)
	}
	if sess.Step() != models.StepFullName {
		t.Errorf("expected full_name, got %s", sess.Step())
	}
	if !reflect.DeepEqual(sess.State(), models.EmptyState()) {
		t.Errorf("expected empty record after restart, got %+v", sess.State())
	}
}

func TestHandleConfirm_RestartCollectsAgain(t *testing.T) {
	ext := (&scriptedExtractor{}).push(nameFields("John Smith"))
	e := newTestEngine(t, ext, nil)
	sess := bookedSession()
	mustTurn(t, e, sess, "change")
	mustTurn(t, e, sess, "John Smith")
	if got := models.Value(sess.State().Patient.FullName); got != "John Smith" {
		t.Errorf("expected new name after restart, got %q", got)
	}
	if sess.Step() != models.StepDOB {
		t.Errorf("expected dob, got %s", sess.Step())
	}
}

func TestHandleConfirm_Other(t *testing.T) {
	for _, in := range []string{"maybe", "yes please", ""} {
		t.Run(in, func(t *testing.T) {
			e := newTestEngine(t, nil, nil)
			sess := bookedSession()
			before := sess.State()
			if reply := mustTurn(t, e, sess, in); reply != ConfirmReprompt {
				t.Errorf("expected reprompt, got %q", reply)
			}
			if sess.Step() != models.StepConfirm {
				t.Errorf("expected confirm, got %s", sess.Step())
			}
			if !reflect.DeepEqual(sess.State(), before) {
				t.Error("record must be unchanged")
			}
		})
	}
}
