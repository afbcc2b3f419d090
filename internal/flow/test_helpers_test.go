package flow

import (
	"context"
	"testing"

	"github.com/BTreeMap/IntakePipe/internal/catalog"
	"github.com/BTreeMap/IntakePipe/internal/geocode"
	"github.com/BTreeMap/IntakePipe/internal/models"
)

// scriptedExtractor returns queued results in order, then empty extractions.
type scriptedExtractor struct {
	results []extractResult
	calls   int
	steps   []models.Step
}

type extractResult struct {
	fields models.ExtractedFields
	err    error
}

func (s *scriptedExtractor) push(fields models.ExtractedFields) *scriptedExtractor {
	s.results = append(s.results, extractResult{fields: fields})
	return s
}

func (s *scriptedExtractor) fail(err error) *scriptedExtractor {
	s.results = append(s.results, extractResult{err: err})
	return s
}

func (s *scriptedExtractor) Extract(ctx context.Context, step models.Step, state models.IntakeState, utterance string) (models.Extraction, error) {
	s.calls++
	s.steps = append(s.steps, step)
	if len(s.results) == 0 {
		return models.Extraction{}, nil
	}
	r := s.results[0]
	s.results = s.results[1:]
	if r.err != nil {
		return models.Extraction{}, r.err
	}
	return models.Extraction{AssistantMessage: "ok", Fields: r.fields}, nil
}

// fakeVerifier returns a fixed verdict and records the addresses it saw.
type fakeVerifier struct {
	verdicts []geocode.Verdict
	seen     []models.AddressRecord
}

func (f *fakeVerifier) Verify(ctx context.Context, addr models.AddressRecord) geocode.Verdict {
	f.seen = append(f.seen, addr)
	if len(f.verdicts) == 0 {
		n := addr.Clone()
		return geocode.Verdict{Accepted: true, Reason: geocode.ReasonOK, Message: "OK", Normalized: &n}
	}
	v := f.verdicts[0]
	if len(f.verdicts) > 1 {
		f.verdicts = f.verdicts[1:]
	}
	return v
}

func newTestEngine(t *testing.T, ext *scriptedExtractor, ver *fakeVerifier, opts ...Option) *Engine {
	t.Helper()
	if ext == nil {
		ext = &scriptedExtractor{}
	}
	if ver == nil {
		ver = &fakeVerifier{}
	}
	e, err := NewEngine(ext, ver, catalog.Default(), opts...)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return e
}

func nameFields(name string) models.ExtractedFields {
	return models.ExtractedFields{Patient: &models.ExtractedPatient{FullName: models.String(name)}}
}

func dobFields(dob string) models.ExtractedFields {
	return models.ExtractedFields{Patient: &models.ExtractedPatient{DOB: models.String(dob)}}
}

func payerFields(payer string) models.ExtractedFields {
	return models.ExtractedFields{Insurance: &models.ExtractedInsurance{PayerName: models.String(payer)}}
}

func complaintFields(cc string) models.ExtractedFields {
	return models.ExtractedFields{Medical: &models.ExtractedMedical{ChiefComplaint: models.String(cc)}}
}

func addressFields(street, city, state, zip string) models.ExtractedFields {
	ptr := func(s string) *string {
		if s == "" {
			return nil
		}
		return models.String(s)
	}
	return models.ExtractedFields{Demographics: &models.ExtractedDemographics{Address: &models.AddressRecord{
		Street: ptr(street), City: ptr(city), State: ptr(state), Zip: ptr(zip),
	}}}
}

func skipFields() models.ExtractedFields {
	yes := true
	return models.ExtractedFields{Intent: &models.ExtractedIntent{SkipInsuranceID: &yes}}
}

func mustTurn(t *testing.T, e *Engine, sess *Session, msg string) string {
	t.Helper()
	reply, err := e.HandleTurn(context.Background(), sess, msg)
	if err != nil {
		t.Fatalf("HandleTurn(%q) at %s: unexpected error: %v", msg, sess.Step(), err)
	}
	return reply
}

// sessionAt returns a session at step with a fully populated record.
func sessionAt(step models.Step) *Session {
	sess := NewSession("test-session")
	sess.state.Patient.FullName = models.String("Jane Doe")
	sess.state.Patient.DOB = models.String("1990-01-31")
	sess.state.Insurance.PayerName = models.String("Aetna")
	sess.state.Medical.ChiefComplaint = models.String("headache")
	sess.state.Demographics.Address = models.AddressRecord{
		Street: models.String("1 Main St"), City: models.String("Springfield"),
		State: models.String("IL"), Zip: models.String("62701"),
	}
	sess.step = step
	return sess
}
