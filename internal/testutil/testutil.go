// Package testutil provides common test utilities and helpers for IntakePipe tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/BTreeMap/IntakePipe/internal/catalog"
	"github.com/BTreeMap/IntakePipe/internal/flow"
	"github.com/BTreeMap/IntakePipe/internal/geocode"
	"github.com/BTreeMap/IntakePipe/internal/models"
)

// Envelope is the decoded API response with the result left raw.
type Envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// StepExtractor answers every step with a fixed, valid value for that step.
// It is safe for concurrent use.
type StepExtractor struct {
	mu    sync.Mutex
	calls int
}

// Extract implements extractor.Extractor.
func (s *StepExtractor) Extract(ctx context.Context, step models.Step, state models.IntakeState, utterance string) (models.Extraction, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	var f models.ExtractedFields
	switch step {
	case models.StepFullName:
		f.Patient = &models.ExtractedPatient{FullName: models.String("Jane Doe")}
	case models.StepDOB:
		f.Patient = &models.ExtractedPatient{DOB: models.String("01/31/1990")}
	case models.StepPayerName:
		f.Insurance = &models.ExtractedInsurance{PayerName: models.String("Aetna")}
	case models.StepAddress:
		addr := CompleteAddress()
		f.Demographics = &models.ExtractedDemographics{Address: &addr}
	case models.StepInsuranceID:
		f.Insurance = &models.ExtractedInsurance{InsuranceID: models.String("XYZ123")}
	case models.StepChiefComplaint:
		f.Medical = &models.ExtractedMedical{ChiefComplaint: models.String("headache")}
	}
	return models.Extraction{AssistantMessage: "ok", Fields: f}, nil
}

// Calls returns the number of Extract calls so far.
func (s *StepExtractor) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// CompleteAddress returns an address with all four subfields set.
func CompleteAddress() models.AddressRecord {
	return models.AddressRecord{
		Street: models.String("1 Main St"),
		City:   models.String("Springfield"),
		State:  models.String("IL"),
		Zip:    models.String("62701"),
	}
}

// NewTestEngine creates an engine over the seed catalog that accepts every complete address.
func NewTestEngine(t *testing.T, ext *StepExtractor, opts ...flow.Option) *flow.Engine {
	t.Helper()
	if ext == nil {
		ext = &StepExtractor{}
	}
	e, err := flow.NewEngine(ext, geocode.PassThrough{}, catalog.Default(), opts...)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return e
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes JSON response and validates the status field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus models.APIStatus) Envelope {
	t.Helper()
	var response Envelope
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
	if response.Status != string(expectedStatus) {
		t.Errorf("expected status '%s', got '%s' (message: %s)", expectedStatus, response.Status, response.Message)
	}
	return response
}

// DecodeResult unmarshals the envelope result into v.
func DecodeResult(t *testing.T, env Envelope, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Result, v); err != nil {
		t.Fatalf("failed to decode result: %v (%s)", err, string(env.Result))
	}
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	switch b := body.(type) {
	case nil:
		reqBody = bytes.NewBuffer(nil)
	case string:
		reqBody = bytes.NewBufferString(b)
	default:
		jsonData, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req := httptest.NewRequest(method, url, reqBody)
	req.Header.Set("Content-Type", "application/json")
	return req
}
