package testutil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BTreeMap/IntakePipe/internal/models"
)

func TestStepExtractorCoversEveryExtractorStep(t *testing.T) {
	ext := &StepExtractor{}
	steps := []models.Step{
		models.StepFullName, models.StepDOB, models.StepPayerName, models.StepAddress,
		models.StepInsuranceID, models.StepChiefComplaint,
	}
	for _, step := range steps {
		out, err := ext.Extract(context.Background(), step, models.EmptyState(), "anything")
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", step, err)
		}
		if out.Fields == (models.ExtractedFields{}) {
			t.Errorf("%s: expected a populated extraction", step)
		}
	}
	if ext.Calls() != len(steps) {
		t.Errorf("expected %d calls, got %d", len(steps), ext.Calls())
	}
}

func TestCompleteAddress(t *testing.T) {
	if !CompleteAddress().Complete() {
		t.Error("expected a complete address")
	}
}

func TestNewTestEngine(t *testing.T) {
	e := NewTestEngine(t, nil)
	if e.Catalog() == nil {
		t.Fatal("expected seed catalog")
	}
}

func TestAssertJSONResponse(t *testing.T) {
	rr := httptest.NewRecorder()
	rr.Header().Set("Content-Type", "application/json")
	rr.WriteString(`{"status":"ok","result":{"n":1}}`)
	env := AssertJSONResponse(t, rr, models.APIStatusOK)
	var out struct {
		N int `json:"n"`
	}
	DecodeResult(t, env, &out)
	if out.N != 1 {
		t.Errorf("expected n=1, got %d", out.N)
	}
}

func TestCreateHTTPRequest(t *testing.T) {
	tests := []struct {
		name string
		body interface{}
		want string
	}{
		{"nil body", nil, ""},
		{"raw string", "{bad", "{bad"},
		{"struct", models.TurnRequest{Message: "hi"}, `{"message":"hi"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := CreateHTTPRequest(t, http.MethodPost, "/sessions", tt.body)
			got, err := io.ReadAll(req.Body)
			if err != nil {
				t.Fatalf("read body: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("expected body %q, got %q", tt.want, string(got))
			}
			if req.Header.Get("Content-Type") != "application/json" {
				t.Error("expected JSON content type")
			}
		})
	}
}
