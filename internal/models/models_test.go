package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestErrorResponse(t *testing.T) {
	r := Error("boom")
	if r.Status != string(APIStatusError) || r.Message != "boom" || r.Result != nil {
		t.Errorf("unexpected error response: %+v", r)
	}
}

func TestSuccessWithMessage(t *testing.T) {
	r := SuccessWithMessage("created", map[string]string{"id": "x"})
	if r.Status != string(APIStatusOK) || r.Message != "created" || r.Result == nil {
		t.Errorf("unexpected success response: %+v", r)
	}
}

func TestTurnResultJSONUsesStepName(t *testing.T) {
	b, err := json.Marshal(TurnResult{SessionID: "abc", Step: StepConfirm, Message: "m"})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(b), `"step":"confirm"`) {
		t.Errorf("expected step name in JSON, got %s", b)
	}
}
