package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BTreeMap/IntakePipe/internal/flow"
	"github.com/BTreeMap/IntakePipe/internal/metrics"
	"github.com/BTreeMap/IntakePipe/internal/models"
	"github.com/BTreeMap/IntakePipe/internal/store"
	"github.com/BTreeMap/IntakePipe/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	engine := testutil.NewTestEngine(t, nil, flow.WithMetrics(metrics.NewIntakeMetrics(reg)))
	srv, err := NewServer(engine, store.NewInMemoryStore(), WithGatherer(reg))
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func createSession(t *testing.T, h http.Handler) models.TurnResult {
	t.Helper()
	rec := serve(h, testutil.CreateHTTPRequest(t, http.MethodPost, "/sessions", nil))
	testutil.AssertHTTPStatus(t, http.StatusCreated, rec.Code, "create session")
	env := testutil.AssertJSONResponse(t, rec, models.APIStatusOK)
	var res models.TurnResult
	testutil.DecodeResult(t, env, &res)
	return res
}

func turn(t *testing.T, h http.Handler, id, msg string) (*httptest.ResponseRecorder, models.TurnResult) {
	t.Helper()
	rec := serve(h, testutil.CreateHTTPRequest(t, http.MethodPost, "/sessions/"+id+"/turns", models.TurnRequest{Message: msg}))
	var res models.TurnResult
	if rec.Code == http.StatusOK {
		testutil.DecodeResult(t, testutil.AssertJSONResponse(t, rec, models.APIStatusOK), &res)
	}
	return rec, res
}

func TestCreateSession(t *testing.T) {
	res := createSession(t, newTestServer(t).Handler())
	if res.SessionID == "" {
		t.Error("expected session id")
	}
	if res.Step != models.StepFullName {
		t.Errorf("expected step full_name, got %s", res.Step)
	}
	if res.Message != flow.Greeting() {
		t.Errorf("expected greeting, got %q", res.Message)
	}
}

func TestSessionRunsToDone(t *testing.T) {
	h := newTestServer(t).Handler()
	id := createSession(t, h).SessionID

	steps := []models.Step{
		models.StepDOB, models.StepPayerName, models.StepAddress, models.StepInsuranceID,
		models.StepChiefComplaint, models.StepAppointment,
	}
	for _, want := range steps {
		rec, res := turn(t, h, id, "answer")
		if rec.Code != http.StatusOK || res.Step != want {
			t.Fatalf("expected %s (200), got %s (%d)", want, res.Step, rec.Code)
		}
	}
	if _, res := turn(t, h, id, "s3"); res.Step != models.StepConfirm {
		t.Fatalf("expected confirm, got %s", res.Step)
	}
	rec, res := turn(t, h, id, "yes")
	if rec.Code != http.StatusOK || !res.Done || res.Message != flow.ClosingMessage {
		t.Fatalf("expected closing message, got %d %+v", rec.Code, res)
	}

	rec, _ = turn(t, h, id, "hello again")
	testutil.AssertHTTPStatus(t, http.StatusConflict, rec.Code, "turn after done")
	env := testutil.AssertJSONResponse(t, rec, models.APIStatusError)
	if env.Message != flow.CompletedMessage {
		t.Errorf("unexpected message %q", env.Message)
	}

	rec = serve(h, testutil.CreateHTTPRequest(t, http.MethodGet, "/sessions/"+id, nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rec.Code, "get session")
	var snap models.SessionSnapshot
	testutil.DecodeResult(t, testutil.AssertJSONResponse(t, rec, models.APIStatusOK), &snap)
	if snap.Step != models.StepDone {
		t.Errorf("expected done, got %s", snap.Step)
	}
	if models.Value(snap.State.Appointment.SlotID) != "s3" || models.Value(snap.State.Appointment.ProviderID) != "p2" {
		t.Errorf("unexpected appointment %+v", snap.State.Appointment)
	}
	if models.Value(snap.State.Patient.DOB) != "1990-01-31" {
		t.Errorf("unexpected dob %q", models.Value(snap.State.Patient.DOB))
	}

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rec.Code, "metrics")
	for _, want := range []string{`intake_turns_total{step="confirm"} 1`, "intake_sessions_completed_total 1"} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestQuitDeletesSession(t *testing.T) {
	h := newTestServer(t).Handler()
	id := createSession(t, h).SessionID

	rec, res := turn(t, h, id, " Quit ")
	if rec.Code != http.StatusOK || res.Message != flow.GoodbyeMessage || !res.Done {
		t.Fatalf("expected goodbye, got %d %+v", rec.Code, res)
	}
	rec = serve(h, testutil.CreateHTTPRequest(t, http.MethodGet, "/sessions/"+id, nil))
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rec.Code, "get after quit")
}

func TestDeleteSession(t *testing.T) {
	h := newTestServer(t).Handler()
	id := createSession(t, h).SessionID

	rec := serve(h, testutil.CreateHTTPRequest(t, http.MethodDelete, "/sessions/"+id, nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rec.Code, "delete")
	rec = serve(h, testutil.CreateHTTPRequest(t, http.MethodDelete, "/sessions/"+id, nil))
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rec.Code, "second delete")
	rec, _ = turn(t, h, id, "hi")
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rec.Code, "turn on deleted session")
}

func TestTurnInvalidJSON(t *testing.T) {
	h := newTestServer(t).Handler()
	id := createSession(t, h).SessionID
	rec := serve(h, testutil.CreateHTTPRequest(t, http.MethodPost, "/sessions/"+id+"/turns", "{not json"))
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rec.Code, "invalid json")
	if env := testutil.AssertJSONResponse(t, rec, models.APIStatusError); env.Message != "Invalid JSON format" {
		t.Errorf("unexpected message %q", env.Message)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	rec := serve(newTestServer(t).Handler(), httptest.NewRequest(http.MethodGet, "/sessions", nil))
	testutil.AssertHTTPStatus(t, http.StatusMethodNotAllowed, rec.Code, "GET /sessions")
}

func TestCatalogHandler(t *testing.T) {
	rec := serve(newTestServer(t).Handler(), httptest.NewRequest(http.MethodGet, "/catalog", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rec.Code, "catalog")
	var view CatalogView
	testutil.DecodeResult(t, testutil.AssertJSONResponse(t, rec, models.APIStatusOK), &view)
	if len(view.Providers) != 3 || len(view.Slots) != 4 {
		t.Errorf("expected 3 providers and 4 slots, got %d and %d", len(view.Providers), len(view.Slots))
	}
}

func TestConcurrentSessions(t *testing.T) {
	h := newTestServer(t).Handler()

	ids := make([]string, 10)
	for i := range ids {
		ids[i] = createSession(t, h).SessionID
	}

	codes := make([]int, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/turns", strings.NewReader(`{"message":"Jane Doe"}`))
			codes[i] = serve(h, req).Code
		}(i, id)
	}
	wg.Wait()

	for i, id := range ids {
		testutil.AssertHTTPStatus(t, http.StatusOK, codes[i], "concurrent turn")
		rec := serve(h, testutil.CreateHTTPRequest(t, http.MethodGet, "/sessions/"+id, nil))
		var snap models.SessionSnapshot
		testutil.DecodeResult(t, testutil.AssertJSONResponse(t, rec, models.APIStatusOK), &snap)
		if snap.Step != models.StepDOB {
			t.Errorf("session %s: expected dob, got %s", id, snap.Step)
		}
	}
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	if _, err := NewServer(nil, store.NewInMemoryStore()); err == nil {
		t.Error("expected error without engine")
	}
	if _, err := NewServer(testutil.NewTestEngine(t, nil), nil); err == nil {
		t.Error("expected error without session store")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	srv := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}

func TestRunReportsListenError(t *testing.T) {
	srv := newTestServer(t)
	if err := srv.Run(context.Background(), "256.0.0.1:bad"); err == nil {
		t.Error("expected listen error")
	}
}
