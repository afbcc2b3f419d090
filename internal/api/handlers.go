package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/IntakePipe/internal/flow"
	"github.com/BTreeMap/IntakePipe/internal/models"
)

// maxTurnBodyBytes caps a turn request body.
const maxTurnBodyBytes = 64 << 10

// CatalogView is the body of GET /catalog.
type CatalogView struct {
	Providers []models.Provider `json:"providers"`
	Slots     []models.Slot     `json:"slots"`
}

// createSessionHandler handles POST /sessions
func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	snap := s.sessions.Create()
	slog.Info("Server.createSessionHandler: session created", "session_id", snap.SessionID)
	writeJSONResponse(w, http.StatusCreated, models.Success(models.TurnResult{
		SessionID: snap.SessionID,
		Step:      snap.Step,
		Message:   flow.Greeting(),
	}))
}

// getSessionHandler handles GET /sessions/{id}
func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	snap, err := s.sessions.Get(id)
	if err != nil {
		writeSessionError(w, "Server.getSessionHandler", id, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(snap))
}

// deleteSessionHandler handles DELETE /sessions/{id}
func (s *Server) deleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.sessions.Delete(id); err != nil {
		writeSessionError(w, "Server.deleteSessionHandler", id, err)
		return
	}
	slog.Info("Server.deleteSessionHandler: session deleted", "session_id", id)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Session deleted", nil))
}

// turnHandler handles POST /sessions/{id}/turns
func (s *Server) turnHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	id := r.PathValue("id")

	var req models.TurnRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTurnBodyBytes)).Decode(&req); err != nil {
		slog.Warn("Server.turnHandler: failed to decode JSON", "session_id", id, "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	if flow.IsQuit(req.Message) {
		snap, err := s.sessions.Get(id)
		if err == nil {
			err = s.sessions.Delete(id)
		}
		if err != nil {
			writeSessionError(w, "Server.turnHandler", id, err)
			return
		}
		slog.Info("Server.turnHandler: session ended by patient", "session_id", id, "step", snap.Step)
		writeJSONResponse(w, http.StatusOK, models.Success(models.TurnResult{
			SessionID: id,
			Step:      snap.Step,
			Message:   flow.GoodbyeMessage,
			Done:      true,
		}))
		return
	}

	var result models.TurnResult
	err := s.sessions.WithSession(id, func(sess *flow.Session) error {
		reply, err := s.engine.HandleTurn(r.Context(), sess, req.Message)
		result = models.TurnResult{SessionID: id, Step: sess.Step(), Message: reply, Done: sess.Done()}
		return err
	})
	if err != nil {
		writeSessionError(w, "Server.turnHandler", id, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

// catalogHandler handles GET /catalog
func (s *Server) catalogHandler(w http.ResponseWriter, r *http.Request) {
	cat := s.engine.Catalog()
	writeJSONResponse(w, http.StatusOK, models.Success(CatalogView{
		Providers: cat.Providers(),
		Slots:     cat.Slots(),
	}))
}
