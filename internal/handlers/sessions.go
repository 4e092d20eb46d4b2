package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openeduhub/metaextract/internal/models"
	"github.com/openeduhub/metaextract/internal/storage"
)

// HandleSessions serves the session collection: POST starts an extraction,
// GET lists sessions.
func (h *Handler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "POST":
		h.createSession(w, r)
	case "GET":
		sessions := h.sessionStore.List()
		views := make([]models.ExtractionSession, 0, len(sessions))
		for _, session := range sessions {
			views = append(views, h.view(session, false))
		}
		h.writeJSON(w, views)
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		h.writeError(w, "Field 'text' is required", http.StatusBadRequest)
		return
	}

	session := &storage.Session{
		ID:        uuid.NewString(),
		Text:      req.Text,
		Status:    models.SessionRunning,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		Pipeline:  h.newPipeline(),
	}
	h.sessionStore.Set(session.ID, session)

	// Extraction runs in the background; clients poll the session for
	// progress. The request context ends with this response, so the run gets
	// its own.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if _, err := session.Pipeline.Run(ctx, req.Text); err != nil {
			h.logger.Error("Extraction run failed", "session_id", session.ID, "error", err)
		}
		h.sessionStore.Update(session.ID, func(s *storage.Session) {
			s.Status = models.SessionDone
		})
	}()

	h.logger.Info("Extraction session started", "session_id", session.ID, "text_length", len(req.Text))
	w.WriteHeader(http.StatusAccepted)
	snapshot, _ := h.sessionStore.Snapshot(session.ID)
	h.writeJSON(w, h.view(snapshot, false))
}

// HandleSessionDetail serves one session: GET returns state and document,
// PATCH applies a field edit, DELETE removes the session. The subpath
// /reset restarts the session's state.
func (h *Handler) HandleSessionDetail(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	sessionID, action, _ := strings.Cut(rest, "/")

	session, ok := h.getSessionOrError(w, sessionID)
	if !ok {
		return
	}

	switch {
	case action == "reset" && r.Method == "POST":
		session.Pipeline.Reset()
		h.sessionStore.Update(sessionID, func(s *storage.Session) {
			s.Status = models.SessionDone
		})
		session, _ = h.sessionStore.Snapshot(sessionID)
		h.writeJSON(w, h.view(session, false))
	case action == "fields" && r.Method == "PATCH":
		h.editField(w, r, session)
	case action == "" && r.Method == "GET":
		h.writeJSON(w, h.view(session, true))
	case action == "" && r.Method == "DELETE":
		h.sessionStore.Delete(sessionID)
		w.WriteHeader(http.StatusNoContent)
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// editField applies a user correction to one field or sub-field.
func (h *Handler) editField(w http.ResponseWriter, r *http.Request, session storage.Session) {
	var req struct {
		ID    string `json:"id"`
		Path  string `json:"path,omitempty"`
		Index *int   `json:"index,omitempty"`
		Value any    `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		h.writeError(w, "Field 'id' is required", http.StatusBadRequest)
		return
	}

	var err error
	if req.Path != "" {
		index := -1
		if req.Index != nil {
			index = *req.Index
		}
		err = session.Pipeline.EditSub(r.Context(), req.ID, req.Path, index, req.Value)
	} else {
		err = session.Pipeline.EditField(r.Context(), req.ID, req.Value)
	}
	if err != nil {
		h.writeError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	h.sessionStore.Update(session.ID, func(s *storage.Session) {})
	h.writeJSON(w, h.view(session, true))
}
