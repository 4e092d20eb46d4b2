package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/openeduhub/metaextract/internal/models"
	"github.com/openeduhub/metaextract/internal/pipeline"
	"github.com/openeduhub/metaextract/internal/schema"
	"github.com/openeduhub/metaextract/internal/storage"
)

type Handler struct {
	sessionStore *storage.SessionStore
	schemas      *schema.Repository
	newPipeline  func() *pipeline.Pipeline
	logger       *slog.Logger
}

// New creates the API handler. newPipeline builds one pipeline per session.
func New(schemas *schema.Repository, newPipeline func() *pipeline.Pipeline, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		sessionStore: storage.New(),
		schemas:      schemas,
		newPipeline:  newPipeline,
		logger:       logger,
	}
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Unable to encode JSON response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	h.logger.Error(message)
	http.Error(w, message, code)
}

func (h *Handler) getSessionOrError(w http.ResponseWriter, sessionID string) (storage.Session, bool) {
	session, exists := h.sessionStore.Snapshot(sessionID)
	if !exists {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return storage.Session{}, false
	}
	return session, true
}

// view renders a session for the API. The reconciled document is only
// attached on detail responses.
func (h *Handler) view(session storage.Session, includeDocument bool) models.ExtractionSession {
	out := models.ExtractionSession{
		ID:        session.ID,
		Text:      session.Text,
		Status:    session.Status,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
		Fields:    []models.FieldView{},
	}
	if session.Pipeline == nil {
		return out
	}

	if det := session.Pipeline.Detected(); det != nil {
		out.Schema = det.Schema
		out.Confidence = det.Confidence
	}

	snap := session.Pipeline.Snapshot()
	out.Progress = snap.Progress
	for _, id := range snap.Order {
		st := snap.States[id]
		fv := models.FieldView{
			ID:         id,
			Label:      st.Field.Prompt.Label,
			Group:      st.Field.Group,
			Status:     string(st.Status),
			Value:      st.Value,
			Confidence: st.Confidence,
			Error:      st.Err,
		}
		for _, sub := range st.Subs {
			fv.Subs = append(fv.Subs, models.SubView{
				Path:   sub.Path,
				Index:  sub.Index,
				Status: string(sub.Status),
				Value:  sub.Value,
			})
		}
		out.Fields = append(out.Fields, fv)
	}

	if includeDocument {
		out.Document = session.Pipeline.Document()
	}
	return out
}
