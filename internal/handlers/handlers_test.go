package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/openeduhub/metaextract/internal/llm"
	"github.com/openeduhub/metaextract/internal/models"
	"github.com/openeduhub/metaextract/internal/pipeline"
	"github.com/openeduhub/metaextract/internal/schema"
)

const testCoreSchema = `{
  "id": "core",
  "fields": [
    {"id": "title", "system": {"datatype": "string", "required": true}, "prompt": {"label": "Titel"}},
    {
      "id": "license",
      "system": {
        "datatype": "string",
        "vocabulary": {"type": "closed", "concepts": [{"label": "CC BY"}, {"label": "CC BY-SA"}]}
      },
      "prompt": {"label": "Lizenz"}
    }
  ],
  "output_template": {"title": "", "license": null}
}`

// echoGateway answers every extraction prompt with a fixed title and leaves
// everything else null.
type echoGateway struct{}

func (echoGateway) Invoke(_ context.Context, messages []llm.Message) (string, error) {
	prompt := messages[len(messages)-1].Content
	if strings.Contains(prompt, "Field: Titel") {
		return `{"value": "Ein Titel"}`, nil
	}
	return `{"value": null}`, nil
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "core.json"), []byte(testCoreSchema), 0644); err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.DiscardHandler)
	schemas := schema.NewRepository(dir, logger)
	newPipeline := func() *pipeline.Pipeline {
		return pipeline.New(schemas, echoGateway{}, nil, logger, pipeline.Options{})
	}
	return New(schemas, newPipeline, logger)
}

func createSession(t *testing.T, h *Handler, text string) models.ExtractionSession {
	t.Helper()
	body := strings.NewReader(`{"text": "` + text + `"}`)
	req := httptest.NewRequest("POST", "/api/sessions", body)
	rec := httptest.NewRecorder()
	h.HandleSessions(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("POST /api/sessions = %d, want 202: %s", rec.Code, rec.Body.String())
	}
	var session models.ExtractionSession
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("invalid session response: %v", err)
	}
	return session
}

// awaitDone polls the session until the background extraction finishes.
func awaitDone(t *testing.T, h *Handler, id string) models.ExtractionSession {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		req := httptest.NewRequest("GET", "/api/sessions/"+id, nil)
		rec := httptest.NewRecorder()
		h.HandleSessionDetail(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET session = %d: %s", rec.Code, rec.Body.String())
		}
		var session models.ExtractionSession
		if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
			t.Fatalf("invalid session response: %v", err)
		}
		if session.Status == models.SessionDone {
			return session
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("session never finished")
	return models.ExtractionSession{}
}

func TestSessionLifecycle(t *testing.T) {
	h := newTestHandler(t)

	created := createSession(t, h, "Ein Text")
	if created.Status != models.SessionRunning {
		t.Errorf("initial status = %q, want running", created.Status)
	}

	session := awaitDone(t, h, created.ID)
	if got := session.Document["title"]; got != "Ein Titel" {
		t.Errorf("document title = %v, want Ein Titel", got)
	}
	var title *models.FieldView
	for i := range session.Fields {
		if session.Fields[i].ID == "title" {
			title = &session.Fields[i]
		}
	}
	if title == nil || title.Status != "filled" {
		t.Errorf("title field view = %+v, want filled", title)
	}

	// Listing contains the session without the document payload.
	req := httptest.NewRequest("GET", "/api/sessions", nil)
	rec := httptest.NewRecorder()
	h.HandleSessions(rec, req)
	var list []models.ExtractionSession
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("invalid list response: %v", err)
	}
	if len(list) != 1 || list[0].ID != created.ID || list[0].Document != nil {
		t.Errorf("list = %+v, want one session without document", list)
	}

	// Delete and verify it is gone.
	req = httptest.NewRequest("DELETE", "/api/sessions/"+created.ID, nil)
	rec = httptest.NewRecorder()
	h.HandleSessionDetail(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("DELETE = %d, want 204", rec.Code)
	}
	req = httptest.NewRequest("GET", "/api/sessions/"+created.ID, nil)
	rec = httptest.NewRecorder()
	h.HandleSessionDetail(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET after delete = %d, want 404", rec.Code)
	}
}

func TestCreateSessionRequiresText(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest("POST", "/api/sessions", strings.NewReader(`{"text": "  "}`))
	rec := httptest.NewRecorder()
	h.HandleSessions(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty text = %d, want 400", rec.Code)
	}

	req = httptest.NewRequest("POST", "/api/sessions", strings.NewReader(`not json`))
	rec = httptest.NewRecorder()
	h.HandleSessions(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d, want 400", rec.Code)
	}
}

func TestEditFieldEndpoint(t *testing.T) {
	h := newTestHandler(t)
	created := createSession(t, h, "Ein Text")
	awaitDone(t, h, created.ID)

	body := strings.NewReader(`{"id": "license", "value": "cc bei"}`)
	req := httptest.NewRequest("PATCH", "/api/sessions/"+created.ID+"/fields", body)
	rec := httptest.NewRecorder()
	h.HandleSessionDetail(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("PATCH fields = %d: %s", rec.Code, rec.Body.String())
	}

	var session models.ExtractionSession
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatal(err)
	}
	for _, f := range session.Fields {
		if f.ID == "license" && f.Value != "CC BY" {
			t.Errorf("license = %v, want fuzzy-corrected CC BY", f.Value)
		}
	}

	// Vocabulary rejection surfaces as 422.
	body = strings.NewReader(`{"id": "license", "value": "WTFPL"}`)
	req = httptest.NewRequest("PATCH", "/api/sessions/"+created.ID+"/fields", body)
	rec = httptest.NewRecorder()
	h.HandleSessionDetail(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid edit = %d, want 422", rec.Code)
	}
}

func TestResetEndpoint(t *testing.T) {
	h := newTestHandler(t)
	created := createSession(t, h, "Ein Text")
	awaitDone(t, h, created.ID)

	req := httptest.NewRequest("POST", "/api/sessions/"+created.ID+"/reset", nil)
	rec := httptest.NewRecorder()
	h.HandleSessionDetail(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("reset = %d: %s", rec.Code, rec.Body.String())
	}

	var session models.ExtractionSession
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatal(err)
	}
	if len(session.Fields) != 0 || session.Progress != 0 {
		t.Errorf("session after reset = %+v, want empty state", session)
	}
}

func TestHandleSchemas(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest("GET", "/api/schemas", nil)
	rec := httptest.NewRecorder()
	h.HandleSchemas(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/schemas = %d", rec.Code)
	}
	var types []schema.ContentType
	if err := json.Unmarshal(rec.Body.Bytes(), &types); err != nil {
		t.Fatal(err)
	}
	if len(types) != 0 {
		t.Errorf("types = %+v, want none (core only)", types)
	}

	req = httptest.NewRequest("POST", "/api/schemas", nil)
	rec = httptest.NewRecorder()
	h.HandleSchemas(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /api/schemas = %d, want 405", rec.Code)
	}
}
