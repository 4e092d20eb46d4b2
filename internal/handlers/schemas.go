package handlers

import "net/http"

// HandleSchemas lists the content-type schemas available for detection.
func (h *Handler) HandleSchemas(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	types, err := h.schemas.ContentTypes()
	if err != nil {
		h.writeError(w, "Failed to list schemas: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, types)
}
