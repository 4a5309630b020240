package handlers

import (
	"net/http"
	"strconv"

	"boxdsync/services/activity"
)

// ActivityHandler serves the audit trail.
type ActivityHandler struct {
	service *activity.Service
}

func NewActivityHandler(service *activity.Service) *ActivityHandler {
	return &ActivityHandler{service: service}
}

// List returns one page of entries, newest first.
// GET /api/activity?limit=50&offset=0
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	page, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, page)
}
