package handlers

import (
	"errors"
	"net/http"

	"boxdsync/services/scheduler"
	boxdsync "boxdsync/services/sync"
)

// SyncHandler exposes run-now, status, and the last run report.
type SyncHandler struct {
	schedulerService *scheduler.Service
	syncService      *boxdsync.Service
}

func NewSyncHandler(schedulerService *scheduler.Service, syncService *boxdsync.Service) *SyncHandler {
	return &SyncHandler{schedulerService: schedulerService, syncService: syncService}
}

// RunNow starts a reconciliation in the background.
// POST /api/sync/run
func (h *SyncHandler) RunNow(w http.ResponseWriter, r *http.Request) {
	if err := h.schedulerService.RunNow(); err != nil {
		if errors.Is(err, scheduler.ErrAlreadyRunning) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// Status returns the scheduler state.
// GET /api/sync/status
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.schedulerService.GetStatus())
}

// Report returns the most recent completed run report.
// GET /api/sync/report
func (h *SyncHandler) Report(w http.ResponseWriter, r *http.Request) {
	report := h.syncService.LastReport()
	if report == nil {
		writeError(w, http.StatusNotFound, "no sync run has completed yet")
		return
	}
	writeJSON(w, http.StatusOK, report)
}
