package handlers

import (
	"net/http"
	"os"
	"strconv"
	"strings"
)

const maxLogLines = 2000

// LogsHandler serves the tail of the rotating log file.
type LogsHandler struct {
	logFile string
}

func NewLogsHandler(logFile string) *LogsHandler {
	return &LogsHandler{logFile: logFile}
}

// Tail returns the last N lines of the current log file.
// GET /api/logs?lines=200
func (h *LogsHandler) Tail(w http.ResponseWriter, r *http.Request) {
	lines, _ := strconv.Atoi(r.URL.Query().Get("lines"))
	if lines < 1 {
		lines = 200
	}
	if lines > maxLogLines {
		lines = maxLogLines
	}

	data, err := os.ReadFile(h.logFile)
	if err != nil {
		if os.IsNotExist(err) {
			writeJSON(w, http.StatusOK, map[string]any{"lines": []string{}})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	all := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(all) > lines {
		all = all[len(all)-lines:]
	}
	writeJSON(w, http.StatusOK, map[string]any{"lines": all})
}
