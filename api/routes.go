package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/gorilla/mux"

	"boxdsync/handlers"
)

// corsMiddleware handles CORS for API routes
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// apiKeyMiddleware requires X-API-Key on anything that mutates state. Reads
// stay open: the service binds to the local network.
func apiKeyMiddleware(apiKey string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			provided := r.Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"missing or invalid API key"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// handleOptions handles OPTIONS requests for CORS preflight
func handleOptions(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Register mounts API endpoints onto the provided router.
func Register(
	r *mux.Router,
	apiKey string,
	settingsHandler *handlers.SettingsHandler,
	accountsHandler *handlers.AccountsHandler,
	syncHandler *handlers.SyncHandler,
	activityHandler *handlers.ActivityHandler,
	jellyfinHandler *handlers.JellyfinHandler,
	logsHandler *handlers.LogsHandler,
) {
	api := r.PathPrefix("/api").Subrouter()
	api.Use(corsMiddleware)
	api.Use(apiKeyMiddleware(apiKey))

	api.HandleFunc("/settings", settingsHandler.GetSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings", settingsHandler.PutSettings).Methods(http.MethodPut)
	api.HandleFunc("/settings", handleOptions).Methods(http.MethodOptions)

	api.HandleFunc("/accounts", accountsHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/accounts", accountsHandler.Create).Methods(http.MethodPost)
	api.HandleFunc("/accounts", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/accounts/{accountID}", accountsHandler.Update).Methods(http.MethodPut)
	api.HandleFunc("/accounts/{accountID}", accountsHandler.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/accounts/{accountID}", handleOptions).Methods(http.MethodOptions)

	api.HandleFunc("/sync/run", syncHandler.RunNow).Methods(http.MethodPost)
	api.HandleFunc("/sync/run", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/sync/status", syncHandler.Status).Methods(http.MethodGet)
	api.HandleFunc("/sync/status", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/sync/report", syncHandler.Report).Methods(http.MethodGet)
	api.HandleFunc("/sync/report", handleOptions).Methods(http.MethodOptions)

	api.HandleFunc("/activity", activityHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/activity", handleOptions).Methods(http.MethodOptions)

	api.HandleFunc("/jellyfin/users", jellyfinHandler.Users).Methods(http.MethodGet)
	api.HandleFunc("/jellyfin/users", handleOptions).Methods(http.MethodOptions)

	api.HandleFunc("/logs", logsHandler.Tail).Methods(http.MethodGet)
	api.HandleFunc("/logs", handleOptions).Methods(http.MethodOptions)
}
