package handlers

import (
	"encoding/json"
	"net/http"

	"boxdsync/config"
)

// redactedSecret replaces stored credentials in API responses. A PUT that
// sends the placeholder back keeps the stored value.
const redactedSecret = "__redacted__"

type SettingsHandler struct {
	Manager *config.Manager
}

func NewSettingsHandler(m *config.Manager) *SettingsHandler {
	return &SettingsHandler{Manager: m}
}

func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.Manager.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, redactSettings(s))
}

func (h *SettingsHandler) PutSettings(w http.ResponseWriter, r *http.Request) {
	var incoming config.Settings
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	stored, err := h.Manager.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	restoreSecrets(&incoming, stored)

	if err := h.Manager.Save(incoming); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, redactSettings(incoming))
}

func redactSettings(s config.Settings) config.Settings {
	if s.Jellyfin.APIKey != "" {
		s.Jellyfin.APIKey = redactedSecret
	}
	accounts := make([]config.Account, len(s.Sync.Accounts))
	copy(accounts, s.Sync.Accounts)
	for i := range accounts {
		if accounts[i].LetterboxdPassword != "" {
			accounts[i].LetterboxdPassword = redactedSecret
		}
	}
	s.Sync.Accounts = accounts
	// The server API key is never exposed over the API at all.
	s.Server.APIKey = ""
	return s
}

// restoreSecrets puts stored credentials back wherever the client echoed the
// redaction placeholder.
func restoreSecrets(incoming *config.Settings, stored config.Settings) {
	if incoming.Jellyfin.APIKey == redactedSecret {
		incoming.Jellyfin.APIKey = stored.Jellyfin.APIKey
	}
	// The API key is not settable over the API.
	incoming.Server.APIKey = stored.Server.APIKey

	for i := range incoming.Sync.Accounts {
		if incoming.Sync.Accounts[i].LetterboxdPassword != redactedSecret {
			continue
		}
		if existing := stored.Sync.GetAccountByID(incoming.Sync.Accounts[i].ID); existing != nil {
			incoming.Sync.Accounts[i].LetterboxdPassword = existing.LetterboxdPassword
		} else {
			incoming.Sync.Accounts[i].LetterboxdPassword = ""
		}
	}
}
