package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"boxdsync/config"
)

// AccountsHandler manages the Jellyfin-to-Letterboxd account pairs.
type AccountsHandler struct {
	configManager *config.Manager
}

func NewAccountsHandler(configManager *config.Manager) *AccountsHandler {
	return &AccountsHandler{configManager: configManager}
}

type accountRequest struct {
	JellyfinUserID     string `json:"jellyfinUserId"`
	LetterboxdUsername string `json:"letterboxdUsername"`
	LetterboxdPassword string `json:"letterboxdPassword"`
	Enabled            bool   `json:"enabled"`
	SendFavorite       bool   `json:"sendFavorite"`
	ForceAllAsWatched  bool   `json:"forceAllAsWatched"`
}

func (req *accountRequest) validate(requirePassword bool) string {
	if strings.TrimSpace(req.JellyfinUserID) == "" {
		return "jellyfinUserId is required"
	}
	if strings.TrimSpace(req.LetterboxdUsername) == "" {
		return "letterboxdUsername is required"
	}
	if requirePassword && req.LetterboxdPassword == "" {
		return "letterboxdPassword is required"
	}
	return ""
}

// List returns all accounts with passwords redacted.
func (h *AccountsHandler) List(w http.ResponseWriter, r *http.Request) {
	settings, err := h.configManager.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	accounts := make([]config.Account, len(settings.Sync.Accounts))
	copy(accounts, settings.Sync.Accounts)
	for i := range accounts {
		if accounts[i].LetterboxdPassword != "" {
			accounts[i].LetterboxdPassword = redactedSecret
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

// Create adds an account pair.
func (h *AccountsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if msg := req.validate(true); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	settings, err := h.configManager.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	account := config.Account{
		ID:                 uuid.NewString(),
		JellyfinUserID:     req.JellyfinUserID,
		LetterboxdUsername: req.LetterboxdUsername,
		LetterboxdPassword: req.LetterboxdPassword,
		Enabled:            req.Enabled,
		SendFavorite:       req.SendFavorite,
		ForceAllAsWatched:  req.ForceAllAsWatched,
	}
	settings.Sync.Accounts = append(settings.Sync.Accounts, account)

	if err := h.configManager.Save(settings); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	account.LetterboxdPassword = redactedSecret
	writeJSON(w, http.StatusCreated, account)
}

// Update replaces an account's fields. An omitted or redacted password keeps
// the stored one.
func (h *AccountsHandler) Update(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["accountID"]

	var req accountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if msg := req.validate(false); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	settings, err := h.configManager.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	existing := settings.Sync.GetAccountByID(accountID)
	if existing == nil {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}

	password := req.LetterboxdPassword
	if password == "" || password == redactedSecret {
		password = existing.LetterboxdPassword
	}

	updated := config.Account{
		ID:                 accountID,
		JellyfinUserID:     req.JellyfinUserID,
		LetterboxdUsername: req.LetterboxdUsername,
		LetterboxdPassword: password,
		Enabled:            req.Enabled,
		SendFavorite:       req.SendFavorite,
		ForceAllAsWatched:  req.ForceAllAsWatched,
	}
	settings.Sync.UpdateAccount(updated)

	if err := h.configManager.Save(settings); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	updated.LetterboxdPassword = redactedSecret
	writeJSON(w, http.StatusOK, updated)
}

// Delete removes an account pair.
func (h *AccountsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["accountID"]

	settings, err := h.configManager.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if !settings.Sync.RemoveAccount(accountID) {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}

	if err := h.configManager.Save(settings); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
