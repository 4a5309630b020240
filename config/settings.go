package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Settings represents the application configuration persisted to disk.
type Settings struct {
	Server   ServerSettings   `json:"server"`
	Jellyfin JellyfinSettings `json:"jellyfin"`
	Sync     SyncSettings     `json:"sync"`
	Database DatabaseSettings `json:"database"`
	Log      LogConfig        `json:"log"`
}

type ServerSettings struct {
	Host   string `json:"host"`
	Port   int    `json:"port"`
	APIKey string `json:"apiKey"` // protects mutating endpoints; generated on first start
}

// JellyfinSettings describes the media server the sync reads played state from.
type JellyfinSettings struct {
	BaseURL string `json:"baseUrl"`
	APIKey  string `json:"apiKey"`
}

// Account pairs one Jellyfin user with one Letterboxd credential set.
type Account struct {
	ID                 string `json:"id"` // UUID for this account
	JellyfinUserID     string `json:"jellyfinUserId"`
	LetterboxdUsername string `json:"letterboxdUsername"`
	LetterboxdPassword string `json:"letterboxdPassword"`
	Enabled            bool   `json:"enabled"`
	SendFavorite       bool   `json:"sendFavorite"`      // forward Jellyfin favorites as Letterboxd likes
	ForceAllAsWatched  bool   `json:"forceAllAsWatched"` // sync every movie regardless of played state
}

// SyncFrequency defines how often the reconciliation task runs.
type SyncFrequency string

const (
	SyncFrequencyHourly  SyncFrequency = "hourly"
	SyncFrequency6Hours  SyncFrequency = "6hours"
	SyncFrequency12Hours SyncFrequency = "12hours"
	SyncFrequencyDaily   SyncFrequency = "daily"
)

// SyncRunStatus represents the last run status shown in the UI.
type SyncRunStatus string

const (
	SyncRunStatusPending SyncRunStatus = "pending"
	SyncRunStatusRunning SyncRunStatus = "running"
	SyncRunStatusSuccess SyncRunStatus = "success"
	SyncRunStatusError   SyncRunStatus = "error"
)

// SyncSettings controls the Letterboxd reconciliation task.
type SyncSettings struct {
	Accounts []Account `json:"accounts"`

	// RequestsPerMinute caps outbound requests to Letterboxd across all
	// accounts. 0 disables pacing.
	RequestsPerMinute int `json:"requestsPerMinute"`

	// Tags applied to every diary entry the sync creates. Empty by default.
	Tags []string `json:"tags"`

	Enabled              bool          `json:"enabled"`
	Frequency            SyncFrequency `json:"frequency"`
	CheckIntervalSeconds int           `json:"checkIntervalSeconds"` // scheduler poll interval

	LastRunAt  *time.Time    `json:"lastRunAt,omitempty"`
	LastStatus SyncRunStatus `json:"lastStatus,omitempty"`
	LastError  string        `json:"lastError,omitempty"`
}

// GetAccountByID returns an account by its ID, or nil if not found.
func (s *SyncSettings) GetAccountByID(id string) *Account {
	for i := range s.Accounts {
		if s.Accounts[i].ID == id {
			return &s.Accounts[i]
		}
	}
	return nil
}

// UpdateAccount updates an existing account or adds it if not found.
func (s *SyncSettings) UpdateAccount(account Account) {
	for i := range s.Accounts {
		if s.Accounts[i].ID == account.ID {
			s.Accounts[i] = account
			return
		}
	}
	s.Accounts = append(s.Accounts, account)
}

// RemoveAccount removes an account by ID.
func (s *SyncSettings) RemoveAccount(id string) bool {
	for i := range s.Accounts {
		if s.Accounts[i].ID == id {
			s.Accounts = append(s.Accounts[:i], s.Accounts[i+1:]...)
			return true
		}
	}
	return false
}

// DatabaseSettings defines where the activity log database lives.
type DatabaseSettings struct {
	Path string `json:"path"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	File       string `json:"file"`
	MaxSize    int    `json:"maxSize"`
	MaxAge     int    `json:"maxAge"`
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
}

// DefaultSettings returns sane defaults for a fresh install.
func DefaultSettings() Settings {
	return Settings{
		Server:   ServerSettings{Host: "0.0.0.0", Port: 7575},
		Jellyfin: JellyfinSettings{BaseURL: "", APIKey: ""},
		Sync: SyncSettings{
			Accounts:             []Account{},
			RequestsPerMinute:    0,
			Tags:                 []string{},
			Enabled:              true,
			Frequency:            SyncFrequencyDaily,
			CheckIntervalSeconds: 60,
			LastStatus:           SyncRunStatusPending,
		},
		Database: DatabaseSettings{Path: "cache/activity.db"},
		Log: LogConfig{
			File:       "cache/logs/boxdsync.log",
			MaxSize:    50, // 50 MB per file
			MaxBackups: 3,
			MaxAge:     7, // days
			Compress:   true,
		},
	}
}

// Manager loads and persists settings to a JSON file.
type Manager struct {
	path string
}

func NewManager(configPath string) *Manager {
	return &Manager{path: configPath}
}

// EnsureDir ensures parent directory exists.
func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Load reads settings.json from disk or creates defaults if missing.
func (m *Manager) Load() (Settings, error) {
	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	if _, err := os.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		defaults := DefaultSettings()
		if err := m.Save(defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}
	f, err := os.Open(m.path)
	if err != nil {
		return Settings{}, err
	}
	defer f.Close()

	var s Settings
	if err := json.NewDecoder(f).Decode(&s); err != nil {
		return Settings{}, err
	}

	// Backfill defaults for newly introduced settings when config predates them
	if s.Server.Port == 0 {
		s.Server.Port = 7575
	}
	if strings.TrimSpace(s.Server.Host) == "" {
		s.Server.Host = "0.0.0.0"
	}

	if s.Sync.Accounts == nil {
		s.Sync.Accounts = []Account{}
	}
	if s.Sync.Tags == nil {
		s.Sync.Tags = []string{}
	}
	if s.Sync.Frequency == "" {
		s.Sync.Frequency = SyncFrequencyDaily
	}
	if s.Sync.CheckIntervalSeconds == 0 {
		s.Sync.CheckIntervalSeconds = 60
	}
	if s.Sync.LastStatus == "" {
		s.Sync.LastStatus = SyncRunStatusPending
	}

	if strings.TrimSpace(s.Database.Path) == "" {
		s.Database.Path = "cache/activity.db"
	}

	if strings.TrimSpace(s.Log.File) == "" {
		s.Log.File = "cache/logs/boxdsync.log"
	}
	if s.Log.MaxSize == 0 {
		s.Log.MaxSize = 50
	}
	if s.Log.MaxBackups == 0 {
		s.Log.MaxBackups = 3
	}
	if s.Log.MaxAge == 0 {
		s.Log.MaxAge = 7
	}

	return s, nil
}

// Save writes the provided settings to disk atomically.
func (m *Manager) Save(s Settings) error {
	if m.path == "" {
		return errors.New("config path not set")
	}
	if err := m.EnsureDir(); err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, m.path)
}
