// Package sync reconciles watched movies in Jellyfin with each account's
// Letterboxd diary. Jellyfin is the source of truth; the diary only ever
// gains entries.
package sync

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"boxdsync/config"
	"boxdsync/internal/pace"
	"boxdsync/services/activity"
	"boxdsync/services/jellyfin"
	"boxdsync/services/letterboxd"
)

// Outcome classifies what happened to one movie during a run.
type Outcome string

// activityRetention bounds how long run history is kept in the activity log.
const activityRetention = 90 * 24 * time.Hour

const (
	OutcomeLogged        Outcome = "logged"
	OutcomeAlreadyLogged Outcome = "already_logged"
	OutcomeSkippedNoID   Outcome = "skipped_no_id"
	OutcomeFailed        Outcome = "failed"
)

// ItemResult records the decision taken for one movie.
type ItemResult struct {
	Title      string     `json:"title"`
	Year       int        `json:"year,omitempty"`
	TmdbID     string     `json:"tmdbId,omitempty"`
	Outcome    Outcome    `json:"outcome"`
	Detail     string     `json:"detail,omitempty"`
	LocalDate  *time.Time `json:"localDate,omitempty"`
	RemoteDate *time.Time `json:"remoteDate,omitempty"`
}

// AccountResult aggregates one account's run.
type AccountResult struct {
	AccountID     string       `json:"accountId"`
	Username      string       `json:"username"`
	JellyfinUser  string       `json:"jellyfinUser,omitempty"`
	Error         string       `json:"error,omitempty"`
	Logged        int          `json:"logged"`
	AlreadyLogged int          `json:"alreadyLogged"`
	Skipped       int          `json:"skipped"`
	Failed        int          `json:"failed"`
	Items         []ItemResult `json:"items"`
}

func (a *AccountResult) tally(item ItemResult) {
	a.Items = append(a.Items, item)
	switch item.Outcome {
	case OutcomeLogged:
		a.Logged++
	case OutcomeAlreadyLogged:
		a.AlreadyLogged++
	case OutcomeSkippedNoID:
		a.Skipped++
	case OutcomeFailed:
		a.Failed++
	}
}

// Report is the full result of one reconciliation run.
type Report struct {
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt time.Time       `json:"finishedAt"`
	Accounts   []AccountResult `json:"accounts"`
}

// Logged sums diary writes across all accounts.
func (r *Report) Logged() int {
	total := 0
	for _, account := range r.Accounts {
		total += account.Logged
	}
	return total
}

// libraryClient is the slice of the Jellyfin client the engine needs.
type libraryClient interface {
	User(ctx context.Context, userID string) (*jellyfin.User, error)
	Movies(ctx context.Context, userID string, playedOnly bool) ([]jellyfin.Item, error)
}

// diaryClient is the slice of the Letterboxd client the engine needs. One
// client is constructed per account per run.
type diaryClient interface {
	Authenticate(ctx context.Context, username, password string) error
	SearchFilmByTmdbID(ctx context.Context, tmdbID int) (*letterboxd.FilmIdentity, error)
	LastLoggedDate(ctx context.Context, slug string) (latest time.Time, ok bool, err error)
	MarkAsWatched(ctx context.Context, filmID string, watchedAt *time.Time, tags []string, liked bool) error
}

// Service runs reconciliations. Accounts and items are processed strictly
// sequentially; all Letterboxd traffic in a run shares one pacing gate.
type Service struct {
	configManager *config.Manager
	library       libraryClient
	activity      *activity.Service

	newDiaryClient func(gate *pace.Gate) diaryClient
	lastReport     atomic.Pointer[Report]
}

func NewService(configManager *config.Manager, library libraryClient, activityService *activity.Service) *Service {
	return &Service{
		configManager: configManager,
		library:       library,
		activity:      activityService,
		newDiaryClient: func(gate *pace.Gate) diaryClient {
			return letterboxd.NewClient(gate)
		},
	}
}

// LastReport returns the most recent completed run, or nil before the first
// run.
func (s *Service) LastReport() *Report {
	return s.lastReport.Load()
}

// Run reconciles every enabled account once. Re-running against an unchanged
// library is a no-op: anything already in the diary at the same or a newer
// date is skipped. Cancellation is observed between accounts and between
// items; the partial report is still returned.
func (s *Service) Run(ctx context.Context) (*Report, error) {
	settings, err := s.configManager.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	report := &Report{StartedAt: time.Now().UTC()}
	gate := pace.NewGate(settings.Sync.RequestsPerMinute)

	for _, account := range settings.Sync.Accounts {
		if !account.Enabled {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		log.Printf("[sync] Syncing account %s", account.LetterboxdUsername)
		result := s.syncAccount(ctx, gate, settings.Sync, account)
		report.Accounts = append(report.Accounts, *result)
		log.Printf("[sync] Account %s: %d logged, %d already logged, %d skipped, %d failed",
			account.LetterboxdUsername, result.Logged, result.AlreadyLogged, result.Skipped, result.Failed)
	}

	report.FinishedAt = time.Now().UTC()
	s.lastReport.Store(report)

	if err := ctx.Err(); err != nil {
		return report, err
	}
	if s.activity != nil {
		s.activity.Prune(ctx, activityRetention)
	}
	return report, nil
}

func (s *Service) syncAccount(ctx context.Context, gate *pace.Gate, syncSettings config.SyncSettings, account config.Account) *AccountResult {
	result := &AccountResult{AccountID: account.ID, Username: account.LetterboxdUsername}

	if user, err := s.library.User(ctx, account.JellyfinUserID); err == nil && user != nil {
		result.JellyfinUser = user.Name
	}

	items, err := s.library.Movies(ctx, account.JellyfinUserID, !account.ForceAllAsWatched)
	if err != nil {
		result.Error = fmt.Sprintf("fetch library: %v", err)
		return result
	}
	if len(items) == 0 {
		// Nothing to reconcile; skip the login entirely.
		return result
	}

	client := s.newDiaryClient(gate)
	if err := client.Authenticate(ctx, account.LetterboxdUsername, account.LetterboxdPassword); err != nil {
		result.Error = fmt.Sprintf("letterboxd login: %v", err)
		return result
	}

	for _, item := range items {
		if ctx.Err() != nil {
			result.Error = ctx.Err().Error()
			break
		}
		result.tally(s.syncItem(ctx, client, syncSettings, account, item))
	}
	return result
}

func (s *Service) syncItem(ctx context.Context, client diaryClient, syncSettings config.SyncSettings, account config.Account, item jellyfin.Item) ItemResult {
	result := ItemResult{Title: item.Name, Year: item.ProductionYear}

	raw, ok := item.TmdbID()
	if !ok {
		result.Outcome = OutcomeSkippedNoID
		result.Detail = "no TMDB id in library metadata"
		return result
	}
	result.TmdbID = raw
	tmdbID, err := strconv.Atoi(raw)
	if err != nil {
		result.Outcome = OutcomeSkippedNoID
		result.Detail = fmt.Sprintf("unusable TMDB id %q", raw)
		return result
	}

	identity, err := client.SearchFilmByTmdbID(ctx, tmdbID)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Detail = fmt.Sprintf("film lookup: %v", err)
		return result
	}

	result.LocalDate = localWatchDate(item)

	remote, logged, err := client.LastLoggedDate(ctx, identity.Slug)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Detail = fmt.Sprintf("diary read: %v", err)
		return result
	}
	if logged {
		remoteDay := dayOf(remote)
		result.RemoteDate = &remoteDay
		// Only an older diary entry gets superseded. Without a local date
		// there is nothing newer to claim.
		if result.LocalDate == nil || !remoteDay.Before(*result.LocalDate) {
			result.Outcome = OutcomeAlreadyLogged
			return result
		}
	}

	liked := account.SendFavorite && item.UserData != nil && item.UserData.IsFavorite
	if err := client.MarkAsWatched(ctx, identity.FilmID, result.LocalDate, syncSettings.Tags, liked); err != nil {
		result.Outcome = OutcomeFailed
		result.Detail = fmt.Sprintf("diary write: %v", err)
		return result
	}
	result.Outcome = OutcomeLogged

	if s.activity != nil {
		s.activity.Record(ctx,
			fmt.Sprintf("Logged %s to Letterboxd", item.Name),
			fmt.Sprintf("Account %s", account.LetterboxdUsername),
			describeWrite(result))
	}
	return result
}

// localWatchDate truncates Jellyfin's last-played timestamp to a UTC day,
// the granularity the diary works at.
func localWatchDate(item jellyfin.Item) *time.Time {
	if item.UserData == nil || item.UserData.LastPlayedDate == nil {
		return nil
	}
	day := dayOf(item.UserData.LastPlayedDate.UTC())
	return &day
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func describeWrite(result ItemResult) string {
	parts := []string{fmt.Sprintf("TMDB %s", result.TmdbID)}
	if result.LocalDate != nil {
		parts = append(parts, fmt.Sprintf("watched %s", result.LocalDate.Format("2006-01-02")))
	} else {
		parts = append(parts, "watched date unknown")
	}
	if result.RemoteDate != nil {
		parts = append(parts, fmt.Sprintf("replacing diary date %s", result.RemoteDate.Format("2006-01-02")))
	}
	return strings.Join(parts, ", ")
}
