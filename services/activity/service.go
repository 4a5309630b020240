// Package activity records what the sync did, for the audit view.
package activity

import (
	"context"
	"log"
	"time"

	"boxdsync/internal/database"
)

// Service wraps the activity repository with the shapes the sync engine and
// API hand around.
type Service struct {
	repo *database.ActivityRepository
}

func NewService(repo *database.ActivityRepository) *Service {
	return &Service{repo: repo}
}

// Record stores one audit entry. Failures are logged and swallowed: the
// audit trail must never fail a sync run.
func (s *Service) Record(ctx context.Context, title, shortOverview, overview string) {
	entry := database.ActivityEntry{
		Title:         title,
		ShortOverview: shortOverview,
		Overview:      overview,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, entry); err != nil {
		log.Printf("[activity] Failed to record entry %q: %v", title, err)
	}
}

// Page is one page of audit entries plus the total count for pagination.
type Page struct {
	Entries []database.ActivityEntry `json:"entries"`
	Total   int                      `json:"total"`
	Limit   int                      `json:"limit"`
	Offset  int                      `json:"offset"`
}

// List returns entries newest-first. Limit is clamped to [1, 200].
func (s *Service) List(ctx context.Context, limit, offset int) (*Page, error) {
	if limit < 1 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	entries, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []database.ActivityEntry{}
	}
	return &Page{Entries: entries, Total: total, Limit: limit, Offset: offset}, nil
}

// Prune removes entries older than the retention window.
func (s *Service) Prune(ctx context.Context, retention time.Duration) {
	removed, err := s.repo.Prune(ctx, time.Now().UTC().Add(-retention))
	if err != nil {
		log.Printf("[activity] Failed to prune entries: %v", err)
		return
	}
	if removed > 0 {
		log.Printf("[activity] Pruned %d old entries", removed)
	}
}
