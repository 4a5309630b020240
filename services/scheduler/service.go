// Package scheduler triggers reconciliation runs on the configured cadence
// and guards against overlapping runs.
package scheduler

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"boxdsync/config"
	boxdsync "boxdsync/services/sync"
)

// ErrAlreadyRunning is returned when a run is requested while one is in
// flight.
var ErrAlreadyRunning = errors.New("a sync run is already in progress")

// runner is the part of the sync service the scheduler drives.
type runner interface {
	Run(ctx context.Context) (*boxdsync.Report, error)
}

// Service owns the background loop. Only one reconciliation runs at a time,
// whether scheduled or requested through the API.
type Service struct {
	configManager *config.Manager
	sync          runner

	mu      sync.Mutex
	running bool
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      conc.WaitGroup
}

func NewService(configManager *config.Manager, sync runner) *Service {
	return &Service{
		configManager: configManager,
		sync:          sync,
	}
}

// Start begins the background loop.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started = true

	s.wg.Go(s.loop)
	log.Println("[scheduler] Started")
}

// Stop cancels the loop and waits for any in-flight run, bounded by ctx.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.started = false
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("[scheduler] Stopped")
	case <-ctx.Done():
		log.Println("[scheduler] Stopped (shutdown timeout)")
	}
}

func (s *Service) loop() {
	settings, err := s.configManager.Load()
	if err != nil {
		log.Printf("[scheduler] Failed to load settings: %v", err)
		return
	}

	checkInterval := time.Duration(settings.Sync.CheckIntervalSeconds) * time.Second
	if checkInterval < time.Second {
		checkInterval = 60 * time.Second
	}

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	s.checkAndRun()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.checkAndRun()
		}
	}
}

func (s *Service) checkAndRun() {
	settings, err := s.configManager.Load()
	if err != nil {
		log.Printf("[scheduler] Failed to load settings: %v", err)
		return
	}
	if !settings.Sync.Enabled {
		return
	}
	if !s.due(settings.Sync) {
		return
	}
	if err := s.RunNow(); err != nil && !errors.Is(err, ErrAlreadyRunning) {
		log.Printf("[scheduler] Failed to start scheduled run: %v", err)
	}
}

func (s *Service) due(syncSettings config.SyncSettings) bool {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if running {
		return false
	}

	if syncSettings.LastRunAt == nil {
		return true
	}
	return time.Since(*syncSettings.LastRunAt) >= interval(syncSettings.Frequency)
}

func interval(freq config.SyncFrequency) time.Duration {
	switch freq {
	case config.SyncFrequencyHourly:
		return time.Hour
	case config.SyncFrequency6Hours:
		return 6 * time.Hour
	case config.SyncFrequency12Hours:
		return 12 * time.Hour
	case config.SyncFrequencyDaily:
		return 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// RunNow triggers a reconciliation in the background. It returns
// ErrAlreadyRunning when one is already in flight.
func (s *Service) RunNow() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}
	if !s.started {
		return errors.New("scheduler is not started")
	}
	s.running = true

	s.wg.Go(func() {
		defer func() {
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
		}()
		s.execute()
	})
	return nil
}

func (s *Service) execute() {
	log.Println("[scheduler] Starting sync run")
	s.markRunning()

	report, err := s.sync.Run(s.ctx)
	s.recordRun(report, err)
}

func (s *Service) markRunning() {
	settings, err := s.configManager.Load()
	if err != nil {
		return
	}
	settings.Sync.LastStatus = config.SyncRunStatusRunning
	settings.Sync.LastError = ""
	if err := s.configManager.Save(settings); err != nil {
		log.Printf("[scheduler] Failed to save run status: %v", err)
	}
}

// recordRun persists the run outcome into settings, the same place the UI
// reads account state from.
func (s *Service) recordRun(report *boxdsync.Report, runErr error) {
	settings, err := s.configManager.Load()
	if err != nil {
		log.Printf("[scheduler] Failed to load settings to record run: %v", err)
		return
	}

	now := time.Now().UTC()
	settings.Sync.LastRunAt = &now
	if runErr != nil {
		settings.Sync.LastStatus = config.SyncRunStatusError
		settings.Sync.LastError = runErr.Error()
		log.Printf("[scheduler] Sync run failed: %v", runErr)
	} else {
		settings.Sync.LastStatus = config.SyncRunStatusSuccess
		settings.Sync.LastError = ""
		if report != nil {
			log.Printf("[scheduler] Sync run finished: %d entries logged", report.Logged())
		}
	}

	if err := s.configManager.Save(settings); err != nil {
		log.Printf("[scheduler] Failed to save run outcome: %v", err)
	}
}

// Status describes the scheduler for the status API.
type Status struct {
	Running   bool                 `json:"running"`
	Enabled   bool                 `json:"enabled"`
	Frequency config.SyncFrequency `json:"frequency"`
	LastRunAt *time.Time           `json:"lastRunAt,omitempty"`
	LastState config.SyncRunStatus `json:"lastStatus,omitempty"`
	LastError string               `json:"lastError,omitempty"`
	NextRunAt *time.Time           `json:"nextRunAt,omitempty"`
}

// GetStatus returns the current scheduler state.
func (s *Service) GetStatus() Status {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	status := Status{Running: running}
	settings, err := s.configManager.Load()
	if err != nil {
		return status
	}

	status.Enabled = settings.Sync.Enabled
	status.Frequency = settings.Sync.Frequency
	status.LastRunAt = settings.Sync.LastRunAt
	status.LastState = settings.Sync.LastStatus
	status.LastError = settings.Sync.LastError
	if running {
		status.LastState = config.SyncRunStatusRunning
	}
	if settings.Sync.Enabled && settings.Sync.LastRunAt != nil {
		next := settings.Sync.LastRunAt.Add(interval(settings.Sync.Frequency))
		status.NextRunAt = &next
	}
	return status
}

// IsRunning reports whether a run is in flight.
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
