package manifest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"semlayer/internal/source"
)

// Syncer re-reads a manifest source on a cron schedule and deploys it when
// its content changed.
type Syncer struct {
	cron   *cron.Cron
	svc    *Service
	src    source.Source
	logger *slog.Logger

	mu      sync.Mutex
	entry   cron.EntryID
	lastErr error
}

// NewSyncer creates a Syncer for src.
func NewSyncer(svc *Service, src source.Source, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Syncer{
		cron:   cron.New(),
		svc:    svc,
		src:    src,
		logger: logger,
	}
}

// SyncOnce loads the source and deploys it if its fingerprint differs from
// the active manifest. It reports whether a new manifest became active.
func (s *Syncer) SyncOnce(ctx context.Context) (bool, error) {
	m, err := s.src.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("load manifest from %s: %w", s.src, err)
	}
	fp, err := Fingerprint(m)
	if err != nil {
		return false, err
	}
	if cur, ok := s.svc.Current(); ok && cur.Fingerprint == fp {
		return false, nil
	}
	res, err := s.svc.Deploy(ctx, m)
	if err != nil {
		return false, err
	}
	return res.Changed, nil
}

// Start schedules SyncOnce. An invalid schedule is an error.
func (s *Syncer) Start(schedule string) error {
	id, err := s.cron.AddFunc(schedule, func() {
		changed, err := s.SyncOnce(context.Background())
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		if err != nil {
			s.logger.Warn("scheduled manifest sync failed", "source", s.src.String(), "error", err)
			return
		}
		if changed {
			s.logger.Info("manifest sync deployed new version", "source", s.src.String())
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sync schedule %q: %w", schedule, err)
	}

	s.mu.Lock()
	s.entry = id
	s.mu.Unlock()
	s.cron.Start()
	s.logger.Info("manifest syncer started", "source", s.src.String(), "schedule", schedule)
	return nil
}

// Stop stops the scheduler and waits for a running sync to finish.
func (s *Syncer) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("manifest syncer stopped")
}

// LastError returns the error of the most recent scheduled sync.
func (s *Syncer) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Next returns when the next scheduled sync runs; zero before Start.
func (s *Syncer) Next() time.Time {
	s.mu.Lock()
	id := s.entry
	s.mu.Unlock()
	if id == 0 {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}
