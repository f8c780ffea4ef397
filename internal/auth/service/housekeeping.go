package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/nightporter/staffgate/internal/auth/store"
	"github.com/nightporter/staffgate/pkg/clockx"
)

// ExpiredPurger is implemented by in-memory stores that expire entries on
// their own clock, like the authorization code cache.
type ExpiredPurger interface {
	PurgeExpired()
}

// HousekeepingService deletes token and session rows that have been dead
// longer than the retention window. Dead rows are kept around for a while so
// replay detection can still see consumed tokens.
type HousekeepingService struct {
	Store  store.Store
	Clock  clockx.Clock
	Logger *slog.Logger

	// Interval between sweeps.
	Interval time.Duration

	// Retention is how long expired rows stay queryable before deletion.
	Retention time.Duration

	// Purgers get poked on every sweep. Optional.
	Purgers []ExpiredPurger

	stopCh chan struct{}
	doneCh chan struct{}
}

// Start launches the background sweep loop. Call Stop to shut it down.
func (s *HousekeepingService) Start() {
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go func() {
		defer close(s.doneCh)

		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.Sweep(context.Background())
			}
		}
	}()
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (s *HousekeepingService) Stop() {
	if s.stopCh == nil {
		return
	}
	close(s.stopCh)
	<-s.doneCh
}

// Sweep runs one cleanup pass. Exported so tests and operators can trigger
// it directly.
func (s *HousekeepingService) Sweep(ctx context.Context) {
	cutoff := s.Clock.Now().UTC().Add(-s.Retention)

	if err := s.Store.Tokens().DeleteExpiredTokens(ctx, cutoff); err != nil {
		s.Logger.ErrorContext(ctx, "housekeeping: delete expired tokens", "error", err)
	}
	if err := s.Store.Sessions().DeleteExpiredSessions(ctx, cutoff); err != nil {
		s.Logger.ErrorContext(ctx, "housekeeping: delete expired sessions", "error", err)
	}
	for _, p := range s.Purgers {
		p.PurgeExpired()
	}

	s.Logger.DebugContext(ctx, "housekeeping sweep complete", "cutoff", cutoff)
}
