package wizard

// sweeper.go removes sessions that ran past their TTL without being
// committed or abandoned, together with their temporary uploads.
//
// The sweeper runs once on start and then every interval until its context
// is cancelled. A failed sweep is logged and retried on the next tick.

import (
	"context"
	"log/slog"
	"time"

	"github.com/JonMunkholm/fileentity/internal/metrics"
	"github.com/JonMunkholm/fileentity/internal/storage"
)

// DefaultSweepInterval applies when Sweeper.Interval is zero.
const DefaultSweepInterval = 5 * time.Minute

// Sweeper deletes expired sessions.
type Sweeper struct {
	Store    Store
	Storage  *storage.Set
	Interval time.Duration

	now func() time.Time
}

// NewSweeper returns a sweeper over store and the temporary backend in set.
func NewSweeper(store Store, set *storage.Set, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{Store: store, Storage: set, Interval: interval, now: time.Now}
}

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	slog.Info("session sweeper started", "interval", s.Interval)

	s.sweepLogged(ctx)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session sweeper stopped")
			return
		case <-ticker.C:
			s.sweepLogged(ctx)
		}
	}
}

func (s *Sweeper) sweepLogged(ctx context.Context) {
	start := time.Now()
	n, err := s.Sweep(ctx)
	if err != nil {
		slog.Error("session sweep failed", "error", err)
		return
	}
	if n > 0 {
		slog.Info("expired upload sessions removed",
			"sessions", n,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// Sweep performs one pass and returns how many sessions were removed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	expired, err := s.Store.Expired(ctx, s.now())
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, sess := range expired {
		if sess.Upload.TempURI != "" && s.Storage != nil {
			if err := s.Storage.Delete(ctx, sess.Upload.TempURI); err != nil {
				slog.Warn("remove expired upload failed",
					"session", sess.ID,
					"uri", sess.Upload.TempURI,
					"error", err,
				)
			}
		}
		if err := s.Store.Delete(ctx, sess.ID); err != nil {
			slog.Warn("delete expired session failed", "session", sess.ID, "error", err)
			continue
		}
		removed++
	}

	metrics.RecordSessionsSwept(removed)
	if removed > 0 {
		metrics.RecordWizardOutcome("expired")
	}
	return removed, nil
}
