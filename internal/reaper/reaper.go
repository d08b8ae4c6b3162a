// Package reaper implements the Health Sweeper: a periodic reconciliation
// loop that checks child-process liveness and marks sessions whose child
// exited without a recorded terminal status as crashed.
package reaper

import (
	"context"
	"log/slog"
	"time"

	"github.com/dairui1/claudia/protocol"
)

const errCrashedMessage = "child process exited unexpectedly"

type Sweeper struct {
	source   SessionSource
	interval time.Duration
	logger   *slog.Logger
}

func New(source SessionSource, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{source: source, interval: interval, logger: logger}
}

// Run starts the sweep loop. It blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("health sweeper started", "interval", s.interval)

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("health sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep marks any Running/Loading/Ready session whose child has died
// Error. Paused, Initializing, and already-terminal sessions are left
// untouched since no child is expected there.
func (s *Sweeper) sweep(_ context.Context) {
	entries := s.source.HealthSnapshot()

	reaped := 0
	for _, e := range entries {
		if e.Alive {
			continue
		}
		if !isExpectedToHaveChild(e.Status) {
			continue
		}
		s.logger.Warn("health sweeper: child exited without terminal status, marking error",
			"session_id", e.ID, "status", e.Status)
		if err := s.source.MarkCrashed(e.ID, errCrashedMessage); err != nil {
			s.logger.Error("health sweeper: mark crashed", "session_id", e.ID, "error", err)
			continue
		}
		reaped++
	}

	if reaped > 0 {
		s.logger.Info("health sweeper: marked sessions error", "count", reaped)
	}
}

func isExpectedToHaveChild(status protocol.Status) bool {
	switch status {
	case protocol.StatusRunning, protocol.StatusLoading, protocol.StatusReady:
		return true
	default:
		return false
	}
}
