package syncer

import (
	"context"
	"errors"
	"time"
)

// RunEvery triggers a full run every interval until ctx is done. Ticks that
// land while a run is active are dropped, not queued. A non-positive interval
// returns immediately.
func (s *Syncer) RunEvery(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	s.logger.Info().Dur("interval", interval).Msg("periodic sync enabled")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runID, err := s.Trigger(ctx, nil)
			switch {
			case errors.Is(err, ErrAlreadyRunning):
				s.logger.Debug().Msg("periodic sync skipped, run already in progress")
			case err != nil:
				s.logger.Error().Err(err).Msg("periodic sync failed to start")
			default:
				s.logger.Info().Str("run_id", runID).Msg("periodic sync started")
			}
		}
	}
}
