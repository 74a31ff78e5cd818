package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper dispatches alerts for every eligible student.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// SweepConfig controls the absence sweep.
type SweepConfig struct {
	Enabled  bool
	Interval time.Duration
	Timeout  time.Duration
	// RunAtStart triggers one sweep immediately.
	RunAtStart bool
}

// StartAbsenceSweep runs s on a ticker until ctx ends. The returned channel
// closes once the loop has exited.
func StartAbsenceSweep(ctx context.Context, cfg SweepConfig, s Sweeper, log zerolog.Logger) <-chan struct{} {
	done := make(chan struct{})
	if !cfg.Enabled || s == nil {
		log.Info().Msg("absence sweep disabled")
		close(done)
		return done
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}

	run := func() {
		tickCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		sent, err := s.Sweep(tickCtx)
		if err != nil {
			log.Error().Err(err).Msg("absence sweep failed")
			return
		}
		if sent > 0 {
			log.Info().Int("sent", sent).Msg("absence sweep dispatched alerts")
		}
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		if cfg.RunAtStart {
			run()
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				run()
			}
		}
	}()
	return done
}
