package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"classroll/internal/attendance"
	"classroll/internal/bootstrap"
	"classroll/internal/config"
	"classroll/internal/jobs"
	"classroll/internal/logging"
)

// Worker consumes attendance events and runs the absence sweep.
func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogPretty).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("worker failed")
	}
	log.Info().Msg("worker stopped")
}

func run(ctx context.Context, cfg config.App, log zerolog.Logger) error {
	if cfg.StoreBackend == "memory" {
		return errors.New("worker needs a shared STORE_BACKEND (redis, postgres or sqlite)")
	}
	backends, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer backends.Close()

	cal, err := bootstrap.Calendar(cfg)
	if err != nil {
		return err
	}
	mail, err := bootstrap.Mailer(cfg, log)
	if err != nil {
		return err
	}

	svc := attendance.NewService(attendance.Options{
		KV:       backends.KV,
		Locker:   backends.Locker,
		Calendar: cal,
		Mailer:   mail,
		Logger:   log,
	})

	sweepDone := jobs.StartAbsenceSweep(ctx, jobs.SweepConfig{
		Enabled:    cfg.AutoAlert,
		Interval:   cfg.SweepInterval,
		Timeout:    time.Minute,
		RunAtStart: true,
	}, svc, log)

	if cfg.QueueBackend == "redis" {
		log.Info().Str("queue", cfg.QueueKey).Msg("worker started, waiting for events")
		err := jobs.ConsumeEvents(ctx, backends.Queue, attendance.ObserverFunc(func(ctx context.Context, evt attendance.Event) {
			log.Info().Str("type", string(evt.Type)).Str("student", evt.StudentID).Stringer("date", evt.Date).Msg("attendance event")
		}), log)
		if err != nil {
			return err
		}
	} else {
		<-ctx.Done()
	}
	<-sweepDone
	return nil
}
