package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"classroll/internal/attendance"
	"classroll/internal/auth"
	"classroll/internal/bootstrap"
	"classroll/internal/config"
	"classroll/internal/handler"
	"classroll/internal/httpmiddleware"
	"classroll/internal/logging"
	"classroll/internal/metrics"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogPretty)

	// Set Gin mode based on environment
	if cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("http server failed")
	}
}

func runHTTP(cfg config.App, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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
	photoStore, err := bootstrap.Photos(cfg, log)
	if err != nil {
		log.Warn().Err(err).Str("backend", cfg.PhotoBackend).Msg("photo uploads disabled")
		photoStore = nil
	}

	m := metrics.New()
	observers := []attendance.Observer{m}
	// an in-memory queue has no consumer in this process
	if cfg.QueueBackend == "redis" {
		observers = append(observers, attendance.NewQueueObserver(backends.Queue, log))
	}

	svc := attendance.NewService(attendance.Options{
		KV:              backends.KV,
		Locker:          backends.Locker,
		Calendar:        cal,
		Mailer:          m.InstrumentMailer(mail),
		Photos:          photoStore,
		DefaultPhotoRef: cfg.DefaultPhotoRef,
		Observers:       observers,
		Logger:          log,
	})

	issuer := auth.NewIssuer(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL)

	r := gin.New()
	r.Use(httpmiddleware.RequestID())
	r.Use(httpmiddleware.Recovery(log))
	r.Use(httpmiddleware.RequestLogger(log))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", httpmiddleware.RequestIDHeader},
		ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
		MaxAge:           24 * time.Hour,
	}))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(m.GinMiddleware())
	r.Use(httpmiddleware.NewLimiter(cfg.RateLimitPerMin, cfg.RateLimitPerMin, auth.RateKey(issuer)).Middleware())

	r.GET("/metrics", gin.WrapH(m.Handler()))
	handler.New(handler.Options{
		Service:       svc,
		Issuer:        issuer,
		AdminUsername: cfg.AdminUsername,
		AdminPassword: cfg.AdminPassword,
		MaxPhotoBytes: cfg.MaxPhotoBytes,
		Checks:        backends.Checks,
		Logger:        log,
	}).Register(r)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("store", cfg.StoreBackend).Msg("starting api server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced shutdown")
	}
	log.Info().Msg("server exited")
	return nil
}
