package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"classroll/internal/bootstrap"
	"classroll/internal/config"
	"classroll/internal/httpmiddleware"
	"classroll/internal/logging"
	"classroll/internal/mailer"
	"classroll/internal/photos"
	"classroll/internal/relay"
)

// Relay stores uploaded photos on disk and forwards email over SMTP.
func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogPretty).With().Str("component", "relay").Logger()
	if cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	local, err := photos.NewLocal(cfg.UploadDir, cfg.PublicBaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("upload dir")
	}
	var m relay.Mailer = bootstrap.SMTP(cfg, log)
	if cfg.MailBackend == "log" {
		m = mailer.NewLog(log)
	}

	r := gin.New()
	r.Use(httpmiddleware.RequestID(), httpmiddleware.Recovery(log), httpmiddleware.RequestLogger(log))
	r.Use(cors.Default())
	relay.New(relay.Options{
		Mailer:    m,
		Storage:   local,
		MaxBytes:  cfg.MaxPhotoBytes,
		UploadDir: local.Dir(),
		Logger:    log,
	}).Register(r)

	srv := &http.Server{
		Addr:              ":" + cfg.RelayPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Str("uploads", cfg.PublicBaseURL+"/uploads/").Msg("relay listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("relay server")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("relay forced shutdown")
	}
}
