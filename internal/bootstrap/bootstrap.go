// Package bootstrap turns configuration into concrete backends for the binaries.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"classroll/internal/attendance"
	"classroll/internal/calendar"
	"classroll/internal/cloudinary"
	"classroll/internal/config"
	"classroll/internal/mailer"
	"classroll/internal/photos"
	"classroll/internal/queue"
	"classroll/internal/relayclient"
	"classroll/internal/store"
)

// Backends are the opened storage, lock and queue backends.
type Backends struct {
	KV     store.KV
	Locker store.Locker
	Queue  queue.Queue
	Checks map[string]store.Pinger

	closers []func() error
}

// Close releases every opened connection.
func (b *Backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		_ = b.closers[i]()
	}
}

// Open connects the store, locker and queue selected by cfg. Claims are kept
// in the store backend itself so processes sharing a store share its locks.
// Redis is opened once and shared when more than one concern uses it.
func Open(ctx context.Context, cfg config.App, log zerolog.Logger) (*Backends, error) {
	b := &Backends{Checks: map[string]store.Pinger{}}
	var rdb *store.Redis
	redisConn := func() *store.Redis {
		if rdb == nil {
			rdb = store.NewRedis(cfg.RedisAddr, cfg.RedisPrefix)
			b.closers = append(b.closers, rdb.Close)
			b.Checks["redis"] = rdb
		}
		return rdb
	}

	switch cfg.StoreBackend {
	case "memory", "":
		m := store.NewMemory()
		b.KV, b.Locker = m, m
	case "redis":
		r := redisConn()
		b.KV, b.Locker = r, r
	case "postgres":
		connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		db, err := store.NewDB(connCtx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		b.KV, b.Locker = db, db
		b.closers = append(b.closers, db.Close)
		b.Checks["db"] = db
	case "sqlite":
		db, err := store.NewSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		b.KV, b.Locker = db, db
		b.closers = append(b.closers, db.Close)
		b.Checks["db"] = db
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	switch cfg.QueueBackend {
	case "memory", "":
		b.Queue = queue.NewInMemory(64)
	case "redis":
		b.Queue = queue.NewRedisQueue(redisConn().Client, cfg.QueueKey)
	default:
		b.Close()
		return nil, fmt.Errorf("unknown QUEUE_BACKEND %q", cfg.QueueBackend)
	}

	log.Info().Str("store", cfg.StoreBackend).Str("queue", cfg.QueueBackend).Msg("backends ready")
	return b, nil
}

// Calendar builds the school calendar in the configured timezone.
func Calendar(cfg config.App) (calendar.Calendar, error) {
	loc, err := calendar.LoadLocation(cfg.Timezone)
	if err != nil {
		return calendar.Calendar{}, fmt.Errorf("timezone %q: %w", cfg.Timezone, err)
	}
	return calendar.New(time.Now, loc), nil
}

// Mailer selects the outbound mail path the API uses for alerts.
func Mailer(cfg config.App, log zerolog.Logger) (attendance.Mailer, error) {
	switch cfg.MailBackend {
	case "relay":
		return relayclient.New(cfg.RelayURL), nil
	case "smtp":
		return SMTP(cfg, log), nil
	case "log", "":
		return mailer.NewLog(log), nil
	}
	return nil, fmt.Errorf("unknown MAIL_BACKEND %q", cfg.MailBackend)
}

// SMTP builds the direct SMTP mailer.
func SMTP(cfg config.App, log zerolog.Logger) *mailer.SMTP {
	return mailer.NewSMTP(mailer.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	}, log)
}

// Photos selects where registration photos go.
func Photos(cfg config.App, log zerolog.Logger) (attendance.PhotoUploader, error) {
	switch cfg.PhotoBackend {
	case "relay":
		return relayclient.New(cfg.RelayURL), nil
	case "local", "":
		l, err := photos.NewLocal(cfg.UploadDir, cfg.PublicBaseURL)
		if err != nil {
			return nil, err
		}
		return l, nil
	case "minio":
		m, err := photos.NewMinio(photos.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		}, log)
		if err != nil {
			return nil, err
		}
		return m, nil
	case "cloudinary":
		if cfg.CloudinaryCloudName == "" || cfg.CloudinaryAPIKey == "" || cfg.CloudinaryAPISecret == "" {
			return nil, fmt.Errorf("cloudinary not configured (CLOUDINARY_CLOUD_NAME / API_KEY / API_SECRET)")
		}
		return cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder), nil
	}
	return nil, fmt.Errorf("unknown PHOTO_BACKEND %q", cfg.PhotoBackend)
}
