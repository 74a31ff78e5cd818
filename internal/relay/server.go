// Package relay is the upload and email relay used by the attendance API.
package relay

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"classroll/internal/mailer"
)

// DefaultMaxPhotoBytes bounds a single upload.
const DefaultMaxPhotoBytes = 5 << 20

// Mailer delivers one plain-text email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Storage persists an uploaded photo and returns its public URL.
type Storage interface {
	Upload(ctx context.Context, filename string, data []byte) (string, error)
}

// Options configures the relay.
type Options struct {
	Mailer   Mailer
	Storage  Storage
	MaxBytes int64
	// UploadDir, when set, is served under /uploads/.
	UploadDir string
	Logger    zerolog.Logger
}

// Server handles the relay routes.
type Server struct {
	mailer   Mailer
	storage  Storage
	maxBytes int64
	dir      string
	log      zerolog.Logger
}

// New creates a relay server.
func New(opts Options) *Server {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxPhotoBytes
	}
	return &Server{
		mailer:   opts.Mailer,
		storage:  opts.Storage,
		maxBytes: opts.MaxBytes,
		dir:      opts.UploadDir,
		log:      opts.Logger,
	}
}

// Register mounts the relay routes on r.
func (s *Server) Register(r gin.IRouter) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.POST("/upload-photo", s.uploadPhoto)
	r.POST("/send-email", s.sendEmail)
	if s.dir != "" {
		r.Static("/uploads", s.dir)
	}
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "message": msg})
}

func (s *Server) uploadPhoto(c *gin.Context) {
	// multipart framing adds a little on top of the file itself
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBytes+64<<10)

	file, header, err := c.Request.FormFile("studentPhoto")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "No file uploaded, using default photo."})
		return
	case err != nil:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, http.StatusRequestEntityTooLarge, "Upload Failed: File too large")
			return
		}
		fail(c, http.StatusBadRequest, "Upload Failed: "+err.Error())
		return
	}
	defer file.Close()

	if header.Size > s.maxBytes {
		fail(c, http.StatusRequestEntityTooLarge, "Upload Failed: File too large")
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, s.maxBytes+1))
	if err != nil {
		fail(c, http.StatusInternalServerError, "Upload Failed: "+err.Error())
		return
	}
	if int64(len(data)) > s.maxBytes {
		fail(c, http.StatusRequestEntityTooLarge, "Upload Failed: File too large")
		return
	}
	if s.storage == nil {
		fail(c, http.StatusServiceUnavailable, "Upload Failed: storage not configured")
		return
	}

	url, err := s.storage.Upload(c.Request.Context(), header.Filename, data)
	if err != nil {
		s.log.Error().Err(err).Str("file", header.Filename).Msg("photo upload failed")
		fail(c, http.StatusInternalServerError, "Upload Failed: "+err.Error())
		return
	}
	s.log.Info().Str("file", header.Filename).Int("bytes", len(data)).Str("url", url).Msg("photo stored")
	c.JSON(http.StatusOK, gin.H{"success": true, "photoUrl": url})
}

type emailRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (s *Server) sendEmail(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.To) == "" || strings.TrimSpace(req.Subject) == "" {
		fail(c, http.StatusBadRequest, "to and subject are required")
		return
	}
	if s.mailer == nil {
		fail(c, http.StatusInternalServerError, "mail relay not configured")
		return
	}

	err := s.mailer.Send(c.Request.Context(), req.To, req.Subject, req.Body)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true, "messageId": "<" + uuid.NewString() + "@classroll>"})
	case errors.Is(err, mailer.ErrAuth):
		s.log.Error().Err(err).Str("to", req.To).Msg("smtp auth rejected")
		fail(c, http.StatusUnauthorized, "Failed to send email. Check SMTP credentials.")
	case errors.Is(err, mailer.ErrNotConfigured):
		fail(c, http.StatusInternalServerError, "SMTP username or password missing.")
	default:
		s.log.Error().Err(err).Str("to", req.To).Msg("send email failed")
		fail(c, http.StatusInternalServerError, "Failed to send email due to server error.")
	}
}
