// Package handler exposes the attendance service over HTTP.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"classroll/internal/attendance"
	"classroll/internal/auth"
	"classroll/internal/calendar"
	"classroll/internal/store"
)

// Options configures the API handler.
type Options struct {
	Service       *attendance.Service
	Issuer        *auth.Issuer
	AdminUsername string
	AdminPassword string
	MaxPhotoBytes int64
	// Checks are reported by /healthz; any unhealthy backend yields 503.
	Checks map[string]store.Pinger
	Logger zerolog.Logger
}

// Handler serves the attendance API.
type Handler struct {
	svc      *attendance.Service
	issuer   *auth.Issuer
	adminU   string
	adminP   string
	maxPhoto int64
	checks   map[string]store.Pinger
	log      zerolog.Logger
}

// New creates the handler.
func New(opts Options) *Handler {
	if opts.MaxPhotoBytes <= 0 {
		opts.MaxPhotoBytes = 5 << 20
	}
	return &Handler{
		svc:      opts.Service,
		issuer:   opts.Issuer,
		adminU:   opts.AdminUsername,
		adminP:   opts.AdminPassword,
		maxPhoto: opts.MaxPhotoBytes,
		checks:   opts.Checks,
		log:      opts.Logger,
	}
}

// Register mounts every route on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", h.healthz)

	api := r.Group("/api")
	api.POST("/auth/login", h.login)
	api.POST("/students/register", h.register)

	admin := api.Group("", auth.Bearer(h.issuer), auth.RequireRole(auth.RoleAdmin))
	admin.GET("/students", h.listStudents)
	admin.POST("/students", h.quickAdd)
	admin.PUT("/students/:id", h.updateStudent)
	admin.DELETE("/students/:id", h.removeStudent)

	admin.GET("/attendance/:date", h.dailySheet)
	admin.POST("/attendance/scan", h.scan)
	admin.POST("/attendance/:date/:id/toggle", h.toggle)
	admin.PUT("/attendance/:date/:id", h.markPresent)
	admin.DELETE("/attendance/:date/:id", h.clear)

	admin.GET("/requests", h.listRequests)
	admin.POST("/requests/:rid/approve", h.approve)
	admin.POST("/requests/:rid/reject", h.reject)

	admin.GET("/notifications", h.candidates)
	admin.POST("/notifications/:id/send", h.sendAlert)

	admin.GET("/reports/monthly", h.monthly)

	student := api.Group("/me", auth.Bearer(h.issuer), auth.RequireRole(auth.RoleStudent))
	student.GET("", h.me)
	student.POST("/requests", h.submitRequest)
}

func (h *Handler) healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	out := gin.H{"status": "ok"}
	status := http.StatusOK
	for name, p := range h.checks {
		ok := p.Healthy(ctx)
		out[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			out["status"] = "degraded"
		}
	}
	c.JSON(status, out)
}

// writeError maps domain errors onto HTTP statuses.
func (h *Handler) writeError(c *gin.Context, err error) {
	var verr *attendance.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "fields": verr.Fields})
	case errors.Is(err, attendance.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrDuplicateRequest),
		errors.Is(err, attendance.ErrDuplicateID),
		errors.Is(err, attendance.ErrAlreadyNotified),
		errors.Is(err, attendance.ErrNotEligible):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrRelayFailure):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// dateParam reads :date, accepting "today".
func (h *Handler) dateParam(c *gin.Context) (calendar.Date, bool) {
	return h.parseDate(c, c.Param("date"))
}

func (h *Handler) parseDate(c *gin.Context, raw string) (calendar.Date, bool) {
	if raw == "" || raw == "today" {
		return h.svc.Today(), true
	}
	d, err := calendar.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return calendar.Date{}, false
	}
	return d, true
}
