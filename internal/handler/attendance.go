package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"classroll/internal/attendance"
	"classroll/internal/calendar"
)

func (h *Handler) dailySheet(c *gin.Context) {
	day, ok := h.dateParam(c)
	if !ok {
		return
	}
	filter, err := attendance.ParseFilter(c.Query("filter"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	sheet, err := h.svc.Reports.Daily(c.Request.Context(), day, filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	entries := make([]gin.H, 0, len(sheet.Entries))
	for _, e := range sheet.Entries {
		entries = append(entries, gin.H{"student": viewOf(e.Student), "status": e.Status, "pending": e.Pending})
	}
	c.JSON(http.StatusOK, gin.H{
		"date":               sheet.Date,
		"total":              sheet.Total,
		"present":            sheet.Present,
		"absent":             sheet.Absent,
		"notifications_sent": sheet.NotificationsSent,
		"entries":            entries,
	})
}

func (h *Handler) scan(c *gin.Context) {
	var req struct {
		ID   string `json:"id"`
		Date string `json:"date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	day, ok := h.parseDate(c, req.Date)
	if !ok {
		return
	}
	st, status, err := h.svc.Scan(c.Request.Context(), req.ID, day)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"student": viewOf(st), "date": day, "status": status})
}

func (h *Handler) toggle(c *gin.Context) {
	day, ok := h.dateParam(c)
	if !ok {
		return
	}
	status, err := h.svc.Ledger.Toggle(c.Request.Context(), c.Param("id"), day)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"student_id": attendance.NormalizeID(c.Param("id")), "date": day, "status": status})
}

func (h *Handler) markPresent(c *gin.Context) {
	h.set(c, true)
}

func (h *Handler) clear(c *gin.Context) {
	h.set(c, false)
}

func (h *Handler) set(c *gin.Context, present bool) {
	day, ok := h.dateParam(c)
	if !ok {
		return
	}
	id := c.Param("id")
	var err error
	status := attendance.Unmarked
	if present {
		err = h.svc.Ledger.SetPresent(c.Request.Context(), id, day)
		status = attendance.Present
	} else {
		err = h.svc.Ledger.Clear(c.Request.Context(), id, day)
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"student_id": attendance.NormalizeID(id), "date": day, "status": status})
}

func (h *Handler) listRequests(c *gin.Context) {
	reqs, err := h.svc.Requests.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": reqs})
}

func (h *Handler) approve(c *gin.Context) {
	r, err := h.svc.Requests.Approve(c.Request.Context(), c.Param("rid"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"request": r, "status": attendance.Present})
}

func (h *Handler) reject(c *gin.Context) {
	r, err := h.svc.Requests.Reject(c.Request.Context(), c.Param("rid"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"request": r})
}

func (h *Handler) candidates(c *gin.Context) {
	ctx := c.Request.Context()
	today := h.svc.Today()
	cands, err := h.svc.Analyzer.Candidates(ctx, today)
	if err != nil {
		h.writeError(c, err)
		return
	}
	sent, err := h.svc.Notifications.SentTodayCount(ctx)
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := make([]gin.H, 0, len(cands))
	for _, cand := range cands {
		out = append(out, gin.H{"student": viewOf(cand.Student), "streak": cand.Streak})
	}
	c.JSON(http.StatusOK, gin.H{"date": today, "sent_today": sent, "candidates": out})
}

func (h *Handler) sendAlert(c *gin.Context) {
	streak, err := h.svc.Alert(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"student_id": attendance.NormalizeID(c.Param("id")), "streak": streak, "sent": true})
}

func (h *Handler) monthly(c *gin.Context) {
	today := h.svc.Today()
	year, month := today.Year, today.Month
	if raw := c.Query("month"); raw != "" {
		var err error
		year, month, err = calendar.ParseMonth(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "month must be YYYY-MM"})
			return
		}
	}
	rep, err := h.svc.Reports.BuildMonthly(c.Request.Context(), year, month)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}
