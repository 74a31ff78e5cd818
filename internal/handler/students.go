package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"classroll/internal/attendance"
	"classroll/internal/auth"
)

// studentView is a student without credentials.
type studentView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Class     string    `json:"class"`
	Email     string    `json:"email"`
	Photo     string    `json:"photo"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

func viewOf(s attendance.Student) studentView {
	return studentView{
		ID:        s.ID,
		Name:      s.Name,
		Class:     s.Class,
		Email:     s.Email,
		Photo:     s.Photo,
		Username:  s.Username,
		CreatedAt: s.CreatedAt,
	}
}

func (h *Handler) login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	username := strings.TrimSpace(req.Username)
	password := strings.TrimSpace(req.Password)

	if h.adminU != "" && username == h.adminU && password == h.adminP {
		tok, err := h.issuer.Issue(username, auth.RoleAdmin)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusOK, tok)
		return
	}

	st, err := h.svc.Authenticate(c.Request.Context(), username, password)
	if err != nil {
		if errors.Is(err, attendance.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		h.writeError(c, err)
		return
	}
	tok, err := h.issuer.Issue(st.ID, auth.RoleStudent)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": tok.AccessToken, "expires_at": tok.ExpiresAt, "role": tok.Role, "subject": tok.Subject, "student": viewOf(st)})
}

// register accepts the sign-up form as multipart (with optional studentPhoto)
// or JSON.
func (h *Handler) register(c *gin.Context) {
	var reg attendance.Registration
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxPhoto+64<<10)
		if err := c.Request.ParseMultipartForm(32 << 20); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "photo too large"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		reg = attendance.Registration{
			ID:       c.PostForm("id"),
			Name:     c.PostForm("name"),
			Class:    c.PostForm("class"),
			Email:    c.PostForm("email"),
			Username: c.PostForm("username"),
			Password: c.PostForm("password"),
		}
		file, header, err := c.Request.FormFile("studentPhoto")
		switch {
		case err == nil:
			defer file.Close()
			if header.Size > h.maxPhoto {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "photo too large"})
				return
			}
			data, err := io.ReadAll(file)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "read photo failed"})
				return
			}
			reg.PhotoName, reg.Photo = header.Filename, data
		case errors.Is(err, http.ErrMissingFile):
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	} else {
		var body struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Class    string `json:"class"`
			Email    string `json:"email"`
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		reg = attendance.Registration{
			ID: body.ID, Name: body.Name, Class: body.Class,
			Email: body.Email, Username: body.Username, Password: body.Password,
		}
	}

	st, err := h.svc.Register(c.Request.Context(), reg)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewOf(st))
}

func (h *Handler) listStudents(c *gin.Context) {
	students, err := h.svc.Roster.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := make([]studentView, 0, len(students))
	for _, s := range students {
		out = append(out, viewOf(s))
	}
	c.JSON(http.StatusOK, gin.H{"students": out})
}

func (h *Handler) quickAdd(c *gin.Context) {
	var req struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Class string `json:"class"`
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st, err := h.svc.QuickAdd(c.Request.Context(), req.ID, req.Name, req.Class, req.Email)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewOf(st))
}

func (h *Handler) updateStudent(c *gin.Context) {
	var req struct {
		Name  string `json:"name"`
		Class string `json:"class"`
		Email string `json:"email"`
		Photo string `json:"photo"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st, err := h.svc.Roster.Update(c.Request.Context(), c.Param("id"), attendance.Profile{
		Name: req.Name, Class: req.Class, Email: req.Email, Photo: req.Photo,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(st))
}

func (h *Handler) removeStudent(c *gin.Context) {
	if err := h.svc.Roster.Remove(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) me(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	st, err := h.svc.Reports.Self(c.Request.Context(), claims.Subject, h.svc.Today())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"student": viewOf(st.Student),
		"date":    st.Date,
		"status":  st.Status,
		"message": st.Message,
	})
}

// submitRequest files an attendance request for the caller. Students can only
// request for themselves.
func (h *Handler) submitRequest(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	var req struct {
		Date string `json:"date"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	day, ok := h.parseDate(c, req.Date)
	if !ok {
		return
	}
	r, err := h.svc.Requests.Submit(c.Request.Context(), claims.Subject, day)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}
