package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestIssueParseRoundTrip(t *testing.T) {
	iss := NewIssuer("classroll", "secret", time.Hour)
	tok, err := iss.Issue("S001", RoleStudent)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := iss.Parse(tok.AccessToken)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "S001" || claims.Role != RoleStudent {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestParseRejects(t *testing.T) {
	iss := NewIssuer("classroll", "secret", time.Hour)
	tok, _ := iss.Issue("admin", RoleAdmin)

	other := NewIssuer("classroll", "other-secret", time.Hour)
	if _, err := other.Parse(tok.AccessToken); err == nil {
		t.Fatalf("expected signature failure")
	}
	wrongIssuer := NewIssuer("someone-else", "secret", time.Hour)
	if _, err := wrongIssuer.Parse(tok.AccessToken); err == nil {
		t.Fatalf("expected issuer mismatch")
	}
	later := NewIssuer("classroll", "secret", time.Hour)
	later.Now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := later.Parse(tok.AccessToken); err == nil {
		t.Fatalf("expected expiry failure")
	}
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	iss := NewIssuer("classroll", "secret", time.Hour)
	r := gin.New()
	r.GET("/admin", Bearer(iss), RequireRole(RoleAdmin), func(c *gin.Context) {
		claims, _ := FromContext(c)
		c.String(http.StatusOK, claims.Subject)
	})

	admin, _ := iss.Issue("admin", RoleAdmin)
	student, _ := iss.Issue("S001", RoleStudent)
	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"student", "Bearer " + student.AccessToken, http.StatusForbidden},
		{"admin", "Bearer " + admin.AccessToken, http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, rec.Code)
		}
	}
}

func TestRateKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	iss := NewIssuer("classroll", "secret", time.Hour)
	key := RateKey(iss)
	student, _ := iss.Issue("S001", RoleStudent)

	cases := []struct {
		name   string
		header string
		want   string
	}{
		{"student", "Bearer " + student.AccessToken, RoleStudent + ":S001"},
		{"anonymous", "", "ip:192.0.2.1"},
		{"bad token", "Bearer nope", "ip:192.0.2.1"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.0.2.1:5555"
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = req
		if got := key(c); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}
