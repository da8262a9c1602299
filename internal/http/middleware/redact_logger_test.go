package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// captureLogs redirects the global zerolog logger into a buffer for the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = orig })
	return &buf
}

func TestRedactingLogger_ScrubsQueryAndHeaders(t *testing.T) {
	buf := captureLogs(t)

	r := gin.New()
	r.Use(RedactingLogger(RedactOptions{MaskHeaders: []string{"X-Session"}}))
	r.GET("/probe", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet,
		"/probe?email=jane.doe%40example.com&id=141add05-4415-4938-b5a1-17e0d3171aff", nil)
	req.Header.Set("Authorization", "Bearer super-secret-token")
	req.Header.Set("X-Session", "session-value")
	req.Header.Set("X-Contact", "reach me at jane.doe@example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	out := buf.String()
	if strings.Contains(out, "jane.doe@example.com") {
		t.Fatalf("email leaked into logs: %s", out)
	}
	if strings.Contains(out, "141add05-4415-4938-b5a1-17e0d3171aff") {
		t.Fatalf("uuid leaked into logs: %s", out)
	}
	if strings.Contains(out, "super-secret-token") || strings.Contains(out, "session-value") {
		t.Fatalf("masked header leaked into logs: %s", out)
	}
	if !strings.Contains(out, "[REDACTED:email]") || !strings.Contains(out, "[REDACTED:id]") {
		t.Fatalf("expected redaction markers: %s", out)
	}
	if !strings.Contains(out, "http_request") {
		t.Fatalf("access log missing: %s", out)
	}
}

func TestRedactingLogger_LevelFollowsStatus(t *testing.T) {
	buf := captureLogs(t)

	r := gin.New()
	r.Use(RedactingLogger(RedactOptions{}))
	r.GET("/missing-thing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	req := httptest.NewRequest(http.MethodGet, "/missing-thing", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if !strings.Contains(buf.String(), `"level":"warn"`) {
		t.Fatalf("4xx should log at warn: %s", buf.String())
	}
}
