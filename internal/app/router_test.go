package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	httpserver "github.com/fairyhunter13/cv-screener/internal/adapter/httpserver"
	"github.com/fairyhunter13/cv-screener/internal/config"
)

func TestParseOrigins(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"*"}, ParseOrigins(""))
	assert.Equal(t, []string{"*"}, ParseOrigins("*"))
	assert.Equal(t, []string{"*"}, ParseOrigins(" , ,"))
	assert.Equal(t, []string{"https://a.example", "https://b.example"},
		ParseOrigins(" https://a.example, https://b.example "))
}

func TestBuildRouter_HealthAndHeaders(t *testing.T) {
	t.Parallel()

	cfg := config.Config{RateLimitPerMin: 30, MaxUploadMB: 10}
	h := BuildRouter(cfg, &httpserver.Server{Cfg: cfg})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}

func TestBuildRouter_MetricsExposed(t *testing.T) {
	t.Parallel()

	cfg := config.Config{RateLimitPerMin: 30}
	h := BuildRouter(cfg, &httpserver.Server{Cfg: cfg})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
