package tika

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/cv-screener/internal/domain"
)

func writeTempCV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cv.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestExtractPath_Success(t *testing.T) {
	long := strings.Repeat("experienced Go engineer ", 10)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/tika", r.URL.Path)
		assert.Equal(t, "text/plain", r.Header.Get("Accept"))
		assert.Equal(t, "text/plain", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte("  " + long + "\n\n\x00"))
	}))
	defer srv.Close()

	path := writeTempCV(t, "raw bytes")
	got, err := New(srv.URL).ExtractPath(context.Background(), "cv.txt", path)
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSpace(strings.Join(strings.Fields(long), " ")), got)
}

func TestExtractPath_TooShort(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("too short"))
	}))
	defer srv.Close()

	path := writeTempCV(t, "raw bytes")
	_, err := New(srv.URL).ExtractPath(context.Background(), "cv.txt", path)
	require.ErrorIs(t, err, domain.ErrTooShort)
}

func TestExtractPath_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	path := writeTempCV(t, "raw bytes")
	_, err := New(srv.URL).ExtractPath(context.Background(), "cv.pdf", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tika status 422")
}

func TestExtractPath_DisallowedPath(t *testing.T) {
	_, err := New("http://unused").ExtractPath(context.Background(), "passwd", "/etc/passwd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disallowed path")
}

func TestContentTypeFromExt(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "application/pdf", contentTypeFromExt(".PDF"))
	assert.Equal(t, "text/plain", contentTypeFromExt(".txt"))
	assert.Empty(t, contentTypeFromExt(""))
}
