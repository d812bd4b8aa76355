// Package tika provides Apache Tika integration for text extraction.
//
// It extracts plain text from CV documents (PDF, Word, plain text) via a
// Tika server. Output is sanitized and whitespace-collapsed; text shorter
// than the minimum CV length is reported as an extraction failure so the
// candidate is skipped before scoring.
package tika

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/cv-screener/internal/domain"
	"github.com/fairyhunter13/cv-screener/pkg/textx"
)

// Client is a minimal Apache Tika HTTP client implementing domain.TextExtractor.
// It performs PUT /tika with Accept: text/plain to retrieve extracted text.
// See: https://tika.apache.org/server/ for API details.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New constructs a Tika client with a default timeout. Requests carry
// trace spans so extraction latency shows up alongside the model calls.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// ExtractPath uploads the file at path to the Tika server and returns plain
// text. Returns domain.ErrTooShort when the extracted text is below
// domain.MinCVTextLen characters.
func (c *Client) ExtractPath(ctx context.Context, fileName, path string) (string, error) {
	// Constrain readable paths: uploads land in the temp dir, CLI input in
	// the working tree. Absolute paths elsewhere are opt-in via env.
	openPath, err := resolvePath(path)
	if err != nil {
		return "", err
	}
	bfile, err := os.ReadFile(openPath)
	if err != nil {
		return "", fmt.Errorf("op=tika.ExtractPath: %w", err)
	}

	u := c.baseURL
	if u == "" {
		u = "http://localhost:9998"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u+"/tika", bytes.NewReader(bfile))
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/plain")
	// Content-Type best-effort from extension
	if ct := contentTypeFromExt(filepath.Ext(fileName)); ct != "" {
		req.Header.Set("Content-Type", ct)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("op=tika.ExtractPath: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("op=tika.ExtractPath: tika status %d", resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	// Sanitize control characters, then collapse all whitespace to single spaces
	result := textx.CollapseWhitespace(textx.SanitizeText(string(b)))
	if len(result) < domain.MinCVTextLen {
		return "", fmt.Errorf("op=tika.ExtractPath: %w: %d chars extracted from %s", domain.ErrTooShort, len(result), fileName)
	}
	return result, nil
}

func resolvePath(path string) (string, error) {
	if os.Getenv("TIKA_ALLOW_ABSPATHS") == "1" {
		if abs, err := filepath.Abs(path); err == nil {
			return filepath.Clean(abs), nil
		}
		return path, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	abs = filepath.Clean(abs)
	tmp := filepath.Clean(os.TempDir())
	wd, _ := os.Getwd()
	wd = filepath.Clean(wd)
	for _, base := range []string{tmp, wd} {
		if strings.HasPrefix(abs, base+string(os.PathSeparator)) || abs == base {
			rel, err := filepath.Rel(base, abs)
			if err != nil {
				return "", err
			}
			return filepath.Join(base, rel), nil
		}
	}
	return "", fmt.Errorf("disallowed path: %s", abs)
}

func contentTypeFromExt(ext string) string {
	ext = strings.ToLower(ext)
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".txt":
		return "text/plain"
	default:
		if ext != "" {
			return mime.TypeByExtension(ext)
		}
	}
	return ""
}
