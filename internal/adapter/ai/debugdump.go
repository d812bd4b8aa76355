package ai

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var unsafeFilenameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// DebugDumper persists raw model responses that defeated the repair layer.
// Artifacts are write-only: the pipeline never reads them back. One file
// per candidate+timestamp, so concurrent workers never contend on a path.
type DebugDumper struct {
	dir string
}

// NewDebugDumper returns a dumper writing under dir. An empty dir disables
// dumping entirely.
func NewDebugDumper(dir string) *DebugDumper {
	return &DebugDumper{dir: dir}
}

// Dump writes the raw response with its classification tag. Failures are
// logged and swallowed; diagnostics must never affect scoring.
func (d *DebugDumper) Dump(candidate, tag, raw string) {
	if d == nil || d.dir == "" {
		return
	}
	now := time.Now().UTC()
	name := fmt.Sprintf("%s_%s_%s.txt",
		sanitizeFilename(candidate), tag, now.Format("20060102T150405.000000000"))

	if err := os.MkdirAll(d.dir, 0o750); err != nil {
		slog.Warn("debug dump dir create failed", slog.String("dir", d.dir), slog.Any("error", err))
		return
	}

	var b strings.Builder
	b.WriteString("candidate: " + candidate + "\n")
	b.WriteString("classification: " + tag + "\n")
	b.WriteString("timestamp: " + now.Format(time.RFC3339Nano) + "\n")
	b.WriteString("---\n")
	b.WriteString(raw)

	path := filepath.Join(d.dir, name)
	if err := os.WriteFile(path, []byte(b.String()), 0o640); err != nil {
		slog.Warn("debug dump write failed", slog.String("path", path), slog.Any("error", err))
		return
	}
	slog.Debug("debug dump written", slog.String("path", path), slog.String("tag", tag))
}

func sanitizeFilename(s string) string {
	s = unsafeFilenameRe.ReplaceAllString(s, "_")
	if s == "" {
		return "unknown"
	}
	return s
}
