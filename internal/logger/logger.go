// Package logger wraps log/slog with the formatting and secret-masking
// team-flow applies to every log line, regardless of which phase or
// adapter emits it.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

const maskedValue = "***masked***"

// sensitiveKeyFragments are matched case-insensitively against attr keys.
var sensitiveKeyFragments = []string{"token", "password", "secret", "key", "auth", "credential"}

var messagePatterns = []*regexp.Regexp{
	regexp.MustCompile(`ghp_[A-Za-z0-9]+`),
	regexp.MustCompile(`github_pat_[A-Za-z0-9_]+`),
	regexp.MustCompile(`(?i)token:\s*\S+`),
	regexp.MustCompile(`(?i)password:\s*\S+`),
}

// New builds the default team-flow logger: it writes every record to
// logPath (created if necessary) and, unless quiet is true, also
// writes warn/error records to stderr. A failure to open logPath
// degrades to stderr-only logging rather than erroring the caller —
// a broken log file must never block the CLI from running.
func New(logPath string, quiet bool) *slog.Logger {
	var fileWriter io.Writer = io.Discard
	if logPath != "" {
		if err := os.MkdirAll(filepath.Dir(logPath), 0755); err == nil {
			if f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
				fileWriter = f
			}
		}
	}

	st := &sinkState{
		out: fileWriter,
		mirror: func() io.Writer {
			if quiet {
				return nil
			}
			return os.Stderr
		}(),
	}
	h := &maskingHandler{sink: st, level: slog.LevelDebug}
	return slog.New(h)
}

// sinkState holds the mutable, shared parts of a handler tree — the
// underlying writers and the lock guarding them. Every derived handler
// from WithAttrs/WithGroup shares the same sinkState pointer instead of
// copying a mutex.
type sinkState struct {
	out    io.Writer
	mirror io.Writer
	mu     sync.Mutex
}

// maskingHandler renders "[<ISO-8601 UTC>] [<LEVEL>] <message> key=value ..."
// lines, masking sensitive attrs and message substrings before they are
// ever formatted. It never returns an error from Handle: write failures
// are swallowed so logging can never fail an operation.
type maskingHandler struct {
	sink  *sinkState
	level slog.Level
	attrs []slog.Attr
	group string
}

func (h *maskingHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *maskingHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(r.Time.UTC().Format(time.RFC3339))
	b.WriteString("] [")
	b.WriteString(r.Level.String())
	b.WriteString("] ")
	b.WriteString(maskMessage(r.Message))

	for _, a := range h.attrs {
		writeAttr(&b, h.group, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, h.group, a)
		return true
	})
	b.WriteByte('\n')
	line := b.String()

	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	if h.sink.out != nil {
		_, _ = io.WriteString(h.sink.out, line)
	}
	if h.sink.mirror != nil && r.Level >= slog.LevelWarn {
		_, _ = io.WriteString(h.sink.mirror, line)
	}
	return nil
}

func (h *maskingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

func (h *maskingHandler) WithGroup(name string) slog.Handler {
	next := *h
	next.group = name
	return &next
}

func writeAttr(b *strings.Builder, group string, a slog.Attr) {
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if group != "" {
		key = group + "." + key
	}
	value := a.Value.String()
	if isSensitiveKey(a.Key) {
		value = maskedValue
	} else {
		value = maskMessage(value)
	}
	b.WriteByte(' ')
	b.WriteString(key)
	b.WriteByte('=')
	fmt.Fprintf(b, "%q", value)
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, frag := range sensitiveKeyFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

func maskMessage(s string) string {
	for _, pat := range messagePatterns {
		s = pat.ReplaceAllString(s, maskedValue)
	}
	return s
}
