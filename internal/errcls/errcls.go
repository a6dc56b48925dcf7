// Package errcls implements the Error Handler (§4.2): classification of
// every error into a severity, process-wide hooks for unhandled
// failures and termination signals, and classification counters
// surfaced via diagnostics.
package errcls

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/teamflow-dev/teamflow/internal/history"
)

// Severity is one of the four classification buckets from §4.2.
type Severity string

const (
	SeverityCritical    Severity = "critical"
	SeverityRecoverable Severity = "recoverable"
	SeverityWarning     Severity = "warning"
	SeverityUnknown     Severity = "unknown"
)

// ErrorType is the fine-grained error kind the Recovery Manager's
// strategy table (§4.3) keys on.
type ErrorType string

const (
	TypeRepoCorruption      ErrorType = "REPO_CORRUPTION"
	TypePermissionDenied    ErrorType = "PERMISSION_DENIED"
	TypeDiskFull            ErrorType = "DISK_FULL"
	TypeOutOfMemory         ErrorType = "OUT_OF_MEMORY"
	TypeAuthFailed          ErrorType = "AUTH_FAILED"
	TypeNetworkTimeout      ErrorType = "NETWORK_TIMEOUT"
	TypeConnectionRefused   ErrorType = "CONNECTION_REFUSED"
	TypeMergeConflict       ErrorType = "MERGE_CONFLICT"
	TypeAPIRateLimit        ErrorType = "API_RATE_LIMIT"
	TypeFileNotFound        ErrorType = "FILE_NOT_FOUND"
	TypeFileBusy            ErrorType = "FILE_BUSY"
	TypeConfigurationMissing ErrorType = "CONFIGURATION_MISSING"
	TypeOptionalMissing     ErrorType = "OPTIONAL_MISSING"
	TypeDeprecated          ErrorType = "DEPRECATED"
	TypeUnknown             ErrorType = "UNKNOWN"
)

// Classification is the outcome of classifying one error.
type Classification struct {
	Severity Severity
	Type     ErrorType
	Err      error
}

type patternRule struct {
	pattern  *regexp.Regexp
	severity Severity
	errType  ErrorType
}

// rules are checked in order; the first match wins. Ordering matters
// where triggers could overlap (e.g. "timeout" vs. a more specific
// phrase) — more specific patterns are listed first.
var rules = []patternRule{
	{regexp.MustCompile(`(?i)repository (is )?corrupt`), SeverityCritical, TypeRepoCorruption},
	{regexp.MustCompile(`(?i)permission denied|EACCES|EPERM`), SeverityCritical, TypePermissionDenied},
	{regexp.MustCompile(`(?i)no space left on device|ENOSPC`), SeverityCritical, TypeDiskFull},
	{regexp.MustCompile(`(?i)out of memory|cannot allocate memory`), SeverityCritical, TypeOutOfMemory},
	{regexp.MustCompile(`(?i)authentication failed|bad credentials|unauthorized`), SeverityCritical, TypeAuthFailed},

	{regexp.MustCompile(`(?i)rate limit`), SeverityRecoverable, TypeAPIRateLimit},
	{regexp.MustCompile(`(?i)merge conflict|conflict in|automatic merge failed`), SeverityRecoverable, TypeMergeConflict},
	{regexp.MustCompile(`(?i)connection refused`), SeverityRecoverable, TypeConnectionRefused},
	{regexp.MustCompile(`(?i)timeout|timed out|deadline exceeded`), SeverityRecoverable, TypeNetworkTimeout},
	{regexp.MustCompile(`(?i)resource temporarily unavailable|text file busy|EBUSY`), SeverityRecoverable, TypeFileBusy},
	{regexp.MustCompile(`(?i)no such file or directory|file not found|ENOENT`), SeverityRecoverable, TypeFileNotFound},

	{regexp.MustCompile(`(?i)optional .* (missing|not found|unavailable)`), SeverityWarning, TypeOptionalMissing},
	{regexp.MustCompile(`(?i)deprecated`), SeverityWarning, TypeDeprecated},
	{regexp.MustCompile(`(?i)configuration (incomplete|missing)`), SeverityWarning, TypeConfigurationMissing},
}

// Classify matches err's message against the §4.2 trigger table and
// returns its severity and error type. A nil err classifies as an
// empty, zero-value Classification — callers should not invoke Classify
// with a nil error.
func Classify(err error) Classification {
	if err == nil {
		return Classification{}
	}
	msg := err.Error()
	for _, r := range rules {
		if r.pattern.MatchString(msg) {
			return Classification{Severity: r.severity, Type: r.errType, Err: err}
		}
	}
	return Classification{Severity: SeverityUnknown, Type: TypeUnknown, Err: err}
}

// Handler is the process-wide Error Handler: it classifies errors,
// persists classification counts, and owns the shutdown sequence.
type Handler struct {
	store   *history.Store
	log     *slog.Logger
	cleanup []func()
}

// New builds a Handler backed by store for counters and log for
// structured reporting.
func New(store *history.Store, log *slog.Logger) *Handler {
	return &Handler{store: store, log: log}
}

// Handle classifies err, records the classification, logs according to
// severity, and returns the classification for the caller (typically
// the Recovery Manager or a phase) to act on.
func (h *Handler) Handle(ctx context.Context, err error) Classification {
	c := Classify(err)
	if c.Err == nil {
		return c
	}

	if h.store != nil {
		if incErr := h.store.IncrementClassification(string(c.Severity)); incErr != nil && h.log != nil {
			h.log.WarnContext(ctx, "failed to persist classification count", "error", incErr)
		}
	}

	switch c.Severity {
	case SeverityCritical:
		if h.log != nil {
			h.log.ErrorContext(ctx, "critical error", "type", string(c.Type), "error", err)
		}
	case SeverityWarning:
		if h.log != nil {
			h.log.WarnContext(ctx, "warning", "type", string(c.Type), "error", err)
		}
	case SeverityUnknown:
		if h.log != nil {
			h.log.ErrorContext(ctx, "unclassified error", "error", err)
		}
	default:
		if h.log != nil {
			h.log.InfoContext(ctx, "recoverable error", "type", string(c.Type), "error", err)
		}
	}
	return c
}

// Counts returns the persisted classification counters, for
// diagnostics reporting.
func (h *Handler) Counts() (map[string]int, error) {
	if h.store == nil {
		return map[string]int{}, nil
	}
	return h.store.ClassificationCounts()
}

// RegisterCleanup adds a callback run during graceful shutdown, in
// registration order.
func (h *Handler) RegisterCleanup(fn func()) {
	h.cleanup = append(h.cleanup, fn)
}

// InstallSignalHandler installs a process-wide hook for SIGINT/SIGTERM.
// The returned context is cancelled on receipt of either signal, when
// parent is cancelled, or when the returned stop function is called;
// stop must be called (typically via defer) to release the hook. Once
// the context is done, the registered cleanup callbacks run on a
// separate goroutine, concurrently with any caller observing the
// cancellation; nothing waits for them to finish.
func (h *Handler) InstallSignalHandler(parent context.Context) (context.Context, func()) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		for _, fn := range h.cleanup {
			fn()
		}
	}()
	return ctx, stop
}

// Shutdown runs registered cleanup callbacks and returns the process
// exit code: 0 for a graceful shutdown, 1 if cause is non-nil
// (unhandled failure).
func (h *Handler) Shutdown(cause error) int {
	for _, fn := range h.cleanup {
		fn()
	}
	if cause == nil {
		return 0
	}
	if h.log != nil {
		h.log.Error("unhandled failure, exiting", "error", cause)
	}
	return 1
}

// IsTemporary reports whether err classifies as recoverable, as a
// quick boolean for callers that do not need the full Classification.
func IsTemporary(err error) bool {
	if err == nil {
		return false
	}
	c := Classify(err)
	return c.Severity == SeverityRecoverable
}
