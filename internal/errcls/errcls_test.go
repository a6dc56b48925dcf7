package errcls

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/teamflow-dev/teamflow/internal/history"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		severity Severity
		errType  ErrorType
	}{
		{"permission denied", errors.New("open .git/config: permission denied"), SeverityCritical, TypePermissionDenied},
		{"no space left", errors.New("write failed: no space left on device"), SeverityCritical, TypeDiskFull},
		{"bad credentials", errors.New("401 Bad credentials"), SeverityCritical, TypeAuthFailed},
		{"timeout", errors.New("context deadline exceeded"), SeverityRecoverable, TypeNetworkTimeout},
		{"connection refused", errors.New("dial tcp: connection refused"), SeverityRecoverable, TypeConnectionRefused},
		{"merge conflict", errors.New("Automatic merge failed; fix conflicts"), SeverityRecoverable, TypeMergeConflict},
		{"rate limit", errors.New("API rate limit exceeded"), SeverityRecoverable, TypeAPIRateLimit},
		{"file not found", errors.New("open foo.txt: no such file or directory"), SeverityRecoverable, TypeFileNotFound},
		{"deprecated", errors.New("this flag is deprecated"), SeverityWarning, TypeDeprecated},
		{"configuration incomplete", errors.New("configuration incomplete: missing slack token"), SeverityWarning, TypeConfigurationMissing},
		{"unrecognized", errors.New("something bizarre happened"), SeverityUnknown, TypeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(tt.err)
			if c.Severity != tt.severity {
				t.Errorf("Severity = %q, want %q", c.Severity, tt.severity)
			}
			if c.Type != tt.errType {
				t.Errorf("Type = %q, want %q", c.Type, tt.errType)
			}
		})
	}
}

func TestClassify_NilError(t *testing.T) {
	c := Classify(nil)
	if c.Err != nil {
		t.Errorf("expected zero-value Classification for nil error, got %+v", c)
	}
}

func TestHandler_Handle_IncrementsCounters(t *testing.T) {
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	defer store.Close()

	h := New(store, nil)
	h.Handle(context.Background(), errors.New("permission denied"))
	h.Handle(context.Background(), errors.New("connection refused"))
	h.Handle(context.Background(), errors.New("something bizarre happened"))

	counts, err := h.Counts()
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts["critical"] != 1 {
		t.Errorf("critical = %d, want 1", counts["critical"])
	}
	if counts["recoverable"] != 1 {
		t.Errorf("recoverable = %d, want 1", counts["recoverable"])
	}
	if counts["unknown"] != 1 {
		t.Errorf("unknown = %d, want 1", counts["unknown"])
	}
}

func TestHandler_Shutdown_RunsCleanupAndReturnsExitCode(t *testing.T) {
	h := New(nil, nil)
	ran := false
	h.RegisterCleanup(func() { ran = true })

	if code := h.Shutdown(nil); code != 0 {
		t.Errorf("Shutdown(nil) = %d, want 0", code)
	}
	if !ran {
		t.Error("expected cleanup callback to run")
	}

	ran = false
	if code := h.Shutdown(errors.New("boom")); code != 1 {
		t.Errorf("Shutdown(err) = %d, want 1", code)
	}
	if !ran {
		t.Error("expected cleanup callback to run on failure path too")
	}
}

func TestIsTemporary(t *testing.T) {
	if !IsTemporary(errors.New("connection refused")) {
		t.Error("expected connection refused to be temporary")
	}
	if IsTemporary(errors.New("permission denied")) {
		t.Error("expected permission denied to not be temporary")
	}
	if IsTemporary(nil) {
		t.Error("expected nil to not be temporary")
	}
}
