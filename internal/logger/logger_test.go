package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readLog(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	return string(data)
}

func TestNew_WritesFormattedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "team-flow.log")
	log := New(path, true)
	log.Info("starting phase", "branch", "feature/x")

	content := readLog(t, path)
	if !strings.Contains(content, "[INFO]") {
		t.Errorf("expected level marker, got %q", content)
	}
	if !strings.Contains(content, "starting phase") {
		t.Errorf("expected message, got %q", content)
	}
	if !strings.Contains(content, `branch="feature/x"`) {
		t.Errorf("expected branch attr, got %q", content)
	}
}

func TestNew_MasksSensitiveAttrKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "team-flow.log")
	log := New(path, true)
	log.Info("authenticated", "github_token", "ghp_realsecretvalue")

	content := readLog(t, path)
	if strings.Contains(content, "realsecretvalue") {
		t.Errorf("expected token value to be masked, got %q", content)
	}
	if !strings.Contains(content, "***masked***") {
		t.Errorf("expected mask marker, got %q", content)
	}
}

func TestNew_MasksTokenPatternsInMessage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "team-flow.log")
	log := New(path, true)
	log.Error("push failed: token: ghp_abc123XYZ rejected")

	content := readLog(t, path)
	if strings.Contains(content, "ghp_abc123XYZ") {
		t.Errorf("expected ghp_ token to be masked, got %q", content)
	}
}

func TestNew_QuietSuppressesStderrButNotFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "team-flow.log")
	log := New(path, true)
	log.Warn("degraded mode")

	content := readLog(t, path)
	if !strings.Contains(content, "degraded mode") {
		t.Errorf("expected file to still receive warn record, got %q", content)
	}
}

func TestNew_MissingDirDoesNotPanic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "team-flow.log")
	log := New(path, true)
	log.Info("ok")

	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected log file to be created under nested dirs: %v", err)
	}
}

func TestNew_WithAttrsAndGroupDoNotPanic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "team-flow.log")
	log := New(path, true).With("phase", "start").WithGroup("git")
	log.Info("branch created", "name", "feature/x")

	content := readLog(t, path)
	if !strings.Contains(content, `phase="start"`) {
		t.Errorf("expected With attr to persist, got %q", content)
	}
	if !strings.Contains(content, "git.name=") {
		t.Errorf("expected grouped attr key, got %q", content)
	}
}
