package dotenv

import (
	"os"
	"path/filepath"
	"testing"
)

func writeEnv(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestLoad_ParsesKeyValuePairs(t *testing.T) {
	path := writeEnv(t, "GITHUB_TOKEN=ghp_abc\nDEBUG=true\n")
	vals, err := (Loader{}).Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if vals["GITHUB_TOKEN"] != "ghp_abc" {
		t.Errorf("GITHUB_TOKEN = %q", vals["GITHUB_TOKEN"])
	}
	if vals["DEBUG"] != "true" {
		t.Errorf("DEBUG = %q", vals["DEBUG"])
	}
}

func TestLoad_SkipsCommentsAndBlankLines(t *testing.T) {
	path := writeEnv(t, "# comment\n\nNODE_ENV=test\n")
	vals, err := (Loader{}).Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(vals) != 1 || vals["NODE_ENV"] != "test" {
		t.Errorf("vals = %v", vals)
	}
}

func TestLoad_StripsQuotesAndExportPrefix(t *testing.T) {
	path := writeEnv(t, `export SLACK_CHANNEL="#dev-team"`)
	vals, err := (Loader{}).Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if vals["SLACK_CHANNEL"] != "#dev-team" {
		t.Errorf("SLACK_CHANNEL = %q", vals["SLACK_CHANNEL"])
	}
}

func TestLoad_MissingFileReturnsNotExist(t *testing.T) {
	_, err := (Loader{}).Load(filepath.Join(t.TempDir(), "nope.env"))
	if !os.IsNotExist(err) {
		t.Fatalf("expected IsNotExist, got %v", err)
	}
}

func TestLoad_MissingEqualsIsError(t *testing.T) {
	path := writeEnv(t, "NOT_A_PAIR\n")
	if _, err := (Loader{}).Load(path); err == nil {
		t.Fatal("expected error for malformed line")
	}
}
