package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/teamflow-dev/teamflow/internal/cliui"
	"github.com/teamflow-dev/teamflow/internal/orchestrator"
)

func TestRenderResult_FailedReturnsError(t *testing.T) {
	var buf bytes.Buffer
	renderer := cliui.NewLipglossRenderer()

	err := renderResult(&buf, renderer, orchestrator.PhaseResult{
		Status:   orchestrator.StatusFailed,
		Messages: []string{"pushing branch: connection refused"},
	})
	if err == nil {
		t.Fatal("expected an error for a failed phase result")
	}
	if !strings.Contains(buf.String(), "pushing branch") {
		t.Errorf("output = %q, want it to mention the failure message", buf.String())
	}
}

func TestRenderResult_CompletedAndAbortedReturnNoError(t *testing.T) {
	var buf bytes.Buffer
	renderer := cliui.NewLipglossRenderer()

	if err := renderResult(&buf, renderer, orchestrator.PhaseResult{Status: orchestrator.StatusCompleted}); err != nil {
		t.Errorf("completed: unexpected error %v", err)
	}
	if err := renderResult(&buf, renderer, orchestrator.PhaseResult{Status: orchestrator.StatusAborted}); err != nil {
		t.Errorf("aborted: unexpected error %v", err)
	}
}

func TestRefuseExtraArgs(t *testing.T) {
	if err := refuseExtraArgs("start", nil); err != nil {
		t.Errorf("unexpected error for no args: %v", err)
	}
	if err := refuseExtraArgs("start", []string{"unexpected"}); err == nil {
		t.Error("expected an error for unexpected positional args")
	}
}

func TestIndexOf(t *testing.T) {
	items := []string{"a", "b", "c"}
	if got := indexOf(items, "b"); got != 1 {
		t.Errorf("indexOf(b) = %d, want 1", got)
	}
	if got := indexOf(items, "z"); got != -1 {
		t.Errorf("indexOf(z) = %d, want -1", got)
	}
}

func TestFixProjectEnv_CopiesFromExample(t *testing.T) {
	dir := t.TempDir()
	examplePath := filepath.Join(dir, ".env.example")
	if err := os.WriteFile(examplePath, []byte("GITHUB_TOKEN=changeme\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := fixProjectEnv(dir); err != nil {
		t.Fatalf("fixProjectEnv: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, ".env"))
	if err != nil {
		t.Fatalf("expected .env to be created: %v", err)
	}
	if string(data) != "GITHUB_TOKEN=changeme\n" {
		t.Errorf(".env contents = %q", data)
	}
}

func TestFixProjectEnv_NoExampleIsError(t *testing.T) {
	dir := t.TempDir()
	if err := fixProjectEnv(dir); err == nil {
		t.Error("expected an error when neither .env nor .env.example exist")
	}
}

func TestFixProjectEnv_ExistingEnvIsLeftAlone(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("GITHUB_TOKEN=real\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := fixProjectEnv(dir); err != nil {
		t.Fatalf("fixProjectEnv: %v", err)
	}

	data, err := os.ReadFile(envPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "GITHUB_TOKEN=real\n" {
		t.Errorf(".env was overwritten: %q", data)
	}
}

func TestWriteUserGlobalConfig(t *testing.T) {
	home := t.TempDir()
	if err := writeUserGlobalConfig(home, userSetupValues{GithubToken: "tok", DefaultBranch: "main"}); err != nil {
		t.Fatalf("writeUserGlobalConfig: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(home, ".team-flow", "config.json"))
	if err != nil {
		t.Fatalf("expected config.json to be written: %v", err)
	}
	if !strings.Contains(string(data), `"github_token": "tok"`) {
		t.Errorf("config.json = %s", data)
	}
}
