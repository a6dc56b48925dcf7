package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

type mapLoader map[string]string

func (m mapLoader) Load(path string) (map[string]string, error) {
	if m == nil {
		return nil, os.ErrNotExist
	}
	return m, nil
}

func TestResolve_Defaults(t *testing.T) {
	cfg, err := Resolve(t.TempDir(), nil, func(string) string { return "" })
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.DefaultBranch != "main" {
		t.Errorf("DefaultBranch = %q, want main", cfg.DefaultBranch)
	}
	if cfg.SlackChannel != "#general" {
		t.Errorf("SlackChannel = %q, want #general", cfg.SlackChannel)
	}
	if !cfg.ConfirmDestructiveActions {
		t.Error("ConfirmDestructiveActions should default true")
	}
}

func TestResolve_EnvOverridesDotenvAndGlobal(t *testing.T) {
	repo := t.TempDir()
	loader := mapLoader{"DEFAULT_BRANCH": "develop", "GITHUB_TOKEN": "from-dotenv"}
	env := func(k string) string {
		if k == "GITHUB_TOKEN" {
			return "from-env"
		}
		return ""
	}
	cfg, err := Resolve(repo, loader, env)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.DefaultBranch != "develop" {
		t.Errorf("DefaultBranch = %q, want develop (from dotenv layer)", cfg.DefaultBranch)
	}
	if cfg.GithubToken != "from-env" {
		t.Errorf("GithubToken = %q, want from-env (process env wins)", cfg.GithubToken)
	}
}

func TestResolve_DotenvMissingIsNotError(t *testing.T) {
	_, err := Resolve(t.TempDir(), mapLoader(nil), func(string) string { return "" })
	if err != nil {
		t.Fatalf("Resolve should tolerate missing .env: %v", err)
	}
}

func TestResolve_GlobalFileLayersBetweenDotenvAndEnv(t *testing.T) {
	repo := t.TempDir()
	home := t.TempDir()
	t.Setenv("HOME", home)
	globalDir := filepath.Join(home, AppDirName)
	if err := os.MkdirAll(globalDir, 0755); err != nil {
		t.Fatal(err)
	}
	data, _ := json.Marshal(map[string]any{"default_branch": "from-global", "slack_channel": "#ops"})
	if err := os.WriteFile(filepath.Join(globalDir, "config.json"), data, 0644); err != nil {
		t.Fatal(err)
	}
	loader := mapLoader{"DEFAULT_BRANCH": "from-dotenv"}

	cfg, err := Resolve(repo, loader, func(string) string { return "" })
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.DefaultBranch != "from-global" {
		t.Errorf("DefaultBranch = %q, want from-global (global file beats dotenv)", cfg.DefaultBranch)
	}
	if cfg.SlackChannel != "#ops" {
		t.Errorf("SlackChannel = %q, want #ops", cfg.SlackChannel)
	}
}

func TestValidate_RequiresGithubTokenOrApp(t *testing.T) {
	cfg := &ConfigTree{DefaultBranch: "main"}
	issues := cfg.Validate()
	found := false
	for _, i := range issues {
		if i.Field == "GithubToken" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a GithubToken issue, got %+v", issues)
	}
}

func TestValidate_GithubAppSatisfiesRequirement(t *testing.T) {
	cfg := &ConfigTree{
		DefaultBranch:           "main",
		GithubAppClientID:       "Iv1.abc",
		GithubAppInstallationID: 123,
		GithubAppPrivateKeyPath: "/tmp/key.pem",
	}
	for _, i := range cfg.Validate() {
		if i.Field == "GithubToken" {
			t.Errorf("did not expect GithubToken issue when GitHub App is configured: %+v", i)
		}
	}
}

func TestValidate_RejectsBadSlackChannelAndWebhook(t *testing.T) {
	cfg := &ConfigTree{
		DefaultBranch:  "main",
		GithubToken:    "ghp_x",
		SlackChannel:   "x",
		DiscordWebhook: "not-a-url ",
	}
	issues := cfg.Validate()
	if len(issues) == 0 {
		t.Fatal("expected validation issues")
	}
}

func TestValidate_AcceptsMinimalValidConfig(t *testing.T) {
	cfg := &ConfigTree{DefaultBranch: "main", GithubToken: "ghp_x"}
	if issues := cfg.Validate(); len(issues) != 0 {
		t.Errorf("expected no issues, got %+v", issues)
	}
}

func TestCheckConfigFile_MissingFileIsFine(t *testing.T) {
	issues, err := CheckConfigFile(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("CheckConfigFile: %v", err)
	}
	if issues != nil {
		t.Errorf("expected no issues for missing file, got %v", issues)
	}
}

func TestCheckConfigFile_RejectsBadEnumAndType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data, _ := json.Marshal(map[string]any{
		"node_env":  "staging",
		"auto_push": "yes",
	})
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	issues, err := CheckConfigFile(path)
	if err != nil {
		t.Fatalf("CheckConfigFile: %v", err)
	}
	if len(issues) == 0 {
		t.Fatal("expected schema issues for invalid node_env/auto_push")
	}
}

func TestCheckConfigFile_AcceptsValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data, _ := json.Marshal(map[string]any{
		"node_env":       "production",
		"auto_push":      true,
		"default_branch": "main",
	})
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	issues, err := CheckConfigFile(path)
	if err != nil {
		t.Fatalf("CheckConfigFile: %v", err)
	}
	if len(issues) != 0 {
		t.Errorf("expected no issues, got %v", issues)
	}
}
