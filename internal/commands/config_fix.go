package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/teamflow-dev/teamflow/internal/config"
)

// userSetupValues is the subset of the per-user global config.json
// schema (§6) the setup wizard collects.
type userSetupValues struct {
	GithubToken    string `json:"github_token,omitempty"`
	SlackToken     string `json:"slack_token,omitempty"`
	SlackChannel   string `json:"slack_channel,omitempty"`
	DiscordWebhook string `json:"discord_webhook_url,omitempty"`
	DefaultBranch  string `json:"default_branch,omitempty"`
}

// writeUserGlobalConfig persists the setup wizard's answers to
// $HOME/<app-dir>/config.json (§6 layering's per-user global file).
func writeUserGlobalConfig(home string, values userSetupValues) error {
	dir := filepath.Join(home, config.AppDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// fixProjectEnv materializes <repoRoot>/.env from .env.example when
// the former is missing, the one best-effort repair spec.md §6
// names explicitly ("create .env from example").
func fixProjectEnv(repoRoot string) error {
	envPath := filepath.Join(repoRoot, ".env")
	if _, err := os.Stat(envPath); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("checking %s: %w", envPath, err)
	}

	examplePath := filepath.Join(repoRoot, ".env.example")
	data, err := os.ReadFile(examplePath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no .env and no .env.example to copy from")
		}
		return fmt.Errorf("reading %s: %w", examplePath, err)
	}
	if err := os.WriteFile(envPath, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", envPath, err)
	}
	return nil
}
