// Package config loads and validates the team-flow configuration tree.
//
// Layering (highest priority first): process environment, per-user
// global file ($HOME/<app-dir>/config.json), project-level .env, then
// built-in defaults. Once loaded, a ConfigTree is treated as frozen —
// nothing in the codebase mutates one after Resolve returns it.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	validatorpkg "github.com/go-playground/validator/v10"
)

// AppDirName is the name of the tool's state directory within a repo
// and within $HOME.
const AppDirName = ".team-flow"

// DotenvLoader loads KEY=value pairs from a project-level .env file.
// This is the "dotenv loader" collaborator spec.md §1 marks as
// deliberately out of scope for the core — core code only depends on
// this narrow interface, never on a concrete parser.
type DotenvLoader interface {
	Load(path string) (map[string]string, error)
}

// LogLevel enumerates the recognized LOG_LEVEL values.
type LogLevel string

const (
	LogLevelError LogLevel = "error"
	LogLevelWarn  LogLevel = "warn"
	LogLevelInfo  LogLevel = "info"
	LogLevelDebug LogLevel = "debug"
)

// ConfigTree is the fully resolved, frozen configuration (§3 ConfigTree).
type ConfigTree struct {
	GithubToken               string   `json:"-" validate:"required_without=GithubAppClientID"`
	SlackToken                string   `json:"-"`
	SlackChannel              string   `json:"slack_channel" validate:"omitempty,min=2,max=22"`
	DiscordWebhook            string   `json:"-" validate:"omitempty,url"`
	DefaultBranch             string   `json:"default_branch" validate:"required"`
	AutoPush                  bool     `json:"auto_push"`
	AutoPR                    bool     `json:"auto_pr"`
	ConfirmDestructiveActions bool     `json:"confirm_destructive_actions"`
	NodeEnv                   string   `json:"node_env" validate:"omitempty,oneof=development production test"`
	Debug                     bool     `json:"debug"`
	LogLevel                  LogLevel `json:"log_level" validate:"omitempty,oneof=error warn info debug"`

	// GitHub App authentication, alternative to GithubToken.
	GithubAppClientID       string `json:"-"`
	GithubAppInstallationID int64  `json:"-"`
	GithubAppPrivateKeyPath string `json:"-"`

	// RepoPath is the filesystem root of the Git repository this
	// configuration applies to. Not a recognized config key — derived
	// from where the tool was invoked.
	RepoPath string `json:"-" validate:"-"`
}

// AppDir returns the per-repo state directory (§6 "Persisted state layout").
func (c *ConfigTree) AppDir() string {
	return filepath.Join(c.RepoPath, AppDirName)
}

func (c *ConfigTree) BackupsDir() string { return filepath.Join(c.AppDir(), "backups") }
func (c *ConfigTree) StateDir() string   { return filepath.Join(c.AppDir(), "state") }
func (c *ConfigTree) LogsDir() string    { return filepath.Join(c.AppDir(), "logs") }
func (c *ConfigTree) LogFilePath() string {
	return filepath.Join(c.LogsDir(), "team-flow.log")
}
func (c *ConfigTree) HistoryDBPath() string {
	return filepath.Join(c.StateDir(), "history.db")
}
func (c *ConfigTree) OfflineModePath() string {
	return filepath.Join(c.StateDir(), "offline-mode.json")
}
func (c *ConfigTree) ProjectConfigPath() string {
	return filepath.Join(c.AppDir(), "config.json")
}

// HasGithubApp reports whether GitHub App credentials are fully set.
func (c *ConfigTree) HasGithubApp() bool {
	return c.GithubAppClientID != "" && c.GithubAppInstallationID != 0 && c.GithubAppPrivateKeyPath != ""
}

func defaults() ConfigTree {
	return ConfigTree{
		DefaultBranch:             "main",
		SlackChannel:              "#general",
		ConfirmDestructiveActions: true,
		LogLevel:                  LogLevelInfo,
	}
}

// userGlobalFile is the shape of $HOME/<app-dir>/config.json.
type userGlobalFile struct {
	GithubToken               string `json:"github_token"`
	SlackToken                string `json:"slack_token"`
	SlackChannel              string `json:"slack_channel"`
	DiscordWebhook            string `json:"discord_webhook_url"`
	DefaultBranch             string `json:"default_branch"`
	AutoPush                  *bool  `json:"auto_push"`
	AutoPR                    *bool  `json:"auto_pr"`
	ConfirmDestructiveActions *bool  `json:"confirm_destructive_actions"`
	NodeEnv                   string `json:"node_env"`
	Debug                     *bool  `json:"debug"`
	LogLevel                  string `json:"log_level"`
}

// Resolve builds a ConfigTree for the repository at repoPath by layering
// defaults, the project .env (via loader), the per-user global
// config.json, and the process environment, in increasing priority.
func Resolve(repoPath string, loader DotenvLoader, env func(string) string) (*ConfigTree, error) {
	if env == nil {
		env = os.Getenv
	}

	cfg := defaults()
	cfg.RepoPath = repoPath

	// Layer 3 (lowest non-default): project-level .env
	if loader != nil {
		envPath := filepath.Join(repoPath, ".env")
		if vals, err := loader.Load(envPath); err == nil {
			applyEnvMap(&cfg, vals)
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading project .env: %w", err)
		}
	}

	// Layer 2: per-user global file
	home, _ := os.UserHomeDir()
	if home != "" {
		globalPath := filepath.Join(home, AppDirName, "config.json")
		if data, err := os.ReadFile(globalPath); err == nil {
			var gf userGlobalFile
			if err := json.Unmarshal(data, &gf); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", globalPath, err)
			}
			applyGlobalFile(&cfg, gf)
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading %s: %w", globalPath, err)
		}
	}

	// Layer 1 (highest): process environment
	applyEnvMap(&cfg, envMap(env))

	return &cfg, nil
}

// recognizedKeys lists the env/config keys team-flow understands, per §6.
var recognizedKeys = []string{
	"GITHUB_TOKEN", "SLACK_TOKEN", "SLACK_CHANNEL", "DISCORD_WEBHOOK_URL",
	"DEFAULT_BRANCH", "AUTO_PUSH", "AUTO_PR", "CONFIRM_DESTRUCTIVE_ACTIONS",
	"NODE_ENV", "DEBUG", "LOG_LEVEL",
	"GITHUB_APP_CLIENT_ID", "GITHUB_APP_INSTALLATION_ID", "GITHUB_APP_PRIVATE_KEY_PATH",
}

func envMap(env func(string) string) map[string]string {
	m := make(map[string]string, len(recognizedKeys))
	for _, k := range recognizedKeys {
		if v := env(k); v != "" {
			m[k] = v
		}
	}
	return m
}

func applyEnvMap(cfg *ConfigTree, vals map[string]string) {
	if v, ok := vals["GITHUB_TOKEN"]; ok {
		cfg.GithubToken = v
	}
	if v, ok := vals["SLACK_TOKEN"]; ok {
		cfg.SlackToken = v
	}
	if v, ok := vals["SLACK_CHANNEL"]; ok {
		cfg.SlackChannel = v
	}
	if v, ok := vals["DISCORD_WEBHOOK_URL"]; ok {
		cfg.DiscordWebhook = v
	}
	if v, ok := vals["DEFAULT_BRANCH"]; ok {
		cfg.DefaultBranch = v
	}
	if v, ok := vals["AUTO_PUSH"]; ok {
		cfg.AutoPush = parseBool(v)
	}
	if v, ok := vals["AUTO_PR"]; ok {
		cfg.AutoPR = parseBool(v)
	}
	if v, ok := vals["CONFIRM_DESTRUCTIVE_ACTIONS"]; ok {
		cfg.ConfirmDestructiveActions = parseBool(v)
	}
	if v, ok := vals["NODE_ENV"]; ok {
		cfg.NodeEnv = v
	}
	if v, ok := vals["DEBUG"]; ok {
		cfg.Debug = parseBool(v)
	}
	if v, ok := vals["LOG_LEVEL"]; ok {
		cfg.LogLevel = LogLevel(v)
	}
	if v, ok := vals["GITHUB_APP_CLIENT_ID"]; ok {
		cfg.GithubAppClientID = v
	}
	if v, ok := vals["GITHUB_APP_INSTALLATION_ID"]; ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.GithubAppInstallationID = n
		}
	}
	if v, ok := vals["GITHUB_APP_PRIVATE_KEY_PATH"]; ok {
		cfg.GithubAppPrivateKeyPath = v
	}
}

func applyGlobalFile(cfg *ConfigTree, gf userGlobalFile) {
	if gf.GithubToken != "" {
		cfg.GithubToken = gf.GithubToken
	}
	if gf.SlackToken != "" {
		cfg.SlackToken = gf.SlackToken
	}
	if gf.SlackChannel != "" {
		cfg.SlackChannel = gf.SlackChannel
	}
	if gf.DiscordWebhook != "" {
		cfg.DiscordWebhook = gf.DiscordWebhook
	}
	if gf.DefaultBranch != "" {
		cfg.DefaultBranch = gf.DefaultBranch
	}
	if gf.AutoPush != nil {
		cfg.AutoPush = *gf.AutoPush
	}
	if gf.AutoPR != nil {
		cfg.AutoPR = *gf.AutoPR
	}
	if gf.ConfirmDestructiveActions != nil {
		cfg.ConfirmDestructiveActions = *gf.ConfirmDestructiveActions
	}
	if gf.NodeEnv != "" {
		cfg.NodeEnv = gf.NodeEnv
	}
	if gf.Debug != nil {
		cfg.Debug = *gf.Debug
	}
	if gf.LogLevel != "" {
		cfg.LogLevel = LogLevel(gf.LogLevel)
	}
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

// ConfigIssue describes one problem surfaced by --check-config.
type ConfigIssue struct {
	Source  string // always "validator"; schema failures are SchemaIssue values
	Field   string
	Message string
}

var structValidator = validatorpkg.New()

// Validate runs struct-level validation (required fields, shapes,
// enums) via go-playground/validator. Schema-level JSON validation
// against the on-disk file is performed separately by CheckConfigFile
// (internal/config/schema.go), since it operates on raw JSON rather
// than the resolved struct.
func (c *ConfigTree) Validate() []ConfigIssue {
	var issues []ConfigIssue
	if err := structValidator.Struct(c); err != nil {
		verrs, ok := err.(validatorpkg.ValidationErrors)
		if !ok {
			issues = append(issues, ConfigIssue{Source: "validator", Message: err.Error()})
			return issues
		}
		for _, fe := range verrs {
			if fe.Field() == "GithubToken" {
				continue // surfaced below with a clearer message
			}
			issues = append(issues, ConfigIssue{
				Source:  "validator",
				Field:   fe.Field(),
				Message: fmt.Sprintf("%s failed on %q", fe.Field(), fe.Tag()),
			})
		}
	}
	if c.GithubToken == "" && !c.HasGithubApp() {
		issues = append(issues, ConfigIssue{
			Source:  "validator",
			Field:   "GithubToken",
			Message: "GITHUB_TOKEN is required (or a complete GitHub App configuration)",
		})
	}
	return issues
}
