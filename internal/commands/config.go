package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"

	"github.com/teamflow-dev/teamflow/internal/config"
	"github.com/teamflow-dev/teamflow/internal/validate"
)

// CheckConfig implements `team-flow --check-config` (§6): validate the
// resolved configuration struct and, separately, the on-disk
// config.json against the bundled JSON Schema, printing a combined
// report.
func CheckConfig(args []string) error {
	return checkConfigRun(os.Stdout)
}

func checkConfigRun(w io.Writer) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}

	issues := cfg.Validate()
	schemaIssues, err := config.CheckConfigFile(cfg.ProjectConfigPath())
	if err != nil {
		return fmt.Errorf("checking %s: %w", cfg.ProjectConfigPath(), err)
	}

	if len(issues) == 0 && len(schemaIssues) == 0 {
		fmt.Fprintln(w, "configuration OK")
		return nil
	}

	for _, iss := range issues {
		fmt.Fprintf(w, "[struct] %s: %s\n", iss.Field, iss.Message)
	}
	for _, iss := range schemaIssues {
		fmt.Fprintf(w, "[schema] %s: %s\n", iss.Path, iss.Message)
	}
	return fmt.Errorf("%d configuration issue(s) found", len(issues)+len(schemaIssues))
}

// Setup implements `team-flow --setup` (§6): an interactive first-time
// wizard that writes the per-user global config.json.
func Setup(args []string) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}

	var githubToken, slackToken, slackChannel, discordWebhook, defaultBranch string
	defaultBranch = cfg.DefaultBranch

	optional := func(res validate.Result) error {
		if res.Error == "" {
			return nil
		}
		return fmt.Errorf("%s", res.Error)
	}

	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().Title("GitHub personal access token").Value(&githubToken).EchoMode(huh.EchoModePassword).
			Validate(func(s string) error {
				if s == "" {
					return nil
				}
				return optional(validate.Token(s))
			}),
		huh.NewInput().Title("Default branch").Value(&defaultBranch).
			Validate(func(s string) error { return optional(validate.Branch(s)) }),
		huh.NewInput().Title("Slack bot token (optional)").Value(&slackToken).EchoMode(huh.EchoModePassword),
		huh.NewInput().Title("Slack channel (optional)").Value(&slackChannel).
			Validate(func(s string) error {
				if s == "" {
					return nil
				}
				return optional(validate.SlackChannel(s))
			}),
		huh.NewInput().Title("Discord webhook URL (optional)").Value(&discordWebhook).
			Validate(func(s string) error {
				if s == "" {
					return nil
				}
				return optional(validate.DiscordWebhook(s))
			}),
	))
	if err := form.Run(); err != nil {
		return fmt.Errorf("running setup wizard: %w", err)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("locating home directory: %w", err)
	}
	return writeUserGlobalConfig(home, userSetupValues{
		GithubToken:    githubToken,
		SlackToken:     slackToken,
		SlackChannel:   slackChannel,
		DiscordWebhook: discordWebhook,
		DefaultBranch:  defaultBranch,
	})
}

// FixConfig implements `team-flow --fix-config` (§6): best-effort
// repair, currently limited to materializing a project-level .env
// from .env.example when the former is missing.
func FixConfig(args []string) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	return fixProjectEnv(cfg.RepoPath)
}
