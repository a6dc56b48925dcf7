package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/teamflow-dev/teamflow/internal/apigateway"
	"github.com/teamflow-dev/teamflow/internal/backup"
	"github.com/teamflow-dev/teamflow/internal/cliui"
	"github.com/teamflow-dev/teamflow/internal/config"
	"github.com/teamflow-dev/teamflow/internal/dotenv"
	"github.com/teamflow-dev/teamflow/internal/errcls"
	"github.com/teamflow-dev/teamflow/internal/gitadapter"
	"github.com/teamflow-dev/teamflow/internal/history"
	"github.com/teamflow-dev/teamflow/internal/logger"
	"github.com/teamflow-dev/teamflow/internal/notify"
	"github.com/teamflow-dev/teamflow/internal/orchestrator"
	"github.com/teamflow-dev/teamflow/internal/recovery"
	"github.com/teamflow-dev/teamflow/internal/validate"
)

// resolveConfig loads the configuration tree for the repository rooted
// at the current working directory, per §6's layering order.
func resolveConfig() (*config.ConfigTree, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}
	cfg, err := config.Resolve(cwd, dotenv.Loader{}, nil)
	if err != nil {
		return nil, fmt.Errorf("resolving configuration: %w", err)
	}
	return cfg, nil
}

// runtime bundles everything a subcommand needs beyond the Adapters
// themselves, plus a cleanup func that must run before the process
// exits.
type runtime struct {
	adapters *orchestrator.Adapters
	git      *gitadapter.Adapter
	closers  []func() error
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		_ = r.closers[i]()
	}
}

// buildRuntime wires every collaborator package into one Adapters
// bundle, matching the dependency order Config → Logger → Validators →
// (Git Adapter, API Gateway, Backup Store) → Recovery Manager → Error
// Handler.
func buildRuntime(cfg *config.ConfigTree) (*runtime, error) {
	log := logger.New(cfg.LogFilePath(), cfg.NodeEnv == "test")

	for _, dir := range []string{cfg.BackupsDir(), cfg.StateDir(), cfg.LogsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	store, err := history.Open(cfg.HistoryDBPath())
	if err != nil {
		return nil, fmt.Errorf("opening history store: %w", err)
	}
	rt := &runtime{closers: []func() error{store.Close}}

	git := gitadapter.New(cfg.RepoPath)
	facade := orchestrator.NewGitFacade(git)

	backupStore := backup.New(cfg.RepoPath, cfg.StateDir(), facade)

	prompter := cliui.NewHuhPrompter()
	renderer := cliui.NewLipglossRenderer()

	handler := errcls.New(store, log)

	recoveryMgr, err := recovery.New(store, backupStore, prompter)
	if err != nil {
		return nil, fmt.Errorf("building recovery manager: %w", err)
	}

	var api orchestrator.APIOps = unavailableAPI{}
	if cfg.GithubToken != "" || cfg.HasGithubApp() {
		opts := []apigateway.Option{}
		if cfg.HasGithubApp() {
			if res := validate.FilePath(cfg.GithubAppPrivateKeyPath); !res.Valid {
				log.Warn("github app private key path rejected", "error", res.Error)
			}
			opts = append(opts, apigateway.WithAppAuth(apigateway.AppCredentials{
				ClientID:       cfg.GithubAppClientID,
				InstallationID: cfg.GithubAppInstallationID,
				PrivateKeyPath: cfg.GithubAppPrivateKeyPath,
			}))
		}
		gw, err := apigateway.New(cfg.GithubToken, opts...)
		if err != nil {
			log.Warn("github api gateway unavailable", "error", err)
		} else {
			ctx := context.Background()
			if err := gw.Initialize(ctx, git.RemoteURL(ctx)); err != nil {
				log.Warn("github api gateway unavailable", "error", err)
			}
			api = gw
		}
	}

	notifier := buildNotifier(cfg)

	rt.adapters = &orchestrator.Adapters{
		Git:          facade,
		API:          api,
		Backup:       backupStore,
		Notifier:     notifier,
		Prompter:     prompter,
		Renderer:     renderer,
		ErrorHandler: handler,
		Recovery:     recoveryMgr,
		Config:       cfg,
		Logger:       log,
	}
	rt.git = git
	return rt, nil
}

// buildNotifier fans out to every transport the configuration enables.
// With neither Slack nor Discord configured, the Fanout has zero
// notifiers and Notify becomes a silent no-op.
func buildNotifier(cfg *config.ConfigTree) notify.Notifier {
	var notifiers []notify.Notifier
	if cfg.SlackToken != "" {
		notifiers = append(notifiers, notify.NewSlackNotifier(cfg.SlackToken, cfg.SlackChannel))
	}
	if cfg.DiscordWebhook != "" {
		notifiers = append(notifiers, notify.NewDiscordNotifier(cfg.DiscordWebhook))
	}
	return notify.NewFanout(notifiers...)
}

// unavailableAPI implements orchestrator.APIOps for a repository with
// no configured GitHub credentials; every call fails with the same
// remediation text a misconfigured real gateway would report via
// apigateway.NotAvailableError.
type unavailableAPI struct{}

func (unavailableAPI) Available() bool { return false }

func (unavailableAPI) err() error {
	return &apigateway.NotAvailableError{Remediation: "set GITHUB_TOKEN or configure a GitHub App"}
}

func (u unavailableAPI) CreateIssue(ctx context.Context, title, body string, labels []string) (apigateway.Issue, error) {
	return apigateway.Issue{}, u.err()
}
func (u unavailableAPI) GetIssue(ctx context.Context, number int) (apigateway.Issue, error) {
	return apigateway.Issue{}, u.err()
}
func (u unavailableAPI) ListOpenIssues(ctx context.Context) ([]apigateway.Issue, error) {
	return nil, u.err()
}
func (u unavailableAPI) CommentIssue(ctx context.Context, number int, body string) error {
	return u.err()
}
func (u unavailableAPI) CreatePR(ctx context.Context, title, head, base, body string, draft bool) (apigateway.PullRequest, error) {
	return apigateway.PullRequest{}, u.err()
}
func (u unavailableAPI) ListPRsWithReviews(ctx context.Context) ([]apigateway.PullRequest, error) {
	return nil, u.err()
}
func (u unavailableAPI) ListBranches(ctx context.Context) ([]apigateway.Branch, error) {
	return nil, u.err()
}
func (u unavailableAPI) SuggestReviewers(ctx context.Context, limit int) ([]string, error) {
	return nil, u.err()
}
func (u unavailableAPI) RepoMetrics(ctx context.Context) (apigateway.RepoMetricsWindow, error) {
	return apigateway.RepoMetricsWindow{}, u.err()
}
