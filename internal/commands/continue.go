package commands

import (
	"context"
	"os"
	"time"

	"github.com/teamflow-dev/teamflow/internal/diagnosis"
	"github.com/teamflow-dev/teamflow/internal/orchestrator"
)

// Continue handles the `team-flow continue` command (§4.1 Continue
// phase).
func Continue(args []string) error {
	if err := refuseExtraArgs("continue", args); err != nil {
		return err
	}

	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := context.Background()
	a := rt.adapters

	runner, hasRunner := diagnosis.DetectTestRunner(cfg.RepoPath)

	deps := orchestrator.ContinueDeps{
		HasTestRunner: hasRunner,
		RunTest: func(ctx context.Context) error {
			return runTestCommand(cfg.RepoPath, runner.RunCmd)
		},
		LastCommit: func(ctx context.Context) (time.Time, error) {
			raw, err := rt.git.LastCommitTime(ctx)
			if err != nil {
				return time.Time{}, err
			}
			return time.Parse(time.RFC3339, raw)
		},
		FirstCommit: func(ctx context.Context) (time.Time, error) {
			branch, err := rt.git.CurrentBranch(ctx)
			if err != nil {
				return time.Time{}, err
			}
			base := rt.git.DefaultBranch(ctx, cfg.DefaultBranch)
			raw, err := rt.git.FirstCommitTime(ctx, branch, base)
			if err != nil {
				return time.Time{}, err
			}
			return time.Parse(time.RFC3339, raw)
		},
	}

	commitType, err := a.Prompter.Select(ctx, "Commit type", []string{
		"feat", "fix", "docs", "refactor", "test", "chore",
	})
	if err != nil {
		return err
	}
	description, err := a.Prompter.Input(ctx, "Commit description (lower-case, no trailing period)", "")
	if err != nil {
		return err
	}

	result := orchestrator.Continue(ctx, a, deps, commitType, description)
	return renderResult(os.Stdout, a.Renderer, result)
}
