package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/teamflow-dev/teamflow/internal/diagnosis"
	"github.com/teamflow-dev/teamflow/internal/orchestrator"
	"github.com/teamflow-dev/teamflow/internal/shell"
	"github.com/teamflow-dev/teamflow/internal/validate"
)

// Finish handles the `team-flow finish` command (§4.1 Finish phase).
func Finish(args []string) error {
	if err := refuseExtraArgs("finish", args); err != nil {
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
	if res := validate.CommitMessage(description); !res.Valid {
		return fmt.Errorf("%s", res.Error)
	}

	runner, hasRunner := diagnosis.DetectTestRunner(cfg.RepoPath)
	runTests := false
	if hasRunner {
		runTests, err = a.Prompter.Confirm(ctx, "Run tests before finishing?")
		if err != nil {
			return err
		}
	}

	openPR := false
	var prTitle, prBody string
	draft := false
	if a.API.Available() {
		openPR, err = a.Prompter.Confirm(ctx, "Open a pull request?")
		if err != nil {
			return err
		}
		if openPR {
			prTitle, err = a.Prompter.Input(ctx, "Pull request title", description)
			if err != nil {
				return err
			}
			prBody, err = a.Prompter.Input(ctx, "Pull request description", "")
			if err != nil {
				return err
			}
			draft, err = a.Prompter.Confirm(ctx, "Mark as draft?")
			if err != nil {
				return err
			}
		}
	}

	notifyTeam, err := a.Prompter.Confirm(ctx, "Notify the team when done?")
	if err != nil {
		return err
	}

	in := orchestrator.FinishInput{
		CommitType:        commitType,
		CommitDescription: description,
		RunTests:          runTests,
		TestsPass: func() bool {
			return runTestCommand(cfg.RepoPath, runner.RunCmd) == nil
		},
		OpenPR:  openPR,
		PRTitle: prTitle,
		PRBody:  prBody,
		Draft:   draft,
		Notify:  notifyTeam,
	}

	result := orchestrator.Finish(ctx, a, in)
	return renderResult(os.Stdout, a.Renderer, result)
}

// runTestCommand runs the shell command line reported by the
// diagnosis capability probe (§4.7), reporting only success/failure —
// output streams straight to the terminal so the operator can see why.
func runTestCommand(dir, cmdline string) error {
	if cmdline == "" {
		return nil
	}
	r := &shell.Runner{Dir: dir}
	return r.RunInteractive(context.Background(), "sh", "-c", cmdline)
}
