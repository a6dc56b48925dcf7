package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/teamflow-dev/teamflow/internal/branchplan"
	"github.com/teamflow-dev/teamflow/internal/orchestrator"
	"github.com/teamflow-dev/teamflow/internal/validate"
)

// Start handles the `team-flow start` command (§4.1 Start phase):
// prompts for work type, issue number, and title, then drives
// orchestrator.Start.
func Start(args []string) error {
	if err := refuseExtraArgs("start", args); err != nil {
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

	tags := make([]string, len(branchplan.WorkTypes))
	for i, wt := range branchplan.WorkTypes {
		tags[i] = wt.Tag
	}
	tag, err := a.Prompter.Select(ctx, "What kind of work is this?", tags)
	if err != nil {
		return err
	}

	issueStr, err := a.Prompter.Input(ctx, "Issue number (leave blank if none)", "")
	if err != nil {
		return err
	}
	var issueNumber int
	if issueStr != "" {
		issueNumber, err = strconv.Atoi(issueStr)
		if err != nil {
			return fmt.Errorf("invalid issue number %q: %w", issueStr, err)
		}
	}

	title, err := a.Prompter.Input(ctx, "Short title for the branch", "")
	if err != nil {
		return err
	}
	if title == "" {
		return fmt.Errorf("a title is required")
	}

	wt, ok := branchplan.WorkTypeByTag(tag)
	if !ok {
		return fmt.Errorf("unknown work type %q", tag)
	}
	plan := branchplan.Build(wt, issueNumber, title)
	if res := validate.Branch(plan.FullName); !res.Valid {
		return fmt.Errorf("%s", res.Error)
	}

	result := orchestrator.Start(ctx, a, orchestrator.StartInput{
		WorkTypeTag: tag,
		IssueNumber: issueNumber,
		Title:       title,
	})
	return renderResult(os.Stdout, a.Renderer, result)
}
