package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/teamflow-dev/teamflow/internal/orchestrator"
)

// Team handles the `team-flow team` command (§4.1 Team phase).
func Team(args []string) error {
	if err := refuseExtraArgs("team", args); err != nil {
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

	result, report := orchestrator.Team(ctx, a)

	w := os.Stdout
	fmt.Fprintln(w, a.Renderer.Heading("Active branches"))
	for _, b := range report.ActiveBranches {
		fmt.Fprintf(w, "  %s — %s\n", b.Branch, b.Message)
	}

	fmt.Fprintln(w, a.Renderer.Heading("Open pull requests"))
	for _, pr := range report.OpenPRs {
		fmt.Fprintf(w, "  #%d %s (%d reviews)\n", pr.Number, pr.Title, len(pr.Reviews))
	}

	if len(report.Conflicts) > 0 {
		fmt.Fprintln(w, a.Renderer.Heading("Potential file conflicts"))
		for _, c := range report.Conflicts {
			fmt.Fprintf(w, "  %s <-> %s: %s\n", c.BranchA, c.BranchB, c.Path)
		}
		if report.ConflictsSampled {
			fmt.Fprintln(w, a.Renderer.Warn("conflict scan was sampled; not every branch pair was compared"))
		}
	}

	fmt.Fprintln(w, a.Renderer.Heading("Last 7 days"))
	fmt.Fprintf(w, "  open issues: %d, open PRs: %d, merged PRs: %d, commits: %d\n",
		report.Metrics.OpenIssues, report.Metrics.OpenPRs, report.Metrics.MergedPRs, report.Metrics.CommitCount)

	return renderResult(w, a.Renderer, result)
}
