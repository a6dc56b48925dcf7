package commands

import (
	"fmt"
	"io"

	"github.com/teamflow-dev/teamflow/internal/cliui"
	"github.com/teamflow-dev/teamflow/internal/orchestrator"
)

// renderResult prints a PhaseResult's status line and messages through
// r, and translates its Status into the exit-code contract of §6:
// success and user-abort both exit 0, only StatusFailed exits 1.
func renderResult(w io.Writer, r cliui.Renderer, result orchestrator.PhaseResult) error {
	switch result.Status {
	case orchestrator.StatusCompleted:
		fmt.Fprintln(w, r.Success("done"))
	case orchestrator.StatusAborted:
		fmt.Fprintln(w, r.Warn("aborted"))
	case orchestrator.StatusFailed:
		fmt.Fprintln(w, r.Failure("failed"))
	}
	for _, msg := range result.Messages {
		fmt.Fprintln(w, r.Info("  "+msg))
	}
	if result.Artifacts.Branch != "" {
		fmt.Fprintln(w, r.Info(fmt.Sprintf("  branch: %s", result.Artifacts.Branch)))
	}
	if result.Artifacts.PR != 0 {
		fmt.Fprintln(w, r.Info(fmt.Sprintf("  pull request: #%d", result.Artifacts.PR)))
	}
	if result.Artifacts.Issue != 0 {
		fmt.Fprintln(w, r.Info(fmt.Sprintf("  issue: #%d", result.Artifacts.Issue)))
	}

	if result.Status == orchestrator.StatusFailed {
		return fmt.Errorf("phase failed: %s", result.Messages)
	}
	return nil
}

// refuseExtraArgs enforces §6's "no positional args beyond the
// subcommand": every team-flow phase drives its choices entirely
// through prompts.
func refuseExtraArgs(name string, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("%s takes no arguments; answer its prompts instead", name)
	}
	return nil
}
