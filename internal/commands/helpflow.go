package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/teamflow-dev/teamflow/internal/orchestrator"
)

// HelpFlow handles the `team-flow help-flow` command (§4.1 Help-Flow
// phase): prompts for urgency, then for a topic within that urgency's
// menu.
func HelpFlow(args []string) error {
	if err := refuseExtraArgs("help-flow", args); err != nil {
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

	urgencyLabel, err := a.Prompter.Select(ctx, "How urgent is this?", []string{
		"high — something is broken and blocking all work",
		"medium — I know what's wrong but need help fixing it",
		"low — I just want to learn something",
	})
	if err != nil {
		return err
	}

	var urgency orchestrator.Urgency
	switch urgencyLabel[:4] {
	case "high":
		urgency = orchestrator.UrgencyHigh
	case "medi":
		urgency = orchestrator.UrgencyMedium
	default:
		urgency = orchestrator.UrgencyLow
	}

	topics := orchestrator.Topics(urgency)
	labels := make([]string, len(topics))
	for i, t := range topics {
		labels[i] = fmt.Sprintf("%s — %s", t.Title, t.Description)
	}
	choice, err := a.Prompter.Select(ctx, "Pick a topic", labels)
	if err != nil {
		return err
	}
	index := indexOf(labels, choice)

	result := orchestrator.HelpFlow(ctx, a, urgency, index)
	return renderResult(os.Stdout, a.Renderer, result)
}

func indexOf(haystack []string, needle string) int {
	for i, v := range haystack {
		if v == needle {
			return i
		}
	}
	return -1
}
