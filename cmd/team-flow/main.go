// Command team-flow is the interactive team-development workflow
// orchestrator: it guides an engineer through starting, continuing,
// and finishing a unit of work on a Git/GitHub-hosted repository.
package main

import (
	"fmt"
	"os"

	"github.com/teamflow-dev/teamflow/internal/commands"
)

func usage() {
	fmt.Fprint(os.Stderr, `team-flow — interactive team development workflow orchestrator

Usage:
  team-flow start        Begin a new unit of work on a fresh branch.
  team-flow continue     Pick up the highest-priority recommended next step.
  team-flow finish       Commit, push, and optionally open a pull request.
  team-flow team         Show active branches, open PRs, and potential conflicts.
  team-flow help-flow    Get help with a broken or confusing repository state.

Flags:
  --check-config  Validate configuration and print a report, then exit.
  --setup         Run the interactive first-time setup wizard, then exit.
  --fix-config    Attempt a best-effort configuration repair, then exit.
`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	arg := os.Args[1]
	rest := os.Args[2:]

	var err error
	switch arg {
	case "start":
		err = commands.Start(rest)
	case "continue":
		err = commands.Continue(rest)
	case "finish":
		err = commands.Finish(rest)
	case "team":
		err = commands.Team(rest)
	case "help-flow":
		err = commands.HelpFlow(rest)
	case "--check-config":
		err = commands.CheckConfig(rest)
	case "--setup":
		err = commands.Setup(rest)
	case "--fix-config":
		err = commands.FixConfig(rest)
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", arg)
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "team-flow %s: %v\n", arg, err)
		os.Exit(1)
	}
}
