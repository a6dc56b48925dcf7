package orchestrator

import (
	"context"
	"fmt"
)

// Urgency is the Help-Flow phase's triage level (§4.1).
type Urgency string

const (
	UrgencyHigh   Urgency = "high"
	UrgencyMedium Urgency = "medium"
	UrgencyLow    Urgency = "low"
)

// HelpTopic is one entry in a routed help menu.
type HelpTopic struct {
	Title       string
	Description string
	// Destructive marks topics whose action mutates repository or
	// remote state and therefore requires explicit confirmation before
	// running, per §4.1: "all destructive operations require explicit
	// confirmation."
	Destructive bool
	Run         func(ctx context.Context, a *Adapters) error
}

// emergencyTopics handles high-urgency situations: broken repository
// states that block all other work.
var emergencyTopics = []HelpTopic{
	{
		Title:       "Restore from the most recent backup",
		Description: "Roll the working tree back to the last snapshot taken before a start.",
		Destructive: true,
		Run: func(ctx context.Context, a *Adapters) error {
			if a.Backup == nil {
				return fmt.Errorf("no backup store configured")
			}
			return a.Backup.RestoreMostRecentFor(ctx, "start")
		},
	},
	{
		Title:       "Abort an in-progress rebase",
		Description: "Cancel a rebase that left the repository in a conflicted state.",
		Destructive: true,
		Run: func(ctx context.Context, a *Adapters) error {
			return a.Git.AbortRebase(ctx)
		},
	},
}

// fixTopics handles medium-urgency situations: recoverable problems
// with a known remediation.
var fixTopics = []HelpTopic{
	{
		Title:       "Resolve merge conflicts",
		Description: "Check whether any files are currently in conflict so they can be resolved by hand.",
		Run: func(ctx context.Context, a *Adapters) error {
			files, err := a.Git.ConflictFiles(ctx)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no files are currently in conflict")
			}
			return nil
		},
	},
}

// learningTopics handles low-urgency situations: informational,
// never destructive.
var learningTopics = []HelpTopic{
	{
		Title:       "Branch naming conventions",
		Description: "feature/, bugfix/, hotfix/, docs/, refactor/, test/, and chore/ prefixes, with an optional issue-<N>- segment.",
	},
	{
		Title:       "Conventional commit messages",
		Description: "type: lower-case description, no trailing period.",
	},
}

// Topics returns the help menu routed by urgency, per §4.1's
// "urgency selection (high/medium/low) routes to emergency handlers,
// fix handlers, or learning content".
func Topics(u Urgency) []HelpTopic {
	switch u {
	case UrgencyHigh:
		return emergencyTopics
	case UrgencyMedium:
		return fixTopics
	default:
		return learningTopics
	}
}

// HelpFlow implements the Help-Flow phase (§4.1): present the topics
// routed by urgency, confirm before running any destructive one.
func HelpFlow(ctx context.Context, a *Adapters, u Urgency, topicIndex int) PhaseResult {
	topics := Topics(u)
	if topicIndex < 0 || topicIndex >= len(topics) {
		return failed(fmt.Sprintf("invalid help topic index %d", topicIndex))
	}
	topic := topics[topicIndex]

	if topic.Run == nil {
		return PhaseResult{Status: StatusCompleted, Messages: []string{topic.Description}}
	}

	if topic.Destructive {
		proceed, err := a.Prompter.Confirm(ctx, fmt.Sprintf("%s is destructive. Proceed?", topic.Title))
		if err != nil {
			return failed(fmt.Sprintf("prompting before destructive action: %v", err))
		}
		if !proceed {
			return aborted("declined destructive help action")
		}
	}

	if err := topic.Run(ctx, a); err != nil {
		return failed(fmt.Sprintf("%s failed: %v", topic.Title, err))
	}
	return PhaseResult{Status: StatusCompleted, Messages: []string{topic.Title + " completed"}}
}
