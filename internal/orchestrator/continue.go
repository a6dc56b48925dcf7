package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/teamflow-dev/teamflow/internal/diagnosis"
	"github.com/teamflow-dev/teamflow/internal/recovery"
)

// ContinueDeps supplies the inputs Continue can't derive from Git
// alone: whether a test runner was detected, and the branch's commit
// timestamps.
type ContinueDeps struct {
	HasTestRunner bool
	FirstCommit   func(ctx context.Context) (time.Time, error)
	LastCommit    func(ctx context.Context) (time.Time, error)
	RunTest       func(ctx context.Context) error
}

// ErrEmptyCommitDescription is returned when the commit description
// supplied to the commit action is empty.
var ErrEmptyCommitDescription = errors.New("commit description must not be empty")

// ErrCommitDescriptionCase is returned when the commit description's
// first character is upper-case, per §4.1's Conventional-Commits rule.
var ErrCommitDescriptionCase = errors.New("commit description must not start with an upper-case letter")

// ErrCommitDescriptionPeriod is returned when the commit description
// ends with a period, per §4.1's Conventional-Commits rule.
var ErrCommitDescriptionPeriod = errors.New("commit description must not end with a period")

// BuildCommitMessage composes a Conventional-Commits message from a
// type tag and description, enforcing §4.1's rules: non-empty,
// lower-case first letter, no trailing period.
func BuildCommitMessage(commitType, description string) (string, error) {
	trimmed := strings.TrimSpace(description)
	if trimmed == "" {
		return "", ErrEmptyCommitDescription
	}
	first := []rune(trimmed)[0]
	if unicode.IsUpper(first) {
		return "", ErrCommitDescriptionCase
	}
	if strings.HasSuffix(trimmed, ".") {
		return "", ErrCommitDescriptionPeriod
	}
	return fmt.Sprintf("%s: %s", commitType, trimmed), nil
}

// Continue implements the Continue phase state machine (§4.1):
// Analyze → Rank → for each recommendation in rank order: confirm →
// dispatch → on skip: next; on failure: classify & recover → next.
func Continue(ctx context.Context, a *Adapters, deps ContinueDeps, commitType, commitDescription string) PhaseResult {
	if !a.Git.IsRepo(ctx) {
		return aborted("current directory is not a Git repository")
	}

	status, err := a.Git.Status(ctx)
	if err != nil {
		return failed(fmt.Sprintf("reading git status: %v", err))
	}

	view := diagnosis.GitStatusView{
		CurrentBranch:   status.CurrentBranch,
		Ahead:           status.Ahead,
		Behind:          status.Behind,
		Staged:          status.Staged,
		Modified:        status.Modified,
		Untracked:       status.Untracked,
		Conflicted:      status.Conflicted,
		HasRemoteOrigin: status.HasRemoteOrigin,
	}

	var first, last time.Time
	if deps.FirstCommit != nil {
		first, _ = deps.FirstCommit(ctx)
	}
	if deps.LastCommit != nil {
		last, _ = deps.LastCommit(ctx)
	}

	ws := diagnosis.AnalyzeWorkStatus(view, deps.HasTestRunner, first, last, a.now())

	if len(ws.Recommendations) == 0 {
		return PhaseResult{Status: StatusCompleted, Messages: []string{"nothing to do: working tree and branch are up to date"}}
	}

	result := PhaseResult{Status: StatusCompleted, Artifacts: Artifacts{Branch: status.CurrentBranch}}

	for _, rec := range ws.Recommendations {
		proceed, err := a.Prompter.Confirm(ctx, fmt.Sprintf("%s — %s. Proceed?", rec.Title, rec.Description))
		if err != nil {
			return failed(fmt.Sprintf("prompting for recommendation %q: %v", rec.Type, err))
		}
		if !proceed {
			result.note(fmt.Sprintf("skipped: %s", rec.Type))
			continue
		}

		if err := a.dispatchContinueAction(ctx, deps, rec.Action, commitType, commitDescription, status.CurrentBranch); err != nil {
			retry, outcome := a.handleAndRecover(ctx, string(rec.Action), err, recovery.RecoverOptions{
				Retry: func(ctx context.Context) error {
					return a.dispatchContinueAction(ctx, deps, rec.Action, commitType, commitDescription, status.CurrentBranch)
				},
			})
			if !retry {
				result.note(fmt.Sprintf("%s failed: %s", rec.Type, outcome.Message))
				continue
			}
		}
		result.note(fmt.Sprintf("completed: %s", rec.Type))
	}

	return result
}

func (a *Adapters) dispatchContinueAction(ctx context.Context, deps ContinueDeps, action diagnosis.RecommendationAction, commitType, commitDescription, branch string) error {
	switch action {
	case diagnosis.ActionCommit:
		msg, err := BuildCommitMessage(commitType, commitDescription)
		if err != nil {
			return err
		}
		return a.Git.Commit(ctx, msg)
	case diagnosis.ActionPull:
		return a.Git.Pull(ctx, branch)
	case diagnosis.ActionPush:
		return a.Git.Push(ctx, branch)
	case diagnosis.ActionSync:
		return a.syncBranch(ctx, branch)
	case diagnosis.ActionTest:
		if deps.RunTest == nil {
			return nil
		}
		return deps.RunTest(ctx)
	case diagnosis.ActionUpdateIssue:
		if issueNum, ok := diagnosis.IssueNumberFromBranch(branch); ok && a.API != nil && a.API.Available() {
			return a.API.CommentIssue(ctx, issueNum, "Status update from team-flow continue.")
		}
		return nil
	case diagnosis.ActionUpdateStatus:
		return nil
	default:
		return fmt.Errorf("unknown continue action %q", action)
	}
}

// syncBranch reconciles the current branch with its tracking branch
// via rebase, per §4.1's "sync (rebase|merge|cancel)" dispatch; a
// merge-conflicting rebase is aborted rather than left half-applied.
func (a *Adapters) syncBranch(ctx context.Context, branch string) error {
	result, err := a.Git.StartRebase(ctx, "origin/"+branch)
	if err != nil {
		return err
	}
	if result.HasConflicts {
		if abortErr := a.Git.AbortRebase(ctx); abortErr != nil {
			return fmt.Errorf("rebase conflicts and abort failed: %w", abortErr)
		}
		return fmt.Errorf("MERGE_CONFLICT: rebase aborted due to conflicts")
	}
	return nil
}
