package orchestrator

import (
	"context"
	"fmt"
	"regexp"

	"github.com/teamflow-dev/teamflow/internal/notify"
)

// FinishInput carries the choices a caller has collected before
// invoking Finish.
type FinishInput struct {
	Files             []string
	CommitType        string
	CommitDescription string
	RunTests          bool
	TestsPass         func() bool
	OpenPR            bool
	PRTitle           string
	PRBody            string
	Draft             bool
	Notify            bool
}

var issueInBranchPattern = regexp.MustCompile(`issue-(\d+)-`)

// closesDirective returns "Closes #<N>" if branch encodes an issue
// number, per §4.1: "if the branch name contains `issue-<N>-`, the
// body must include `Closes #<N>`."
func closesDirective(branch string) string {
	m := issueInBranchPattern.FindStringSubmatch(branch)
	if m == nil {
		return ""
	}
	return fmt.Sprintf("Closes #%s", m[1])
}

// Finish implements the Finish phase state machine (§4.1):
// CheckOnNonDefault → ReviewChangedFiles → SelectFilesToStage →
// ComposeCommitMessage → Commit → (optionally) RunTests → Push →
// (optionally) OpenPullRequest → (optionally) NotifyTeam → Done.
func Finish(ctx context.Context, a *Adapters, in FinishInput) PhaseResult {
	if !a.Git.IsRepo(ctx) {
		return aborted("current directory is not a Git repository")
	}

	branch, err := a.Git.CurrentBranch(ctx)
	if err != nil {
		return failed(fmt.Sprintf("reading current branch: %v", err))
	}
	defaultBranch := a.Git.DefaultBranch(ctx, a.Config.DefaultBranch)
	if branch == defaultBranch || branch == "main" || branch == "master" {
		return aborted(fmt.Sprintf("refusing to finish on the default branch (%s)", branch))
	}

	changed, err := a.Git.ChangedFiles(ctx)
	if err != nil {
		return failed(fmt.Sprintf("listing changed files: %v", err))
	}
	if len(changed) == 0 && len(in.Files) == 0 {
		return aborted("no changes to finish")
	}

	files := in.Files
	if len(files) == 0 {
		files = changed
	}

	msg, err := BuildCommitMessage(in.CommitType, in.CommitDescription)
	if err != nil {
		return failed(fmt.Sprintf("invalid commit message: %v", err))
	}

	a.backupBefore(ctx, "finish")

	if err := a.Git.CommitPaths(ctx, files, msg); err != nil {
		return failed(fmt.Sprintf("committing staged files: %v", err))
	}

	result := PhaseResult{Status: StatusCompleted, Artifacts: Artifacts{Branch: branch}}
	result.note("committed staged changes")

	if in.RunTests && in.TestsPass != nil {
		if !in.TestsPass() {
			proceed, err := a.Prompter.Confirm(ctx, "Tests failed. Continue finishing anyway?")
			if err != nil {
				return failed(fmt.Sprintf("prompting after test failure: %v", err))
			}
			if !proceed {
				return PhaseResult{Status: StatusAborted, Artifacts: result.Artifacts, Messages: append(result.Messages, "aborted after test failure")}
			}
			result.note("tests failed; continued at operator's request")
		} else {
			result.note("tests passed")
		}
	}

	if err := a.Git.Push(ctx, branch); err != nil {
		return failed(fmt.Sprintf("pushing %s: %v", branch, err))
	}
	result.note(fmt.Sprintf("pushed %s", branch))

	if in.OpenPR && a.API != nil && a.API.Available() {
		body := in.PRBody
		if directive := closesDirective(branch); directive != "" {
			body = body + "\n\n" + directive
		}
		pr, err := a.API.CreatePR(ctx, in.PRTitle, branch, defaultBranch, body, in.Draft)
		if err != nil {
			result.note(fmt.Sprintf("opening pull request failed: %v", err))
		} else {
			result.Artifacts.PR = pr.Number
			result.note(fmt.Sprintf("opened pull request #%d", pr.Number))
		}
	}

	if in.Notify {
		a.notifyTeam(ctx, notify.Message{
			Title: "Work finished",
			Body:  fmt.Sprintf("%s is ready for review", branch),
			Level: notify.LevelInfo,
		})
	}

	return result
}
