package orchestrator

import (
	"context"
	"fmt"

	"github.com/teamflow-dev/teamflow/internal/branchplan"
	"github.com/teamflow-dev/teamflow/internal/notify"
)

// StartInput carries the choices a caller has already collected from
// the user (work type tag, optional issue number, title) before
// invoking Start — keeping phase functions free of direct UI
// plumbing beyond yes/no confirmations.
type StartInput struct {
	WorkTypeTag string
	IssueNumber int
	Title       string
	// AllowNonDefaultBase, when true, permits CreateBranch from a base
	// other than the repository default branch. §4.1: "must never
	// create a branch from anywhere other than the repository default
	// branch unless the operator explicitly confirms a non-default base."
	AllowNonDefaultBase bool
}

// Start implements the Start phase state machine (§4.1):
// Idle → CheckRepo → CheckClean → ChooseWorkType → ChooseIssue →
// BuildBranchPlan → ScanConflicts → CreateBranch → NotifyTeam → Done.
func Start(ctx context.Context, a *Adapters, in StartInput) PhaseResult {
	if !a.Git.IsRepo(ctx) {
		return aborted("current directory is not a Git repository")
	}

	status, err := a.Git.Status(ctx)
	if err != nil {
		return failed(fmt.Sprintf("reading git status: %v", err))
	}

	if status.Staged+status.Modified+status.Untracked > 0 {
		stash, err := a.Prompter.Confirm(ctx, "Working tree is dirty. Stash changes before starting?")
		if err != nil {
			return failed(fmt.Sprintf("prompting for stash: %v", err))
		}
		if !stash {
			return PhaseResult{Status: StatusAborted, Messages: []string{"DIRTY_TREE: working tree has uncommitted changes"}}
		}
		if err := a.Git.Stash(ctx, "team-flow: auto-stash before start"); err != nil {
			return failed(fmt.Sprintf("stashing changes: %v", err))
		}
	}

	wt, ok := branchplan.WorkTypeByTag(in.WorkTypeTag)
	if !ok {
		return failed(fmt.Sprintf("unknown work type %q", in.WorkTypeTag))
	}
	plan := branchplan.Build(wt, in.IssueNumber, in.Title)

	if a.Git.BranchExistsLocally(ctx, plan.FullName) {
		useExisting, err := a.Prompter.Confirm(ctx, fmt.Sprintf("Branch %q already exists locally. Switch to it?", plan.FullName))
		if err != nil {
			return failed(fmt.Sprintf("prompting for existing branch: %v", err))
		}
		if !useExisting {
			return aborted(fmt.Sprintf("branch %q already exists; declined to switch", plan.FullName))
		}
		if err := a.Git.CheckoutBranch(ctx, plan.FullName); err != nil {
			return failed(fmt.Sprintf("checking out existing branch: %v", err))
		}
		return PhaseResult{Status: StatusCompleted, Artifacts: Artifacts{Branch: plan.FullName, Issue: in.IssueNumber}, Messages: []string{"switched to existing branch"}}
	}

	if a.Git.BranchExistsOnRemote(ctx, plan.FullName) {
		proceed, err := a.Prompter.Confirm(ctx, fmt.Sprintf("Branch %q already exists on the remote. Continue anyway?", plan.FullName))
		if err != nil {
			return failed(fmt.Sprintf("prompting for remote branch collision: %v", err))
		}
		if !proceed {
			return aborted(fmt.Sprintf("branch %q already exists on remote; declined to continue", plan.FullName))
		}
	}

	defaultBranch := a.Git.DefaultBranch(ctx, a.Config.DefaultBranch)
	base := defaultBranch
	currentBranch := status.CurrentBranch
	if currentBranch != defaultBranch && !in.AllowNonDefaultBase {
		proceed, err := a.Prompter.Confirm(ctx, fmt.Sprintf("You're not on %s. Base the new branch on %s instead of %s?", defaultBranch, defaultBranch, currentBranch))
		if err != nil {
			return failed(fmt.Sprintf("prompting for base branch: %v", err))
		}
		if !proceed {
			return aborted("declined to base the new branch on the default branch")
		}
	} else if in.AllowNonDefaultBase {
		base = currentBranch
	}

	active, err := a.Git.ActiveBranches(ctx, defaultBranch)
	if err == nil && len(active) > 0 {
		branchFiles := make([]branchplan.BranchFiles, 0, len(active)+1)
		for _, b := range active {
			branchFiles = append(branchFiles, branchplan.BranchFiles{Branch: b.Branch})
		}
		if conflicts, _ := branchplan.ScanConflicts(branchFiles); len(conflicts) > 0 {
			a.log().InfoContext(ctx, "potential branch conflicts detected", "count", len(conflicts))
		}
	}

	a.backupBefore(ctx, "start")

	if err := a.Git.CreateBranch(ctx, plan.FullName, base); err != nil {
		return failed(fmt.Sprintf("creating branch %q: %v", plan.FullName, err))
	}
	if err := a.Git.CheckoutBranch(ctx, plan.FullName); err != nil {
		return failed(fmt.Sprintf("checking out branch %q: %v", plan.FullName, err))
	}

	result := PhaseResult{Status: StatusCompleted, Artifacts: Artifacts{Branch: plan.FullName, Issue: in.IssueNumber}}
	result.note(fmt.Sprintf("created and checked out %s", plan.FullName))

	a.notifyTeam(ctx, notify.Message{
		Title: "New branch started",
		Body:  fmt.Sprintf("%s started work on %s", "a team member", plan.FullName),
		Level: notify.LevelInfo,
	})

	return result
}
