package orchestrator

import (
	"context"
	"fmt"

	"github.com/teamflow-dev/teamflow/internal/apigateway"
	"github.com/teamflow-dev/teamflow/internal/branchplan"
	"github.com/teamflow-dev/teamflow/internal/gitadapter"
)

// TeamReport is the rendered output of the Team phase's concurrent
// fan-out (§4.1): active branches, open PRs with review state,
// potential file conflicts, and a 7-day metrics window.
type TeamReport struct {
	ActiveBranches []gitadapter.BranchCommit
	OpenPRs        []apigateway.PullRequest
	Conflicts      []branchplan.ConflictPair
	ConflictsSampled bool
	Metrics        apigateway.RepoMetricsWindow
}

// teamFanoutResult carries one fan-out goroutine's outcome back to
// the collector.
type teamFanoutResult struct {
	branches []gitadapter.BranchCommit
	prs      []apigateway.PullRequest
	conflicts []branchplan.ConflictPair
	sampled  bool
	metrics  apigateway.RepoMetricsWindow
	errs     []error
}

// Team implements the Team phase (§4.1): concurrent fan-out to list
// active branches, open PRs with reviews, a file-conflict scan, and a
// 7-day metrics window, composed into a single TeamReport.
func Team(ctx context.Context, a *Adapters) (PhaseResult, TeamReport) {
	if !a.Git.IsRepo(ctx) {
		return aborted("current directory is not a Git repository"), TeamReport{}
	}

	defaultBranch := a.Git.DefaultBranch(ctx, a.Config.DefaultBranch)

	type job func() teamFanoutResult
	jobs := []job{
		func() teamFanoutResult {
			branches, err := a.Git.ActiveBranches(ctx, defaultBranch)
			if err != nil {
				return teamFanoutResult{errs: []error{fmt.Errorf("listing active branches: %w", err)}}
			}
			return teamFanoutResult{branches: branches}
		},
		func() teamFanoutResult {
			if a.API == nil || !a.API.Available() {
				return teamFanoutResult{}
			}
			prs, err := a.API.ListPRsWithReviews(ctx)
			if err != nil {
				return teamFanoutResult{errs: []error{fmt.Errorf("listing pull requests: %w", err)}}
			}
			return teamFanoutResult{prs: prs}
		},
		func() teamFanoutResult {
			branches, err := a.Git.ActiveBranches(ctx, defaultBranch)
			if err != nil {
				return teamFanoutResult{errs: []error{fmt.Errorf("scanning for conflicts: %w", err)}}
			}
			var errs []error
			branchFiles := make([]branchplan.BranchFiles, 0, len(branches))
			for _, b := range branches {
				files, err := a.Git.ChangedFilesBetween(ctx, defaultBranch, b.Branch)
				if err != nil {
					errs = append(errs, fmt.Errorf("diffing %s: %w", b.Branch, err))
					continue
				}
				branchFiles = append(branchFiles, branchplan.BranchFiles{Branch: b.Branch, Files: files})
			}
			conflicts, sampled := branchplan.ScanConflicts(branchFiles)
			return teamFanoutResult{conflicts: conflicts, sampled: sampled, errs: errs}
		},
		func() teamFanoutResult {
			if a.API == nil || !a.API.Available() {
				return teamFanoutResult{}
			}
			metrics, err := a.API.RepoMetrics(ctx)
			if err != nil {
				return teamFanoutResult{errs: []error{fmt.Errorf("computing metrics: %w", err)}}
			}
			return teamFanoutResult{metrics: metrics}
		},
	}

	results := make([]teamFanoutResult, len(jobs))
	done := make(chan int, len(jobs))
	for i, j := range jobs {
		go func(i int, j job) {
			results[i] = j()
			done <- i
		}(i, j)
	}
	for range jobs {
		<-done
	}

	report := TeamReport{}
	var messages []string
	for _, r := range results {
		if r.branches != nil {
			report.ActiveBranches = r.branches
		}
		if r.prs != nil {
			report.OpenPRs = r.prs
		}
		if r.conflicts != nil || r.sampled {
			report.Conflicts = r.conflicts
			report.ConflictsSampled = r.sampled
		}
		if (r.metrics != apigateway.RepoMetricsWindow{}) {
			report.Metrics = r.metrics
		}
		for _, e := range r.errs {
			messages = append(messages, e.Error())
		}
	}

	return PhaseResult{Status: StatusCompleted, Messages: messages}, report
}
