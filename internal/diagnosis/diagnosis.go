// Package diagnosis implements the Diagnosis + Work-Status Analyzer
// (§4.7): repository health checks grouped into issues, warnings, and
// suggestions, plus a work-status summary with ranked recommendations.
package diagnosis

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"
)

// Severity tags a diagnosis finding.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeveritySuggestion Severity = "suggestion"
)

// Finding is one entry in a Report's issues, warnings, or suggestions
// list.
type Finding struct {
	Severity Severity
	Code     string
	Message  string
}

// Report is the Diagnosis output (§4.7): three severity-tagged lists.
type Report struct {
	Issues      []Finding
	Warnings    []Finding
	Suggestions []Finding
}

// MaxUntrackedBeforeExcessive is the "excessive untracked files"
// threshold from §4.7.
const MaxUntrackedBeforeExcessive = 10

// MaxUncommittedBeforeLargeBatch is the "large batch of uncommitted
// changes" warning threshold from §4.7.
const MaxUncommittedBeforeLargeBatch = 20

// LargeFileThresholdBytes is the ">100 MiB" file-size issue threshold.
const LargeFileThresholdBytes = 100 * 1024 * 1024

// GitProbe is the narrow surface Diagnosis needs from the Git Adapter.
// Keeping it narrow lets tests fake it without depending on
// internal/gitadapter.
type GitProbe interface {
	IsRepo(ctx context.Context) bool
	IsDetachedHead(ctx context.Context) (bool, error)
	RemoteReachable(ctx context.Context) bool
	UserIdentityConfigured(ctx context.Context) (nameSet, emailSet bool)
	Status(ctx context.Context) (GitStatusView, error)
	LargeFiles(ctx context.Context, maxBytes int64) ([]string, error)
	DefaultBranch(ctx context.Context, fallback string) string
}

// GitStatusView mirrors the fields of gitadapter.GitStatus that
// Diagnosis needs, so this package doesn't import gitadapter.
type GitStatusView struct {
	CurrentBranch   string
	Ahead           int
	Behind          int
	Staged          int
	Modified        int
	Untracked       int
	Conflicted      int
	HasRemoteOrigin bool
}

func (s GitStatusView) uncommitted() int {
	return s.Staged + s.Modified + s.Untracked
}

// probeFileName is written to and removed from the working directory
// to test writability.
const probeFileName = ".team-flow-write-probe"

// Diagnose runs every check from §4.7 against repoRoot via git.
func Diagnose(ctx context.Context, repoRoot string, git GitProbe) Report {
	var r Report

	if !git.IsRepo(ctx) {
		r.Issues = append(r.Issues, Finding{SeverityCritical, "not_a_repo", "current directory is not a Git repository"})
		return r
	}

	status, err := git.Status(ctx)
	if err != nil {
		r.Issues = append(r.Issues, Finding{SeverityCritical, "status_failed", "unable to read git status: " + err.Error()})
		return r
	}

	if status.Conflicted > 0 {
		r.Issues = append(r.Issues, Finding{SeverityCritical, "merge_conflict", "repository has unresolved merge conflicts"})
	}
	if status.Untracked > MaxUntrackedBeforeExcessive {
		r.Issues = append(r.Issues, Finding{SeverityWarning, "excessive_untracked", "more than " + strconv.Itoa(MaxUntrackedBeforeExcessive) + " untracked files present"})
	}
	if detached, err := git.IsDetachedHead(ctx); err == nil && detached {
		r.Issues = append(r.Issues, Finding{SeverityWarning, "detached_head", "HEAD is detached"})
	}
	if !git.RemoteReachable(ctx) {
		r.Issues = append(r.Issues, Finding{SeverityWarning, "remote_unreachable", "remote origin is unreachable"})
	}
	if !writableProbe(repoRoot) {
		r.Issues = append(r.Issues, Finding{SeverityCritical, "working_dir_unwritable", "working directory is not writable"})
	}
	nameSet, emailSet := git.UserIdentityConfigured(ctx)
	if !nameSet || !emailSet {
		r.Issues = append(r.Issues, Finding{SeverityWarning, "missing_git_identity", "git user.name or user.email is not configured"})
	}
	if large, err := git.LargeFiles(ctx, LargeFileThresholdBytes); err == nil && len(large) > 0 {
		r.Issues = append(r.Issues, Finding{SeverityWarning, "large_files", "files larger than 100 MiB are tracked"})
	}

	defaultBranch := git.DefaultBranch(ctx, "main")
	if status.CurrentBranch == defaultBranch {
		r.Warnings = append(r.Warnings, Finding{SeverityWarning, "work_on_default_branch", "work is happening directly on " + defaultBranch})
	}
	if status.uncommitted() > MaxUncommittedBeforeLargeBatch {
		r.Warnings = append(r.Warnings, Finding{SeverityWarning, "large_uncommitted_batch", "more than " + strconv.Itoa(MaxUncommittedBeforeLargeBatch) + " uncommitted changes"})
	}
	if status.Ahead > 0 {
		r.Warnings = append(r.Warnings, Finding{SeverityWarning, "unpushed_commits", "local commits have not been pushed"})
	}

	return r
}

// writableProbe writes then removes a small probe file to test
// working-directory writability.
func writableProbe(dir string) bool {
	path := filepath.Join(dir, probeFileName)
	if err := os.WriteFile(path, []byte("probe"), 0o600); err != nil {
		return false
	}
	_ = os.Remove(path)
	return true
}

// SyncState classifies branch/remote divergence (§3 WorkStatus.sync).
type SyncState string

const (
	SyncUpToDate SyncState = "up_to_date"
	SyncAhead    SyncState = "ahead"
	SyncBehind   SyncState = "behind"
	SyncDiverged SyncState = "diverged"
	SyncNoRemote SyncState = "no_remote"
)

func classifySync(hasRemote bool, ahead, behind int) SyncState {
	switch {
	case !hasRemote:
		return SyncNoRemote
	case ahead > 0 && behind > 0:
		return SyncDiverged
	case ahead > 0:
		return SyncAhead
	case behind > 0:
		return SyncBehind
	default:
		return SyncUpToDate
	}
}

// StaleAfter and LongRunningAfter are the thresholds from §4.7.
const (
	StaleAfter       = 24 * time.Hour
	LongRunningAfter = 8 * time.Hour
)

// RecommendationAction drives the Continue dispatcher (§3).
type RecommendationAction string

const (
	ActionCommit       RecommendationAction = "commit"
	ActionPull         RecommendationAction = "pull"
	ActionPush         RecommendationAction = "push"
	ActionSync         RecommendationAction = "sync"
	ActionTest         RecommendationAction = "test"
	ActionUpdateIssue  RecommendationAction = "update_issue"
	ActionUpdateStatus RecommendationAction = "update_status"
)

// Priority mirrors §3's Recommendation.priority.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Recommendation is §3's Recommendation entity.
type Recommendation struct {
	Type        string
	Priority    Priority
	Title       string
	Description string
	Action      RecommendationAction
}

// actionRank fixes the priority order from §4.7: "commit > pull > push
// > sync > test > update_issue > update_status". Lower rank sorts
// first.
var actionRank = map[RecommendationAction]int{
	ActionCommit:       0,
	ActionPull:         1,
	ActionPush:         2,
	ActionSync:         3,
	ActionTest:         4,
	ActionUpdateIssue:  5,
	ActionUpdateStatus: 6,
}

// WorkStatus is §3's WorkStatus entity.
type WorkStatus struct {
	CurrentBranch        string
	Sync                 SyncState
	UncommittedCount     int
	UnpushedCount        int
	HoursSinceBranchCreated float64
	HoursSinceLastCommit   float64
	IsStale              bool
	IsLongRunning        bool
	IssueNumber          int
	HasIssue             bool
	Recommendations      []Recommendation
}

// branchIssuePattern extracts an issue number from branches shaped
// like the ones internal/branchplan builds, e.g.
// "feature/issue-42-add-login-form".
var branchIssuePattern = regexp.MustCompile(`issue-(\d+)`)

// IssueNumberFromBranch returns the issue number encoded in branch, if
// any, per §4.7's "issue state if the branch name encodes one".
func IssueNumberFromBranch(branch string) (int, bool) {
	m := branchIssuePattern.FindStringSubmatch(branch)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// AnalyzeWorkStatus composes a WorkStatus from the current git status
// and the branch's commit timestamps (§4.7).
func AnalyzeWorkStatus(status GitStatusView, hasTestRunner bool, firstCommit, lastCommit, now time.Time) WorkStatus {
	ws := WorkStatus{
		CurrentBranch:    status.CurrentBranch,
		Sync:             classifySync(status.HasRemoteOrigin, status.Ahead, status.Behind),
		UncommittedCount: status.uncommitted(),
		UnpushedCount:    status.Ahead,
	}
	if issueNum, ok := IssueNumberFromBranch(status.CurrentBranch); ok {
		ws.IssueNumber = issueNum
		ws.HasIssue = true
	}
	if !firstCommit.IsZero() {
		ws.HoursSinceBranchCreated = now.Sub(firstCommit).Hours()
	}
	if !lastCommit.IsZero() {
		ws.HoursSinceLastCommit = now.Sub(lastCommit).Hours()
		ws.IsStale = now.Sub(lastCommit) > StaleAfter
	}
	ws.IsLongRunning = now.Sub(firstCommit) > LongRunningAfter && !firstCommit.IsZero()

	ws.Recommendations = recommend(ws, status, hasTestRunner)
	return ws
}

func recommend(ws WorkStatus, status GitStatusView, hasTestRunner bool) []Recommendation {
	var recs []Recommendation

	if ws.UncommittedCount > 0 {
		recs = append(recs, Recommendation{
			Type: "commit", Priority: PriorityHigh,
			Title:       "Commit your changes",
			Description: "You have uncommitted changes in the working tree.",
			Action:      ActionCommit,
		})
	}
	if status.Behind > 0 {
		recs = append(recs, Recommendation{
			Type: "pull", Priority: PriorityHigh,
			Title:       "Pull latest changes",
			Description: "Your branch is behind its remote tracking branch.",
			Action:      ActionPull,
		})
	}
	if status.Ahead > 0 {
		recs = append(recs, Recommendation{
			Type: "push", Priority: PriorityMedium,
			Title:       "Push your commits",
			Description: "You have local commits not yet pushed.",
			Action:      ActionPush,
		})
	}
	if ws.Sync == SyncDiverged {
		recs = append(recs, Recommendation{
			Type: "sync", Priority: PriorityMedium,
			Title:       "Sync with the default branch",
			Description: "Your branch has diverged from its remote counterpart.",
			Action:      ActionSync,
		})
	}
	if hasTestRunner {
		recs = append(recs, Recommendation{
			Type: "test", Priority: PriorityMedium,
			Title:       "Run the test suite",
			Description: "A test runner was detected for this project.",
			Action:      ActionTest,
		})
	}
	if ws.HasIssue {
		recs = append(recs, Recommendation{
			Type: "update_issue", Priority: PriorityLow,
			Title:       "Update the linked issue",
			Description: "Post progress on the issue this branch addresses.",
			Action:      ActionUpdateIssue,
		})
	}
	if ws.IsStale || ws.IsLongRunning {
		recs = append(recs, Recommendation{
			Type: "update_status", Priority: PriorityLow,
			Title:       "Post a status update",
			Description: "This branch has been active for a while without a status update.",
			Action:      ActionUpdateStatus,
		})
	}

	for i := 0; i < len(recs); i++ {
		for j := i + 1; j < len(recs); j++ {
			if actionRank[recs[j].Action] < actionRank[recs[i].Action] {
				recs[i], recs[j] = recs[j], recs[i]
			}
		}
	}
	return recs
}
