// Package orchestrator implements the Command Orchestrator (§4.1):
// one phase state machine per user-facing command (Start, Continue,
// Finish, Team, Help-Flow), composing the Git Adapter, the API
// Gateway, the Backup Store, the Error Handler, the Recovery Manager,
// and the notification/prompt collaborators behind narrow interfaces.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/teamflow-dev/teamflow/internal/apigateway"
	"github.com/teamflow-dev/teamflow/internal/backup"
	"github.com/teamflow-dev/teamflow/internal/cliui"
	"github.com/teamflow-dev/teamflow/internal/config"
	"github.com/teamflow-dev/teamflow/internal/errcls"
	"github.com/teamflow-dev/teamflow/internal/gitadapter"
	"github.com/teamflow-dev/teamflow/internal/notify"
	"github.com/teamflow-dev/teamflow/internal/recovery"
)

// Status is §4.1's PhaseResult.status.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusAborted   Status = "aborted"
	StatusFailed    Status = "failed"
)

// Artifacts captures the identifiers a phase produced or touched.
type Artifacts struct {
	Branch string
	Issue  int
	PR     int
}

// PhaseResult is §4.1's public phase contract.
type PhaseResult struct {
	Status    Status
	Artifacts Artifacts
	Messages  []string
}

func (r *PhaseResult) note(msg string) {
	r.Messages = append(r.Messages, msg)
}

func aborted(msg string) PhaseResult {
	return PhaseResult{Status: StatusAborted, Messages: []string{msg}}
}

func failed(msg string) PhaseResult {
	return PhaseResult{Status: StatusFailed, Messages: []string{msg}}
}

// GitOps is the narrow slice of internal/gitadapter the orchestrator
// needs to drive a phase. Phases depend on this interface, not on
// *gitadapter.Adapter, so tests can substitute fakes.
type GitOps interface {
	IsRepo(ctx context.Context) bool
	CurrentBranch(ctx context.Context) (string, error)
	DefaultBranch(ctx context.Context, fallback string) string
	BranchExistsLocally(ctx context.Context, branch string) bool
	BranchExistsOnRemote(ctx context.Context, branch string) bool
	CreateBranch(ctx context.Context, name, base string) error
	CheckoutBranch(ctx context.Context, name string) error
	Status(ctx context.Context) (gitadapter.GitStatus, error)
	Stash(ctx context.Context, message string) error
	StashPop(ctx context.Context) error
	Commit(ctx context.Context, message string) error
	CommitPaths(ctx context.Context, paths []string, message string) error
	Push(ctx context.Context, branch string) error
	Pull(ctx context.Context, branch string) error
	ChangedFiles(ctx context.Context) ([]string, error)
	ActiveBranches(ctx context.Context, exclude string) ([]gitadapter.BranchCommit, error)
	ChangedFilesBetween(ctx context.Context, base, branch string) ([]string, error)
	AutoCommitMessage(ctx context.Context) (string, error)
	Merge(ctx context.Context, other string) (gitadapter.RebaseResult, error)
	StartRebase(ctx context.Context, onto string) (gitadapter.RebaseResult, error)
	AbortRebase(ctx context.Context) error
	ConflictFiles(ctx context.Context) ([]string, error)
}

// APIOps is the narrow slice of internal/apigateway the orchestrator
// needs.
type APIOps interface {
	Available() bool
	CreateIssue(ctx context.Context, title, body string, labels []string) (apigateway.Issue, error)
	GetIssue(ctx context.Context, number int) (apigateway.Issue, error)
	ListOpenIssues(ctx context.Context) ([]apigateway.Issue, error)
	CommentIssue(ctx context.Context, number int, body string) error
	CreatePR(ctx context.Context, title, head, base, body string, draft bool) (apigateway.PullRequest, error)
	ListPRsWithReviews(ctx context.Context) ([]apigateway.PullRequest, error)
	ListBranches(ctx context.Context) ([]apigateway.Branch, error)
	SuggestReviewers(ctx context.Context, limit int) ([]string, error)
	RepoMetrics(ctx context.Context) (apigateway.RepoMetricsWindow, error)
}

// BackupOps is the narrow slice of internal/backup the orchestrator
// needs for pre-operation snapshots.
type BackupOps interface {
	CreateFull(operation string) (backup.BackupRecord, error)
	RestoreMostRecentFor(ctx context.Context, operation string) error
}

// Classifier is the narrow slice of internal/errcls the orchestrator
// needs.
type Classifier interface {
	Handle(ctx context.Context, err error) errcls.Classification
}

// Recoverer is the narrow slice of internal/recovery the orchestrator
// needs.
type Recoverer interface {
	Recover(ctx context.Context, operation string, c errcls.Classification, opts recovery.RecoverOptions) recovery.Outcome
}

// Adapters bundles every collaborator a phase composes (§4.1: "Each
// phase accepts (Config, Prompter, Adapters)").
type Adapters struct {
	Git          GitOps
	API          APIOps
	Backup       BackupOps
	Notifier     notify.Notifier
	Prompter     cliui.Prompter
	Renderer     cliui.Renderer
	ErrorHandler Classifier
	Recovery     Recoverer
	Config       *config.ConfigTree
	Logger       *slog.Logger
	Now          func() time.Time
}

func (a *Adapters) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *Adapters) log() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

// notifyTeam sends msg via the configured Notifier, logging but never
// failing the phase on delivery error, per §7 "Warnings never abort a
// phase".
func (a *Adapters) notifyTeam(ctx context.Context, msg notify.Message) {
	if a.Notifier == nil {
		return
	}
	if err := a.Notifier.Notify(ctx, msg); err != nil {
		a.log().WarnContext(ctx, "notification delivery failed", "error", err)
	}
}

// handleAndRecover classifies err via the Error Handler and, if
// recoverable, dispatches to the Recovery Manager. It returns true
// when the caller may retry (recovery succeeded).
func (a *Adapters) handleAndRecover(ctx context.Context, operation string, err error, opts recovery.RecoverOptions) (retry bool, outcome recovery.Outcome) {
	c := a.ErrorHandler.Handle(ctx, err)
	if c.Severity != errcls.SeverityRecoverable || a.Recovery == nil {
		return false, recovery.Outcome{Success: false, Message: err.Error()}
	}
	out := a.Recovery.Recover(ctx, operation, c, opts)
	return out.Success, out
}

// backupBefore creates a pre-operation snapshot if a Backup Store is
// configured, logging but never failing the phase on backup error —
// a failed backup degrades safety, it never blocks the operation it
// was meant to protect.
func (a *Adapters) backupBefore(ctx context.Context, operation string) {
	if a.Backup == nil {
		return
	}
	if _, err := a.Backup.CreateFull(operation); err != nil {
		a.log().WarnContext(ctx, "pre-operation backup failed", "operation", operation, "error", err)
	}
}
