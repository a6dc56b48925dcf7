package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/teamflow-dev/teamflow/internal/apigateway"
	"github.com/teamflow-dev/teamflow/internal/backup"
	"github.com/teamflow-dev/teamflow/internal/config"
	"github.com/teamflow-dev/teamflow/internal/errcls"
	"github.com/teamflow-dev/teamflow/internal/gitadapter"
	"github.com/teamflow-dev/teamflow/internal/recovery"
)

type fakeGit struct {
	isRepo            bool
	status            gitadapter.GitStatus
	currentBranch     string
	defaultBranch     string
	existsLocally     map[string]bool
	existsRemote      map[string]bool
	createdBranch     string
	createdBase       string
	checkedOut        string
	stashed           bool
	committed         []string
	pushed            string
	pulled            string
	active            []gitadapter.BranchCommit
	changedFiles      []string
	changedBetween    map[string][]string
	rebaseResult      gitadapter.RebaseResult
	rebaseErr         error
	abortRebaseCalled bool
	conflictFiles     []string
	autoMsg           string
}

func (f *fakeGit) IsRepo(ctx context.Context) bool { return f.isRepo }
func (f *fakeGit) effectiveStatus() gitadapter.GitStatus {
	st := f.status
	if st.CurrentBranch == "" {
		st.CurrentBranch = f.currentBranch
	}
	return st
}
func (f *fakeGit) CurrentBranch(ctx context.Context) (string, error) { return f.currentBranch, nil }
func (f *fakeGit) DefaultBranch(ctx context.Context, fallback string) string {
	if f.defaultBranch != "" {
		return f.defaultBranch
	}
	return fallback
}
func (f *fakeGit) BranchExistsLocally(ctx context.Context, branch string) bool {
	return f.existsLocally[branch]
}
func (f *fakeGit) BranchExistsOnRemote(ctx context.Context, branch string) bool {
	return f.existsRemote[branch]
}
func (f *fakeGit) CreateBranch(ctx context.Context, name, base string) error {
	f.createdBranch, f.createdBase = name, base
	return nil
}
func (f *fakeGit) CheckoutBranch(ctx context.Context, name string) error {
	f.checkedOut = name
	return nil
}
func (f *fakeGit) Status(ctx context.Context) (gitadapter.GitStatus, error) { return f.effectiveStatus(), nil }
func (f *fakeGit) Stash(ctx context.Context, message string) error         { f.stashed = true; return nil }
func (f *fakeGit) StashPop(ctx context.Context) error                      { return nil }
func (f *fakeGit) Commit(ctx context.Context, message string) error {
	f.committed = append(f.committed, message)
	return nil
}
func (f *fakeGit) CommitPaths(ctx context.Context, paths []string, message string) error {
	f.committed = append(f.committed, message)
	return nil
}
func (f *fakeGit) Push(ctx context.Context, branch string) error { f.pushed = branch; return nil }
func (f *fakeGit) Pull(ctx context.Context, branch string) error { f.pulled = branch; return nil }
func (f *fakeGit) ChangedFiles(ctx context.Context) ([]string, error) { return f.changedFiles, nil }
func (f *fakeGit) ActiveBranches(ctx context.Context, exclude string) ([]gitadapter.BranchCommit, error) {
	return f.active, nil
}
func (f *fakeGit) ChangedFilesBetween(ctx context.Context, base, branch string) ([]string, error) {
	return f.changedBetween[branch], nil
}
func (f *fakeGit) AutoCommitMessage(ctx context.Context) (string, error) { return f.autoMsg, nil }
func (f *fakeGit) Merge(ctx context.Context, other string) (gitadapter.RebaseResult, error) {
	return f.rebaseResult, f.rebaseErr
}
func (f *fakeGit) StartRebase(ctx context.Context, onto string) (gitadapter.RebaseResult, error) {
	return f.rebaseResult, f.rebaseErr
}
func (f *fakeGit) AbortRebase(ctx context.Context) error { f.abortRebaseCalled = true; return nil }
func (f *fakeGit) ConflictFiles(ctx context.Context) ([]string, error) { return f.conflictFiles, nil }

type fakePrompter struct {
	confirmAnswers []bool
	confirmIdx     int
}

func (f *fakePrompter) Confirm(ctx context.Context, prompt string) (bool, error) {
	if f.confirmIdx >= len(f.confirmAnswers) {
		return true, nil
	}
	answer := f.confirmAnswers[f.confirmIdx]
	f.confirmIdx++
	return answer, nil
}
func (f *fakePrompter) Select(ctx context.Context, title string, options []string) (string, error) {
	if len(options) == 0 {
		return "", errors.New("no options")
	}
	return options[0], nil
}
func (f *fakePrompter) Input(ctx context.Context, title, placeholder string) (string, error) {
	return placeholder, nil
}

type fakeAPI struct {
	available bool
	createdPR apigateway.PullRequest
}

func (f *fakeAPI) Available() bool { return f.available }
func (f *fakeAPI) CreateIssue(ctx context.Context, title, body string, labels []string) (apigateway.Issue, error) {
	return apigateway.Issue{}, nil
}
func (f *fakeAPI) GetIssue(ctx context.Context, number int) (apigateway.Issue, error) {
	return apigateway.Issue{}, nil
}
func (f *fakeAPI) ListOpenIssues(ctx context.Context) ([]apigateway.Issue, error) { return nil, nil }
func (f *fakeAPI) CommentIssue(ctx context.Context, number int, body string) error { return nil }
func (f *fakeAPI) CreatePR(ctx context.Context, title, head, base, body string, draft bool) (apigateway.PullRequest, error) {
	f.createdPR = apigateway.PullRequest{Number: 7, Title: title, HeadRef: head, BaseRef: base, Body: body, Draft: draft}
	return f.createdPR, nil
}
func (f *fakeAPI) ListPRsWithReviews(ctx context.Context) ([]apigateway.PullRequest, error) { return nil, nil }
func (f *fakeAPI) ListBranches(ctx context.Context) ([]apigateway.Branch, error)             { return nil, nil }
func (f *fakeAPI) SuggestReviewers(ctx context.Context, limit int) ([]string, error)         { return nil, nil }
func (f *fakeAPI) RepoMetrics(ctx context.Context) (apigateway.RepoMetricsWindow, error) {
	return apigateway.RepoMetricsWindow{}, nil
}

type fakeBackup struct {
	created  []string
	restored []string
}

func (f *fakeBackup) CreateFull(operation string) (backup.BackupRecord, error) {
	f.created = append(f.created, operation)
	return backup.BackupRecord{Operation: operation}, nil
}

func (f *fakeBackup) RestoreMostRecentFor(ctx context.Context, operation string) error {
	f.restored = append(f.restored, operation)
	return nil
}

type fakeClassifier struct{}

func (fakeClassifier) Handle(ctx context.Context, err error) errcls.Classification {
	return errcls.Classify(err)
}

type fakeRecoverer struct{ succeed bool }

func (f fakeRecoverer) Recover(ctx context.Context, operation string, c errcls.Classification, opts recovery.RecoverOptions) recovery.Outcome {
	return recovery.Outcome{Success: f.succeed, Message: "recovered"}
}

func baseAdapters(git *fakeGit, prompter *fakePrompter) *Adapters {
	return &Adapters{
		Git:          git,
		API:          &fakeAPI{},
		Backup:       &fakeBackup{},
		Prompter:     prompter,
		ErrorHandler: fakeClassifier{},
		Recovery:     fakeRecoverer{},
		Config:       &config.ConfigTree{DefaultBranch: "main"},
		Now:          func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func TestStart_CreatesBranchFromDefault(t *testing.T) {
	git := &fakeGit{isRepo: true, currentBranch: "main", defaultBranch: "main"}
	a := baseAdapters(git, &fakePrompter{})

	result := Start(context.Background(), a, StartInput{WorkTypeTag: "feature", IssueNumber: 42, Title: "Add login form"})

	if result.Status != StatusCompleted {
		t.Fatalf("Status = %v, want completed: %+v", result.Status, result)
	}
	if result.Artifacts.Branch != "feature/issue-42-add-login-form" {
		t.Errorf("Branch = %q", result.Artifacts.Branch)
	}
	if git.createdBase != "main" {
		t.Errorf("createdBase = %q, want main", git.createdBase)
	}
}

func TestStart_NotARepoAborts(t *testing.T) {
	git := &fakeGit{isRepo: false}
	a := baseAdapters(git, &fakePrompter{})
	result := Start(context.Background(), a, StartInput{WorkTypeTag: "feature", Title: "x"})
	if result.Status != StatusAborted {
		t.Errorf("Status = %v, want aborted", result.Status)
	}
}

func TestStart_DirtyTreeDeclinedStashAborts(t *testing.T) {
	git := &fakeGit{isRepo: true, currentBranch: "main", defaultBranch: "main", status: gitadapter.GitStatus{Modified: 1}}
	a := baseAdapters(git, &fakePrompter{confirmAnswers: []bool{false}})
	result := Start(context.Background(), a, StartInput{WorkTypeTag: "feature", Title: "x"})
	if result.Status != StatusAborted {
		t.Errorf("Status = %v, want aborted", result.Status)
	}
}

func TestStart_ExistingLocalBranchSwitches(t *testing.T) {
	git := &fakeGit{
		isRepo: true, currentBranch: "main", defaultBranch: "main",
		existsLocally: map[string]bool{"feature/thing": true},
	}
	a := baseAdapters(git, &fakePrompter{confirmAnswers: []bool{true}})
	result := Start(context.Background(), a, StartInput{WorkTypeTag: "feature", Title: "Thing"})
	if result.Status != StatusCompleted || result.Artifacts.Branch != "feature/thing" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if git.checkedOut != "feature/thing" {
		t.Errorf("checkedOut = %q", git.checkedOut)
	}
}

func TestFinish_RefusesOnDefaultBranch(t *testing.T) {
	git := &fakeGit{isRepo: true, currentBranch: "main", defaultBranch: "main"}
	a := baseAdapters(git, &fakePrompter{})
	result := Finish(context.Background(), a, FinishInput{CommitType: "fix", CommitDescription: "bug"})
	if result.Status != StatusAborted {
		t.Errorf("Status = %v, want aborted", result.Status)
	}
}

func TestFinish_CommitsPushesAndOpensPR(t *testing.T) {
	git := &fakeGit{
		isRepo: true, currentBranch: "feature/issue-9-thing", defaultBranch: "main",
		changedFiles: []string{"a.go"},
	}
	api := &fakeAPI{available: true}
	a := baseAdapters(git, &fakePrompter{})
	a.API = api

	result := Finish(context.Background(), a, FinishInput{
		CommitType: "feat", CommitDescription: "add thing",
		OpenPR: true, PRTitle: "Add thing", PRBody: "description",
	})

	if result.Status != StatusCompleted {
		t.Fatalf("Status = %v, want completed: %+v", result.Status, result)
	}
	if git.pushed != "feature/issue-9-thing" {
		t.Errorf("pushed = %q", git.pushed)
	}
	if result.Artifacts.PR != 7 {
		t.Errorf("PR = %d, want 7", result.Artifacts.PR)
	}
	if api.createdPR.Body == "description" {
		t.Error("expected Closes directive to be appended to PR body")
	}
}

func TestFinish_RefusesEmptyCommitDescription(t *testing.T) {
	git := &fakeGit{isRepo: true, currentBranch: "feature/x", defaultBranch: "main", changedFiles: []string{"a.go"}}
	a := baseAdapters(git, &fakePrompter{})
	result := Finish(context.Background(), a, FinishInput{CommitType: "fix", CommitDescription: "  "})
	if result.Status != StatusFailed {
		t.Errorf("Status = %v, want failed", result.Status)
	}
}

func TestBuildCommitMessage_EnforcesConventionalCommitRules(t *testing.T) {
	if _, err := BuildCommitMessage("fix", ""); err != ErrEmptyCommitDescription {
		t.Errorf("expected ErrEmptyCommitDescription, got %v", err)
	}
	if _, err := BuildCommitMessage("fix", "Fix the bug"); err != ErrCommitDescriptionCase {
		t.Errorf("expected ErrCommitDescriptionCase, got %v", err)
	}
	if _, err := BuildCommitMessage("fix", "fix the bug."); err != ErrCommitDescriptionPeriod {
		t.Errorf("expected ErrCommitDescriptionPeriod, got %v", err)
	}
	msg, err := BuildCommitMessage("fix", "fix the bug")
	if err != nil || msg != "fix: fix the bug" {
		t.Errorf("BuildCommitMessage = %q, %v", msg, err)
	}
}

func TestContinue_NoRecommendationsCompletesImmediately(t *testing.T) {
	git := &fakeGit{isRepo: true, currentBranch: "feature/x"}
	a := baseAdapters(git, &fakePrompter{})
	result := Continue(context.Background(), a, ContinueDeps{}, "fix", "tidy up")
	if result.Status != StatusCompleted {
		t.Errorf("Status = %v, want completed", result.Status)
	}
}

func TestContinue_CommitsWhenUncommittedChangesExist(t *testing.T) {
	git := &fakeGit{isRepo: true, currentBranch: "feature/x", status: gitadapter.GitStatus{Modified: 2}}
	a := baseAdapters(git, &fakePrompter{})
	result := Continue(context.Background(), a, ContinueDeps{}, "fix", "tidy up")
	if result.Status != StatusCompleted {
		t.Fatalf("Status = %v: %+v", result.Status, result)
	}
	if len(git.committed) != 1 || git.committed[0] != "fix: tidy up" {
		t.Errorf("committed = %+v", git.committed)
	}
}

func TestHelpFlow_DestructiveActionRequiresConfirmation(t *testing.T) {
	git := &fakeGit{isRepo: true}
	a := baseAdapters(git, &fakePrompter{confirmAnswers: []bool{false}})
	result := HelpFlow(context.Background(), a, UrgencyHigh, 1)
	if result.Status != StatusAborted {
		t.Errorf("Status = %v, want aborted when destructive action declined", result.Status)
	}
	if git.abortRebaseCalled {
		t.Error("expected AbortRebase not to run when declined")
	}
}

func TestHelpFlow_LearningTopicNeverConfirms(t *testing.T) {
	a := baseAdapters(&fakeGit{}, &fakePrompter{confirmAnswers: []bool{false}})
	result := HelpFlow(context.Background(), a, UrgencyLow, 0)
	if result.Status != StatusCompleted {
		t.Errorf("Status = %v, want completed", result.Status)
	}
}

func TestTeam_FansOutAndAggregates(t *testing.T) {
	git := &fakeGit{
		isRepo: true, defaultBranch: "main",
		active: []gitadapter.BranchCommit{{Branch: "feature/a"}, {Branch: "feature/b"}},
		changedBetween: map[string][]string{
			"feature/a": {"a.txt", "only-a.txt"},
			"feature/b": {"a.txt", "only-b.txt"},
		},
	}
	a := baseAdapters(git, &fakePrompter{})
	result, report := Team(context.Background(), a)
	if result.Status != StatusCompleted {
		t.Fatalf("Status = %v: %+v", result.Status, result)
	}
	if len(report.ActiveBranches) != 2 {
		t.Errorf("ActiveBranches = %+v", report.ActiveBranches)
	}
	if len(report.Conflicts) != 1 || report.Conflicts[0].Path != "a.txt" {
		t.Fatalf("Conflicts = %+v, want one conflict on a.txt", report.Conflicts)
	}
	if report.Conflicts[0].BranchA != "feature/a" || report.Conflicts[0].BranchB != "feature/b" {
		t.Errorf("Conflicts[0] = %+v", report.Conflicts[0])
	}
}
