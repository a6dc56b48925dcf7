package orchestrator

import (
	"context"
	"fmt"

	"github.com/teamflow-dev/teamflow/internal/backup"
	"github.com/teamflow-dev/teamflow/internal/diagnosis"
	"github.com/teamflow-dev/teamflow/internal/gitadapter"
)

// GitFacade adapts *gitadapter.Adapter to the narrow interfaces
// internal/backup and internal/diagnosis declare
// (backup.GitSnapshotProvider, diagnosis.GitProbe), so neither of
// those leaf packages needs to import the other or the Git Adapter
// directly. This is the wiring point spec.md §1's out-of-scope
// collaborator philosophy calls for: the leaf packages only ever see
// their own interfaces, and GitFacade is where a concrete
// *gitadapter.Adapter is taught to speak them.
type GitFacade struct {
	*gitadapter.Adapter
}

// NewGitFacade wraps adapter for use as both a
// backup.GitSnapshotProvider and a diagnosis.GitProbe.
func NewGitFacade(adapter *gitadapter.Adapter) *GitFacade {
	return &GitFacade{Adapter: adapter}
}

// Snapshot implements backup.GitSnapshotProvider.
func (f *GitFacade) Snapshot() (backup.GitSnapshot, error) {
	ctx := context.Background()
	branch, err := f.CurrentBranch(ctx)
	if err != nil {
		return backup.GitSnapshot{}, err
	}
	status, err := f.Adapter.Status(ctx)
	if err != nil {
		return backup.GitSnapshot{}, err
	}
	lastCommit, _ := f.LastCommitTime(ctx)
	return backup.GitSnapshot{
		CurrentBranch: branch,
		Status: fmt.Sprintf("ahead=%d behind=%d staged=%d modified=%d untracked=%d conflicted=%d",
			status.Ahead, status.Behind, status.Staged, status.Modified, status.Untracked, status.Conflicted),
		RemoteURL:  f.RemoteURL(ctx),
		LastCommit: lastCommit,
	}, nil
}

// RestoreBranch implements backup.GitSnapshotProvider.
func (f *GitFacade) RestoreBranch(branch string) error {
	return f.CheckoutBranch(context.Background(), branch)
}

// Status implements diagnosis.GitProbe, shadowing the embedded
// Adapter's Status method (which returns gitadapter.GitStatus) with
// one returning diagnosis.GitStatusView.
func (f *GitFacade) Status(ctx context.Context) (diagnosis.GitStatusView, error) {
	status, err := f.Adapter.Status(ctx)
	if err != nil {
		return diagnosis.GitStatusView{}, err
	}
	return diagnosis.GitStatusView{
		CurrentBranch:   status.CurrentBranch,
		Ahead:           status.Ahead,
		Behind:          status.Behind,
		Staged:          status.Staged,
		Modified:        status.Modified,
		Untracked:       status.Untracked,
		Conflicted:      status.Conflicted,
		HasRemoteOrigin: status.HasRemoteOrigin,
	}, nil
}

// UserIdentityConfigured implements diagnosis.GitProbe.
func (f *GitFacade) UserIdentityConfigured(ctx context.Context) (bool, bool) {
	return f.Adapter.UserIdentityConfigured(ctx)
}
