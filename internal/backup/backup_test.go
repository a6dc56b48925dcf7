package backup

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type fakeGit struct {
	snapshot      GitSnapshot
	restoredTo    string
}

func (f *fakeGit) Snapshot() (GitSnapshot, error) { return f.snapshot, nil }
func (f *fakeGit) RestoreBranch(branch string) error {
	f.restoredTo = branch
	return nil
}

func newTestRepo(t *testing.T) (repoRoot, stateDir string) {
	t.Helper()
	repoRoot = t.TempDir()
	stateDir = filepath.Join(repoRoot, ".team-flow")
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		t.Fatalf("creating state dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(repoRoot, ".env"), []byte("GITHUB_TOKEN=abc\n"), 0o644); err != nil {
		t.Fatalf("writing .env: %v", err)
	}
	if err := os.WriteFile(filepath.Join(repoRoot, ".gitignore"), []byte("node_modules/\n"), 0o644); err != nil {
		t.Fatalf("writing .gitignore: %v", err)
	}
	if err := os.WriteFile(filepath.Join(repoRoot, "go.mod"), []byte("module example\n"), 0o644); err != nil {
		t.Fatalf("writing go.mod: %v", err)
	}
	return repoRoot, stateDir
}

func TestCreateFull_CapturesTargetsAndChecksum(t *testing.T) {
	repoRoot, stateDir := newTestRepo(t)
	git := &fakeGit{snapshot: GitSnapshot{CurrentBranch: "main", RemoteURL: "git@github.com:acme/widgets.git"}}
	s := New(repoRoot, stateDir, git)

	record, err := s.CreateFull("start")
	if err != nil {
		t.Fatalf("CreateFull: %v", err)
	}
	if record.Kind != "full" {
		t.Errorf("Kind = %q, want full", record.Kind)
	}
	if record.Checksum == "" {
		t.Error("expected non-empty checksum")
	}
	if record.Git == nil || record.Git.CurrentBranch != "main" {
		t.Errorf("expected git snapshot to be captured, got %+v", record.Git)
	}

	var foundEnv, foundManifest bool
	for _, f := range record.Files {
		if f.Path == ".env" {
			foundEnv = true
		}
		if f.Path == "go.mod" {
			foundManifest = true
		}
	}
	if !foundEnv || !foundManifest {
		t.Errorf("expected .env and go.mod among captured files, got %+v", record.Files)
	}
}

func TestVerify_DetectsTampering(t *testing.T) {
	repoRoot, stateDir := newTestRepo(t)
	s := New(repoRoot, stateDir, nil)

	record, err := s.CreateFull("start")
	if err != nil {
		t.Fatalf("CreateFull: %v", err)
	}
	ok, err := s.Verify(record)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatal("expected fresh backup to verify")
	}

	tamperedPath := filepath.Join(stateDir, "backups", record.ID, ".env")
	if err := os.WriteFile(tamperedPath, []byte("tampered"), 0o644); err != nil {
		t.Fatalf("tampering with snapshot: %v", err)
	}
	ok, err = s.Verify(record)
	if err != nil {
		t.Fatalf("Verify after tamper: %v", err)
	}
	if ok {
		t.Error("expected tampered snapshot to fail verification")
	}
}

func TestRestore_OverwritesWorkingTreeAndBranch(t *testing.T) {
	repoRoot, stateDir := newTestRepo(t)
	git := &fakeGit{snapshot: GitSnapshot{CurrentBranch: "main"}}
	s := New(repoRoot, stateDir, git)

	record, err := s.CreateFull("start")
	if err != nil {
		t.Fatalf("CreateFull: %v", err)
	}

	if err := os.WriteFile(filepath.Join(repoRoot, ".env"), []byte("CORRUPTED"), 0o644); err != nil {
		t.Fatalf("corrupting .env: %v", err)
	}

	if err := s.Restore(record); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(repoRoot, ".env"))
	if err != nil {
		t.Fatalf("reading restored .env: %v", err)
	}
	if string(data) != "GITHUB_TOKEN=abc\n" {
		t.Errorf(".env = %q, want original content restored", data)
	}
	if git.restoredTo != "main" {
		t.Errorf("expected branch restore to main, got %q", git.restoredTo)
	}
}

func TestRestore_RefusesWhenVerifyFails(t *testing.T) {
	repoRoot, stateDir := newTestRepo(t)
	s := New(repoRoot, stateDir, nil)

	record, err := s.CreateFull("start")
	if err != nil {
		t.Fatalf("CreateFull: %v", err)
	}
	tamperedPath := filepath.Join(stateDir, "backups", record.ID, ".env")
	if err := os.WriteFile(tamperedPath, []byte("tampered"), 0o644); err != nil {
		t.Fatalf("tampering: %v", err)
	}

	if err := s.Restore(record); err == nil {
		t.Error("expected Restore to refuse a tampered backup")
	}
}

func TestCreateFull_DoesNotRecurseIntoOwnBackupsDir(t *testing.T) {
	repoRoot, stateDir := newTestRepo(t)
	s := New(repoRoot, stateDir, nil)

	if _, err := s.CreateFull("start"); err != nil {
		t.Fatalf("first CreateFull: %v", err)
	}
	second, err := s.CreateFull("continue")
	if err != nil {
		t.Fatalf("second CreateFull: %v", err)
	}
	for _, f := range second.Files {
		if f.Path == ".team-flow" || strings.Contains(f.Path, "backups") {
			t.Errorf("second backup should not embed the store's own backups dir, got %+v", f)
		}
	}
}

func TestRetention_DropsOldestBeyondCap(t *testing.T) {
	repoRoot, stateDir := newTestRepo(t)
	s := New(repoRoot, stateDir, nil).WithRetention(2)

	var last string
	for i := 0; i < 4; i++ {
		record, err := s.CreateFull("start")
		if err != nil {
			t.Fatalf("CreateFull #%d: %v", i, err)
		}
		last = record.ID
	}

	records, err := s.loadIndex()
	if err != nil {
		t.Fatalf("loadIndex: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[0].ID != last {
		t.Errorf("expected most recent record first, got %+v", records[0])
	}
}

func TestCreateIncremental_SkipsUnchangedFiles(t *testing.T) {
	repoRoot, stateDir := newTestRepo(t)
	s := New(repoRoot, stateDir, nil)

	if _, err := s.CreateFull("start"); err != nil {
		t.Fatalf("CreateFull: %v", err)
	}

	incremental, err := s.CreateIncremental("continue")
	if err != nil {
		t.Fatalf("CreateIncremental: %v", err)
	}
	if incremental.Kind != "incremental" {
		t.Errorf("Kind = %q, want incremental", incremental.Kind)
	}
	if len(incremental.Files) != 0 {
		t.Errorf("expected no changed files, got %+v", incremental.Files)
	}
}

func TestCreateIncremental_CapturesChangedFile(t *testing.T) {
	repoRoot, stateDir := newTestRepo(t)
	s := New(repoRoot, stateDir, nil)

	if _, err := s.CreateFull("start"); err != nil {
		t.Fatalf("CreateFull: %v", err)
	}
	if err := os.WriteFile(filepath.Join(repoRoot, ".env"), []byte("GITHUB_TOKEN=changed\n"), 0o644); err != nil {
		t.Fatalf("changing .env: %v", err)
	}

	incremental, err := s.CreateIncremental("continue")
	if err != nil {
		t.Fatalf("CreateIncremental: %v", err)
	}
	var foundEnv bool
	for _, f := range incremental.Files {
		if f.Path == ".env" {
			foundEnv = true
		}
	}
	if !foundEnv {
		t.Errorf("expected changed .env among incremental files, got %+v", incremental.Files)
	}
}

func TestMostRecentFor_ScopedByOperation(t *testing.T) {
	repoRoot, stateDir := newTestRepo(t)
	s := New(repoRoot, stateDir, nil)

	if _, err := s.CreateFull("start"); err != nil {
		t.Fatalf("CreateFull: %v", err)
	}
	if _, err := s.CreateFull("finish"); err != nil {
		t.Fatalf("CreateFull: %v", err)
	}

	record, ok, err := s.MostRecentFor("start")
	if err != nil {
		t.Fatalf("MostRecentFor: %v", err)
	}
	if !ok || record.Operation != "start" {
		t.Errorf("expected to find a record for start, got ok=%v record=%+v", ok, record)
	}

	_, ok, err = s.MostRecentFor("nonexistent")
	if err != nil {
		t.Fatalf("MostRecentFor: %v", err)
	}
	if ok {
		t.Error("expected no record for an operation never backed up")
	}
}

func TestRestoreMostRecentFor_SatisfiesRecoveryInterface(t *testing.T) {
	repoRoot, stateDir := newTestRepo(t)
	s := New(repoRoot, stateDir, nil)

	if _, err := s.CreateFull("sync_branch"); err != nil {
		t.Fatalf("CreateFull: %v", err)
	}
	if err := os.WriteFile(filepath.Join(repoRoot, ".env"), []byte("CORRUPTED"), 0o644); err != nil {
		t.Fatalf("corrupting .env: %v", err)
	}
	if err := s.RestoreMostRecentFor(context.Background(), "sync_branch"); err != nil {
		t.Fatalf("RestoreMostRecentFor: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(repoRoot, ".env"))
	if err != nil {
		t.Fatalf("reading restored .env: %v", err)
	}
	if string(data) != "GITHUB_TOKEN=abc\n" {
		t.Errorf(".env = %q, want restored content", data)
	}
}

func TestRestoreMostRecentFor_NoBackupFails(t *testing.T) {
	repoRoot, stateDir := newTestRepo(t)
	s := New(repoRoot, stateDir, nil)
	if err := s.RestoreMostRecentFor(context.Background(), "never_backed_up"); err == nil {
		t.Error("expected error when no backup exists for the operation")
	}
}
