// Package backup is the Backup Store (§4.5): full/incremental
// snapshots of a fixed path set with SHA-256 checksums, a retention-
// bounded JSON index, and verify-before-restore semantics.
package backup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
)

// DefaultRetention is the default cap on stored records (§3 "default 10").
const DefaultRetention = 10

// manifestCandidates are the package-manifest filenames probed at the
// repo root to satisfy the fixed "package manifest" backup path (§4.5).
var manifestCandidates = []string{"package.json", "go.mod", "Cargo.toml", "pyproject.toml", "Gemfile", "composer.json"}

// FileKind distinguishes a plain file from a directory entry in a record.
type FileKind string

const (
	KindFile FileKind = "file"
	KindDir  FileKind = "dir"
)

// FileEntry describes one captured path within a BackupRecord.
type FileEntry struct {
	Path     string    `json:"path"`
	Kind     FileKind  `json:"kind"`
	Size     int64     `json:"size"`
	Mtime    time.Time `json:"mtime"`
	Checksum string    `json:"checksum,omitempty"`
}

// GitSnapshot captures the repository's Git state at backup time.
type GitSnapshot struct {
	CurrentBranch string `json:"current_branch"`
	Status        string `json:"status"`
	RemoteURL     string `json:"remote_url"`
	LastCommit    string `json:"last_commit"`
}

// GitSnapshotProvider is the narrow slice of internal/gitadapter the
// Backup Store needs to capture a Git snapshot alongside a file backup.
type GitSnapshotProvider interface {
	Snapshot() (GitSnapshot, error)
	RestoreBranch(branch string) error
}

// BackupRecord mirrors spec.md §3.
type BackupRecord struct {
	ID         string      `json:"id"`
	Kind       string      `json:"kind"`
	Operation  string      `json:"operation"`
	Timestamp  time.Time   `json:"timestamp"`
	BasedOnID  string      `json:"based_on_id,omitempty"`
	Files      []FileEntry `json:"files"`
	TotalSize  int64       `json:"total_size"`
	Checksum   string      `json:"checksum"`
	Git        *GitSnapshot `json:"git,omitempty"`
}

// Store is the Backup Store, rooted at a repository and persisting its
// index under stateDir.
type Store struct {
	repoRoot  string
	stateDir  string
	retention int
	git       GitSnapshotProvider
	now       func() time.Time
}

// New constructs a Store. git may be nil when no Git snapshot should
// be captured (e.g. in a non-repository directory).
func New(repoRoot, stateDir string, git GitSnapshotProvider) *Store {
	return &Store{repoRoot: repoRoot, stateDir: stateDir, retention: DefaultRetention, git: git, now: time.Now}
}

// WithRetention overrides the default retention cap.
func (s *Store) WithRetention(n int) *Store {
	s.retention = n
	return s
}

func (s *Store) indexPath() string { return filepath.Join(s.stateDir, "backups", "index.json") }

func (s *Store) snapshotDir(id string) string { return filepath.Join(s.stateDir, "backups", id) }

// targetPaths resolves the fixed backup path set (§4.5): .env, the
// detected package manifest, .gitignore, and the tool's state
// directory itself.
func (s *Store) targetPaths() []string {
	paths := []string{".env", ".gitignore"}
	for _, candidate := range manifestCandidates {
		if _, err := os.Stat(filepath.Join(s.repoRoot, candidate)); err == nil {
			paths = append(paths, candidate)
			break
		}
	}
	if rel, err := filepath.Rel(s.repoRoot, s.stateDir); err == nil && !strings.HasPrefix(rel, "..") {
		paths = append(paths, rel)
	}
	return paths
}

func (s *Store) loadIndex() ([]BackupRecord, error) {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup index: %w", err)
	}
	var records []BackupRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing backup index: %w", err)
	}
	return records, nil
}

func (s *Store) saveIndex(records []BackupRecord) error {
	if err := os.MkdirAll(filepath.Dir(s.indexPath()), 0o755); err != nil {
		return fmt.Errorf("creating backup directory: %w", err)
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding backup index: %w", err)
	}
	return os.WriteFile(s.indexPath(), data, 0o644)
}

// CreateFull snapshots every target path and records per-file
// checksums plus a whole-snapshot checksum over the canonical
// concatenation of sorted "<relpath>:<content>" pairs.
func (s *Store) CreateFull(operation string) (BackupRecord, error) {
	id := uuid.NewString()
	dest := s.snapshotDir(id)

	files, err := s.copyTargets(dest, nil)
	if err != nil {
		return BackupRecord{}, err
	}

	record := BackupRecord{
		ID:        id,
		Kind:      "full",
		Operation: operation,
		Timestamp: s.now(),
		Files:     files,
	}
	record.TotalSize = totalSize(files)
	record.Checksum, err = canonicalChecksum(dest, files)
	if err != nil {
		return BackupRecord{}, err
	}
	if s.git != nil {
		snap, err := s.git.Snapshot()
		if err == nil {
			record.Git = &snap
		}
	}
	if err := s.append(record); err != nil {
		return BackupRecord{}, err
	}
	return record, nil
}

// CreateIncremental bases off the most recent record, copying only
// files whose checksum (files) or mtime (directories) differs.
func (s *Store) CreateIncremental(operation string) (BackupRecord, error) {
	records, err := s.loadIndex()
	if err != nil {
		return BackupRecord{}, err
	}
	if len(records) == 0 {
		return s.CreateFull(operation)
	}
	base := records[0]

	id := uuid.NewString()
	dest := s.snapshotDir(id)
	files, err := s.copyTargets(dest, &base)
	if err != nil {
		return BackupRecord{}, err
	}

	record := BackupRecord{
		ID:        id,
		Kind:      "incremental",
		Operation: operation,
		Timestamp: s.now(),
		BasedOnID: base.ID,
		Files:     files,
	}
	record.TotalSize = totalSize(files)
	record.Checksum, err = canonicalChecksum(dest, files)
	if err != nil {
		return BackupRecord{}, err
	}
	if s.git != nil {
		snap, err := s.git.Snapshot()
		if err == nil {
			record.Git = &snap
		}
	}
	if err := s.append(record); err != nil {
		return BackupRecord{}, err
	}
	return record, nil
}

func (s *Store) append(record BackupRecord) error {
	records, err := s.loadIndex()
	if err != nil {
		return err
	}
	records = append([]BackupRecord{record}, records...)
	if len(records) > s.retention {
		records = records[:s.retention]
	}
	return s.saveIndex(records)
}

func totalSize(files []FileEntry) int64 {
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total
}

// copyTargets copies each target path into dest, returning per-file
// entries. When base is non-nil, a file is skipped unless its checksum
// (files) or mtime (directories) differs from the matching base entry.
func (s *Store) copyTargets(dest string, base *BackupRecord) ([]FileEntry, error) {
	baseByPath := map[string]FileEntry{}
	if base != nil {
		for _, f := range base.Files {
			baseByPath[f.Path] = f
		}
	}

	var entries []FileEntry
	for _, target := range s.targetPaths() {
		srcPath := filepath.Join(s.repoRoot, target)
		info, err := os.Stat(srcPath)
		if err != nil {
			continue
		}
		if info.IsDir() {
			walked, err := s.copyDirTargets(srcPath, target, dest, baseByPath)
			if err != nil {
				return nil, err
			}
			entries = append(entries, walked...)
			continue
		}

		checksum, err := fileChecksum(srcPath)
		if err != nil {
			return nil, err
		}
		if prior, ok := baseByPath[target]; ok && prior.Checksum == checksum {
			continue
		}
		if err := copyFile(srcPath, filepath.Join(dest, target)); err != nil {
			return nil, err
		}
		entries = append(entries, FileEntry{Path: target, Kind: KindFile, Size: info.Size(), Mtime: info.ModTime(), Checksum: checksum})
	}
	return entries, nil
}

func (s *Store) copyDirTargets(srcDir, relRoot, dest string, baseByPath map[string]FileEntry) ([]FileEntry, error) {
	var entries []FileEntry
	matches, err := doublestar.Glob(os.DirFS(srcDir), "**")
	if err != nil {
		return nil, fmt.Errorf("globbing %s: %w", srcDir, err)
	}
	for _, match := range matches {
		// The state directory holds the backup store's own snapshots
		// under "backups/" — never recurse into that or every new
		// backup would embed the full history of prior ones.
		if match == "backups" || strings.HasPrefix(match, "backups/") {
			continue
		}
		srcPath := filepath.Join(srcDir, match)
		info, err := os.Stat(srcPath)
		if err != nil || info.IsDir() {
			continue
		}
		rel := filepath.Join(relRoot, match)
		if prior, ok := baseByPath[rel]; ok && prior.Mtime.Equal(info.ModTime()) {
			continue
		}
		checksum, err := fileChecksum(srcPath)
		if err != nil {
			return nil, err
		}
		if err := copyFile(srcPath, filepath.Join(dest, rel)); err != nil {
			return nil, err
		}
		entries = append(entries, FileEntry{Path: rel, Kind: KindDir, Size: info.Size(), Mtime: info.ModTime(), Checksum: checksum})
	}
	return entries, nil
}

func fileChecksum(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("reading %s: %w", src, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dst), err)
	}
	return os.WriteFile(dst, data, 0o644)
}

// canonicalChecksum computes a SHA-256 over the sorted concatenation
// of "<relpath>:<content>" for every captured file, per §4.5.
func canonicalChecksum(dest string, files []FileEntry) (string, error) {
	sorted := make([]FileEntry, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	h := sha256.New()
	for _, f := range sorted {
		content, err := os.ReadFile(filepath.Join(dest, f.Path))
		if err != nil {
			return "", fmt.Errorf("reading %s for checksum: %w", f.Path, err)
		}
		h.Write([]byte(f.Path))
		h.Write([]byte(":"))
		h.Write(content)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify recomputes a record's snapshot checksum and compares it
// against the stored value.
func (s *Store) Verify(record BackupRecord) (bool, error) {
	sum, err := canonicalChecksum(s.snapshotDir(record.ID), record.Files)
	if err != nil {
		return false, err
	}
	return sum == record.Checksum, nil
}

// MostRecentFor returns the newest record for operation, or ok=false
// if none exists.
func (s *Store) MostRecentFor(operation string) (BackupRecord, bool, error) {
	records, err := s.loadIndex()
	if err != nil {
		return BackupRecord{}, false, err
	}
	for _, r := range records {
		if r.Operation == operation {
			return r, true, nil
		}
	}
	return BackupRecord{}, false, nil
}

// Restore overwrites the working tree from record's stored file tree
// and, if a Git snapshot exists, restores the current branch.
// Restore refuses if verification fails.
func (s *Store) Restore(record BackupRecord) error {
	ok, err := s.Verify(record)
	if err != nil {
		return fmt.Errorf("verifying backup %s: %w", record.ID, err)
	}
	if !ok {
		return fmt.Errorf("backup %s failed checksum verification; refusing to restore", record.ID)
	}

	src := s.snapshotDir(record.ID)
	for _, f := range record.Files {
		if f.Kind == KindDir {
			continue
		}
		if err := copyFile(filepath.Join(src, f.Path), filepath.Join(s.repoRoot, f.Path)); err != nil {
			return fmt.Errorf("restoring %s: %w", f.Path, err)
		}
	}
	if err := restoreDirs(src, s.repoRoot, record.Files); err != nil {
		return err
	}
	if record.Git != nil && s.git != nil {
		if err := s.git.RestoreBranch(record.Git.CurrentBranch); err != nil {
			return fmt.Errorf("restoring branch %s: %w", record.Git.CurrentBranch, err)
		}
	}
	return nil
}

func restoreDirs(src, dst string, files []FileEntry) error {
	for _, f := range files {
		if f.Kind != KindDir {
			continue
		}
		if err := copyFile(filepath.Join(src, f.Path), filepath.Join(dst, f.Path)); err != nil {
			return fmt.Errorf("restoring %s: %w", f.Path, err)
		}
	}
	return nil
}

// RestoreMostRecentFor satisfies internal/recovery.BackupRestorer.
func (s *Store) RestoreMostRecentFor(ctx context.Context, operation string) error {
	record, ok, err := s.MostRecentFor(operation)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no backup recorded for operation %q", operation)
	}
	return s.Restore(record)
}
