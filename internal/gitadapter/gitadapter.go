// Package gitadapter is the Git Adapter: a narrow, timeout-bounded
// surface over the git binary, returning tagged results rather than
// letting git's mixed exit-code/stderr conventions leak into callers.
// Every exported operation maps failures onto errcls-classifiable
// errors via plain Go error wrapping (errcls pattern-matches messages);
// ClassifyGitError additionally maps them onto Git-specific tags.
package gitadapter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Adapter is the Git Adapter bound to a single repository root.
type Adapter struct {
	r *runner
}

// New returns an Adapter rooted at repoPath.
func New(repoPath string) *Adapter {
	return &Adapter{r: &runner{dir: repoPath}}
}

// IsRepo reports whether the adapter's root is inside a Git work tree.
func (a *Adapter) IsRepo(ctx context.Context) bool {
	out, err := a.r.run(ctx, "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(out) == "true"
}

// CurrentBranch returns the name of the currently checked-out branch.
// On a detached HEAD it returns "HEAD".
func (a *Adapter) CurrentBranch(ctx context.Context) (string, error) {
	out, err := a.r.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("getting current branch: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// IsDetachedHead reports whether HEAD is currently detached.
func (a *Adapter) IsDetachedHead(ctx context.Context) (bool, error) {
	branch, err := a.CurrentBranch(ctx)
	if err != nil {
		return false, err
	}
	return branch == "HEAD", nil
}

// BranchExistsLocally checks whether a branch exists in the local repo.
func (a *Adapter) BranchExistsLocally(ctx context.Context, branch string) bool {
	_, err := a.r.run(ctx, "rev-parse", "--verify", "refs/heads/"+branch)
	return err == nil
}

// BranchExistsOnRemote checks whether a branch exists on origin,
// without fetching first.
func (a *Adapter) BranchExistsOnRemote(ctx context.Context, branch string) bool {
	out, err := a.r.run(ctx, "ls-remote", "--heads", "origin", branch)
	return err == nil && strings.TrimSpace(out) != ""
}

// CreateBranch creates and checks out a new branch from base. base must
// be a resolvable ref (typically the default branch or HEAD).
func (a *Adapter) CreateBranch(ctx context.Context, name, base string) error {
	if _, err := a.r.run(ctx, "checkout", "-b", name, base); err != nil {
		return fmt.Errorf("creating branch %s from %s: %w", name, base, err)
	}
	return nil
}

// CheckoutBranch switches to an existing branch.
func (a *Adapter) CheckoutBranch(ctx context.Context, name string) error {
	if _, err := a.r.run(ctx, "checkout", name); err != nil {
		return fmt.Errorf("checking out %s: %w", name, err)
	}
	return nil
}

// DefaultBranch resolves origin's HEAD symbolic ref, falling back to
// the configured fallback when no remote is configured.
func (a *Adapter) DefaultBranch(ctx context.Context, fallback string) string {
	out, err := a.r.run(ctx, "symbolic-ref", "refs/remotes/origin/HEAD")
	if err != nil {
		return fallback
	}
	parts := strings.Split(strings.TrimSpace(out), "/")
	if len(parts) == 0 {
		return fallback
	}
	return parts[len(parts)-1]
}

// Stash stashes the working tree including untracked files.
func (a *Adapter) Stash(ctx context.Context, message string) error {
	if _, err := a.r.run(ctx, "stash", "push", "-u", "-m", message); err != nil {
		return fmt.Errorf("stashing changes: %w", err)
	}
	return nil
}

// StashPop applies and drops the most recent stash entry.
func (a *Adapter) StashPop(ctx context.Context) error {
	if _, err := a.r.run(ctx, "stash", "pop"); err != nil {
		return fmt.Errorf("popping stash: %w", err)
	}
	return nil
}

// StashList returns one-line descriptions of stash entries, most
// recent first.
func (a *Adapter) StashList(ctx context.Context) ([]string, error) {
	out, err := a.r.run(ctx, "stash", "list")
	if err != nil {
		return nil, fmt.Errorf("listing stash: %w", err)
	}
	trimmed := strings.TrimSpace(out)
	if trimmed == "" {
		return nil, nil
	}
	return strings.Split(trimmed, "\n"), nil
}

// DeleteBranchSafe deletes a local branch, refusing to delete the
// currently checked-out branch.
func (a *Adapter) DeleteBranchSafe(ctx context.Context, branch string) error {
	current, err := a.CurrentBranch(ctx)
	if err != nil {
		return err
	}
	if current == branch {
		return fmt.Errorf("refusing to delete the currently checked-out branch %s", branch)
	}
	if _, err := a.r.run(ctx, "branch", "-d", branch); err != nil {
		return fmt.Errorf("deleting branch %s: %w", branch, err)
	}
	return nil
}

// CommitsSince returns commit subjects reachable from HEAD but not
// from ref, oldest first.
func (a *Adapter) CommitsSince(ctx context.Context, ref string) ([]string, error) {
	out, err := a.r.run(ctx, "log", "--reverse", "--format=%s", ref+"..HEAD")
	if err != nil {
		return nil, fmt.Errorf("listing commits since %s: %w", ref, err)
	}
	trimmed := strings.TrimSpace(out)
	if trimmed == "" {
		return nil, nil
	}
	return strings.Split(trimmed, "\n"), nil
}

// AutoCommitMessage derives a commit message from the working tree
// status when the user supplies none, per §4.6:
// "Update: add K files, modify K files, delete K files".
func (a *Adapter) AutoCommitMessage(ctx context.Context) (string, error) {
	out, err := a.r.run(ctx, "status", "--porcelain=v1")
	if err != nil {
		return "", fmt.Errorf("running git status: %w", err)
	}
	var added, modified, deleted int
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if len(line) < 2 {
			continue
		}
		switch {
		case line[0] == 'A' || line[1] == 'A' || (line[0] == '?' && line[1] == '?'):
			added++
		case line[0] == 'D' || line[1] == 'D':
			deleted++
		default:
			modified++
		}
	}
	return fmt.Sprintf("Update: add %d files, modify %d files, delete %d files", added, modified, deleted), nil
}

// GitErrorTag is a domain-specific classification of a Git failure,
// per §4.6's error mapping list.
type GitErrorTag string

const (
	TagMergeConflict     GitErrorTag = "MERGE_CONFLICT"
	TagNotGitRepository  GitErrorTag = "NOT_GIT_REPOSITORY"
	TagPermissionDenied  GitErrorTag = "PERMISSION_DENIED"
	TagRemoteNotFound    GitErrorTag = "REMOTE_NOT_FOUND"
	TagBranchNotFound    GitErrorTag = "BRANCH_NOT_FOUND"
	TagNothingToCommit   GitErrorTag = "NOTHING_TO_COMMIT"
	TagUncommittedChanges GitErrorTag = "UNCOMMITTED_CHANGES"
	TagAuthFailed        GitErrorTag = "AUTH_FAILED"
	TagNetworkError      GitErrorTag = "NETWORK_ERROR"
	TagPushRejected      GitErrorTag = "PUSH_REJECTED"
	TagUnknownGitError   GitErrorTag = "UNKNOWN_GIT_ERROR"
)

var gitErrorRules = []struct {
	pattern *regexp.Regexp
	tag     GitErrorTag
}{
	{regexp.MustCompile(`(?i)conflict`), TagMergeConflict},
	{regexp.MustCompile(`(?i)not a git repository`), TagNotGitRepository},
	{regexp.MustCompile(`(?i)permission denied`), TagPermissionDenied},
	{regexp.MustCompile(`(?i)'origin' does not appear to be a git repository|no such remote`), TagRemoteNotFound},
	{regexp.MustCompile(`(?i)did not match any file\(s\) known to git|pathspec .* did not match|couldn't find remote ref`), TagBranchNotFound},
	{regexp.MustCompile(`(?i)nothing to commit`), TagNothingToCommit},
	{regexp.MustCompile(`(?i)please commit your changes or stash them|uncommitted changes`), TagUncommittedChanges},
	{regexp.MustCompile(`(?i)authentication failed|could not read username|invalid credentials`), TagAuthFailed},
	{regexp.MustCompile(`(?i)could not resolve host|network is unreachable|connection timed out|operation timed out`), TagNetworkError},
	{regexp.MustCompile(`(?i)failed to push some refs|non-fast-forward|fetch first|updates were rejected`), TagPushRejected},
}

// ClassifyGitError maps a Git Adapter error onto a domain-specific tag.
func ClassifyGitError(err error) GitErrorTag {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, rule := range gitErrorRules {
		if rule.pattern.MatchString(msg) {
			return rule.tag
		}
	}
	return TagUnknownGitError
}

// Commit stages all changes and creates a commit.
func (a *Adapter) Commit(ctx context.Context, message string) error {
	if _, err := a.r.run(ctx, "add", "-A"); err != nil {
		return fmt.Errorf("staging changes: %w", err)
	}
	if _, err := a.r.run(ctx, "commit", "-m", message); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

// CommitPaths stages only the given paths and creates a commit.
func (a *Adapter) CommitPaths(ctx context.Context, paths []string, message string) error {
	args := append([]string{"add", "--"}, paths...)
	if _, err := a.r.run(ctx, args...); err != nil {
		return fmt.Errorf("staging %v: %w", paths, err)
	}
	if _, err := a.r.run(ctx, "commit", "-m", message); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

// Push pushes the current branch to origin, setting upstream if absent.
func (a *Adapter) Push(ctx context.Context, branch string) error {
	if _, err := a.r.run(ctx, "push", "--set-upstream", "origin", branch); err != nil {
		return fmt.Errorf("pushing %s: %w", branch, err)
	}
	return nil
}

// Pull fetches and merges origin/<branch> into the current branch.
func (a *Adapter) Pull(ctx context.Context, branch string) error {
	if _, err := a.r.run(ctx, "pull", "origin", branch); err != nil {
		return fmt.Errorf("pulling %s: %w", branch, err)
	}
	return nil
}

// FetchBranch fetches origin/<branch> without merging.
func (a *Adapter) FetchBranch(ctx context.Context, branch string) error {
	if _, err := a.r.run(ctx, "fetch", "origin", branch); err != nil {
		return fmt.Errorf("fetching origin/%s: %w", branch, err)
	}
	return nil
}

// IsAncestor returns true when ancestor is an ancestor of descendant.
func (a *Adapter) IsAncestor(ctx context.Context, ancestor, descendant string) (bool, error) {
	_, err := a.r.run(ctx, "merge-base", "--is-ancestor", ancestor, descendant)
	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) && exitErr.Code == 1 {
			return false, nil
		}
		return false, fmt.Errorf("checking ancestry: %w", err)
	}
	return true, nil
}

// RemoteReachable probes origin connectivity without mutating local
// refs, for Diagnosis's "remote unreachable" check (§4.7).
func (a *Adapter) RemoteReachable(ctx context.Context) bool {
	if a.RemoteURL(ctx) == "" {
		return false
	}
	_, err := a.r.run(ctx, "ls-remote", "--exit-code", "origin", "HEAD")
	return err == nil
}

// RebaseResult describes the outcome of a rebase step.
type RebaseResult struct {
	Success      bool
	HasConflicts bool
}

// StartRebase runs `git rebase onto` and reports whether it landed in
// a conflicted, in-progress state rather than erroring outright.
func (a *Adapter) StartRebase(ctx context.Context, onto string) (RebaseResult, error) {
	_, err := a.r.run(ctx, "rebase", onto)
	return a.rebaseOutcome(ctx, err, "starting rebase")
}

// ContinueRebase runs `git rebase --continue` after conflicts are resolved.
func (a *Adapter) ContinueRebase(ctx context.Context) (RebaseResult, error) {
	_, err := a.r.run(ctx, "-c", "core.editor=true", "rebase", "--continue")
	return a.rebaseOutcome(ctx, err, "continuing rebase")
}

// AbortRebase runs `git rebase --abort`.
func (a *Adapter) AbortRebase(ctx context.Context) error {
	if _, err := a.r.run(ctx, "rebase", "--abort"); err != nil {
		return fmt.Errorf("aborting rebase: %w", err)
	}
	return nil
}

// HasRebaseInProgress detects an in-progress rebase via git-dir markers.
func (a *Adapter) HasRebaseInProgress(ctx context.Context) (bool, error) {
	out, err := a.r.run(ctx, "rev-parse", "--absolute-git-dir")
	if err != nil {
		return false, fmt.Errorf("getting git dir: %w", err)
	}
	gitDir := strings.TrimSpace(out)
	for _, marker := range []string{"rebase-merge", "rebase-apply"} {
		if _, err := os.Stat(gitDir + "/" + marker); err == nil {
			return true, nil
		}
	}
	return false, nil
}

func (a *Adapter) rebaseOutcome(ctx context.Context, err error, verb string) (RebaseResult, error) {
	if err == nil {
		return RebaseResult{Success: true}, nil
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		return RebaseResult{}, fmt.Errorf("%s: %w", verb, err)
	}
	inProgress, checkErr := a.HasRebaseInProgress(ctx)
	if checkErr != nil {
		return RebaseResult{}, fmt.Errorf("%s: %w", verb, err)
	}
	if inProgress {
		return RebaseResult{HasConflicts: true}, nil
	}
	return RebaseResult{}, fmt.Errorf("%s: %w", verb, err)
}

// Merge merges other into the current branch.
func (a *Adapter) Merge(ctx context.Context, other string) (RebaseResult, error) {
	_, err := a.r.run(ctx, "merge", other)
	if err == nil {
		return RebaseResult{Success: true}, nil
	}
	conflicts, cfErr := a.ConflictFiles(ctx)
	if cfErr == nil && len(conflicts) > 0 {
		return RebaseResult{HasConflicts: true}, nil
	}
	return RebaseResult{}, fmt.Errorf("merging %s: %w", other, err)
}

// ConflictFiles returns the list of files with unresolved conflict markers.
func (a *Adapter) ConflictFiles(ctx context.Context) ([]string, error) {
	out, err := a.r.run(ctx, "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, fmt.Errorf("listing conflict files: %w", err)
	}
	trimmed := strings.TrimSpace(out)
	if trimmed == "" {
		return nil, nil
	}
	return strings.Split(trimmed, "\n"), nil
}

// SquashMerge checks out baseBranch, squash-merges featureBranch into
// it, and commits with the given message.
func (a *Adapter) SquashMerge(ctx context.Context, featureBranch, baseBranch, commitMsg string) error {
	if _, err := a.r.run(ctx, "checkout", baseBranch); err != nil {
		return fmt.Errorf("checking out %s: %w", baseBranch, err)
	}
	if _, err := a.r.run(ctx, "merge", "--squash", featureBranch); err != nil {
		return fmt.Errorf("squash merging %s: %w", featureBranch, err)
	}
	if _, err := a.r.run(ctx, "commit", "-m", commitMsg); err != nil {
		return fmt.Errorf("committing squash merge: %w", err)
	}
	return nil
}

// RemoteURL returns origin's configured URL, or "" if no remote exists.
func (a *Adapter) RemoteURL(ctx context.Context) string {
	out, err := a.r.run(ctx, "remote", "get-url", "origin")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

var ownerRepoPattern = regexp.MustCompile(`github\.com[:/]([^/]+)/([^/]+?)(\.git)?$`)

// OwnerRepo derives owner/repo from origin's remote URL, per §4.4's
// `github.com[:/]OWNER/REPO(.git)?` regex.
func (a *Adapter) OwnerRepo(ctx context.Context) (owner, repo string, ok bool) {
	url := a.RemoteURL(ctx)
	if url == "" {
		return "", "", false
	}
	m := ownerRepoPattern.FindStringSubmatch(url)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// UserIdentityConfigured reports whether user.name and user.email are set.
func (a *Adapter) UserIdentityConfigured(ctx context.Context) (bool, bool) {
	name, _ := a.r.run(ctx, "config", "user.name")
	email, _ := a.r.run(ctx, "config", "user.email")
	return strings.TrimSpace(name) != "", strings.TrimSpace(email) != ""
}

// GitStatus is a point-in-time snapshot of the working tree (§3).
type GitStatus struct {
	CurrentBranch    string
	Ahead            int
	Behind           int
	Staged           int
	Modified         int
	Untracked        int
	Conflicted       int
	HasRemoteOrigin  bool
	Tracking         string
}

// Status computes a GitStatus snapshot. It never caches state across
// calls, per §3 "Snapshot value; never cached across operations".
func (a *Adapter) Status(ctx context.Context) (GitStatus, error) {
	var st GitStatus

	branch, err := a.CurrentBranch(ctx)
	if err != nil {
		return GitStatus{}, err
	}
	st.CurrentBranch = branch
	st.HasRemoteOrigin = a.RemoteURL(ctx) != ""

	porcelain, err := a.r.run(ctx, "status", "--porcelain=v1", "--branch")
	if err != nil {
		return GitStatus{}, fmt.Errorf("running git status: %w", err)
	}
	lines := strings.Split(porcelain, "\n")
	for i, line := range lines {
		if i == 0 && strings.HasPrefix(line, "##") {
			st.Ahead, st.Behind, st.Tracking = parseBranchHeader(line)
			continue
		}
		if line == "" {
			continue
		}
		x, y := line[0], line[1]
		switch {
		case x == 'U' || y == 'U' || (x == 'A' && y == 'A') || (x == 'D' && y == 'D'):
			st.Conflicted++
		case x == '?' && y == '?':
			st.Untracked++
		default:
			if x != ' ' {
				st.Staged++
			}
			if y != ' ' {
				st.Modified++
			}
		}
	}
	return st, nil
}

var aheadPattern = regexp.MustCompile(`ahead (\d+)`)
var behindPattern = regexp.MustCompile(`behind (\d+)`)

func parseBranchHeader(line string) (ahead, behind int, tracking string) {
	header := strings.TrimPrefix(line, "## ")
	if idx := strings.Index(header, "..."); idx >= 0 {
		rest := header[idx+3:]
		if bracket := strings.Index(rest, " ["); bracket >= 0 {
			tracking = rest[:bracket]
		} else {
			tracking = rest
		}
	}
	if m := aheadPattern.FindStringSubmatch(line); m != nil {
		ahead, _ = strconv.Atoi(m[1])
	}
	if m := behindPattern.FindStringSubmatch(line); m != nil {
		behind, _ = strconv.Atoi(m[1])
	}
	return ahead, behind, tracking
}

// LargeFiles returns tracked or staged files larger than maxBytes.
func (a *Adapter) LargeFiles(ctx context.Context, maxBytes int64) ([]string, error) {
	out, err := a.r.run(ctx, "ls-files")
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	var large []string
	for _, path := range strings.Split(strings.TrimSpace(out), "\n") {
		if path == "" {
			continue
		}
		info, statErr := os.Stat(a.r.dir + "/" + path)
		if statErr != nil {
			continue
		}
		if info.Size() > maxBytes {
			large = append(large, path)
		}
	}
	return large, nil
}

// WorkingDirWritable probes writability by creating and removing a
// marker file, per §4.7 "working-dir unwritable (probe file)".
func (a *Adapter) WorkingDirWritable() bool {
	probe := a.r.dir + "/.team-flow-write-probe"
	if err := os.WriteFile(probe, []byte("probe"), 0o644); err != nil {
		return false
	}
	os.Remove(probe)
	return true
}

// FirstCommitTime returns the commit timestamp of branch's first commit
// not present on base, used to compute hours-since-branch-created.
func (a *Adapter) FirstCommitTime(ctx context.Context, branch, base string) (string, error) {
	out, err := a.r.run(ctx, "log", "--reverse", "--format=%cI", base+".."+branch)
	if err != nil {
		return "", fmt.Errorf("finding first commit on %s: %w", branch, err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) == 0 || lines[0] == "" {
		return "", fmt.Errorf("no commits found on %s ahead of %s", branch, base)
	}
	return lines[0], nil
}

// LastCommitTime returns the current HEAD commit's timestamp.
func (a *Adapter) LastCommitTime(ctx context.Context) (string, error) {
	out, err := a.r.run(ctx, "log", "-1", "--format=%cI")
	if err != nil {
		return "", fmt.Errorf("getting last commit time: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// BranchCommit pairs a local branch name with its last commit summary.
type BranchCommit struct {
	Branch    string
	Hash      string
	Message   string
	Timestamp string
}

// ActiveBranches lists local branches other than exclude, each with
// its last commit, for the Team phase's fan-out.
func (a *Adapter) ActiveBranches(ctx context.Context, exclude string) ([]BranchCommit, error) {
	out, err := a.r.run(ctx, "for-each-ref", "--format=%(refname:short)|%(objectname:short)|%(contents:subject)|%(committerdate:iso-strict)", "refs/heads/")
	if err != nil {
		return nil, fmt.Errorf("listing branches: %w", err)
	}
	var result []BranchCommit
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "|", 4)
		if len(parts) != 4 || parts[0] == exclude {
			continue
		}
		result = append(result, BranchCommit{Branch: parts[0], Hash: parts[1], Message: parts[2], Timestamp: parts[3]})
	}
	return result, nil
}

// ChangedFilesBetween returns the set of files touched on branch since
// it diverged from base, for the Team phase's O(n^2) conflict scan.
func (a *Adapter) ChangedFilesBetween(ctx context.Context, base, branch string) ([]string, error) {
	out, err := a.r.run(ctx, "diff", "--name-only", base+"..."+branch)
	if err != nil {
		return nil, fmt.Errorf("diffing %s...%s: %w", base, branch, err)
	}
	trimmed := strings.TrimSpace(out)
	if trimmed == "" {
		return nil, nil
	}
	return strings.Split(trimmed, "\n"), nil
}

// ChangedFiles returns the path of every entry git status reports
// (staged, modified and untracked files), for the
// Finish phase's "review changed files" / "select files to stage" step.
func (a *Adapter) ChangedFiles(ctx context.Context) ([]string, error) {
	out, err := a.r.run(ctx, "status", "--porcelain=v1")
	if err != nil {
		return nil, fmt.Errorf("running git status: %w", err)
	}
	var files []string
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if len(line) < 4 {
			continue
		}
		files = append(files, strings.TrimSpace(line[3:]))
	}
	return files, nil
}
