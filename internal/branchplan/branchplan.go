// Package branchplan derives branch names from work type and issue
// context (§3 BranchPlan) and scans active branches for file-level
// conflicts ahead of the Team phase's report (§4.1).
package branchplan

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// WorkType is an immutable tagged value loaded at startup (§3).
type WorkType struct {
	Tag         string
	DisplayName string
	Prefix      string
	Help        string
}

// WorkTypes is the fixed, ordered registry of work types (§3: feature,
// bugfix, hotfix, docs, refactor, test, chore).
var WorkTypes = []WorkType{
	{Tag: "feature", DisplayName: "Feature", Prefix: "feature/", Help: "New functionality."},
	{Tag: "bugfix", DisplayName: "Bug fix", Prefix: "bugfix/", Help: "Fixing incorrect behavior."},
	{Tag: "hotfix", DisplayName: "Hotfix", Prefix: "hotfix/", Help: "Urgent production fix."},
	{Tag: "docs", DisplayName: "Docs", Prefix: "docs/", Help: "Documentation only."},
	{Tag: "refactor", DisplayName: "Refactor", Prefix: "refactor/", Help: "Restructuring without behavior change."},
	{Tag: "test", DisplayName: "Test", Prefix: "test/", Help: "Test-only changes."},
	{Tag: "chore", DisplayName: "Chore", Prefix: "chore/", Help: "Maintenance, tooling, dependencies."},
}

// WorkTypeByTag looks up a WorkType by its tag.
func WorkTypeByTag(tag string) (WorkType, bool) {
	for _, wt := range WorkTypes {
		if wt.Tag == tag {
			return wt, true
		}
	}
	return WorkType{}, false
}

// MaxSlugLength is the slug length bound from §3.
const MaxSlugLength = 30

var (
	nonSlugChars = regexp.MustCompile(`[^a-z0-9-]+`)
	repeatedDash = regexp.MustCompile(`-{2,}`)
)

// Slugify normalizes title into lower-case alphanumerics-plus-dash,
// collapsing runs of non-slug characters into a single dash and
// trimming to MaxSlugLength. Titles that normalize to nothing (e.g.
// entirely non-ASCII) fall back to a short SHA-256 digest so every
// plan still has a stable, non-empty slug.
func Slugify(title string) string {
	lower := strings.ToLower(strings.TrimSpace(title))
	replaced := nonSlugChars.ReplaceAllString(lower, "-")
	collapsed := repeatedDash.ReplaceAllString(replaced, "-")
	trimmed := strings.Trim(collapsed, "-")
	if len(trimmed) > MaxSlugLength {
		trimmed = strings.Trim(trimmed[:MaxSlugLength], "-")
	}
	if trimmed == "" {
		sum := sha256.Sum256([]byte(title))
		return hex.EncodeToString(sum[:])[:8]
	}
	return trimmed
}

// BranchPlan mirrors spec.md §3.
type BranchPlan struct {
	WorkType    WorkType
	IssueNumber int
	Slug        string
	FullName    string
}

// Build derives a BranchPlan: full_name == "<prefix><issue_prefix><slug>".
// issueNumber of 0 means no associated issue, per §3's optional field.
func Build(wt WorkType, issueNumber int, title string) BranchPlan {
	slug := Slugify(title)
	issuePrefix := ""
	if issueNumber > 0 {
		issuePrefix = fmt.Sprintf("issue-%d-", issueNumber)
	}
	return BranchPlan{
		WorkType:    wt,
		IssueNumber: issueNumber,
		Slug:        slug,
		FullName:    wt.Prefix + issuePrefix + slug,
	}
}

// ConflictPair reports two active branches that both touch path.
type ConflictPair struct {
	BranchA, BranchB string
	Path             string
}

// MaxBranchesForFullScan bounds the O(n^2) pairwise scan; above this,
// callers should sample rather than scan exhaustively, per §4.1's
// explicit allowance for n>50.
const MaxBranchesForFullScan = 50

// BranchFiles pairs a branch name with the files it has changed
// relative to the default branch.
type BranchFiles struct {
	Branch string
	Files  []string
}

// ScanConflicts finds branch pairs that touch the same file. When
// branches exceeds MaxBranchesForFullScan, it samples the first
// MaxBranchesForFullScan entries rather than scanning exhaustively.
func ScanConflicts(branches []BranchFiles) ([]ConflictPair, bool) {
	sampled := false
	if len(branches) > MaxBranchesForFullScan {
		branches = branches[:MaxBranchesForFullScan]
		sampled = true
	}

	var conflicts []ConflictPair
	for i := 0; i < len(branches); i++ {
		filesA := toSet(branches[i].Files)
		for j := i + 1; j < len(branches); j++ {
			for _, f := range branches[j].Files {
				if filesA[f] {
					conflicts = append(conflicts, ConflictPair{
						BranchA: branches[i].Branch,
						BranchB: branches[j].Branch,
						Path:    f,
					})
				}
			}
		}
	}
	return conflicts, sampled
}

func toSet(files []string) map[string]bool {
	set := make(map[string]bool, len(files))
	for _, f := range files {
		set[f] = true
	}
	return set
}
