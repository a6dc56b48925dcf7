package diagnosis

import (
	"os"
	"path/filepath"
	"strings"
)

// TestRunner describes a detected capability to run the project's
// test suite, per spec.md §9's "has_test_runner()" design note.
type TestRunner struct {
	Kind   string
	RunCmd string
}

// DetectTestRunner probes repoRoot for recognizable test-runner
// markers and returns the first match. The check order favors more
// specific markers (a Jest config) before general-purpose ones
// (a Makefile target), since a project can carry both.
func DetectTestRunner(repoRoot string) (TestRunner, bool) {
	for _, candidate := range []string{"jest.config.js", "jest.config.ts", "jest.config.json"} {
		if fileExists(filepath.Join(repoRoot, candidate)) {
			return TestRunner{Kind: "jest", RunCmd: "npx jest"}, true
		}
	}
	if fileExists(filepath.Join(repoRoot, "go.mod")) {
		return TestRunner{Kind: "go", RunCmd: "go test ./..."}, true
	}
	if fileExists(filepath.Join(repoRoot, "pytest.ini")) || fileExists(filepath.Join(repoRoot, "setup.cfg")) {
		return TestRunner{Kind: "pytest", RunCmd: "pytest"}, true
	}
	if hasMakeTestTarget(filepath.Join(repoRoot, "Makefile")) {
		return TestRunner{Kind: "make", RunCmd: "make test"}, true
	}
	if fileExists(filepath.Join(repoRoot, "Cargo.toml")) {
		return TestRunner{Kind: "cargo", RunCmd: "cargo test"}, true
	}
	return TestRunner{}, false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func hasMakeTestTarget(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "test:") {
			return true
		}
	}
	return false
}
