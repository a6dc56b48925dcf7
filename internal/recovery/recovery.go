// Package recovery implements the Recovery Manager (§4.3): a strategy
// table keyed by error type, exponential backoff, offline-mode
// persistence, restore-from-backup on merge conflict, and
// default-content materialization for missing files.
package recovery

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teamflow-dev/teamflow/internal/errcls"
	"github.com/teamflow-dev/teamflow/internal/history"
)

//go:embed templates.yaml
var templatesFS embed.FS

// DefaultMaxRetries is the default bound on backoff retries (§4.3).
const DefaultMaxRetries = 3

// DefaultBackoffBase is the base delay for exponential backoff; the
// Nth backoff is base * 2^(N-1).
const DefaultBackoffBase = 1 * time.Second

// fileTemplate is one entry of templates.yaml.
type fileTemplate struct {
	Name    string `yaml:"name"`
	Content string `yaml:"content"`
}

type templateDoc struct {
	Files []fileTemplate `yaml:"files"`
}

func loadTemplates() (map[string]string, error) {
	data, err := templatesFS.ReadFile("templates.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded templates: %w", err)
	}
	var doc templateDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing embedded templates: %w", err)
	}
	out := make(map[string]string, len(doc.Files))
	for _, f := range doc.Files {
		out[f.Name] = f.Content
	}
	return out, nil
}

// BackupRestorer is the narrow slice of internal/backup the Recovery
// Manager needs to restore a working tree after a merge conflict.
type BackupRestorer interface {
	RestoreMostRecentFor(ctx context.Context, operation string) error
}

// Confirmer is the narrow slice of internal/cliui the Recovery Manager
// needs to ask the user a yes/no question before a destructive restore.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// RateLimitState is the subset of the API Gateway's rate-limit state
// the API_RATE_LIMIT strategy needs.
type RateLimitState struct {
	ResetEpoch int64
}

// Outcome is the result of applying a recovery strategy.
type Outcome struct {
	Success bool
	Message string
}

// Manager is the Recovery Manager.
type Manager struct {
	store           *history.Store
	restorer        BackupRestorer
	confirmer       Confirmer
	maxRetries      int
	backoffBase     time.Duration
	sleep           func(ctx context.Context, d time.Duration) error
	templates       map[string]string
	offlineModePath string
}

// New builds a Manager. restorer and confirmer may be nil if the
// MERGE_CONFLICT strategy will never be exercised by the caller (e.g.
// in a context with no backups configured).
func New(store *history.Store, restorer BackupRestorer, confirmer Confirmer) (*Manager, error) {
	templates, err := loadTemplates()
	if err != nil {
		return nil, err
	}
	return &Manager{
		store:       store,
		restorer:    restorer,
		confirmer:   confirmer,
		maxRetries:  DefaultMaxRetries,
		backoffBase: DefaultBackoffBase,
		sleep:       ctxSleep,
		templates:   templates,
	}, nil
}

// WithMaxRetries overrides the default retry bound.
func (m *Manager) WithMaxRetries(n int) *Manager {
	m.maxRetries = n
	return m
}

// WithOfflineModePath sets where the offline-mode flag file (§D.3 /
// §9 Open Question) is persisted. Without it, CONNECTION_REFUSED
// recovery still reports success but does not persist the flag.
func (m *Manager) WithOfflineModePath(path string) *Manager {
	m.offlineModePath = path
	return m
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// BackoffDelay computes the Nth backoff delay (1-indexed): base * 2^(N-1).
func BackoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(float64(base) * math.Pow(2, float64(attempt-1)))
}

// RecoverOptions carries the strategy-specific inputs a caller must
// supply: the retry body for NETWORK_TIMEOUT, and the target path for
// FILE_NOT_FOUND / CONFIGURATION_MISSING. Fields irrelevant to the
// classification being recovered are ignored.
type RecoverOptions struct {
	Retry      func(context.Context) error
	TargetPath string
}

// Recover dispatches c to the strategy table and records the attempt.
// operation identifies the logical operation being retried (e.g.
// "push", "sync_branch") for backup lookup and history scoping.
func (m *Manager) Recover(ctx context.Context, operation string, c errcls.Classification, opts RecoverOptions) Outcome {
	var out Outcome
	switch c.Type {
	case errcls.TypeNetworkTimeout:
		out = m.retryWithBackoff(ctx, opts.Retry)
	case errcls.TypeConnectionRefused:
		out = m.enableOfflineMode(operation)
	case errcls.TypeMergeConflict:
		out = m.restoreFromBackup(ctx, operation)
	case errcls.TypeAPIRateLimit:
		out = Outcome{Success: false, Message: "rate limit: caller must use WaitForRateLimit with the gateway's RateLimitState"}
	case errcls.TypeFileNotFound:
		out = m.writeDefaultContent(opts.TargetPath)
	case errcls.TypeConfigurationMissing:
		out = m.writeDefaultConfigFile(opts.TargetPath)
	default:
		out = Outcome{Success: false, Message: "no recovery strategy for " + string(c.Type)}
	}

	if m.store != nil {
		outcome := "failed"
		if out.Success {
			outcome = "success"
		}
		_ = m.store.RecordRecoveryAttempt(history.RecoveryAttempt{
			Operation: operation,
			Strategy:  string(c.Type),
			Attempt:   1,
			Outcome:   outcome,
			Detail:    out.Message,
		})
	}
	return out
}

func (m *Manager) retryWithBackoff(ctx context.Context, fn func(context.Context) error) Outcome {
	if fn == nil {
		return Outcome{Success: false, Message: "no retry function supplied"}
	}
	var lastErr error
	for attempt := 1; attempt <= m.maxRetries; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return Outcome{Success: true, Message: fmt.Sprintf("succeeded on attempt %d", attempt)}
		}
		if attempt < m.maxRetries {
			delay := BackoffDelay(m.backoffBase, attempt)
			if err := m.sleep(ctx, delay); err != nil {
				return Outcome{Success: false, Message: "cancelled during backoff: " + err.Error()}
			}
		}
	}
	return Outcome{Success: false, Message: "exhausted retries: " + lastErr.Error()}
}

// offlineModeFlag is the persisted shape of the offline-mode file.
type offlineModeFlag struct {
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

func (m *Manager) enableOfflineMode(operation string) Outcome {
	if m.offlineModePath == "" {
		return Outcome{Success: true, Message: "offline-enabled"}
	}
	flag := offlineModeFlag{Reason: "connection refused during " + operation, At: time.Now().UTC()}
	data, err := json.Marshal(flag)
	if err != nil {
		return Outcome{Success: false, Message: "encoding offline-mode flag: " + err.Error()}
	}
	if err := os.MkdirAll(filepath.Dir(m.offlineModePath), 0o755); err != nil {
		return Outcome{Success: false, Message: "creating state directory: " + err.Error()}
	}
	if err := os.WriteFile(m.offlineModePath, data, 0o644); err != nil {
		return Outcome{Success: false, Message: "persisting offline-mode flag: " + err.Error()}
	}
	return Outcome{Success: true, Message: "offline-enabled"}
}

// OfflineModeTTL is the default staleness window for the offline-mode
// flag (§D.3): a flag older than this is ignored.
const OfflineModeTTL = 1 * time.Hour

// IsOfflineMode reports whether the offline-mode flag at path is
// present and not stale, per the TTL resolution in §D.3.
func IsOfflineMode(path string, ttl time.Duration, now func() time.Time) (bool, error) {
	if now == nil {
		now = time.Now
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("reading offline-mode flag: %w", err)
	}
	var flag offlineModeFlag
	if err := json.Unmarshal(data, &flag); err != nil {
		return false, fmt.Errorf("parsing offline-mode flag: %w", err)
	}
	if now().Sub(flag.At) > ttl {
		return false, nil
	}
	return true, nil
}

func (m *Manager) restoreFromBackup(ctx context.Context, operation string) Outcome {
	if m.confirmer != nil {
		ok, err := m.confirmer.Confirm(ctx, "Restore the most recent backup for "+operation+"? This will overwrite local changes.")
		if err != nil {
			return Outcome{Success: false, Message: "confirmation failed: " + err.Error()}
		}
		if !ok {
			return Outcome{Success: false, Message: "restore declined by user"}
		}
	}
	if m.restorer == nil {
		return Outcome{Success: false, Message: "no backup restorer configured"}
	}
	if err := m.restorer.RestoreMostRecentFor(ctx, operation); err != nil {
		return Outcome{Success: false, Message: "restore failed: " + err.Error()}
	}
	return Outcome{Success: true, Message: "restored from most recent backup"}
}

// WaitForRateLimit computes wait-until-reset and sleeps, per §4.3: reset
// header + 1s slack.
func (m *Manager) WaitForRateLimit(ctx context.Context, state RateLimitState, now func() time.Time) Outcome {
	if now == nil {
		now = time.Now
	}
	resetAt := time.Unix(state.ResetEpoch, 0).Add(1 * time.Second)
	wait := resetAt.Sub(now())
	if wait <= 0 {
		return Outcome{Success: true, Message: "reset already elapsed"}
	}
	if err := m.sleep(ctx, wait); err != nil {
		return Outcome{Success: false, Message: "cancelled while waiting for rate limit reset: " + err.Error()}
	}
	return Outcome{Success: true, Message: "retry"}
}

func (m *Manager) writeDefaultContent(path string) Outcome {
	if path == "" {
		return Outcome{Success: false, Message: "no target path supplied for FILE_NOT_FOUND recovery"}
	}
	base := filepath.Base(path)
	content, ok := m.templates[base]
	if !ok {
		return Outcome{Success: false, Message: "no default content registered for " + base}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Outcome{Success: false, Message: "creating parent directory: " + err.Error()}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return Outcome{Success: false, Message: "writing default content: " + err.Error()}
	}
	return Outcome{Success: true, Message: "wrote default content to " + path}
}

func (m *Manager) writeDefaultConfigFile(path string) Outcome {
	if path == "" {
		return Outcome{Success: false, Message: "no target path supplied for CONFIGURATION_MISSING recovery"}
	}
	content, ok := m.templates["config.json"]
	if !ok {
		return Outcome{Success: false, Message: "no default config.json template registered"}
	}
	var js json.RawMessage
	if err := json.Unmarshal([]byte(content), &js); err != nil {
		return Outcome{Success: false, Message: "embedded default config.json is not valid JSON: " + err.Error()}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Outcome{Success: false, Message: "creating parent directory: " + err.Error()}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return Outcome{Success: false, Message: "writing default config: " + err.Error()}
	}
	return Outcome{Success: true, Message: "wrote default configuration to " + path}
}
