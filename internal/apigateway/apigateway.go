// Package apigateway is the rate-limited GitHub API Gateway (§4.4): a
// single serialized queue in front of go-github, obeying a minimum
// inter-request interval and the GitHub rate-limit headers, with PAT
// or GitHub App authentication.
package apigateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	gh "github.com/google/go-github/v68/github"

	"github.com/bradleyfalzon/ghinstallation/v2"
	jwt "github.com/golang-jwt/jwt/v4"
)

// MinRequestInterval is the default minimum spacing between outbound
// calls, per §4.4.
const MinRequestInterval = 100 * time.Millisecond

// State is the gateway's availability, set once during Initialize and
// never revised afterward — a gateway that fails to initialize stays
// unavailable for the process lifetime.
type State string

const (
	StateUnavailable State = "unavailable"
	StateAvailable   State = "available"
)

// RateLimitState mirrors spec.md §3; owned exclusively by the gateway.
type RateLimitState struct {
	Limit     int
	Remaining int
	ResetEpoch int64
	Used      int
}

// AppCredentials configures GitHub App installation authentication.
type AppCredentials struct {
	ClientID       string
	InstallationID int64
	PrivateKeyPath string
}

// Option configures a Gateway at construction time.
type Option func(*gatewayConfig)

type gatewayConfig struct {
	baseURL          string
	app              *AppCredentials
	excludeReviewers []string
	now              func() time.Time
	sleep            func(context.Context, time.Duration) error
}

// WithBaseURL overrides the GitHub API base URL (for testing or GHE).
func WithBaseURL(url string) Option { return func(c *gatewayConfig) { c.baseURL = url } }

// WithAppAuth selects GitHub App installation authentication instead of a PAT.
func WithAppAuth(app AppCredentials) Option { return func(c *gatewayConfig) { c.app = &app } }

// WithExcludeReviewers adds logins always excluded from reviewer suggestions.
func WithExcludeReviewers(logins ...string) Option {
	return func(c *gatewayConfig) { c.excludeReviewers = logins }
}

// readKeyFile is a variable for testing; defaults to os.ReadFile.
var readKeyFile = os.ReadFile

// NotAvailableError is returned by every operation when the gateway
// failed to initialize, per §4.4.
type NotAvailableError struct {
	Remediation string
}

func (e *NotAvailableError) Error() string {
	return "GitHub API gateway unavailable: " + e.Remediation
}

// ErrorTag classifies a GitHub API failure by HTTP status, per §4.4.
type ErrorTag string

const (
	TagUnauthorized    ErrorTag = "UNAUTHORIZED"
	TagRateLimit       ErrorTag = "RATE_LIMIT"
	TagForbidden       ErrorTag = "FORBIDDEN"
	TagNotFound        ErrorTag = "NOT_FOUND"
	TagValidationError ErrorTag = "VALIDATION_ERROR"
	TagTimeout         ErrorTag = "TIMEOUT"
	TagUnknown         ErrorTag = "UNKNOWN"
)

// GatewayError wraps a classified GitHub API failure.
type GatewayError struct {
	Tag     ErrorTag
	Message string
	Err     error
}

func (e *GatewayError) Error() string { return e.Message }
func (e *GatewayError) Unwrap() error { return e.Err }

// Gateway is the rate-limited GitHub API Gateway.
type Gateway struct {
	gh    *gh.Client
	state State

	mu          sync.Mutex
	rateLimit   RateLimitState
	lastRequest time.Time

	now   func() time.Time
	sleep func(context.Context, time.Duration) error

	owner, repo      string
	authenticatedUser string
	excludeReviewers []string
}

// New constructs a Gateway authenticating with token (ignored when
// WithAppAuth is supplied). The gateway starts in StateUnavailable
// until Initialize succeeds.
func New(token string, opts ...Option) (*Gateway, error) {
	cfg := &gatewayConfig{now: time.Now, sleep: ctxSleep}
	for _, o := range opts {
		o(cfg)
	}

	var client *gh.Client
	if cfg.app != nil {
		httpClient, err := newAppHTTPClient(cfg.app, cfg.baseURL)
		if err != nil {
			return nil, fmt.Errorf("configuring GitHub App auth: %w", err)
		}
		client = gh.NewClient(httpClient)
	} else {
		client = gh.NewClient(nil).WithAuthToken(token)
	}
	if cfg.baseURL != "" {
		client, _ = client.WithEnterpriseURLs(cfg.baseURL, cfg.baseURL)
	}

	return &Gateway{
		gh:               client,
		state:            StateUnavailable,
		now:              cfg.now,
		sleep:            cfg.sleep,
		excludeReviewers: cfg.excludeReviewers,
	}, nil
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func newAppHTTPClient(app *AppCredentials, baseURL string) (*http.Client, error) {
	keyPath := expandHome(app.PrivateKeyPath)
	keyData, err := readKeyFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("reading private key %s: %w", app.PrivateKeyPath, err)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(keyData)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	signer := &clientIDSigner{clientID: app.ClientID, method: jwt.SigningMethodRS256, key: key}

	atr, err := ghinstallation.NewAppsTransportWithOptions(http.DefaultTransport, 0, ghinstallation.WithSigner(signer))
	if err != nil {
		return nil, fmt.Errorf("creating apps transport: %w", err)
	}
	if baseURL != "" {
		atr.BaseURL = baseURL
	}
	itr := ghinstallation.NewFromAppsTransport(atr, app.InstallationID)
	if baseURL != "" {
		itr.BaseURL = baseURL
	}
	return &http.Client{Transport: itr}, nil
}

// clientIDSigner implements ghinstallation.Signer using a string Client
// ID as the JWT issuer, for GitHub Apps identified by client ID rather
// than numeric app ID.
type clientIDSigner struct {
	clientID string
	method   jwt.SigningMethod
	key      any
}

func (s *clientIDSigner) Sign(claims jwt.Claims) (string, error) {
	if rc, ok := claims.(*jwt.RegisteredClaims); ok {
		rc.Issuer = s.clientID
	}
	return jwt.NewWithClaims(s.method, claims).SignedString(s.key)
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

var ownerRepoPattern = regexp.MustCompile(`github\.com[:/]([^/]+)/([^/]+?)(\.git)?$`)

// Initialize runs the init sequence from §4.4: authenticate, capture
// identity, derive owner/repo from remoteURL, probe repository access
// and collaborator permission. On any failure the gateway remains
// StateUnavailable and every subsequent operation returns
// *NotAvailableError.
func (g *Gateway) Initialize(ctx context.Context, remoteURL string) error {
	user, _, err := g.gh.Users.Get(ctx, "")
	if err != nil {
		return g.fail("could not authenticate with GitHub — check GITHUB_TOKEN or GitHub App credentials: " + err.Error())
	}
	g.authenticatedUser = user.GetLogin()

	m := ownerRepoPattern.FindStringSubmatch(remoteURL)
	if m == nil {
		return g.fail("could not derive owner/repo from remote URL " + remoteURL)
	}
	g.owner, g.repo = m[1], m[2]

	repo, _, err := g.gh.Repositories.Get(ctx, g.owner, g.repo)
	if err != nil {
		return g.fail(fmt.Sprintf("could not access repository %s/%s — check token scopes and collaborator access: %v", g.owner, g.repo, err))
	}
	if !repo.GetPermissions()["push"] && !repo.GetPermissions()["admin"] {
		return g.fail(fmt.Sprintf("authenticated user %s lacks write access to %s/%s", g.authenticatedUser, g.owner, g.repo))
	}

	g.state = StateAvailable
	return nil
}

func (g *Gateway) fail(remediation string) error {
	g.state = StateUnavailable
	return &NotAvailableError{Remediation: remediation}
}

// Available reports whether Initialize succeeded.
func (g *Gateway) Available() bool { return g.state == StateAvailable }

// AuthenticatedUser returns the login captured during Initialize.
func (g *Gateway) AuthenticatedUser() string { return g.authenticatedUser }

// RateLimit returns the last-observed rate-limit state.
func (g *Gateway) RateLimit() RateLimitState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rateLimit
}

// do serializes call through the gateway's single queue: it enforces
// the minimum inter-request interval, sleeps until reset when the
// quota is exhausted, invokes call, updates RateLimitState from the
// response, and requeues once at the head on a rate-limited 403.
func (g *Gateway) do(ctx context.Context, call func() (*gh.Response, error)) error {
	if !g.Available() {
		return &NotAvailableError{Remediation: "gateway failed to initialize; rerun diagnostics"}
	}

	g.mu.Lock()
	if wait := MinRequestInterval - g.now().Sub(g.lastRequest); wait > 0 {
		g.mu.Unlock()
		if err := g.sleep(ctx, wait); err != nil {
			return err
		}
		g.mu.Lock()
	}
	if g.rateLimit.Remaining == 0 && g.rateLimit.ResetEpoch > 0 {
		wait := time.Unix(g.rateLimit.ResetEpoch, 0).Add(time.Second).Sub(g.now())
		g.mu.Unlock()
		if wait > 0 {
			if err := g.sleep(ctx, wait); err != nil {
				return err
			}
		}
		g.mu.Lock()
	}
	g.lastRequest = g.now()
	g.mu.Unlock()

	resp, err := call()
	g.updateRateLimit(resp)

	if err != nil {
		tag := classifyStatus(resp, err)
		if tag == TagRateLimit {
			// Re-queue at the head: sleep until reset, then retry once.
			g.mu.Lock()
			wait := time.Unix(g.rateLimit.ResetEpoch, 0).Add(time.Second).Sub(g.now())
			g.mu.Unlock()
			if wait > 0 {
				if sleepErr := g.sleep(ctx, wait); sleepErr != nil {
					return sleepErr
				}
			}
			resp, err = call()
			g.updateRateLimit(resp)
			if err != nil {
				return newGatewayError(resp, err)
			}
			return nil
		}
		return newGatewayError(resp, err)
	}
	return nil
}

func (g *Gateway) updateRateLimit(resp *gh.Response) {
	if resp == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rateLimit = RateLimitState{
		Limit:      resp.Rate.Limit,
		Remaining:  resp.Rate.Remaining,
		ResetEpoch: resp.Rate.Reset.Unix(),
		Used:       resp.Rate.Limit - resp.Rate.Remaining,
	}
}

var (
	noCommitsPattern = regexp.MustCompile(`(?i)no commits between`)
	alreadyExistsPattern = regexp.MustCompile(`(?i)already exists`)
)

func classifyStatus(resp *gh.Response, err error) ErrorTag {
	var rateErr *gh.RateLimitError
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return TagRateLimit
	}
	var ghErr *gh.ErrorResponse
	if !errors.As(err, &ghErr) || ghErr.Response == nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return TagTimeout
		}
		return TagUnknown
	}
	switch ghErr.Response.StatusCode {
	case http.StatusUnauthorized:
		return TagUnauthorized
	case http.StatusForbidden:
		if isRateLimited(resp, ghErr) {
			return TagRateLimit
		}
		return TagForbidden
	case http.StatusNotFound:
		return TagNotFound
	case http.StatusUnprocessableEntity:
		return TagValidationError
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return TagTimeout
	default:
		return TagUnknown
	}
}

func isRateLimited(resp *gh.Response, ghErr *gh.ErrorResponse) bool {
	if resp != nil && resp.Rate.Remaining == 0 {
		return true
	}
	return strings.Contains(strings.ToLower(ghErr.Message), "rate limit")
}

func newGatewayError(resp *gh.Response, err error) *GatewayError {
	tag := classifyStatus(resp, err)
	msg := err.Error()
	switch tag {
	case TagValidationError:
		switch {
		case noCommitsPattern.MatchString(msg):
			msg = "no commits between head and base branches: " + msg
		case alreadyExistsPattern.MatchString(msg):
			msg = "a pull request already exists for this branch: " + msg
		}
	}
	return &GatewayError{Tag: tag, Message: msg, Err: err}
}
