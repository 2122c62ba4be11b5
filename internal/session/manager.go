package session

import (
	"context"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/claimmatrix/claimmatrix/internal/apiclient"
)

// Status is the orchestrator's authentication lifecycle state.
type Status string

const (
	StatusAnonymous      Status = "anonymous"
	StatusAuthenticating Status = "authenticating"
	StatusAuthenticated  Status = "authenticated"
	StatusAuthFailed     Status = "auth_failed"
)

// Config wires a Manager together. Store, Notifier and Navigator are
// required; everything is injected so isolated sessions can coexist in
// tests.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Store      Store
	Notifier   Notifier
	Navigator  Navigator
	Logger     zerolog.Logger
}

// Manager orchestrates the session lifecycle: login, registration, logout
// and cold-start restoration. It owns the State, the credential-attaching
// and failure-handling middlewares, and the API client they wrap, so every
// call made through API() participates in the same pipeline.
type Manager struct {
	state    *State
	store    Store
	api      *apiclient.Client
	notifier Notifier
	nav      Navigator
	failures *failureHandler
	logger   zerolog.Logger

	mu     sync.Mutex
	status Status
	resume string

	// keeps the background revalidation observable for callers that need
	// to wait for it (CLI commands, tests)
	revalidating sync.WaitGroup
}

// NewManager builds a manager and its request pipeline.
func NewManager(cfg Config) *Manager {
	state := NewState(cfg.Store)

	m := &Manager{
		state:    state,
		store:    cfg.Store,
		notifier: cfg.Notifier,
		nav:      cfg.Navigator,
		logger:   cfg.Logger,
		status:   StatusAnonymous,
	}

	m.failures = &failureHandler{
		state:    state,
		notifier: cfg.Notifier,
		nav:      cfg.Navigator,
		logger:   cfg.Logger,
		onExpire: m.setResume,
	}

	m.api = apiclient.New(cfg.BaseURL,
		apiclient.WithHTTPClient(cfg.HTTPClient),
		apiclient.WithLogger(cfg.Logger),
		apiclient.WithMiddleware(NewBearerAuth(state), m.failures),
	)

	return m
}

// API returns the client sharing this session's request pipeline. Domain
// calls made through it get credential attachment and failure handling
// for free.
func (m *Manager) API() *apiclient.Client { return m.api }

// State returns the observable session state.
func (m *Manager) State() *State { return m.state }

// Guard returns an access guard bound to this session.
func (m *Manager) Guard() *Guard { return NewGuard(m.state) }

// Status returns the current lifecycle state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Manager) setStatus(status Status) {
	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
}

func (m *Manager) setResume(path string) {
	m.mu.Lock()
	m.resume = path
	m.mu.Unlock()
}

// takeResume pops the pending resume target, defaulting to the landing
// view.
func (m *Manager) takeResume() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	target := m.resume
	m.resume = ""
	if target == "" || target == RouteLogin.Path {
		target = RouteDashboard.Path
	}
	return target
}

// Login exchanges credentials for a token, fetches the identity behind it
// and, on success, navigates to the pending resume target or the landing
// view. The token write precedes the identity fetch so the pipeline
// attaches it. Failures leave the session in StatusAuthFailed with the
// derived message stored and are propagated to the caller.
func (m *Manager) Login(ctx context.Context, creds apiclient.Credentials) error {
	m.setStatus(StatusAuthenticating)
	m.state.SetLoading(true)
	m.state.SetError("")
	defer m.state.SetLoading(false)

	token, err := m.api.Login(ctx, creds)
	if err != nil {
		return m.failLogin(err)
	}

	m.state.SetToken(token.AccessToken)

	user, err := m.api.CurrentUser(ctx)
	if err != nil {
		return m.failLogin(err)
	}

	m.state.SetIdentity(user)
	m.failures.rearm()
	m.setStatus(StatusAuthenticated)

	m.logger.Info().Str("user", user.Email).Msg("Login succeeded")
	m.notifier.Success("Welcome back, " + user.Name + "!")
	m.nav.Push(m.takeResume())
	return nil
}

func (m *Manager) failLogin(err error) error {
	message := apiclient.ErrorMessage(err, "Login failed")
	m.state.SetError(message)
	m.setStatus(StatusAuthFailed)
	m.notifier.Error(message)
	m.logger.Warn().Err(err).Msg("Login failed")
	return err
}

// Register creates an account and, on success, navigates to login. It
// never authenticates by itself and leaves the session status untouched.
func (m *Manager) Register(ctx context.Context, reg apiclient.Registration) error {
	m.state.SetLoading(true)
	m.state.SetError("")
	defer m.state.SetLoading(false)

	if _, err := m.api.Register(ctx, reg); err != nil {
		message := apiclient.ErrorMessage(err, "Registration failed")
		m.state.SetError(message)
		m.notifier.Error(message)
		return err
	}

	m.notifier.Success("Registration successful! Please login.")
	m.nav.Push(RouteLogin.Path)
	return nil
}

// Logout tears the session down unconditionally. Clearing local state
// cannot fail, so there is no error to return.
func (m *Manager) Logout() {
	m.state.Clear()
	m.setStatus(StatusAnonymous)
	m.logger.Info().Msg("Logged out")
	m.notifier.Info("You have been logged out")
	m.nav.Push(RouteLogin.Path)
}

// Restore rebuilds the session from the credential store at cold start.
// With both token and identity present it authenticates optimistically so
// the UI is not blocked, then re-validates the identity in the background;
// a failed re-validation tears the session down (the 401 path records the
// resume target). Partial or missing credentials leave the session
// anonymous with no error surfaced. Restore itself never redirects — the
// next guarded navigation decides that.
func (m *Manager) Restore(ctx context.Context) {
	token, okToken := m.store.Token()
	user, okUser := m.store.Identity()
	if !okToken || !okUser {
		m.setStatus(StatusAnonymous)
		return
	}

	m.state.SetToken(token)
	m.state.SetIdentity(user)
	m.failures.rearm()
	m.setStatus(StatusAuthenticated)

	generation := m.state.Generation()
	m.revalidating.Add(1)
	go func() {
		defer m.revalidating.Done()
		m.revalidate(ctx, generation)
	}()
}

// WaitRevalidation blocks until a Restore-triggered background
// re-validation has settled.
func (m *Manager) WaitRevalidation() {
	m.revalidating.Wait()
}

func (m *Manager) revalidate(ctx context.Context, generation uint64) {
	user, err := m.api.CurrentUser(ctx)

	if err != nil {
		m.logger.Debug().Err(err).Msg("Session re-validation failed")
		switch {
		case m.state.Generation() == generation:
			// no 401 side effects ran; fail open to logged-out silently
			m.state.Clear()
			m.setStatus(StatusAnonymous)
		case !m.state.IsAuthenticated():
			// the pipeline's 401 handling already cleared this session
			// (and recorded the resume target); align the status
			m.setStatus(StatusAnonymous)
		default:
			// a fresh login superseded this session while the call was in
			// flight; leave it alone
		}
		return
	}

	if m.state.Generation() != generation {
		// acting on a response for a superseded session would resurrect
		// cleared state
		return
	}
	m.state.SetIdentity(user)
}
