package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrEthical07/authclient"
	"github.com/MrEthical07/authclient/jwt"
)

// ErrIncompletePair is returned by SignIn when either token is missing.
var ErrIncompletePair = errors.New("session: token pair incomplete")

// State is the client-side authentication state.
type State int

const (
	// StateAnonymous means no usable tokens are stored.
	StateAnonymous State = iota
	// StateAuthenticated means a non-expired access token is stored.
	StateAuthenticated
	// StateStale means the access token is missing or expired but a refresh
	// token is stored.
	StateStale
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateStale:
		return "stale"
	default:
		return "anonymous"
	}
}

// User is the signed-in user as read from the access token.
type User struct {
	ID       string
	Username string
	Name     string
	Email    string
	Role     jwt.Role
}

func userFromClaims(c *jwt.Claims) *User {
	return &User{
		ID:       c.UserID(),
		Username: c.Username,
		Name:     c.Name,
		Email:    c.Email,
		Role:     c.Role,
	}
}

// Option configures a [Manager].
type Option func(*Manager)

// WithRedirect registers fn to run after Terminate clears the session.
func WithRedirect(fn func(ctx context.Context)) Option {
	return func(m *Manager) {
		m.redirect = fn
	}
}

// WithLogger sets the logger used for store failures during Terminate.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager tracks the signed-in user on top of a token store.
//
// Manager is safe for concurrent use.
type Manager struct {
	tokens   authclient.TokenStore
	redirect func(ctx context.Context)
	logger   *slog.Logger
	now      func() time.Time

	mu    sync.RWMutex
	state State
	user  *User
}

var (
	_ authclient.SessionTerminator = (*Manager)(nil)
	_ authclient.RefreshObserver   = (*Manager)(nil)
)

// NewManager returns an anonymous manager over tokens.
func NewManager(tokens authclient.TokenStore, opts ...Option) (*Manager, error) {
	if tokens == nil {
		return nil, errors.New("session: token store required")
	}

	m := &Manager{
		tokens: tokens,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "session")

	return m, nil
}

// Bootstrap hydrates the state from the token store.
//
// An expired or unreadable access token with no refresh token clears the
// store. Store read errors are returned and leave the state unchanged.
func (m *Manager) Bootstrap(ctx context.Context) (State, error) {
	access, err := m.tokens.AccessToken(ctx)
	if err != nil {
		return m.State(), fmt.Errorf("session: read access token: %w", err)
	}
	refresh, err := m.tokens.RefreshToken(ctx)
	if err != nil {
		return m.State(), fmt.Errorf("session: read refresh token: %w", err)
	}

	var user *User
	expired := true
	if access != "" {
		if claims, err := jwt.Inspect(access); err == nil {
			user = userFromClaims(claims)
			expired = claims.Expired(m.now())
		}
	}

	var state State
	switch {
	case user != nil && !expired:
		state = StateAuthenticated
	case refresh != "":
		state = StateStale
	default:
		if access != "" {
			if err := m.tokens.Clear(ctx); err != nil {
				return m.State(), fmt.Errorf("session: clear stale tokens: %w", err)
			}
		}
		user = nil
		state = StateAnonymous
	}

	m.mu.Lock()
	m.state = state
	m.user = user
	m.mu.Unlock()

	return state, nil
}

// SignIn stores pair and records the user it was issued for.
func (m *Manager) SignIn(ctx context.Context, pair authclient.TokenPair) (User, error) {
	if !pair.Complete() {
		return User{}, ErrIncompletePair
	}
	claims, err := jwt.Inspect(pair.AccessToken)
	if err != nil {
		return User{}, err
	}
	if err := m.tokens.SetTokens(ctx, pair); err != nil {
		return User{}, fmt.Errorf("session: store tokens: %w", err)
	}

	user := userFromClaims(claims)

	m.mu.Lock()
	m.state = StateAuthenticated
	m.user = user
	m.mu.Unlock()

	return *user, nil
}

// User returns the signed-in user, if any.
func (m *Manager) User() (User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return User{}, false
	}
	return *m.user, true
}

// State returns the state recorded by the last Bootstrap, SignIn, Refreshed or
// Terminate.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Refreshed records the user of a pair the client has just persisted and marks
// the session authenticated. A pair whose access token cannot be inspected
// leaves the state unchanged.
func (m *Manager) Refreshed(_ context.Context, pair authclient.TokenPair) {
	claims, err := jwt.Inspect(pair.AccessToken)
	if err != nil {
		m.logger.Warn("refreshed access token not inspectable", "error", err)
		return
	}
	user := userFromClaims(claims)

	m.mu.Lock()
	m.state = StateAuthenticated
	m.user = user
	m.mu.Unlock()
}

// Terminate clears the stored tokens and the in-memory user, then runs the
// redirect hook. It is safe to call when already anonymous.
func (m *Manager) Terminate(ctx context.Context) {
	if err := m.tokens.Clear(ctx); err != nil {
		m.logger.Warn("clear token store failed", "error", err)
	}

	m.mu.Lock()
	m.state = StateAnonymous
	m.user = nil
	m.mu.Unlock()

	if m.redirect != nil {
		m.redirect(ctx)
	}
}
