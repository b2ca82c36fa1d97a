package api

import (
	"context"
	"net/http"

	"github.com/MrEthical07/authclient"
	"github.com/MrEthical07/authclient/session"
)

// Auth wraps the /auth endpoints.
type Auth struct {
	client   *authclient.Client
	sessions *session.Manager
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResult is the login response payload.
type LoginResult struct {
	Token        string  `json:"token"`
	RefreshToken string  `json:"refreshToken"`
	User         Profile `json:"user"`
}

// Pair returns the issued token pair.
func (r LoginResult) Pair() authclient.TokenPair {
	return authclient.TokenPair{AccessToken: r.Token, RefreshToken: r.RefreshToken}
}

// Login exchanges credentials for a token pair. The call never carries a
// bearer token and a 401 never starts a refresh. When a session manager is
// attached the pair is persisted through it.
func (a *Auth) Login(ctx context.Context, username, password string) (LoginResult, error) {
	res, err := do[LoginResult](ctx, a.client, call{
		method:      http.MethodPost,
		path:        "/auth/login",
		body:        loginRequest{Username: username, Password: password},
		skipAuth:    true,
		skipRefresh: true,
	})
	if err != nil {
		return LoginResult{}, err
	}
	if a.sessions != nil {
		if _, err := a.sessions.SignIn(ctx, res.Pair()); err != nil {
			return LoginResult{}, err
		}
	}
	return res, nil
}

// Logout revokes the session on the backend and then terminates it locally.
// Local state is cleared even when the backend call fails.
func (a *Auth) Logout(ctx context.Context) error {
	_, err := do[struct{}](ctx, a.client, call{
		method:      http.MethodPost,
		path:        "/auth/logout",
		skipRefresh: true,
	})
	if a.sessions != nil {
		a.sessions.Terminate(ctx)
	}
	return err
}

// Profile returns the signed-in user.
func (a *Auth) Profile(ctx context.Context) (Profile, error) {
	return do[Profile](ctx, a.client, call{method: http.MethodGet, path: "/auth/profile"})
}
