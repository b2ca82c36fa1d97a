package authclient

import (
	"context"
	"net/http"
)

// TokenPair is an access/refresh credential pair issued by the backend.
//
// A pair is superseded as a whole on refresh; stores never mix tokens from
// different pairs.
type TokenPair struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// Complete reports whether both halves of the pair are present.
func (p TokenPair) Complete() bool {
	return p.AccessToken != "" && p.RefreshToken != ""
}

// TokenStore persists the current token pair.
//
// Getters return an empty string and a nil error when no token is stored.
// Implementations must be safe for concurrent use.
type TokenStore interface {
	AccessToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) (string, error)
	SetTokens(ctx context.Context, pair TokenPair) error
	Clear(ctx context.Context) error
}

// RefreshEndpoint exchanges a refresh token for a new token pair.
//
// Any error is fatal to the current refresh cycle.
type RefreshEndpoint interface {
	Refresh(ctx context.Context, refreshToken string) (TokenPair, error)
}

// RefreshFunc adapts a function to [RefreshEndpoint].
type RefreshFunc func(ctx context.Context, refreshToken string) (TokenPair, error)

// Refresh calls f.
func (f RefreshFunc) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	return f(ctx, refreshToken)
}

// SessionTerminator clears session state after an unrecoverable auth failure.
type SessionTerminator interface {
	Terminate(ctx context.Context)
}

// SessionTerminatorFunc adapts a function to [SessionTerminator].
type SessionTerminatorFunc func(ctx context.Context)

// Terminate calls f.
func (f SessionTerminatorFunc) Terminate(ctx context.Context) {
	f(ctx)
}

// Request describes one logical call issued through [Client.Do].
//
// Path is joined onto Config.BaseURL unless URL is set. SkipAuth suppresses the
// Authorization header. SkipRefresh keeps a 401 from entering the refresh flow;
// login and refresh calls set it.
type Request struct {
	Method      string
	Path        string
	URL         string
	Header      http.Header
	Body        []byte
	SkipAuth    bool
	SkipRefresh bool
}

// Response is a fully read 2xx response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// Retried is true when the response came from the post-refresh replay.
	Retried bool
}

// RefreshObserver is told about every token pair a refresh cycle persists,
// before the cycle's waiters are released. A [SessionTerminator] that also
// implements RefreshObserver is registered as the client's observer unless
// [Builder.WithRefreshObserver] sets one.
type RefreshObserver interface {
	Refreshed(ctx context.Context, pair TokenPair)
}
