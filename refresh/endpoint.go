package refresh

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/authclient"
	"github.com/MrEthical07/authclient/internal/envelope"
)

var (
	// ErrRefreshRejected is returned when the backend refuses the refresh token.
	ErrRefreshRejected = errors.New("refresh rejected")
	// ErrMalformedResponse is returned when a 2xx response cannot be decoded
	// into a usable token pair.
	ErrMalformedResponse = errors.New("malformed refresh response")
)

const (
	defaultTimeout   = 10 * time.Second
	maxResponseBytes = 1 << 20
)

// Config configures an [Endpoint].
type Config struct {
	// URL is the absolute refresh URL, e.g. https://api.example.com/api/v1/auth/refresh.
	URL string
	// Timeout bounds a single refresh call. Defaults to 10s.
	Timeout time.Duration
	// HTTPClient overrides the transport. It must not be the client used by
	// authclient.Client for ordinary requests.
	HTTPClient *http.Client
	// UserAgent is sent on every refresh call when non-empty.
	UserAgent string
}

// Endpoint is an authclient.RefreshEndpoint backed by an HTTP POST.
type Endpoint struct {
	url       string
	http      *http.Client
	userAgent string
}

var _ authclient.RefreshEndpoint = (*Endpoint)(nil)

// NewEndpoint validates cfg and returns a ready endpoint.
func NewEndpoint(cfg Config) (*Endpoint, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("refresh: invalid URL %q", cfg.URL)
	}
	if cfg.Timeout < 0 {
		return nil, errors.New("refresh: Timeout must be >= 0")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	} else if hc.Timeout == 0 {
		cp := *hc
		cp.Timeout = timeout
		hc = &cp
	}

	return &Endpoint{
		url:       u.String(),
		http:      hc,
		userAgent: cfg.UserAgent,
	}, nil
}

// URL returns the refresh URL the endpoint posts to.
func (e *Endpoint) URL() string {
	return e.url
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh posts refreshToken and returns the new pair.
//
// Non-2xx responses wrap [ErrRefreshRejected] together with an
// authclient.StatusError. Bodies that do not carry an access token wrap
// [ErrMalformedResponse].
func (e *Endpoint) Refresh(ctx context.Context, refreshToken string) (authclient.TokenPair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return authclient.TokenPair{}, authclient.ErrNoRefreshToken
	}

	payload, err := json.Marshal(refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return authclient.TokenPair{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(payload))
	if err != nil {
		return authclient.TokenPair{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}

	resp, err := e.http.Do(req)
	if err != nil {
		return authclient.TokenPair{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return authclient.TokenPair{}, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return authclient.TokenPair{}, errors.Join(ErrRefreshRejected, &authclient.StatusError{
			StatusCode: resp.StatusCode,
			Method:     http.MethodPost,
			URL:        e.url,
			Body:       body,
		})
	}

	env, err := envelope.Decode[authclient.TokenPair](body)
	if err != nil {
		return authclient.TokenPair{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if env.Failed() {
		return authclient.TokenPair{}, fmt.Errorf("%w: %s", ErrRefreshRejected, env.Message)
	}

	pair := env.Data
	if pair.AccessToken == "" {
		return authclient.TokenPair{}, fmt.Errorf("%w: missing access token", ErrMalformedResponse)
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = refreshToken
	}

	return pair, nil
}
