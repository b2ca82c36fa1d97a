package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/MrEthical07/authclient"
	"github.com/MrEthical07/authclient/internal/envelope"
	"github.com/MrEthical07/authclient/session"
)

const basePath = "/api/v1"

// APIError is a failure reported by the backend.
//
// StatusCode is the HTTP status, which is 2xx when the backend answered with
// an error envelope on a success status.
type APIError struct {
	StatusCode int
	Message    string
	Fields     map[string]string
	Err        error
}

func (e *APIError) Error() string {
	if e.Message == "" && e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("api: %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// API groups the typed services over one client.
type API struct {
	Auth         *Auth
	Achievements *Achievements
	Students     *Students
	Lecturers    *Lecturers
	Reports      *Reports
}

// New wires every service to client. sessions may be nil when sign-in state is
// not tracked; Auth.Login then only returns the tokens.
func New(client *authclient.Client, sessions *session.Manager) *API {
	return &API{
		Auth:         &Auth{client: client, sessions: sessions},
		Achievements: &Achievements{client: client},
		Students:     &Students{client: client},
		Lecturers:    &Lecturers{client: client},
		Reports:      &Reports{client: client},
	}
}

type call struct {
	method      string
	path        string
	query       url.Values
	body        any
	skipAuth    bool
	skipRefresh bool
}

// do sends c through client and decodes the envelope's data into T.
func do[T any](ctx context.Context, client *authclient.Client, c call) (T, error) {
	var zero T
	if client == nil {
		return zero, authclient.ErrClientNotReady
	}

	path := basePath + c.path
	if len(c.query) > 0 {
		path += "?" + c.query.Encode()
	}
	req := &authclient.Request{
		Method:      c.method,
		Path:        path,
		SkipAuth:    c.skipAuth,
		SkipRefresh: c.skipRefresh,
	}
	if c.body != nil {
		body, err := json.Marshal(c.body)
		if err != nil {
			return zero, fmt.Errorf("api: encode request: %w", err)
		}
		req.Body = body
	}

	res, err := client.Do(ctx, req)
	if err != nil {
		return zero, translate(err)
	}

	if res.StatusCode == http.StatusNoContent {
		return zero, nil
	}

	env, err := envelope.Decode[T](res.Body)
	if err != nil {
		return zero, &APIError{StatusCode: res.StatusCode, Message: "malformed response", Err: err}
	}
	if env.Failed() {
		return zero, &APIError{StatusCode: res.StatusCode, Message: env.Message, Fields: env.Errors}
	}
	return env.Data, nil
}

// translate lifts backend error envelopes out of *authclient.StatusError.
// Refresh failures and transport errors pass through unchanged.
func translate(err error) error {
	if errors.Is(err, authclient.ErrRefreshFailed) || errors.Is(err, authclient.ErrNoRefreshToken) {
		return err
	}
	var se *authclient.StatusError
	if !errors.As(err, &se) {
		return err
	}
	apiErr := &APIError{StatusCode: se.StatusCode, Err: err}
	if env, decodeErr := envelope.Decode[json.RawMessage](se.Body); decodeErr == nil {
		apiErr.Message = env.Message
		apiErr.Fields = env.Errors
	}
	return apiErr
}

func escape(id string) string {
	return url.PathEscape(id)
}
