package authclient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized is reported for 401 responses the client could not recover from.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNoRefreshToken is returned to every request of a failure storm when the
	// token store holds no refresh token.
	ErrNoRefreshToken = errors.New("unauthorized, no refresh token")
	// ErrRefreshFailed wraps the refresh endpoint error delivered to every waiter of a
	// failed refresh cycle.
	ErrRefreshFailed = errors.New("token refresh failed")
	// ErrBackendUnavailable marks connectivity failures: no response, timeout or 5xx.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrTokenStore wraps token store read/write failures.
	ErrTokenStore = errors.New("token store failure")
	// ErrClientNotReady is returned by a nil or closed client.
	ErrClientNotReady = errors.New("client not initialized")
	// ErrInvalidRequest is returned for requests without a usable target URL.
	ErrInvalidRequest = errors.New("invalid request")
)

// StatusError is returned for any non-2xx response that reaches the caller.
//
// errors.Is maps 401 to [ErrUnauthorized] and 5xx to [ErrBackendUnavailable].
type StatusError struct {
	StatusCode int
	Method     string
	URL        string
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Is reports whether target is the sentinel matching this status class.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrBackendUnavailable:
		return e.StatusCode >= http.StatusInternalServerError
	}
	return false
}

type refreshError struct {
	cause error
}

func (e *refreshError) Error() string {
	return ErrRefreshFailed.Error() + ": " + e.cause.Error()
}

func (e *refreshError) Unwrap() []error {
	return []error{ErrRefreshFailed, e.cause}
}

func wrapRefreshError(err error) error {
	if err == nil || errors.Is(err, ErrNoRefreshToken) {
		return err
	}
	return &refreshError{cause: err}
}

type connectivityError struct {
	cause error
}

func (e *connectivityError) Error() string {
	return ErrBackendUnavailable.Error() + ": " + e.cause.Error()
}

func (e *connectivityError) Unwrap() []error {
	return []error{ErrBackendUnavailable, e.cause}
}
