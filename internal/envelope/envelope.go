// Package envelope encodes and decodes the JSON envelope the achievement API
// wraps every response in:
//
//	{"status":"success","data":{...}}
//	{"status":"error","message":"..."}
package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ErrMalformed is returned for bodies that are not a recognizable envelope.
var ErrMalformed = errors.New("malformed response envelope")

// Envelope is the wire shape shared by every endpoint.
type Envelope[T any] struct {
	Status  string            `json:"status"`
	Message string            `json:"message,omitempty"`
	Data    T                 `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// Failed reports whether the backend marked the envelope as an error.
func (e Envelope[T]) Failed() bool {
	return e.Status != StatusSuccess
}

// Decode parses body into an envelope carrying T.
func Decode[T any](body []byte) (Envelope[T], error) {
	var env Envelope[T]
	if len(body) == 0 {
		return env, fmt.Errorf("%w: empty body", ErrMalformed)
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return env, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	switch env.Status {
	case StatusSuccess, StatusError:
		return env, nil
	default:
		return env, fmt.Errorf("%w: unknown status %q", ErrMalformed, env.Status)
	}
}

// Message extracts the error message from an envelope body, if any.
func Message(body []byte) string {
	var env Envelope[json.RawMessage]
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	return env.Message
}

// WriteSuccess writes data wrapped in a success envelope.
func WriteSuccess(w http.ResponseWriter, status int, data any) {
	write(w, status, Envelope[any]{Status: StatusSuccess, Data: data})
}

// WriteError writes an error envelope with message.
func WriteError(w http.ResponseWriter, status int, message string) {
	write(w, status, Envelope[any]{Status: StatusError, Message: message})
}

func write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
