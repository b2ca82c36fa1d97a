// Package authclient provides a bearer-authenticated HTTP client for the
// achievement reporting API with coordinated access-token refresh.
//
// The client is designed for concurrent callers: any number of goroutines may
// issue requests through one [Client]. When several of them hit 401 with the same
// expired access token, exactly one refresh call is made; the others wait on the
// client's [RefreshCoordinator] and are replayed with the new token, or all fail
// with the same error after the session has been terminated.
//
// # Architecture boundaries
//
// authclient is the public surface. It exposes [Client], [Builder], [Config] and the
// collaborator interfaces [TokenStore], [RefreshEndpoint] and [SessionTerminator].
// Concrete collaborators live in sub-packages: tokenstore (memory and Redis),
// refresh (HTTP refresh endpoint) and session (client-side auth state). Typed
// service wrappers for the REST API live in api.
//
// # What this package must NOT do
//
//   - Keep refresh state in package globals; every client owns its coordinator.
//   - Write tokens other than the pair returned by the refresh endpoint.
//   - Retry ordinary failures, or treat connectivity failures as credential expiry.
package authclient
