// Package refresh implements the HTTP refresh endpoint used by authclient to
// exchange a refresh token for a new token pair.
//
// # Wire format
//
// The request body is {"refreshToken":"..."}. A successful response is the
// standard success envelope carrying {"token":"...","refreshToken":"..."}. A
// response without a new refresh token keeps the one that was sent.
//
// # Architecture boundaries
//
// Endpoint owns its own *http.Client. It never goes through authclient.Client,
// so a refresh call cannot re-enter the refresh flow.
//
// # What this package must NOT do
//
//   - Read or write the token store.
//   - Retry a rejected refresh.
package refresh
