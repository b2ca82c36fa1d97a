// Package session owns the client-side authentication state: who is signed in
// and whether their access token is still usable.
//
// # Architecture boundaries
//
// [Manager] reads and writes tokens only through an authclient.TokenStore and
// decodes access tokens with jwt.Inspect. It implements
// authclient.SessionTerminator so a client can end the session after a failed
// refresh.
//
// # What this package must NOT do
//
//   - Verify token signatures; that is the backend's job.
//   - Call the refresh endpoint. A stale session is refreshed by the client on
//     the next 401.
package session
