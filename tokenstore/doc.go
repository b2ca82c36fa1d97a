// Package tokenstore provides [authclient.TokenStore] implementations.
//
// # Stores
//
//   - [Memory] keeps the pair in process memory.
//   - [Redis] keeps the pair in one Redis hash so that several processes
//     (CLI invocations, workers) share a single signed-in session.
//
// # Architecture boundaries
//
// Stores persist whole pairs and never interpret tokens. Refresh policy and
// session termination belong to authclient and session.
//
// # What this package must NOT do
//
//   - Accept half of a pair; [authclient.TokenPair] is replaced as a whole.
//   - Log or expose token values in errors.
package tokenstore
