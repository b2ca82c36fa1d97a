// Package middleware exposes HTTP middleware that guards routes with bearer
// access tokens.
//
// # Guards
//
//   - [RequireBearer] verifies the Authorization header and stores the claims
//     in the request context.
//   - [RequireRole] rejects requests whose claims carry none of the given roles.
//
// Rejections are written as the API's JSON error envelope, so a client sees
// the same 401 shape the real backend produces.
//
// # What this package must NOT do
//
//   - Issue tokens or touch refresh state.
//   - Make authorization decisions beyond pass/reject.
package middleware
