// Package jwt reads and issues the access tokens used by the achievement API.
//
// Client code only ever calls [Inspect]: it decodes claims without verifying
// the signature, which is enough to show the signed-in user and to notice an
// expired token before the backend does. [Manager] signs and verifies tokens
// and exists for the development backend and tests.
package jwt
