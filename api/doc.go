// Package api provides typed wrappers over the achievement reporting REST API.
//
// Every service sends its requests through an *authclient.Client, so expired
// access tokens are refreshed transparently. Responses are unwrapped from the
// {"status","data","message"} envelope. Backend failures surface as *[APIError],
// which unwraps to the client's *authclient.StatusError when one exists, so
// errors.Is(err, authclient.ErrUnauthorized) keeps working.
package api
