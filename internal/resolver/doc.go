// Package resolver decides, for one inbound request, which access token to
// present to the backend, which tenant the call is scoped to and which backend
// base URL to use.
//
// Resolution is a pure function over a Request value: no I/O, no logging and
// no writes to cookies or storage. Callers translate the outcome into HTTP
// responses (see internal/http/middlewares).
package resolver
