// Package core holds the pieces shared by the credential and spreadsheet
// subsystems.
//
// # Errors
//
// Every service error is an [*Error] with a [Kind]. The web layer maps the
// Kind to an HTTP status and writes Message as the response body; the
// wrapped Err is logged together with the support code from [MapError].
//
// # Concurrency
//
// [Limiter] bounds CPU-heavy work. The server creates one for password
// hashing and one for spreadsheet parsing; both fail fast with [ErrBusy]
// when no slot frees up within the configured wait.
//
// # Request metadata
//
// [WithClient] stores the caller's address and user agent on the context so
// audit entries can be attributed without threading them through every call.
package core
