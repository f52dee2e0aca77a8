// Package session provides the HTTP client used to talk to a REST-managed
// device: it logs in, holds the resulting token pair in memory, and frames
// every request and response as JSON.
//
// # Session Lifecycle
//
// A Client starts with an empty Session. Login stores the "token" and
// "refreshToken" fields of the login response; subsequent calls send them as
// the x-auth-token and refresh-token headers, omitting a header whose token
// is absent. Logout sends the held tokens the same way and then clears the
// Session. Nothing is persisted.
//
//	client, err := session.NewClient("192.168.1.20", 443, session.WithTLS(true))
//	if err != nil {
//	    return err
//	}
//	if err := client.Login(ctx, "admin", password); err != nil {
//	    return err
//	}
//	defer client.Logout(ctx)
//
//	raw, err := client.Get(ctx, "/api/v1/smtp")
//
// # Request Framing
//
// All calls go through SendRequest. Every request carries
// "Accept-Encoding: application/json"; "Content-Type: application/json" is
// only added when a Body is present. Bodies are explicit: the zero Body means
// "no body", while JSONBody(v) always produces one, even for an empty object.
//
// # Errors
//
// Failures are reported as *Error with a Kind of KindTransport, KindAuth,
// KindState, KindDecode or KindHTTP. None of them are retried; the caller
// decides what to do.
//
// # Concurrency
//
// The token pair is guarded by a mutex, but a Client is meant to be driven by
// one flow at a time. Do not interleave Login or Logout with in-flight calls.
package session
