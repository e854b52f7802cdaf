// Package authcore provides an embeddable authentication core with PBKDF2
// password hashing, HMAC-signed stateless tokens, Redis-backed opaque-token
// sessions, and fixed-window login rate limiting.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build]. Account storage stays behind the caller-supplied
// [SubjectProvider]; the engine never persists credentials itself.
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (LoginResult, AuthResult, MetricsSnapshot, audit sinks).
// Sub-packages own single mechanisms: password/ the hash records, token/ the
// signed tokens, session/ the Redis store. Rate limiting and audit dispatch
// live under internal/ and are never exported directly.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its
//     public API.
//   - Reveal whether an identifier exists: every login failure is
//     [ErrInvalidCredentials].
//   - Log or emit plaintext passwords, derived keys, signing secrets, or
//     session tokens.
//
// # Performance contract
//
// CheckSession and Validate are the hot path: one Redis GET per call.
// VerifyToken never touches the store. Login pays the full PBKDF2 cost by
// design; callers should treat it as a hundreds-of-milliseconds operation.
package authcore
