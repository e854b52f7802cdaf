// Package session provides Redis-backed opaque-token session persistence and a
// compact binary record encoding for authentication hot paths.
//
// # Binary encoding
//
// Session records are stored in Redis as a compact binary format with a leading
// schema version byte. The encoder is append-only: new versions add fields but
// never reinterpret old ones. The opaque token itself is the Redis key and is
// never embedded in the record.
//
// # Expiry
//
// Every record carries an authoritative ExpiresAt timestamp; the Redis key TTL
// only bounds storage growth. Expired records are deleted lazily when a lookup
// touches them, and [Store.SweepExpired] reclaims the rest in bulk.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations) and the [Session] model. It
// does NOT verify passwords, interpret signed tokens, or enforce authentication
// policy. Those responsibilities belong to the Engine.
//
// # What this package must NOT do
//
//   - Import authcore, token, or password (no upward imports).
//   - Perform application-level authorization decisions.
//   - Store plaintext secrets in [Session] fields.
package session
