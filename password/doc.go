// Package password implements one-way password hashing and verification with
// PBKDF2-SHA256 defaults.
//
// # Output format
//
// Hash records are four colon-delimited fields:
//
//	pbkdf2:<iterations>:<base64 salt>:<base64 derived key>
//
// The [Hasher] supports transparent work-factor upgrades: if the stored record
// was produced with fewer iterations, [Hasher.NeedsUpgrade] returns true so the
// caller can re-hash on the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (length,
// reuse history) is enforced by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords — callers supply plaintext and receive records.
//   - Import any other authcore package.
//   - Log plaintext passwords or derived keys at runtime.
package password
