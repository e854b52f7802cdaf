// Package token manages issuance and verification of short-lived HS256-signed
// tokens carrying subject identity and expiry, with strict validation semantics
// suitable for per-request checks.
package token
