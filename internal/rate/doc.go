// Package rate provides fixed-window attempt limiting for
// security-sensitive authentication operations.
//
// # Window semantics
//
// Fixed-window counters: the first attempt against a key opens a
// window, every attempt within it increments the counter, and the
// counter vanishes when the window elapses. Rejected attempts still
// count, so retrying against a limited key never helps.
//
// The counter backend is pluggable through [CounterStore]: Redis
// (INCR + conditional EXPIRE on first hit) for multi-node deployments,
// an in-process map otherwise.
//
// # What this package must NOT do
//
//   - Decide which keys to limit (callers pick the identity).
//   - Be imported outside the authcore module.
package rate
