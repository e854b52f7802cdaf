// Package internal holds plumbing shared by the authcore packages:
// random session token generation plus the rate, audit, and metrics
// sub-packages. Nothing here is part of the public API.
package internal
