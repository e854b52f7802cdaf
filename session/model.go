package session

// Session is the server-side record behind an opaque bearer token.
//
// Session instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Session struct {
	Token     string
	SubjectID string
	Email     string

	CreatedAt int64
	ExpiresAt int64
}
