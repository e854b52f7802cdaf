package authcore

import (
	"context"
	"io"

	internalaudit "github.com/mvachell/authcore/internal/audit"
)

// SubjectRecord is the account record returned by [SubjectProvider].
// PasswordHash is the encoded verification record, never a plaintext
// credential.
type SubjectRecord struct {
	SubjectID    string
	Identifier   string
	Email        string
	PasswordHash string
}

// CreateSubjectInput carries a pre-hashed account into
// [SubjectProvider.CreateSubject]. The engine hashes the password
// before the provider ever sees it.
type CreateSubjectInput struct {
	SubjectID    string
	Identifier   string
	Email        string
	PasswordHash string
}

// SubjectProvider is the interface callers implement to integrate the
// engine with their account database. The engine treats it as the sole
// source of credential records; it never persists accounts itself.
//
// Lookups for unknown identifiers should return an error. The engine
// collapses every lookup failure into [ErrInvalidCredentials] on the
// login path, so the provider's error text is never exposed to
// authentication callers.
type SubjectProvider interface {
	GetSubjectByIdentifier(ctx context.Context, identifier string) (SubjectRecord, error)
	GetSubjectByID(ctx context.Context, subjectID string) (SubjectRecord, error)
	UpdatePasswordHash(ctx context.Context, subjectID, newHash string) error
	CreateSubject(ctx context.Context, input CreateSubjectInput) (SubjectRecord, error)
}

// LoginResult is returned by [Engine.Login] on success.
type LoginResult struct {
	SubjectID string
	// SessionToken is the opaque server-side session handle.
	SessionToken string
	// SignedToken is the stateless HMAC-signed token for services that
	// verify identity without a store round trip.
	SignedToken string
}

// AuthResult is returned by [Engine.Validate] for a live session.
type AuthResult struct {
	SubjectID string
	Email     string
	ExpiresAt int64
}

// AuditEvent defines a public type used by authcore APIs.
//
// AuditEvent instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditEvent = internalaudit.Event

// AuditSink receives emitted audit events.
type AuditSink = internalaudit.Sink

// NoOpSink drops audit events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink writes audit events into a buffered channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] over w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
