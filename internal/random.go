package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

// SessionToken is an opaque 128-bit bearer handle. It carries no
// embedded identity; the session record it points at lives server-side.
type SessionToken [16]byte

// NewSessionToken draws a fresh token from crypto/rand.
func NewSessionToken() (SessionToken, error) {
	var tok SessionToken
	_, err := rand.Read(tok[:])
	return tok, err
}

func (t SessionToken) Bytes() []byte {
	return t[:]
}

func (t SessionToken) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(t[:])
}

// ParseSessionToken decodes a client-supplied token string. Anything
// that is not exactly a 16-byte base64url value is rejected.
func ParseSessionToken(token string) (SessionToken, error) {
	var tok SessionToken

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return tok, err
	}
	if len(raw) != len(tok) {
		return tok, errors.New("invalid session token size")
	}

	copy(tok[:], raw)
	return tok, nil
}
