package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const minSecretBytes = 32

// Config defines the signing parameters for issued tokens.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	// Secret is the server-held HMAC key. Required, at least 32 bytes.
	Secret []byte
	// DefaultTTL applies when Issue is called with a zero ttl.
	DefaultTTL time.Duration
	Issuer     string
	Leeway     time.Duration
}

// Manager issues and verifies compact HS256-signed tokens carrying a
// subject identity and expiry. Verification is pure: no store access,
// no side effects.
type Manager struct {
	config Config
}

// Claims is the signed token payload.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// SubjectID returns the subject identifier the token was issued for.
func (c *Claims) SubjectID() string {
	if c == nil {
		return ""
	}
	return c.Subject
}

// NewManager validates cfg and returns a [Manager].
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < minSecretBytes {
		return nil, errors.New("token secret must be at least 32 bytes")
	}
	if cfg.DefaultTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	return &Manager{config: cfg}, nil
}

// Issue signs a token for subjectID/email expiring after ttl. A zero
// ttl uses the configured default; a negative ttl produces a token that
// is already expired.
func (m *Manager) Issue(subjectID, email string, ttl time.Duration) (string, error) {
	if subjectID == "" {
		return "", errors.New("subject id required")
	}
	if ttl == 0 {
		ttl = m.config.DefaultTTL
	}

	now := time.Now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    m.config.Issuer,
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
}

// Verify parses and validates tokenStr and returns its claims, or nil
// on any failure: empty input, wrong segment count, tampered payload or
// signature, unexpected algorithm, or expiry. Adversarial input is
// expected here, so Verify never panics and never reports why it
// rejected a token. The HMAC check inside the parser is constant-time.
func (m *Manager) Verify(tokenStr string) *Claims {
	if tokenStr == "" {
		return nil
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.config.Secret, nil
	})
	if err != nil {
		return nil
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil
	}

	return claims
}
