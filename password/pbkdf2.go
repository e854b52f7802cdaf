package password

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	algorithmID = "pbkdf2"
	delimiter   = ":"
	fieldCount  = 4

	// MinIterations is the lowest work factor a Hasher can be
	// configured with, so every new record meets the floor. Stored
	// records below it still verify (and are candidates for
	// NeedsUpgrade) because rejecting them would strand accounts
	// hashed under an older policy.
	MinIterations = 100_000

	maxIterations = 10_000_000
	minSaltLength = 16
	minKeyLength  = 16

	// DefaultIterations keeps single-hash latency in the hundreds of
	// milliseconds on commodity hardware, as a brute-force deterrent.
	DefaultIterations = 600_000
	// DefaultSaltLength is the salt size in bytes (128 bits).
	DefaultSaltLength = 16
	// DefaultKeyLength is the derived key size in bytes (256 bits).
	DefaultKeyLength = 32
)

// Config holds the PBKDF2 work-factor parameters.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Iterations int
	SaltLength int
	KeyLength  int
}

// Hasher derives and verifies salted PBKDF2-SHA256 password records of
// the form "pbkdf2:<iterations>:<base64 salt>:<base64 key>".
type Hasher struct {
	config Config
}

type parsedRecord struct {
	iterations int
	salt       []byte
	key        []byte
}

// New validates cfg and returns a [Hasher]. Zero-valued fields take the
// package defaults; sub-minimum work factors are rejected.
func New(cfg Config) (*Hasher, error) {
	if cfg.Iterations == 0 {
		cfg.Iterations = DefaultIterations
	}
	if cfg.SaltLength == 0 {
		cfg.SaltLength = DefaultSaltLength
	}
	if cfg.KeyLength == 0 {
		cfg.KeyLength = DefaultKeyLength
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return &Hasher{config: cfg}, nil
}

// Hash derives a record from password using a fresh random salt. Two
// calls with the same password never produce the same record. Hash
// fails only when the entropy source does.
func (h *Hasher) Hash(password string) (string, error) {
	salt := make([]byte, h.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := pbkdf2.Key([]byte(password), salt, h.config.Iterations, h.config.KeyLength, sha256.New)

	return strings.Join([]string{
		algorithmID,
		strconv.Itoa(h.config.Iterations),
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	}, delimiter), nil
}

// Verify re-derives a key from password using the salt and iteration
// count embedded in record and compares it to the stored key in
// constant time. Malformed records, unknown algorithm tags, and
// mismatches all return false; Verify never panics and never reports
// why it failed.
func (h *Hasher) Verify(password, record string) bool {
	parsed, ok := parseRecord(record)
	if !ok {
		return false
	}

	computed := pbkdf2.Key([]byte(password), parsed.salt, parsed.iterations, len(parsed.key), sha256.New)

	if len(computed) != len(parsed.key) {
		return false
	}
	// subtle.ConstantTimeCompare is documented constant-time for
	// equal-length inputs.
	return subtle.ConstantTimeCompare(computed, parsed.key) == 1
}

// NeedsUpgrade reports whether record was derived with a weaker work
// factor than the hasher's current configuration. Malformed records
// report false; they fail Verify anyway.
func (h *Hasher) NeedsUpgrade(record string) bool {
	parsed, ok := parseRecord(record)
	if !ok {
		return false
	}

	if parsed.iterations < h.config.Iterations {
		return true
	}
	if len(parsed.key) != h.config.KeyLength {
		return true
	}

	return false
}

func parseRecord(record string) (*parsedRecord, bool) {
	parts := strings.Split(record, delimiter)
	if len(parts) != fieldCount {
		return nil, false
	}
	if parts[0] != algorithmID {
		// Unknown algorithm tags fail closed.
		return nil, false
	}

	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations < 1 || iterations > maxIterations {
		return nil, false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil || len(salt) == 0 {
		return nil, false
	}

	key, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil || len(key) == 0 {
		return nil, false
	}

	return &parsedRecord{
		iterations: iterations,
		salt:       salt,
		key:        key,
	}, true
}

func validateConfig(cfg Config) error {
	if cfg.Iterations < MinIterations {
		return errors.New("password iterations must be >= 100000")
	}
	if cfg.Iterations > maxIterations {
		return errors.New("password iterations must be <= 10000000")
	}
	if cfg.SaltLength < minSaltLength {
		return errors.New("password salt length must be >= 16")
	}
	if cfg.KeyLength < minKeyLength {
		return errors.New("password key length must be >= 16")
	}

	return nil
}
