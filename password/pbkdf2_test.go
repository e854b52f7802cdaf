package password

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"

	"golang.org/x/crypto/pbkdf2"
)

func fastConfig() Config {
	return Config{
		Iterations: 100_000,
		SaltLength: 16,
		KeyLength:  32,
	}
}

func TestHashAndVerify(t *testing.T) {
	hasher, err := New(fastConfig())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	record, err := hasher.Hash("P@ssw0rd-Ascii")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	if !strings.HasPrefix(record, "pbkdf2:100000:") {
		t.Fatalf("unexpected record prefix: %s", record)
	}
	if got := len(strings.Split(record, ":")); got != 4 {
		t.Fatalf("expected 4 record fields, got %d", got)
	}

	if !hasher.Verify("P@ssw0rd-Ascii", record) {
		t.Fatal("expected password verification to succeed")
	}
}

func TestHashSaltUniqueness(t *testing.T) {
	hasher, err := New(fastConfig())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	first, err := hasher.Hash("same-plaintext")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	second, err := hasher.Hash("same-plaintext")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	if first == second {
		t.Fatal("expected two hashes of the same plaintext to differ")
	}
	if !hasher.Verify("same-plaintext", first) || !hasher.Verify("same-plaintext", second) {
		t.Fatal("expected both records to verify")
	}
}

func TestVerifyWrongPassword(t *testing.T) {
	hasher, err := New(fastConfig())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	record, err := hasher.Hash("correct-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	if hasher.Verify("wrong-password", record) {
		t.Fatal("expected wrong password verification to fail")
	}
}

func TestVerifyGarbageInput(t *testing.T) {
	hasher, err := New(fastConfig())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	cases := []string{
		"",
		"not:a:valid:hash",
		"pbkdf2:abc:salt:hash",
		"pbkdf2:100000:!!!:AAAA",
		"pbkdf2:100000:AAAA",
		"scrypt:100000:AAAA:AAAA",
		"pbkdf2:0:AAAA:AAAA",
		"pbkdf2:99999999999:AAAA:AAAA",
	}
	for _, record := range cases {
		if hasher.Verify("x", record) {
			t.Fatalf("expected verification to fail for record %q", record)
		}
	}
}

func TestNeedsUpgrade(t *testing.T) {
	weak, err := New(Config{Iterations: 100_000, SaltLength: 16, KeyLength: 32})
	if err != nil {
		t.Fatalf("New(weak) error: %v", err)
	}

	record, err := weak.Hash("upgrade-me")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	strong, err := New(Config{Iterations: 200_000, SaltLength: 16, KeyLength: 32})
	if err != nil {
		t.Fatalf("New(strong) error: %v", err)
	}

	if !strong.NeedsUpgrade(record) {
		t.Fatal("expected NeedsUpgrade to report true for fewer iterations")
	}
	if weak.NeedsUpgrade(record) {
		t.Fatal("expected NeedsUpgrade to report false for current parameters")
	}
	if strong.NeedsUpgrade("mangled") {
		t.Fatal("expected NeedsUpgrade to report false for malformed records")
	}
}

func TestVerifyLegacyBelowFloorRecord(t *testing.T) {
	// Records hashed before the current floor was raised still carry
	// their original iteration count. They must keep verifying so the
	// account can log in and be rehashed, rather than being locked out.
	const legacyIterations = 10_000
	salt := []byte("0123456789abcdef")
	key := pbkdf2.Key([]byte("old password"), salt, legacyIterations, 32, sha256.New)
	record := strings.Join([]string{
		"pbkdf2",
		"10000",
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	}, ":")

	hasher, err := New(fastConfig())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	if !hasher.Verify("old password", record) {
		t.Fatal("expected legacy record to verify")
	}
	if hasher.Verify("wrong password", record) {
		t.Fatal("expected wrong password to fail against legacy record")
	}
	if !hasher.NeedsUpgrade(record) {
		t.Fatal("expected legacy record to be flagged for upgrade")
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	hasher, err := New(Config{})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if hasher.config.Iterations != DefaultIterations {
		t.Fatalf("expected default iterations %d, got %d", DefaultIterations, hasher.config.Iterations)
	}
	if hasher.config.SaltLength != DefaultSaltLength {
		t.Fatalf("expected default salt length %d, got %d", DefaultSaltLength, hasher.config.SaltLength)
	}
	if hasher.config.KeyLength != DefaultKeyLength {
		t.Fatalf("expected default key length %d, got %d", DefaultKeyLength, hasher.config.KeyLength)
	}
}

func TestNewRejectsWeakConfig(t *testing.T) {
	if _, err := New(Config{Iterations: 50_000, SaltLength: 16, KeyLength: 32}); err == nil {
		t.Fatal("expected sub-minimum iterations to be rejected")
	}
	if _, err := New(Config{Iterations: 100_000, SaltLength: 8, KeyLength: 32}); err == nil {
		t.Fatal("expected sub-minimum salt length to be rejected")
	}
	if _, err := New(Config{Iterations: 100_000, SaltLength: 16, KeyLength: 8}); err == nil {
		t.Fatal("expected sub-minimum key length to be rejected")
	}
}
