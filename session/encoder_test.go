package session

import (
	"testing"
	"time"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	now := time.Now().Unix()
	in := &Session{
		SubjectID: "f3f2a9c0-1111-2222-3333-444455556666",
		Email:     "admin@example.com",
		CreatedAt: now,
		ExpiresAt: now + 3600,
	}

	data, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	if data[0] != sessionFormatVersionCurrent {
		t.Fatalf("expected schema version %d, got %d", sessionFormatVersionCurrent, data[0])
	}

	out, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if out.SubjectID != in.SubjectID || out.Email != in.Email {
		t.Fatalf("round trip mismatch: %+v", out)
	}
	if out.CreatedAt != in.CreatedAt || out.ExpiresAt != in.ExpiresAt {
		t.Fatalf("timestamp mismatch: %+v", out)
	}
}

func TestDecodeRejectsBadVersion(t *testing.T) {
	data, err := Encode(&Session{SubjectID: "s", ExpiresAt: 1})
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	data[0] = 99
	if _, err := Decode(data); err == nil {
		t.Fatal("expected unknown version to be rejected")
	}
}

func TestDecodeRejectsTruncatedInput(t *testing.T) {
	data, err := Encode(&Session{SubjectID: "subject-1", Email: "a@b.c", ExpiresAt: 1})
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	for i := 0; i < len(data); i++ {
		if _, err := Decode(data[:i]); err == nil {
			t.Fatalf("expected truncation at %d bytes to be rejected", i)
		}
	}
}

func TestEncodeRejectsOversizedFields(t *testing.T) {
	long := make([]byte, 256)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := Encode(&Session{SubjectID: string(long)}); err == nil {
		t.Fatal("expected oversized subjectID to be rejected")
	}
	if _, err := Encode(&Session{SubjectID: "s", Email: string(long)}); err == nil {
		t.Fatal("expected oversized email to be rejected")
	}
}

func FuzzDecode(f *testing.F) {
	seed, err := Encode(&Session{
		SubjectID: "subject-1",
		Email:     "a@b.c",
		CreatedAt: 1700000000,
		ExpiresAt: 1700604800,
	})
	if err != nil {
		f.Fatalf("Encode error: %v", err)
	}
	f.Add(seed)
	f.Add([]byte{})
	f.Add([]byte{1})

	f.Fuzz(func(t *testing.T, data []byte) {
		sess, err := Decode(data)
		if err == nil && sess == nil {
			t.Fatal("nil session without error")
		}
	})
}
