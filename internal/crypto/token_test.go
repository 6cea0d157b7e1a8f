package crypto

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewLoginToken(t *testing.T) {
	a := NewLoginToken()
	b := NewLoginToken()
	if a == b {
		t.Fatalf("expected distinct tokens")
	}
	parsed, err := uuid.Parse(a)
	if err != nil {
		t.Fatalf("expected uuid, got %q", a)
	}
	if parsed.Version() != 4 {
		t.Fatalf("expected random uuid, got version %d", parsed.Version())
	}
}

func TestHashToken(t *testing.T) {
	if HashToken("abc") != HashToken("abc") {
		t.Fatalf("expected stable hash")
	}
	if HashToken("abc") == HashToken("abd") {
		t.Fatalf("expected different hashes")
	}
	if HashToken("abc") == "abc" {
		t.Fatalf("hash must not echo the token")
	}
}
