package crypto

import (
	"strings"
	"testing"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	if err := CheckPassword(hash, "secret"); err != nil {
		t.Fatalf("expected password to match")
	}
	if err := CheckPassword(hash, "wrong"); err == nil {
		t.Fatalf("expected password mismatch")
	}
}

func TestRandomPassword(t *testing.T) {
	pw, err := RandomPassword(8)
	if err != nil {
		t.Fatalf("random password: %v", err)
	}
	if len(pw) != 8 {
		t.Fatalf("expected 8 chars, got %q", pw)
	}
	for _, r := range pw {
		if !strings.ContainsRune(passwordAlphabet, r) {
			t.Fatalf("unexpected rune %q", r)
		}
	}
}
