package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func newTestCodec(now func() time.Time) *Codec {
	return NewCodec(testKey, "test-issuer", 10*time.Hour, WithClock(now))
}

func TestCredentialRoundTrip(t *testing.T) {
	codec := newTestCodec(time.Now)

	teacherToken, err := codec.IssueTeacher(7, "teacher@example.com")
	if err != nil {
		t.Fatalf("issue teacher: %v", err)
	}
	claims, err := codec.Verify(teacherToken)
	if err != nil {
		t.Fatalf("verify teacher: %v", err)
	}
	if claims.Subject != "teacher@example.com" || claims.Role != "TEACHER" {
		t.Fatalf("unexpected teacher claims %+v", claims)
	}
	if id, ok := claims.PrincipalID(KindTeacher); !ok || id != 7 {
		t.Fatalf("expected teacher id 7, got %d %v", id, ok)
	}
	if _, ok := claims.PrincipalID(KindStudent); ok {
		t.Fatalf("teacher credential must not yield a student id")
	}

	studentToken, err := codec.IssueStudent(42)
	if err != nil {
		t.Fatalf("issue student: %v", err)
	}
	if id, ok := codec.ExtractPrincipalID(studentToken, KindStudent); !ok || id != 42 {
		t.Fatalf("expected student id 42, got %d %v", id, ok)
	}
	if _, ok := codec.ExtractPrincipalID(studentToken, KindTeacher); ok {
		t.Fatalf("student credential must not yield a teacher id")
	}
}

func TestIssueByPrincipal(t *testing.T) {
	codec := newTestCodec(time.Now)
	for _, p := range []Principal{Teacher(1), Teacher(99), Student(1), Student(123456789)} {
		token, err := codec.Issue(p, "")
		if err != nil {
			t.Fatalf("issue %v: %v", p, err)
		}
		id, ok := codec.ExtractPrincipalID(token, p.Kind)
		if !ok || id != p.ID {
			t.Fatalf("expected %d for %v, got %d %v", p.ID, p.Kind, id, ok)
		}
	}
	if _, err := codec.Issue(Principal{}, ""); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestExtractIsIdempotent(t *testing.T) {
	codec := newTestCodec(time.Now)
	token, _ := codec.IssueStudent(5)
	claims, err := codec.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	first, ok1 := claims.PrincipalID(KindStudent)
	second, ok2 := claims.PrincipalID(KindStudent)
	if first != second || ok1 != ok2 {
		t.Fatalf("expected identical results, got %d/%v and %d/%v", first, ok1, second, ok2)
	}
}

func TestExpiredCredential(t *testing.T) {
	issuedAt := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	issuer := newTestCodec(func() time.Time { return issuedAt })
	token, err := issuer.IssueStudent(3)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	justBefore := newTestCodec(func() time.Time { return issuedAt.Add(10*time.Hour - time.Second) })
	if _, err := justBefore.Verify(token); err != nil {
		t.Fatalf("expected valid before expiry, got %v", err)
	}

	after := newTestCodec(func() time.Time { return issuedAt.Add(10*time.Hour + time.Second) })
	if _, err := after.Verify(token); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if _, ok := after.ExtractPrincipalID(token, KindStudent); ok {
		t.Fatalf("expired credential must not yield an id")
	}
}

func TestSignatureInvalid(t *testing.T) {
	codec := newTestCodec(time.Now)
	token, _ := codec.IssueTeacher(1, "a@example.com")

	other := NewCodec([]byte("ffffffffffffffffffffffffffffffff"), "test-issuer", time.Hour)
	if _, err := other.Verify(token); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid for foreign key, got %v", err)
	}

	parts := strings.Split(token, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)
	if _, err := codec.Verify(tampered); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid for tampered token, got %v", err)
	}

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sid": 1, "sub": "1", "iss": "test-issuer", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := codec.Verify(none); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid for alg none, got %v", err)
	}
}

func TestMalformedCredential(t *testing.T) {
	codec := newTestCodec(time.Now)
	for _, raw := range []string{"", "abc", "a.b.c", "Bearer x.y.z"} {
		if _, err := codec.Verify(raw); !errors.Is(err, ErrMalformed) {
			t.Fatalf("expected ErrMalformed for %q, got %v", raw, err)
		}
	}
}

func TestAmbiguousClaimsRejected(t *testing.T) {
	codec := newTestCodec(time.Now)
	both := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": "TEACHER", "tid": 1, "sid": 2, "sub": "2",
		"iss": "test-issuer", "exp": time.Now().Add(time.Hour).Unix(),
	})
	token, err := both.SignedString(testKey)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := codec.Verify(token); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ambiguous token to be malformed, got %v", err)
	}

	roleless := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"tid": 1, "sub": "t@example.com", "iss": "test-issuer", "exp": time.Now().Add(time.Hour).Unix(),
	})
	token, _ = roleless.SignedString(testKey)
	if _, ok := codec.ExtractPrincipalID(token, KindTeacher); ok {
		t.Fatalf("teacher id without role must not be accepted")
	}

	mismatched := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sid": 4, "sub": "5", "iss": "test-issuer", "exp": time.Now().Add(time.Hour).Unix(),
	})
	token, _ = mismatched.SignedString(testKey)
	if _, err := codec.Verify(token); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected sub/sid mismatch to be malformed, got %v", err)
	}
}

func TestMissingExpiryRejected(t *testing.T) {
	codec := newTestCodec(time.Now)
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sid": 4, "sub": "4", "iss": "test-issuer",
	}).SignedString(testKey)
	if _, err := codec.Verify(token); err == nil {
		t.Fatalf("expected credential without exp to fail")
	}
}
