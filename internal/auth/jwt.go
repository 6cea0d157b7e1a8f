package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed        = errors.New("credential malformed")
	ErrSignatureInvalid = errors.New("credential signature invalid")
	ErrExpired          = errors.New("credential expired")
)

const teacherRole = "TEACHER"

// Claims is the payload of a session credential. Exactly one of TeacherID
// and StudentID is set on a verified credential.
type Claims struct {
	Role      string `json:"role,omitempty"`
	TeacherID *int64 `json:"tid,omitempty"`
	StudentID *int64 `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// Kind reports which principal the claims were issued for.
func (c *Claims) Kind() Kind {
	switch {
	case c.TeacherID != nil && c.StudentID == nil && c.Role == teacherRole:
		return KindTeacher
	case c.StudentID != nil && c.TeacherID == nil && c.Role == "":
		return KindStudent
	default:
		return KindUnknown
	}
}

// PrincipalID returns the id claim matching kind, or false when the claims
// belong to the other kind.
func (c *Claims) PrincipalID(kind Kind) (int64, bool) {
	if c == nil || c.Kind() != kind {
		return 0, false
	}
	switch kind {
	case KindTeacher:
		return *c.TeacherID, true
	case KindStudent:
		return *c.StudentID, true
	}
	return 0, false
}

type Codec struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

type CodecOption func(*Codec)

// WithClock replaces time.Now for issuing and verifying.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) {
		c.now = now
	}
}

func NewCodec(key []byte, issuer string, ttl time.Duration, opts ...CodecOption) *Codec {
	c := &Codec{key: key, issuer: issuer, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// IssueTeacher signs a teacher credential. The subject carries the email
// for consumers that key off sub; the numeric id travels in tid.
func (c *Codec) IssueTeacher(teacherID int64, email string) (string, error) {
	id := teacherID
	return c.sign(Claims{Role: teacherRole, TeacherID: &id}, email)
}

func (c *Codec) IssueStudent(studentID int64) (string, error) {
	id := studentID
	return c.sign(Claims{StudentID: &id}, strconv.FormatInt(studentID, 10))
}

// Issue signs a credential for the given principal. Teacher credentials use
// subject as the sub claim when it is not empty.
func (c *Codec) Issue(p Principal, subject string) (string, error) {
	switch p.Kind {
	case KindTeacher:
		if subject == "" {
			subject = strconv.FormatInt(p.ID, 10)
		}
		return c.IssueTeacher(p.ID, subject)
	case KindStudent:
		return c.IssueStudent(p.ID)
	default:
		return "", errors.New("unknown principal kind")
	}
}

func (c *Codec) sign(claims Claims, subject string) (string, error) {
	now := c.now().UTC()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    c.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.key)
}

// Verify parses and checks a credential. Failures are one of ErrMalformed,
// ErrSignatureInvalid or ErrExpired.
func (c *Codec) Verify(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return c.key, nil
	}, opts...)
	if err != nil {
		return nil, classify(err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrMalformed
	}
	if claims.Kind() == KindUnknown {
		return nil, ErrMalformed
	}
	if claims.Kind() == KindStudent && claims.Subject != strconv.FormatInt(*claims.StudentID, 10) {
		return nil, ErrMalformed
	}
	return claims, nil
}

// ExtractPrincipalID verifies tokenString and returns the id for kind. It
// never fails loudly: an invalid token or a token of the other kind yields
// false.
func (c *Codec) ExtractPrincipalID(tokenString string, kind Kind) (int64, bool) {
	claims, err := c.Verify(tokenString)
	if err != nil {
		return 0, false
	}
	return claims.PrincipalID(kind)
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrSignatureInvalid
	default:
		return ErrMalformed
	}
}
