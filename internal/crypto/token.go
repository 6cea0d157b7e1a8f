package crypto

import (
	"crypto/sha256"
	"encoding/base64"

	"github.com/google/uuid"
)

// NewLoginToken returns a random version 4 UUID string (122 random bits).
func NewLoginToken() string {
	return uuid.NewString()
}

func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
