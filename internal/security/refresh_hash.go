package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

const refreshSaltSize = 32

// NewRefreshSalt returns the client-held refresh secret. It is never persisted.
func NewRefreshSalt() (string, error) {
	b := make([]byte, refreshSaltSize)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate refresh salt: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashRefreshToken binds a refresh salt to the access token it was issued with:
// HMAC-SHA256(pepper, signatureSegment(accessToken) + salt), hex encoded.
func HashRefreshToken(accessToken, salt, pepper string) string {
	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(SignatureSegment(accessToken)))
	mac.Write([]byte(salt))
	return hex.EncodeToString(mac.Sum(nil))
}
