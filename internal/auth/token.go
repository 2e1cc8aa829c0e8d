// Package auth handles sign-in: Google OAuth, the signed OAuth state, and
// session tokens.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// GenerateSessionToken returns a random, URL-safe session token.
func GenerateSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashToken returns the at-rest form of a session token. Only hashes are
// stored, so a copy of the session database cannot be replayed as cookies.
func HashToken(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
