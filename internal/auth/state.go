package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const stateIssuer = "invoice-desk"

// ErrInvalidState is returned for a missing, forged, expired or mismatched
// OAuth state.
var ErrInvalidState = errors.New("invalid oauth state")

type stateClaims struct {
	Nonce    string `json:"nonce"`
	ReturnTo string `json:"rt,omitempty"`
	jwt.RegisteredClaims
}

// StateSigner issues and checks the OAuth state parameter. The state is an
// HS256 JWT binding a per-browser nonce (kept in a cookie) and the page to
// return to after sign-in.
type StateSigner struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewStateSigner creates a signer. ttl bounds how long a sign-in may take.
func NewStateSigner(key []byte, ttl time.Duration) *StateSigner {
	return &StateSigner{key: key, ttl: ttl, now: time.Now}
}

// Issue returns a signed state for nonce.
func (s *StateSigner) Issue(nonce, returnTo string) (string, error) {
	now := s.now()
	claims := stateClaims{
		Nonce:    nonce,
		ReturnTo: SafeReturnPath(returnTo),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    stateIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("signing state: %w", err)
	}
	return signed, nil
}

// Verify checks state against the nonce from the browser's cookie and
// returns the path to continue to.
func (s *StateSigner) Verify(state, nonce string) (string, error) {
	if state == "" || nonce == "" {
		return "", ErrInvalidState
	}
	claims := &stateClaims{}
	_, err := jwt.ParseWithClaims(state, claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(stateIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if subtle.ConstantTimeCompare([]byte(claims.Nonce), []byte(nonce)) != 1 {
		return "", fmt.Errorf("%w: nonce mismatch", ErrInvalidState)
	}
	return SafeReturnPath(claims.ReturnTo), nil
}

// SafeReturnPath limits post-login redirects to local paths.
func SafeReturnPath(p string) string {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return "/"
	}
	return p
}
