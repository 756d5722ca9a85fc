// ABOUTME: Session credential verification for externally issued JWTs
// ABOUTME: Uses HS256 signing and accepts a small closed set of audience variants

package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionVerifier defines the interface for session credential verification.
type SessionVerifier interface {
	Verify(tokenString string) (userID string, err error)
}

// JWTSessionVerifier implements SessionVerifier using HS256 signed JWTs.
// The session-issuing subsystem has stamped different audience values into
// tokens over time, so verification tries each configured variant in order
// and the first success wins.
type JWTSessionVerifier struct {
	secret    []byte
	audiences []string
}

// NewJWTSessionVerifier creates a verifier with the given secret and accepted
// audience variants.
func NewJWTSessionVerifier(secret []byte, audiences []string) *JWTSessionVerifier {
	return &JWTSessionVerifier{secret: secret, audiences: audiences}
}

// Verify validates the token and extracts the account ID from the "sub" claim.
func (v *JWTSessionVerifier) Verify(tokenString string) (string, error) {
	var lastErr error
	for _, aud := range v.audiences {
		userID, err := v.verifyWithAudience(tokenString, aud)
		if err == nil {
			return userID, nil
		}
		lastErr = err
	}
	if len(v.audiences) == 0 {
		return v.verifyWithAudience(tokenString, "")
	}
	return "", lastErr
}

func (v *JWTSessionVerifier) verifyWithAudience(tokenString, audience string) (string, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidSession
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", fmt.Errorf("%w: missing sub claim", ErrInvalidSession)
	}

	return sub, nil
}

// Generate creates a new session JWT for the given account ID with expiration.
// Used by the admin CLI to mint development credentials.
func (v *JWTSessionVerifier) Generate(userID string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(expiresIn).Unix(),
	}
	if len(v.audiences) > 0 {
		claims["aud"] = v.audiences[0]
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
