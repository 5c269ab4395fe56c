// Package identity parses tokens issued by the external identity provider.
// The token is opaque to the core except for its subject, email, verified
// flag and expiry; username/password and third-party login live upstream.
package identity

import (
	"fmt"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/Vibez0-CONNECT/vibez/internal/errs"
)

// Claims is the subset of the provider token the core relies on.
type Claims struct {
	UserID   string `json:"sub"`
	Email    string `json:"email"`
	Verified bool   `json:"email_verified"`
	jwtlib.RegisteredClaims
}

// Verifier validates identity tokens against the shared provider secret.
type Verifier struct {
	secret []byte
}

// NewVerifier requires the provider secret; absence is a startup error, not a
// runtime one.
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("identity: provider secret is required")
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Parse validates a token string and returns the claims. Expired or malformed
// tokens map onto errs.ErrUnauthenticated so callers reject before touching
// storage.
func (v *Verifier) Parse(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, errs.ErrUnauthenticated
	}
	token, err := jwtlib.ParseWithClaims(tokenStr, &Claims{}, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrUnauthenticated, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, errs.ErrUnauthenticated
	}
	return claims, nil
}
