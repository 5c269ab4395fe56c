package identity_test

import (
	"errors"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vibez0-CONNECT/vibez/internal/errs"
	"github.com/Vibez0-CONNECT/vibez/internal/pkg/identity"
)

const testSecret = "identity-test-secret"

func signToken(t *testing.T, secret string, claims identity.Claims) string {
	t.Helper()
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestNewVerifierRequiresSecret(t *testing.T) {
	_, err := identity.NewVerifier("")
	assert.Error(t, err)
}

func TestParseValidToken(t *testing.T) {
	v, err := identity.NewVerifier(testSecret)
	require.NoError(t, err)

	token := signToken(t, testSecret, identity.Claims{
		UserID:   "user-1",
		Email:    "alice@example.com",
		Verified: true,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := v.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.True(t, claims.Verified)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	v, err := identity.NewVerifier(testSecret)
	require.NoError(t, err)

	token := signToken(t, testSecret, identity.Claims{
		UserID: "user-1",
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})

	_, err = v.Parse(token)
	assert.True(t, errors.Is(err, errs.ErrUnauthenticated))
}

func TestParseRejectsWrongSecret(t *testing.T) {
	v, err := identity.NewVerifier(testSecret)
	require.NoError(t, err)

	token := signToken(t, "some-other-secret", identity.Claims{UserID: "user-1"})

	_, err = v.Parse(token)
	assert.True(t, errors.Is(err, errs.ErrUnauthenticated))
}

func TestParseRejectsMissingSubject(t *testing.T) {
	v, err := identity.NewVerifier(testSecret)
	require.NoError(t, err)

	token := signToken(t, testSecret, identity.Claims{
		Email: "alice@example.com",
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	_, err = v.Parse(token)
	assert.True(t, errors.Is(err, errs.ErrUnauthenticated))
}

func TestParseRejectsGarbage(t *testing.T) {
	v, err := identity.NewVerifier(testSecret)
	require.NoError(t, err)

	for _, raw := range []string{"", "not-a-token", "a.b.c"} {
		_, err := v.Parse(raw)
		assert.True(t, errors.Is(err, errs.ErrUnauthenticated), "token %q", raw)
	}
}
