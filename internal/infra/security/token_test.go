package security_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"gatherly/internal/domain/user"
	"gatherly/internal/infra/security"
)

var secret = []byte("test-secret")

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestAuthenticateValidToken(t *testing.T) {
	req := require.New(t)
	v := security.TokenVerifier{Secret: secret}

	token := signToken(t, jwt.SigningMethodHS256, secret, security.Claims{
		UserID: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	id, err := v.Authenticate(token)
	req.NoError(err)
	req.Equal(user.ID("alice"), id)
}

func TestAuthenticateRejectsBadSignature(t *testing.T) {
	v := security.TokenVerifier{Secret: secret}
	token := signToken(t, jwt.SigningMethodHS256, []byte("other-secret"), security.Claims{UserID: "alice"})

	_, err := v.Authenticate(token)
	require.ErrorIs(t, err, security.ErrInvalidToken)
}

func TestAuthenticateRejectsExpired(t *testing.T) {
	v := security.TokenVerifier{Secret: secret}
	token := signToken(t, jwt.SigningMethodHS256, secret, security.Claims{
		UserID: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})

	_, err := v.Authenticate(token)
	require.ErrorIs(t, err, security.ErrInvalidToken)
}

func TestAuthenticateRejectsMissingUserID(t *testing.T) {
	v := security.TokenVerifier{Secret: secret}
	token := signToken(t, jwt.SigningMethodHS256, secret, security.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	_, err := v.Authenticate(token)
	require.ErrorIs(t, err, security.ErrInvalidToken)
}

func TestAuthenticateRejectsGarbage(t *testing.T) {
	v := security.TokenVerifier{Secret: secret}
	_, err := v.Authenticate("not-a-token")
	require.ErrorIs(t, err, security.ErrInvalidToken)
}
