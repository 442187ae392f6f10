package security

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"gatherly/internal/domain/user"
)

var ErrInvalidToken = errors.New("security: invalid token")

// Claims mirrors what the identity subsystem signs into its tokens. This
// core only verifies; issuance lives elsewhere.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenVerifier checks HMAC-signed bearer tokens and resolves the identity
// they carry.
type TokenVerifier struct {
	Secret []byte
}

func (v TokenVerifier) Authenticate(tokenString string) (user.ID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method %s", ErrInvalidToken, t.Method.Alg())
		}
		return v.Secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return "", ErrInvalidToken
	}
	return user.ID(claims.UserID), nil
}
