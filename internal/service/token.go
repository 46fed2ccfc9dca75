package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrTokenMalformed = errors.New("token is malformed")

type jwtClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// AccessTokenExpiry reads the exp claim without verifying the signature.
// The gateway never validates backend-issued tokens; it only needs their
// lifetime to size the cookie mirror.
func AccessTokenExpiry(token string) (time.Time, error) {
	parsedToken, _, err := new(jwt.Parser).ParseUnverified(token, &jwtClaims{})
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}

	claims, ok := parsedToken.Claims.(*jwtClaims)
	if !ok || claims.ExpiresAt == nil {
		return time.Time{}, ErrTokenMalformed
	}

	return claims.ExpiresAt.Time, nil
}
