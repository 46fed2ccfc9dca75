package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenExpiry(t *testing.T) {
	expiry := time.Now().Add(30 * time.Minute)

	got, err := AccessTokenExpiry(signedToken(t, 30*time.Minute))
	require.NoError(t, err)
	assert.WithinDuration(t, expiry, got, 2*time.Second)
}

func TestAccessTokenExpiryMalformed(t *testing.T) {
	_, err := AccessTokenExpiry("not-a-jwt")
	require.ErrorIs(t, err, ErrTokenMalformed)
}

func TestAccessTokenExpiryMissingClaim(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "u1"})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = AccessTokenExpiry(signed)
	require.ErrorIs(t, err, ErrTokenMalformed)
}
