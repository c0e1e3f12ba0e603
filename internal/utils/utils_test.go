package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	secret := []byte("s3cret")

	tok, err := GenerateAccessToken("ops", time.Hour, secret)
	require.NoError(t, err)

	claims, err := VerifyJWT(tok, secret)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.NotEmpty(t, claims.ID)
}

func TestVerifyJWT_Rejects(t *testing.T) {
	secret := []byte("s3cret")

	expired, err := GenerateAccessToken("ops", -time.Minute, secret)
	require.NoError(t, err)
	_, err = VerifyJWT(expired, secret)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	tok, err := GenerateAccessToken("ops", time.Hour, secret)
	require.NoError(t, err)
	_, err = VerifyJWT(tok, []byte("other"))
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	_, err = VerifyJWT("not-a-token", secret)
	assert.Error(t, err)
}

func TestGenerateAccessToken_EmptySecret(t *testing.T) {
	_, err := GenerateAccessToken("ops", time.Hour, nil)
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestParseBoundedInt(t *testing.T) {
	n, err := ParseBoundedInt("", 100, 1, 10000)
	require.NoError(t, err)
	assert.Equal(t, 100, n)

	n, err = ParseBoundedInt("500", 100, 1, 10000)
	require.NoError(t, err)
	assert.Equal(t, 500, n)

	for _, raw := range []string{"0", "10001", "-5", "abc", "1.5"} {
		_, err := ParseBoundedInt(raw, 100, 1, 10000)
		assert.Error(t, err, raw)
	}
}
