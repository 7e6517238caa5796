package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	token, err := SignJWT("secret", "user-123", "client", 60)
	require.NoError(t, err)

	claims, err := ParseJWT("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID)
	assert.Equal(t, "client", claims.Role)
}

func TestParseJWT_WrongSecret(t *testing.T) {
	token, err := SignJWT("secret", "user-123", "client", 60)
	require.NoError(t, err)

	_, err = ParseJWT("other-secret", token)
	assert.Error(t, err)
}

func TestParseJWT_Expired(t *testing.T) {
	token, err := SignJWT("secret", "user-123", "client", -1)
	require.NoError(t, err)

	_, err = ParseJWT("secret", token)
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)

	assert.True(t, CheckPassword(hash, "hunter22"))
	assert.False(t, CheckPassword(hash, "hunter23"))
}
