package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken_RoundTrips(t *testing.T) {
	InitJWT("test-secret", time.Hour)

	token, err := GenerateToken("operator-1", 0)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	require.Equal(t, "operator-1", claims.Subject)
}

func TestParseToken_RejectsTamperedToken(t *testing.T) {
	InitJWT("test-secret", time.Hour)

	token, err := GenerateToken("operator-1", 0)
	require.NoError(t, err)

	_, err = ParseToken(token + "tampered")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseToken_RejectsExpiredToken(t *testing.T) {
	InitJWT("test-secret", time.Hour)

	token, err := GenerateToken("operator-1", -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestHashAndCheckAPIKey(t *testing.T) {
	hashed, err := HashAPIKey("super-secret-key")
	require.NoError(t, err)

	require.True(t, CheckAPIKey("super-secret-key", hashed))
	require.False(t, CheckAPIKey("wrong-key", hashed))
}
