package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenService(t *testing.T) TokenService {
	t.Helper()
	svc, err := NewTokenService(time.Hour, 24*time.Hour, "kitsune-crm", "kitsune-crm-api", "test-secret-key-32-characters-long")
	require.NoError(t, err)
	return svc
}

func TestTokenServiceGenerateAndValidate(t *testing.T) {
	svc := newTestTokenService(t)

	access, refresh, err := svc.GenerateTokens(42)
	require.NoError(t, err)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)
	assert.NotEqual(t, access, refresh)

	claims, err := svc.ValidateToken(access)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "access", claims.TokenType)
	assert.NotEmpty(t, claims.TokenID)

	claims, err = svc.ValidateToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, "refresh", claims.TokenType)
}

func TestTokenServiceRejectsGarbage(t *testing.T) {
	svc := newTestTokenService(t)

	_, err := svc.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenServiceRequiresSecret(t *testing.T) {
	_, err := NewTokenService(time.Hour, 24*time.Hour, "iss", "aud", "")
	assert.Error(t, err)
}

func TestTokenServiceRefreshRotatesAndRevokes(t *testing.T) {
	svc := newTestTokenService(t)

	_, refresh, err := svc.GenerateTokens(7)
	require.NoError(t, err)

	newAccess, newRefresh, err := svc.RefreshToken(refresh)
	require.NoError(t, err)
	require.NotEmpty(t, newAccess)
	require.NotEmpty(t, newRefresh)

	// The spent refresh token must not validate again.
	_, err = svc.ValidateToken(refresh)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestTokenServiceRefreshRejectsAccessToken(t *testing.T) {
	svc := newTestTokenService(t)

	access, _, err := svc.GenerateTokens(7)
	require.NoError(t, err)

	_, _, err = svc.RefreshToken(access)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenServiceRevoke(t *testing.T) {
	svc := newTestTokenService(t)

	access, _, err := svc.GenerateTokens(9)
	require.NoError(t, err)

	require.NoError(t, svc.RevokeToken(access))

	_, err = svc.ValidateToken(access)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}
