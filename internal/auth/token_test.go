package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/campusdesk/ticket-engine/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", 30)

	token, expiresAt, err := tm.GenerateToken("admin-1", domain.RoleSuperAdmin)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.WithinDuration(t, time.Now().Add(30*time.Minute), expiresAt, 5*time.Second)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	require.Equal(t, "admin-1", claims.AdminID)
	require.Equal(t, domain.RoleSuperAdmin, claims.Role)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	tm := NewTokenManager("secret-a", 30)
	token, _, err := tm.GenerateToken("admin-1", domain.RoleAdmin)
	require.NoError(t, err)

	other := NewTokenManager("secret-b", 30)
	_, err = other.ParseToken(token)
	require.Error(t, err)
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	tm := NewTokenManager("secret", 30)
	_, err := tm.ParseToken("not-a-token")
	require.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hashed, err := HashPassword("s3cret-pass", 4)
	require.NoError(t, err)
	require.NotEqual(t, "s3cret-pass", hashed)

	require.NoError(t, ComparePassword(hashed, "s3cret-pass"))
	require.Error(t, ComparePassword(hashed, "wrong-pass"))
}

func TestHashPasswordClampsCost(t *testing.T) {
	// An out-of-range cost must not error; it falls back to the default.
	hashed, err := HashPassword("s3cret-pass", 99)
	require.NoError(t, err)
	require.NoError(t, ComparePassword(hashed, "s3cret-pass"))
}
