package token

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func storePaths(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "token.json"), filepath.Join(dir, "token.json.bak")
}

func TestSetAndGetRoundTrip(t *testing.T) {
	path, backup := storePaths(t)
	s, err := Open(path, backup, time.Minute)
	require.NoError(t, err)

	require.NoError(t, s.Set("real", "tok-123", time.Now(), 3600))

	e, ok := s.Get("real")
	require.True(t, ok)
	require.Equal(t, "tok-123", e.AccessToken)
}

func TestGetRefusesWithinRefreshBuffer(t *testing.T) {
	path, backup := storePaths(t)
	s, err := Open(path, backup, 5*time.Minute)
	require.NoError(t, err)

	require.NoError(t, s.Set("real", "tok-123", time.Now(), 60))

	_, ok := s.Get("real")
	require.False(t, ok)
	require.True(t, s.NeedsRefresh("real"))
}

func TestGetMissingKindNeedsRefresh(t *testing.T) {
	path, backup := storePaths(t)
	s, err := Open(path, backup, time.Minute)
	require.NoError(t, err)

	require.True(t, s.NeedsRefresh("real"))
	_, ok := s.Get("real")
	require.False(t, ok)
}

func TestOpenDropsExpiredEntriesOnLoad(t *testing.T) {
	path, backup := storePaths(t)
	s, err := Open(path, backup, time.Minute)
	require.NoError(t, err)
	require.NoError(t, s.Set("stale", "old", time.Now().Add(-2*time.Hour), 3600))

	reopened, err := Open(path, backup, time.Minute)
	require.NoError(t, err)

	_, ok := reopened.Get("stale")
	require.False(t, ok)
}

func TestOpenWritesBackupCopy(t *testing.T) {
	path, backup := storePaths(t)
	s, err := Open(path, backup, time.Minute)
	require.NoError(t, err)
	require.NoError(t, s.Set("real", "tok-123", time.Now(), 3600))

	reopened, err := Open(backup, "", time.Minute)
	require.NoError(t, err)
	e, ok := reopened.Get("real")
	require.True(t, ok)
	require.Equal(t, "tok-123", e.AccessToken)
}

func TestOpenFallsBackToBackupWhenPrimaryCorrupt(t *testing.T) {
	path, backup := storePaths(t)
	s, err := Open(path, backup, time.Minute)
	require.NoError(t, err)
	require.NoError(t, s.Set("real", "tok-123", time.Now(), 3600))

	require.NoError(t, writeCorrupt(path))

	reopened, err := Open(path, backup, time.Minute)
	require.NoError(t, err)
	e, ok := reopened.Get("real")
	require.True(t, ok)
	require.Equal(t, "tok-123", e.AccessToken)
}

func writeCorrupt(path string) error {
	return os.WriteFile(path, []byte("{not json"), 0o600)
}

func TestSetFromJWTReadsExpClaim(t *testing.T) {
	path, backup := storePaths(t)
	s, err := Open(path, backup, time.Minute)
	require.NoError(t, err)

	iat := time.Now()
	exp := iat.Add(2 * time.Hour)
	claims := jwt.MapClaims{"iat": jwt.NewNumericDate(iat), "exp": jwt.NewNumericDate(exp), "sub": "account-1"}
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	tokenString, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	require.NoError(t, s.SetFromJWT("real", tokenString))

	e, ok := s.Get("real")
	require.True(t, ok)
	require.WithinDuration(t, exp, e.ExpiresAt(), 2*time.Second)
}

func TestSetFromJWTRejectsMissingExpClaim(t *testing.T) {
	path, backup := storePaths(t)
	s, err := Open(path, backup, time.Minute)
	require.NoError(t, err)

	claims := jwt.MapClaims{"sub": "account-1"}
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	tokenString, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	err = s.SetFromJWT("real", tokenString)
	require.Error(t, err)
}
