package auth

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/planpulse/compass-api/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func newTestAuth() *Authenticator {
	a := New("jwt-secret", "master-secret")
	a.BcryptCost = bcrypt.MinCost
	return a
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.InitDB(database.Options{DataPath: filepath.Join(t.TempDir(), "auth.db")})
	require.NoError(t, err)
	return db
}

func TestHMACKey_RoundTrip(t *testing.T) {
	a := newTestAuth()

	key, err := a.GenerateHMACKey("alice")
	require.NoError(t, err)
	assert.Regexp(t, `^alice\.[0-9a-f]{64}$`, key)

	userID, err := a.VerifyHMACKey(key)
	require.NoError(t, err)
	assert.Equal(t, "alice", userID)
}

func TestVerifyHMACKey_Rejects(t *testing.T) {
	a := newTestAuth()
	key, err := a.GenerateHMACKey("alice")
	require.NoError(t, err)

	other := New("jwt-secret", "another-secret")
	forged, err := other.GenerateHMACKey("alice")
	require.NoError(t, err)

	for name, k := range map[string]string{
		"no dot":        "alice",
		"too many dots": key + ".x",
		"empty user":    "." + key[len("alice."):],
		"wrong secret":  forged,
		"swapped user":  "bob" + key[len("alice"):],
	} {
		t.Run(name, func(t *testing.T) {
			_, err := a.VerifyHMACKey(k)
			assert.ErrorIs(t, err, ErrInvalidKey)
		})
	}
}

func TestGenerateHMACKey_Validation(t *testing.T) {
	a := newTestAuth()

	_, err := a.GenerateHMACKey("a.b")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = New("", "").GenerateHMACKey("alice")
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestToken_RoundTripAndExpiry(t *testing.T) {
	a := newTestAuth()
	issued := time.Now().Add(-25 * time.Hour)

	token, err := a.CreateToken("admin")
	require.NoError(t, err)
	claims, err := a.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)

	a.Now = func() time.Time { return issued }
	stale, err := a.CreateToken("admin")
	require.NoError(t, err)
	_, err = a.VerifyToken(stale)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = New("other", "x").VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestKeyPreview(t *testing.T) {
	assert.Equal(t, "****", KeyPreview("short"))
	assert.Equal(t, "ali...cdef", KeyPreview("alice.0123456789abcdef"))
}

func TestLoginAndSeedAdmin(t *testing.T) {
	a := newTestAuth()
	db := openTestDB(t)

	require.NoError(t, a.EnsureAdminExists(db, "admin", "s3cret", nil))
	require.NoError(t, a.EnsureAdminExists(db, "other", "ignored", nil))

	var count int64
	db.Model(&database.MasterUser{}).Count(&count)
	assert.EqualValues(t, 1, count)

	token, err := a.Login(db, "admin", "s3cret")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, err = a.Login(db, "admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = a.Login(db, "nobody", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestTouchAPIKey(t *testing.T) {
	a := newTestAuth()
	db := openTestDB(t)
	key, err := a.GenerateHMACKey("alice")
	require.NoError(t, err)

	first, err := a.TouchAPIKey(db, key, "alice")
	require.NoError(t, err)
	second, err := a.TouchAPIKey(db, key, "alice")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "alice", second.Name)
	assert.Equal(t, 10000, second.RateLimit)
	assert.Equal(t, KeyPreview(key), second.KeyPreview)
	require.NotNil(t, second.LastUsed)
}

func TestTouchAPIKey_Revoked(t *testing.T) {
	a := newTestAuth()
	db := openTestDB(t)
	key, err := a.GenerateHMACKey("alice")
	require.NoError(t, err)

	rec, err := a.TouchAPIKey(db, key, "alice")
	require.NoError(t, err)
	require.NoError(t, db.Model(rec).Update("revoked_at", time.Now()).Error)

	_, err = a.TouchAPIKey(db, key, "alice")
	assert.ErrorIs(t, err, ErrRevokedKey)

	var count int64
	db.Model(&database.APIKey{}).Count(&count)
	assert.EqualValues(t, 1, count)
}
