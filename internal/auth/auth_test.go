package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345"

func newTestManager(t *testing.T) *TokenManager {
	t.Helper()
	m, err := NewTokenManager(testSecret, "", time.Hour)
	require.NoError(t, err)
	return m
}

func TestHashPassword(t *testing.T) {
	hashed, err := HashPassword("mySecurePassword123")
	require.NoError(t, err)
	assert.NotEqual(t, "mySecurePassword123", hashed)

	assert.True(t, CheckPasswordHash("mySecurePassword123", hashed))
	assert.False(t, CheckPasswordHash("wrongPassword", hashed))
	assert.False(t, CheckPasswordHash("", hashed))

	// bcrypt salts every hash
	other, _ := HashPassword("mySecurePassword123")
	assert.NotEqual(t, hashed, other)
}

func TestValidatePassword(t *testing.T) {
	assert.ErrorIs(t, ValidatePassword("12345"), ErrPasswordTooShort)
	assert.NoError(t, ValidatePassword("123456"))
}

func TestNewTokenManager_EmptySecret(t *testing.T) {
	_, err := NewTokenManager("", "", time.Hour)
	assert.ErrorIs(t, err, ErrEmptyJWTSecret)
}

func TestGenerateAndParse(t *testing.T) {
	m := newTestManager(t)

	token, issued, err := m.Generate("u-42", "artist@example.cm", RoleArtist)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.NotEmpty(t, issued.ID)

	claims, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "u-42", claims.UserID)
	assert.Equal(t, "artist@example.cm", claims.Email)
	assert.Equal(t, RoleArtist, claims.Role)
	assert.Equal(t, issued.ID, claims.ID)
	assert.Equal(t, DefaultIssuer, claims.Issuer)
}

func TestParse_Rejections(t *testing.T) {
	m := newTestManager(t)
	token, _, err := m.Generate("u-1", "a@b.cm", RoleUser)
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewTokenManager("another-secret", "", time.Hour)
		require.NoError(t, err)
		_, err = other.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other, err := NewTokenManager(testSecret, "someone-else", time.Hour)
		require.NoError(t, err)
		_, err = other.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		later := newTestManager(t)
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := later.Parse(token)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := m.Parse("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("none algorithm", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "u-1"})
		raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = m.Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestPermissions(t *testing.T) {
	assert.True(t, HasPermission(RoleAdmin, PermSongsManageAny))
	assert.False(t, HasPermission(RoleArtist, PermSongsManageAny))
	assert.True(t, HasPermission(RoleUser, PermSongsUpload))
	assert.False(t, HasPermission("ghost", PermSongsUpload))

	assert.NoError(t, ValidateRole(RoleArtist))
	assert.Error(t, ValidateRole(RoleAdmin))
	assert.True(t, IsAdmin(&Claims{Role: RoleAdmin}))
	assert.False(t, IsAdmin(nil))
}
