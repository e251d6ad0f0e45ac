package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"shopops/portal/internal/models"
)

func TestJWTRoundTrip(t *testing.T) {
	user := &models.User{Base: models.NewBase(), Name: "Asha", Role: models.RoleDeveloper}

	token, err := GenerateJWT(user, "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateJWT(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, user.ID.Hex(), claims.UserID)
	assert.Equal(t, models.RoleDeveloper, claims.Role)
	assert.Equal(t, "Asha", claims.Name)

	id, err := claims.ObjectID()
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)
}

func TestValidateJWT_Rejects(t *testing.T) {
	user := &models.User{Base: models.NewBase(), Role: models.RoleStaff}

	token, err := GenerateJWT(user, "secret", time.Hour)
	require.NoError(t, err)
	_, err = ValidateJWT(token, "other-secret")
	assert.Error(t, err)

	expired, err := GenerateJWT(user, "secret", -time.Minute)
	require.NoError(t, err)
	_, err = ValidateJWT(expired, "secret")
	assert.Error(t, err)

	_, err = ValidateJWT("not.a.token", "secret")
	assert.Error(t, err)

	_, err = GenerateJWT(user, "", time.Hour)
	assert.Error(t, err)
}

func TestPasswordHash(t *testing.T) {
	passwordCost = bcrypt.MinCost
	t.Cleanup(func() { passwordCost = bcrypt.DefaultCost })

	hash, err := HashPassword("counter-pass")
	require.NoError(t, err)
	assert.NotEqual(t, "counter-pass", hash)
	assert.True(t, CheckPasswordHash("counter-pass", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
	assert.False(t, CheckPasswordHash("counter-pass", ""))
	assert.False(t, CheckPasswordHash("counter-pass", "not-a-bcrypt-hash"))

	_, err = HashPassword("short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	long := strings.Repeat("a", MaxPasswordLength+1)
	_, err = HashPassword(long)
	assert.ErrorIs(t, err, ErrPasswordTooLong)
	assert.False(t, CheckPasswordHash(long, hash))

	_, err = HashPassword(strings.Repeat("a", MaxPasswordLength))
	assert.NoError(t, err)
}
