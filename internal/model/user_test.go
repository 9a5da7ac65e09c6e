package model

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHashing(t *testing.T) {
	u := &User{}
	require.NoError(t, u.SetPassword("cat", bcrypt.MinCost))
	assert.NotEmpty(t, u.PasswordHash)
	assert.NotEqual(t, "cat", u.PasswordHash)
	assert.True(t, u.VerifyPassword("cat"))
	assert.False(t, u.VerifyPassword("dog"))

	other := &User{}
	require.NoError(t, other.SetPassword("cat", bcrypt.MinCost))
	assert.NotEqual(t, u.PasswordHash, other.PasswordHash)

	assert.ErrorIs(t, u.SetPassword("", bcrypt.MinCost), ErrEmptyPassword)
	assert.False(t, (&User{}).VerifyPassword(""))
}

func TestPasswordTooLong(t *testing.T) {
	u := &User{}
	require.NoError(t, u.SetPassword(strings.Repeat("a", MaxPasswordLen), bcrypt.MinCost))
	hash := u.PasswordHash

	assert.ErrorIs(t, u.SetPassword(strings.Repeat("a", MaxPasswordLen+1), bcrypt.MinCost), ErrPasswordTooLong)
	assert.Equal(t, hash, u.PasswordHash)
}

func TestUserPermissions(t *testing.T) {
	u := &User{}
	assert.False(t, u.Can(PermFollow))

	u.Role = &Role{Permissions: PermFollow | PermComment | PermWrite}
	assert.True(t, u.Can(PermWrite))
	assert.False(t, u.Can(PermModerate))
	assert.False(t, u.IsAdministrator())

	u.Role.AddPermission(PermModerate)
	u.Role.AddPermission(PermAdmin)
	assert.True(t, u.IsAdministrator())
}

func TestChooseRole(t *testing.T) {
	admin := &Role{Name: RoleAdministrator}
	def := &Role{Name: RoleUser, Default: true}
	assert.Same(t, admin, ChooseRole("Boss@Example.com ", "boss@example.com", admin, def))
	assert.Same(t, def, ChooseRole("john@example.com", "boss@example.com", admin, def))
	assert.Same(t, def, ChooseRole("john@example.com", "", admin, def))
}

func TestSetEmailDerivesAvatar(t *testing.T) {
	u := &User{}
	u.SetEmail(" John@Example.com")
	assert.Equal(t, "john@example.com", u.Email)
	assert.Equal(t, "d4c74594d841139328695756648b6bd6", u.AvatarHash)
	assert.Equal(t,
		"https://secure.gravatar.com/avatar/d4c74594d841139328695756648b6bd6?s=256&d=identicon&r=g",
		u.Gravatar(256))

	u.SetEmail("other@example.com")
	assert.NotEqual(t, "d4c74594d841139328695756648b6bd6", u.AvatarHash)
}

func TestPing(t *testing.T) {
	u := &User{}
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	u.Ping(now)
	assert.Equal(t, now, u.LastSeen)
}

func TestValidation(t *testing.T) {
	assert.NoError(t, ValidateEmail("john@example.com"))
	assert.ErrorIs(t, ValidateEmail("not-an-email"), ErrInvalidEmail)
	assert.ErrorIs(t, ValidateEmail(""), ErrInvalidEmail)

	assert.NoError(t, ValidateUsername("john.doe_1"))
	assert.ErrorIs(t, ValidateUsername("1john"), ErrInvalidUsername)
	assert.ErrorIs(t, ValidateUsername("jo hn"), ErrInvalidUsername)
	assert.ErrorIs(t, ValidateUsername(""), ErrInvalidUsername)
}
