package model

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/iliyamo/flasky/internal/utils"
)

// User represents an application user record as stored in the `users`
// table. The clear-text password is never kept; only its bcrypt hash.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Email        – unique, normalized email address.
//	Username     – unique public handle.
//	PasswordHash – bcrypt hashed password.
//	Confirmed    – set once the email confirmation token was redeemed.
//	RoleID       – foreign key into the roles table.
//	Role         – hydrated role, nil when not loaded.
//	AvatarHash   – md5 of the email, cached for gravatar URLs.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	Username     string    // users.username
	PasswordHash string    // users.password_hash
	Confirmed    bool      // users.confirmed
	RoleID       uint64    // users.role_id
	Role         *Role     // joined from roles
	Name         string    // users.name
	Location     string    // users.location
	AboutMe      string    // users.about_me
	AvatarHash   string    // users.avatar_hash
	MemberSince  time.Time // users.member_since
	LastSeen     time.Time // users.last_seen
}

var (
	ErrInvalidEmail    = errors.New("invalid email address")
	ErrInvalidUsername = errors.New("usernames must have only letters, numbers, dots or underscores")
	ErrEmptyPassword   = errors.New("password is required")
	ErrFieldTooLong    = errors.New("field exceeds 64 characters")
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.]*$`)

const maxFieldLen = 64

// MaxPasswordLen is the longest password bcrypt accepts, in bytes.
const MaxPasswordLen = 72

// ValidateEmail checks the shape and length of an address.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" || len(email) > maxFieldLen {
		return ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}
	return nil
}

// ValidateUsername enforces the handle rule: a letter followed by letters,
// digits, dots or underscores.
func ValidateUsername(username string) error {
	if len(username) > maxFieldLen {
		return ErrFieldTooLong
	}
	if !usernamePattern.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

// ValidateProfile checks the bounded profile fields.
func ValidateProfile(name, location string) error {
	if len(name) > maxFieldLen || len(location) > maxFieldLen {
		return ErrFieldTooLong
	}
	return nil
}

// SetPassword replaces the stored hash with a fresh salted hash of plain.
func (u *User) SetPassword(plain string, cost int) error {
	if plain == "" {
		return ErrEmptyPassword
	}
	if len(plain) > MaxPasswordLen {
		return ErrPasswordTooLong
	}
	hash, err := utils.HashPassword(plain, cost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) VerifyPassword(plain string) bool {
	return utils.VerifyPassword(u.PasswordHash, plain)
}

// SetEmail stores the normalized address and re-derives the avatar hash.
func (u *User) SetEmail(email string) {
	u.Email = utils.NormalizeEmail(email)
	u.AvatarHash = utils.AvatarHash(u.Email)
}

// Gravatar returns the avatar image URL at the requested size.
func (u *User) Gravatar(size int) string {
	hash := u.AvatarHash
	if hash == "" {
		hash = utils.AvatarHash(u.Email)
	}
	return utils.GravatarURL(hash, size)
}

// Can reports whether the user's role grants p. A user without a role can
// do nothing.
func (u *User) Can(p Permission) bool {
	return u.Role != nil && u.Role.HasPermission(p)
}

func (u *User) IsAdministrator() bool { return u.Can(PermAdmin) }

// Ping records activity.
func (u *User) Ping(now time.Time) { u.LastSeen = now.UTC() }

// ChooseRole picks the role a user with email receives: admin when the
// address is the configured administrator address, otherwise def.
func ChooseRole(email, adminEmail string, admin, def *Role) *Role {
	if adminEmail != "" && utils.NormalizeEmail(email) == utils.NormalizeEmail(adminEmail) {
		return admin
	}
	return def
}
