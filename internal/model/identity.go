package model

// Identity is the caller of a request: either an authenticated user or
// anonymous. The zero value is anonymous.
type Identity struct {
	user *User
}

func Anonymous() Identity { return Identity{} }

func Authenticated(u *User) Identity { return Identity{user: u} }

func (i Identity) IsAnonymous() bool { return i.user == nil }

// User returns the authenticated user and true, or nil and false.
func (i Identity) User() (*User, bool) { return i.user, i.user != nil }

func (i Identity) Can(p Permission) bool {
	return i.user != nil && i.user.Can(p)
}

func (i Identity) IsAdministrator() bool { return i.Can(PermAdmin) }

// ID returns the user id, or 0 for anonymous callers.
func (i Identity) ID() uint64 {
	if i.user == nil {
		return 0
	}
	return i.user.ID
}
