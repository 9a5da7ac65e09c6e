// Package repository contains data access logic separated from HTTP
// handlers. The sentinel values below let higher layers tell failure
// scenarios apart: ErrForbidden becomes a 403, the not-found errors a 404,
// ErrDuplicate a validation message.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
)

var (
	ErrRoleNotFound    = errors.New("role not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrPostNotFound    = errors.New("post not found")
	ErrCommentNotFound = errors.New("comment not found")

	// ErrNoDefaultRole and ErrAmbiguousDefaultRole report a roles table
	// that does not have exactly one default row.
	ErrNoDefaultRole        = errors.New("no default role")
	ErrAmbiguousDefaultRole = errors.New("more than one default role")

	// ErrDuplicate wraps unique-constraint violations.
	ErrDuplicate = errors.New("duplicate key")

	// ErrUnsaved is returned by relationship queries on users that were
	// never persisted.
	ErrUnsaved = errors.New("user is not saved")

	// ErrSelfUnfollow is returned when a user tries to drop their own
	// follow edge.
	ErrSelfUnfollow = errors.New("users always follow themselves")

	// ErrForbidden is returned when the caller attempts an operation on a
	// resource they do not own.
	ErrForbidden = errors.New("forbidden")
)

// isDuplicate reports whether err is a unique or primary key violation on
// either supported driver.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
