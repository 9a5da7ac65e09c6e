package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store groups the repositories over one connection or transaction.
type Store struct {
	db   *sql.DB
	inTx bool

	Roles    *RoleRepo
	Users    *UserRepo
	Follows  *FollowRepo
	Posts    *PostRepo
	Comments *CommentRepo
}

// NewStore constructs a Store with the provided DB handle.
func NewStore(db *sql.DB) *Store {
	s := newStore(db)
	s.db = db
	return s
}

func newStore(q DBTX) *Store {
	return &Store{
		Roles:    &RoleRepo{db: q},
		Users:    &UserRepo{db: q},
		Follows:  &FollowRepo{db: q},
		Posts:    &PostRepo{db: q},
		Comments: &CommentRepo{db: q},
	}
}

// InTx runs fn with repositories bound to one transaction. The transaction
// commits when fn returns nil and rolls back otherwise. Calling InTx on a
// store that is already transactional reuses the transaction.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.inTx {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txStore := newStore(tx)
	txStore.inTx = true
	if err := fn(txStore); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}
