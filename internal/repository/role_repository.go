package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/flasky/internal/model"
)

// RoleRepo encapsulates all queries on the roles table.
type RoleRepo struct {
	db DBTX
}

const roleColumns = "id, name, is_default, permissions"

func scanRole(row scanner) (*model.Role, error) {
	var r model.Role
	if err := row.Scan(&r.ID, &r.Name, &r.Default, &r.Permissions); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoleNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (r *RoleRepo) GetByID(ctx context.Context, id uint64) (*model.Role, error) {
	return scanRole(r.db.QueryRowContext(ctx, "SELECT "+roleColumns+" FROM roles WHERE id = ?", id))
}

func (r *RoleRepo) GetByName(ctx context.Context, name string) (*model.Role, error) {
	return scanRole(r.db.QueryRowContext(ctx, "SELECT "+roleColumns+" FROM roles WHERE name = ?", name))
}

// List returns all roles ordered by permission strength.
func (r *RoleRepo) List(ctx context.Context) ([]*model.Role, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+roleColumns+" FROM roles ORDER BY permissions, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

// Default returns the single default role. Zero or several default rows
// are reported as ErrNoDefaultRole or ErrAmbiguousDefaultRole.
func (r *RoleRepo) Default(ctx context.Context) (*model.Role, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+roleColumns+" FROM roles WHERE is_default = ? LIMIT 2", true)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var found []*model.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, ErrNoDefaultRole
	case 1:
		return found[0], nil
	}
	return nil, ErrAmbiguousDefaultRole
}

// Save inserts a new role (ID 0) or updates an existing one.
func (r *RoleRepo) Save(ctx context.Context, role *model.Role) error {
	if role.ID == 0 {
		res, err := r.db.ExecContext(ctx,
			"INSERT INTO roles (name, is_default, permissions) VALUES (?, ?, ?)",
			role.Name, role.Default, role.Permissions)
		if err != nil {
			if isDuplicate(err) {
				return ErrDuplicate
			}
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		role.ID = uint64(id)
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		"UPDATE roles SET name = ?, is_default = ?, permissions = ? WHERE id = ?",
		role.Name, role.Default, role.Permissions, role.ID)
	return err
}

// InsertRoles reconciles the roles table with model.RoleTable: every seed
// role exists with exactly its permissions, the default flag is set on
// model.DefaultRoleName only and cleared on every other row. Running it
// again changes nothing.
func (s *Store) InsertRoles(ctx context.Context) error {
	return s.InTx(ctx, func(tx *Store) error {
		for _, seed := range model.RoleTable {
			role, err := tx.Roles.GetByName(ctx, seed.Name)
			if errors.Is(err, ErrRoleNotFound) {
				role = &model.Role{Name: seed.Name}
			} else if err != nil {
				return err
			}
			role.Reconcile(seed.Permissions, model.DefaultRoleName)
			if err := tx.Roles.Save(ctx, role); err != nil {
				return err
			}
		}
		_, err := tx.Roles.db.ExecContext(ctx,
			"UPDATE roles SET is_default = ? WHERE name <> ?", false, model.DefaultRoleName)
		return err
	})
}
