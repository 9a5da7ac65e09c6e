package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/flasky/internal/model"
	"github.com/iliyamo/flasky/internal/utils"
)

// UserRepo encapsulates all queries on the users table. Reads hydrate the
// user's role.
type UserRepo struct {
	db DBTX
}

const (
	userColumns = `u.id, u.email, u.username, u.password_hash, u.confirmed, u.role_id,
		u.name, u.location, u.about_me, u.avatar_hash, u.member_since, u.last_seen,
		r.id, r.name, r.is_default, r.permissions`
	userFrom = " FROM users u LEFT JOIN roles r ON r.id = u.role_id"
)

// userScan holds scan targets for userColumns.
type userScan struct {
	u        model.User
	roleFK   sql.NullInt64
	rID      sql.NullInt64
	rName    sql.NullString
	rDefault sql.NullBool
	rPerms   sql.NullInt64
}

func (s *userScan) dest() []any {
	return []any{
		&s.u.ID, &s.u.Email, &s.u.Username, &s.u.PasswordHash, &s.u.Confirmed, &s.roleFK,
		&s.u.Name, &s.u.Location, &s.u.AboutMe, &s.u.AvatarHash, &s.u.MemberSince, &s.u.LastSeen,
		&s.rID, &s.rName, &s.rDefault, &s.rPerms,
	}
}

func (s *userScan) user() *model.User {
	u := s.u
	if s.roleFK.Valid {
		u.RoleID = uint64(s.roleFK.Int64)
	}
	if s.rID.Valid {
		u.Role = &model.Role{
			ID:          uint64(s.rID.Int64),
			Name:        s.rName.String,
			Default:     s.rDefault.Bool,
			Permissions: model.Permission(s.rPerms.Int64),
		}
	}
	return &u
}

func scanUser(row scanner) (*model.User, error) {
	var s userScan
	if err := row.Scan(s.dest()...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.user(), nil
}

func nullableID(id uint64) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(id), Valid: id != 0}
}

// Insert adds a user row as is and sets u.ID. Use Store.CreateUser for
// registration, which also assigns the role and the self-follow.
func (r *UserRepo) Insert(ctx context.Context, u *model.User) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (email, username, password_hash, confirmed, role_id, name, location,
			about_me, avatar_hash, member_since, last_seen)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		u.Email, u.Username, u.PasswordHash, u.Confirmed, nullableID(u.RoleID), u.Name, u.Location,
		u.AboutMe, u.AvatarHash, u.MemberSince, u.LastSeen)
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
	u.ID = uint64(id)
	return nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, "SELECT "+userColumns+userFrom+" WHERE u.id = ?", id))
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+userFrom+" WHERE u.email = ?", utils.NormalizeEmail(email)))
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, "SELECT "+userColumns+userFrom+" WHERE u.username = ?", username))
}

func (r *UserRepo) EmailTaken(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "SELECT 1 FROM users WHERE email = ? LIMIT 1", utils.NormalizeEmail(email))
}

func (r *UserRepo) UsernameTaken(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "SELECT 1 FROM users WHERE username = ? LIMIT 1", username)
}

func (r *UserRepo) exists(ctx context.Context, q string, args ...any) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, q, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// Update writes every mutable column of u.
func (r *UserRepo) Update(ctx context.Context, u *model.User) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET email = ?, username = ?, password_hash = ?, confirmed = ?, role_id = ?,
			name = ?, location = ?, about_me = ?, avatar_hash = ?, last_seen = ?
		 WHERE id = ?`,
		u.Email, u.Username, u.PasswordHash, u.Confirmed, nullableID(u.RoleID),
		u.Name, u.Location, u.AboutMe, u.AvatarHash, u.LastSeen, u.ID)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Ping stores the last activity time.
func (r *UserRepo) Ping(ctx context.Context, id uint64, now time.Time) error {
	_, err := r.db.ExecContext(ctx, "UPDATE users SET last_seen = ? WHERE id = ?", now.UTC(), id)
	return err
}

func (r *UserRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n)
	return n, err
}

// Nth returns the user at offset n in id order.
func (r *UserRepo) Nth(ctx context.Context, n int) (*model.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+userFrom+" ORDER BY u.id LIMIT 1 OFFSET ?", n))
}

// PostCount returns how many posts the user wrote.
func (r *UserRepo) PostCount(ctx context.Context, id uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts WHERE author_id = ?", id).Scan(&n)
	return n, err
}

// CreateUser registers u: unless a role is already set it assigns the
// Administrator role when the email is adminEmail and the default role
// otherwise, inserts the row and the self-follow edge, all in one
// transaction.
func (s *Store) CreateUser(ctx context.Context, u *model.User, adminEmail string) error {
	err := s.InTx(ctx, func(tx *Store) error {
		if u.Role == nil {
			def, err := tx.Roles.Default(ctx)
			if err != nil {
				return err
			}
			admin, err := tx.Roles.GetByName(ctx, model.RoleAdministrator)
			if err != nil && !errors.Is(err, ErrRoleNotFound) {
				return err
			}
			if admin == nil {
				admin = def
			}
			u.Role = model.ChooseRole(u.Email, adminEmail, admin, def)
		}
		u.RoleID = u.Role.ID
		if u.AvatarHash == "" {
			u.AvatarHash = utils.AvatarHash(u.Email)
		}
		if u.MemberSince.IsZero() {
			u.MemberSince = time.Now().UTC()
		}
		if u.LastSeen.IsZero() {
			u.LastSeen = u.MemberSince
		}
		if err := tx.Users.Insert(ctx, u); err != nil {
			return err
		}
		return tx.Follows.Follow(ctx, u.ID, u.ID, u.MemberSince)
	})
	if err != nil {
		u.ID = 0
	}
	return err
}
