package repository

import (
	"context"
	"time"

	"github.com/iliyamo/flasky/internal/model"
)

// FollowRepo manages the directed follows graph. Every user keeps an edge
// to themselves; listings and counts leave that edge out.
type FollowRepo struct {
	db DBTX
}

// Follow adds the edge follower -> followed unless it already exists.
func (r *FollowRepo) Follow(ctx context.Context, followerID, followedID uint64, now time.Time) error {
	if followerID == 0 || followedID == 0 {
		return ErrUnsaved
	}
	exists, err := r.exists(ctx, followerID, followedID)
	if err != nil || exists {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		"INSERT INTO follows (follower_id, followed_id, timestamp) VALUES (?, ?, ?)",
		followerID, followedID, now.UTC())
	if isDuplicate(err) {
		return nil
	}
	return err
}

// Unfollow removes the edge if present. The self edge cannot be removed.
func (r *FollowRepo) Unfollow(ctx context.Context, followerID, followedID uint64) error {
	if followerID == followedID {
		return ErrSelfUnfollow
	}
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM follows WHERE follower_id = ? AND followed_id = ?", followerID, followedID)
	return err
}

// IsFollowing reports whether follower follows followed. It returns
// ErrUnsaved rather than false when either user has no id.
func (r *FollowRepo) IsFollowing(ctx context.Context, follower, followed *model.User) (bool, error) {
	if follower == nil || followed == nil || follower.ID == 0 || followed.ID == 0 {
		return false, ErrUnsaved
	}
	return r.exists(ctx, follower.ID, followed.ID)
}

// IsFollowedBy reports whether other follows u.
func (r *FollowRepo) IsFollowedBy(ctx context.Context, u, other *model.User) (bool, error) {
	return r.IsFollowing(ctx, other, u)
}

func (r *FollowRepo) exists(ctx context.Context, followerID, followedID uint64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM follows WHERE follower_id = ? AND followed_id = ?",
		followerID, followedID).Scan(&n)
	return n > 0, err
}

// Followers lists who follows userID, newest edge first.
func (r *FollowRepo) Followers(ctx context.Context, userID uint64, req PageRequest) (Page[model.Follow], error) {
	return r.list(ctx, userID, req, "f.follower_id", "f.followed_id")
}

// Following lists whom userID follows, newest edge first.
func (r *FollowRepo) Following(ctx context.Context, userID uint64, req PageRequest) (Page[model.Follow], error) {
	return r.list(ctx, userID, req, "f.followed_id", "f.follower_id")
}

func (r *FollowRepo) list(ctx context.Context, userID uint64, req PageRequest, otherCol, selfCol string) (Page[model.Follow], error) {
	req = req.normalize()
	total, err := r.count(ctx, userID, otherCol, selfCol)
	if err != nil {
		return Page[model.Follow]{}, err
	}
	q := "SELECT f.follower_id, f.followed_id, f.timestamp, " + userColumns +
		" FROM follows f JOIN users u ON u.id = " + otherCol +
		" LEFT JOIN roles r ON r.id = u.role_id" +
		" WHERE " + selfCol + " = ? AND " + otherCol + " <> ?" +
		" ORDER BY f.timestamp DESC, u.id DESC LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, q, userID, userID, req.PerPage, req.offset())
	if err != nil {
		return Page[model.Follow]{}, err
	}
	defer rows.Close()
	var items []model.Follow
	for rows.Next() {
		var f model.Follow
		var s userScan
		dest := append([]any{&f.FollowerID, &f.FollowedID, &f.Timestamp}, s.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return Page[model.Follow]{}, err
		}
		f.User = s.user()
		items = append(items, f)
	}
	if err := rows.Err(); err != nil {
		return Page[model.Follow]{}, err
	}
	return newPage(req, items, total), nil
}

// CountFollowers excludes the self edge.
func (r *FollowRepo) CountFollowers(ctx context.Context, userID uint64) (int, error) {
	return r.count(ctx, userID, "f.follower_id", "f.followed_id")
}

// CountFollowing excludes the self edge.
func (r *FollowRepo) CountFollowing(ctx context.Context, userID uint64) (int, error) {
	return r.count(ctx, userID, "f.followed_id", "f.follower_id")
}

func (r *FollowRepo) count(ctx context.Context, userID uint64, otherCol, selfCol string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM follows f WHERE "+selfCol+" = ? AND "+otherCol+" <> ?",
		userID, userID).Scan(&n)
	return n, err
}

// Count returns the raw number of edges, self edges included.
func (r *FollowRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM follows").Scan(&n)
	return n, err
}
