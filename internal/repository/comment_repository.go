package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/flasky/internal/model"
)

// CommentRepo encapsulates all queries on the comments table.
type CommentRepo struct {
	db DBTX
}

// Order selects the timestamp direction of comment listings.
type Order int

const (
	NewestFirst Order = iota
	OldestFirst
)

func (o Order) sql() string {
	if o == OldestFirst {
		return " ORDER BY c.timestamp ASC, c.id ASC"
	}
	return " ORDER BY c.timestamp DESC, c.id DESC"
}

const commentSelect = `SELECT c.id, c.body, c.body_html, c.timestamp, c.disabled, c.author_id, c.post_id, ` +
	userColumns + `
	FROM comments c JOIN users u ON u.id = c.author_id LEFT JOIN roles r ON r.id = u.role_id`

func scanComment(row scanner) (*model.Comment, error) {
	var (
		c          model.Comment
		body, html string
		s          userScan
	)
	dest := append([]any{&c.ID, &body, &html, &c.Timestamp, &c.Disabled, &c.AuthorID, &c.PostID}, s.dest()...)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCommentNotFound
		}
		return nil, err
	}
	c.Restore(body, html)
	c.Author = s.user()
	return &c, nil
}

// Create inserts c and sets its ID.
func (r *CommentRepo) Create(ctx context.Context, c *model.Comment) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO comments (body, body_html, timestamp, disabled, author_id, post_id) VALUES (?, ?, ?, ?, ?, ?)",
		c.Body(), c.HTMLBody(), c.Timestamp, c.Disabled, c.AuthorID, c.PostID)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	return nil
}

func (r *CommentRepo) GetByID(ctx context.Context, id uint64) (*model.Comment, error) {
	return scanComment(r.db.QueryRowContext(ctx, commentSelect+" WHERE c.id = ?", id))
}

// List returns every comment, newest first.
func (r *CommentRepo) List(ctx context.Context, req PageRequest) (Page[*model.Comment], error) {
	return r.page(ctx, req, "SELECT COUNT(*) FROM comments", commentSelect+NewestFirst.sql())
}

// ListByPost returns the comments of one post in the given order.
func (r *CommentRepo) ListByPost(ctx context.Context, postID uint64, order Order, req PageRequest) (Page[*model.Comment], error) {
	return r.page(ctx, req,
		"SELECT COUNT(*) FROM comments WHERE post_id = ?",
		commentSelect+" WHERE c.post_id = ?"+order.sql(), postID)
}

// SetDisabled hides or shows a comment.
func (r *CommentRepo) SetDisabled(ctx context.Context, id uint64, disabled bool) error {
	res, err := r.db.ExecContext(ctx, "UPDATE comments SET disabled = ? WHERE id = ?", disabled, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCommentNotFound
	}
	return nil
}

func (r *CommentRepo) CountByPost(ctx context.Context, postID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM comments WHERE post_id = ?", postID).Scan(&n)
	return n, err
}

func (r *CommentRepo) page(ctx context.Context, req PageRequest, countQ, listQ string, args ...any) (Page[*model.Comment], error) {
	req = req.normalize()
	var total int
	if err := r.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return Page[*model.Comment]{}, err
	}
	rows, err := r.db.QueryContext(ctx, listQ+" LIMIT ? OFFSET ?", append(args, req.PerPage, req.offset())...)
	if err != nil {
		return Page[*model.Comment]{}, err
	}
	defer rows.Close()
	var items []*model.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return Page[*model.Comment]{}, err
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return Page[*model.Comment]{}, err
	}
	return newPage(req, items, total), nil
}
