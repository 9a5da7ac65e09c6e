package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/flasky/internal/model"
)

// PostRepo encapsulates all queries on the posts table. Reads hydrate the
// author and the comment count.
type PostRepo struct {
	db DBTX
}

const postSelect = `SELECT p.id, p.body, p.body_html, p.timestamp, p.author_id,
		(SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id), ` + userColumns + `
	FROM posts p JOIN users u ON u.id = p.author_id LEFT JOIN roles r ON r.id = u.role_id`

const postOrder = " ORDER BY p.timestamp DESC, p.id DESC"

func scanPost(row scanner) (*model.Post, error) {
	var (
		p          model.Post
		body, html string
		s          userScan
	)
	dest := append([]any{&p.ID, &body, &html, &p.Timestamp, &p.AuthorID, &p.CommentCount}, s.dest()...)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	p.Restore(body, html)
	p.Author = s.user()
	return &p, nil
}

// Create inserts p and sets its ID.
func (r *PostRepo) Create(ctx context.Context, p *model.Post) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO posts (body, body_html, timestamp, author_id) VALUES (?, ?, ?, ?)",
		p.Body(), p.HTMLBody(), p.Timestamp, p.AuthorID)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// UpdateBody stores the body and its rendered HTML together.
func (r *PostRepo) UpdateBody(ctx context.Context, p *model.Post) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE posts SET body = ?, body_html = ? WHERE id = ?", p.Body(), p.HTMLBody(), p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPostNotFound
	}
	return nil
}

func (r *PostRepo) GetByID(ctx context.Context, id uint64) (*model.Post, error) {
	return scanPost(r.db.QueryRowContext(ctx, postSelect+" WHERE p.id = ?", id))
}

// List returns all posts, newest first.
func (r *PostRepo) List(ctx context.Context, req PageRequest) (Page[*model.Post], error) {
	return r.page(ctx, req, "SELECT COUNT(*) FROM posts", postSelect+postOrder)
}

// ListByAuthor returns the posts written by authorID, newest first.
func (r *PostRepo) ListByAuthor(ctx context.Context, authorID uint64, req PageRequest) (Page[*model.Post], error) {
	return r.page(ctx, req,
		"SELECT COUNT(*) FROM posts WHERE author_id = ?",
		postSelect+" WHERE p.author_id = ?"+postOrder, authorID)
}

// Timeline returns posts by every user userID follows, which includes
// userID's own posts through the self edge.
func (r *PostRepo) Timeline(ctx context.Context, userID uint64, req PageRequest) (Page[*model.Post], error) {
	return r.page(ctx, req,
		"SELECT COUNT(*) FROM posts p JOIN follows f ON f.followed_id = p.author_id WHERE f.follower_id = ?",
		postSelect+" JOIN follows f ON f.followed_id = p.author_id WHERE f.follower_id = ?"+postOrder, userID)
}

func (r *PostRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts").Scan(&n)
	return n, err
}

func (r *PostRepo) page(ctx context.Context, req PageRequest, countQ, listQ string, args ...any) (Page[*model.Post], error) {
	req = req.normalize()
	var total int
	if err := r.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return Page[*model.Post]{}, err
	}
	rows, err := r.db.QueryContext(ctx, listQ+" LIMIT ? OFFSET ?", append(args, req.PerPage, req.offset())...)
	if err != nil {
		return Page[*model.Post]{}, err
	}
	defer rows.Close()
	var items []*model.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return Page[*model.Post]{}, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return Page[*model.Post]{}, err
	}
	return newPage(req, items, total), nil
}
