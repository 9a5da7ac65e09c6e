package model

import (
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/flasky/internal/markup"
)

// ErrEmptyBody is returned when a post or comment has no text.
var ErrEmptyBody = errors.New("body is empty")

// Post represents a row in the `posts` table. Body and its rendered HTML are
// kept private so they can only change together through SetBody.
type Post struct {
	ID           uint64    // posts.id
	AuthorID     uint64    // posts.author_id
	Author       *User     // joined from users
	Timestamp    time.Time // posts.timestamp
	CommentCount int       // derived

	body     string
	htmlBody string
}

// NewPost builds an unsaved post with its HTML rendered.
func NewPost(authorID uint64, body string, now time.Time) (*Post, error) {
	p := &Post{AuthorID: authorID, Timestamp: now.UTC()}
	if err := p.SetBody(body); err != nil {
		return nil, err
	}
	return p, nil
}

// SetBody replaces the Markdown source and re-renders the sanitized HTML.
func (p *Post) SetBody(body string) error {
	if strings.TrimSpace(body) == "" {
		return ErrEmptyBody
	}
	p.body = body
	p.htmlBody = markup.Post(body)
	return nil
}

func (p *Post) Body() string     { return p.body }
func (p *Post) HTMLBody() string { return p.htmlBody }

// Restore loads both stored fields as they were persisted.
func (p *Post) Restore(body, htmlBody string) {
	p.body = body
	p.htmlBody = htmlBody
}

// EditableBy reports whether id may change the post: its author or an
// administrator.
func (p *Post) EditableBy(id Identity) bool {
	u, ok := id.User()
	if !ok {
		return false
	}
	return u.ID == p.AuthorID || u.IsAdministrator()
}
