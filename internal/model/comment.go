package model

import (
	"strings"
	"time"

	"github.com/iliyamo/flasky/internal/markup"
)

// Comment represents a row in the `comments` table. Comments render with
// the inline-only markup policy.
type Comment struct {
	ID        uint64    // comments.id
	AuthorID  uint64    // comments.author_id
	PostID    uint64    // comments.post_id
	Author    *User     // joined from users
	Timestamp time.Time // comments.timestamp
	Disabled  bool      // comments.disabled

	body     string
	htmlBody string
}

func NewComment(authorID, postID uint64, body string, now time.Time) (*Comment, error) {
	c := &Comment{AuthorID: authorID, PostID: postID, Timestamp: now.UTC()}
	if err := c.SetBody(body); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Comment) SetBody(body string) error {
	if strings.TrimSpace(body) == "" {
		return ErrEmptyBody
	}
	c.body = body
	c.htmlBody = markup.Comment(body)
	return nil
}

func (c *Comment) Body() string     { return c.body }
func (c *Comment) HTMLBody() string { return c.htmlBody }

func (c *Comment) Restore(body, htmlBody string) {
	c.body = body
	c.htmlBody = htmlBody
}

func (c *Comment) Disable() { c.Disabled = true }
func (c *Comment) Enable()  { c.Disabled = false }
