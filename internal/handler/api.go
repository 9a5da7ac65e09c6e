package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flasky/internal/config"
	"github.com/iliyamo/flasky/internal/model"
	"github.com/iliyamo/flasky/internal/repository"
	"github.com/iliyamo/flasky/internal/token"
)

// APIRoot prefixes every JSON API route.
const APIRoot = "/api/v1"

// APIHandler serves the JSON API. Callers are authenticated by
// middleware.BasicAuth before any of these run.
type APIHandler struct {
	Store  *repository.Store
	Tokens *token.Issuer
	Cfg    config.Config
	now    func() time.Time
}

func NewAPIHandler(store *repository.Store, tokens *token.Issuer, cfg config.Config) *APIHandler {
	return &APIHandler{Store: store, Tokens: tokens, Cfg: cfg, now: time.Now}
}

// ----- DTOs -----

type postJSON struct {
	URL          string    `json:"url"`
	Body         string    `json:"body"`
	HTMLBody     string    `json:"html_body"`
	Timestamp    time.Time `json:"timestamp"`
	AuthorURL    string    `json:"author_url"`
	CommentsURL  string    `json:"comments_url"`
	CommentCount int       `json:"comment_count"`
}

type commentJSON struct {
	URL       string    `json:"url"`
	PostURL   string    `json:"post_url"`
	Body      string    `json:"body"`
	HTMLBody  string    `json:"html_body"`
	Timestamp time.Time `json:"timestamp"`
	AuthorURL string    `json:"author_url"`
	Disabled  bool      `json:"disabled"`
}

type userJSON struct {
	URL              string    `json:"url"`
	Username         string    `json:"username"`
	MemberSince      time.Time `json:"member_since"`
	LastSeen         time.Time `json:"last_seen"`
	PostsURL         string    `json:"posts_url"`
	FollowedPostsURL string    `json:"followed_posts_url"`
	FollowersURL     string    `json:"followers_url"`
	FollowingURL     string    `json:"following_url"`
	PostCount        int       `json:"post_count"`
}

type followJSON struct {
	UserURL   string    `json:"user_url"`
	Username  string    `json:"username"`
	Timestamp time.Time `json:"timestamp"`
}

type bodyReq struct {
	Body *string `json:"body"`
}

func postURL(id uint64) string    { return fmt.Sprintf("%s/posts/%d", APIRoot, id) }
func commentURL(id uint64) string { return fmt.Sprintf("%s/comments/%d", APIRoot, id) }
func userURL(id uint64) string    { return fmt.Sprintf("%s/users/%d", APIRoot, id) }

func toPostJSON(p *model.Post) postJSON {
	return postJSON{
		URL:          postURL(p.ID),
		Body:         p.Body(),
		HTMLBody:     p.HTMLBody(),
		Timestamp:    p.Timestamp,
		AuthorURL:    userURL(p.AuthorID),
		CommentsURL:  postURL(p.ID) + "/comments/",
		CommentCount: p.CommentCount,
	}
}

func toCommentJSON(c *model.Comment) commentJSON {
	return commentJSON{
		URL:       commentURL(c.ID),
		PostURL:   postURL(c.PostID),
		Body:      c.Body(),
		HTMLBody:  c.HTMLBody(),
		Timestamp: c.Timestamp,
		AuthorURL: userURL(c.AuthorID),
		Disabled:  c.Disabled,
	}
}

func (h *APIHandler) toUserJSON(ctx context.Context, u *model.User) (userJSON, error) {
	n, err := h.Store.Users.PostCount(ctx, u.ID)
	if err != nil {
		return userJSON{}, err
	}
	base := userURL(u.ID)
	return userJSON{
		URL:              base,
		Username:         u.Username,
		MemberSince:      u.MemberSince,
		LastSeen:         u.LastSeen,
		PostsURL:         base + "/posts/",
		FollowedPostsURL: base + "/timeline/",
		FollowersURL:     base + "/followers/",
		FollowingURL:     base + "/following/",
		PostCount:        n,
	}, nil
}

func toPostsJSON(posts []*model.Post) []postJSON {
	out := make([]postJSON, 0, len(posts))
	for _, p := range posts {
		out = append(out, toPostJSON(p))
	}
	return out
}

func toCommentsJSON(comments []*model.Comment) []commentJSON {
	out := make([]commentJSON, 0, len(comments))
	for _, c := range comments {
		out = append(out, toCommentJSON(c))
	}
	return out
}

func toFollowsJSON(follows []model.Follow) []followJSON {
	out := make([]followJSON, 0, len(follows))
	for _, f := range follows {
		item := followJSON{Timestamp: f.Timestamp}
		if f.User != nil {
			item.UserURL = userURL(f.User.ID)
			item.Username = f.User.Username
		}
		out = append(out, item)
	}
	return out
}

// pageNav is the navigation part of a repository page.
type pageNav interface {
	HasPrev() bool
	HasNext() bool
	PrevNum() int
	NextNum() int
}

// paginated wraps items with relative prev/next links (null at the ends)
// and the total count.
func paginated(key string, items any, path string, p pageNav, total int) echo.Map {
	var prev, next any
	if p.HasPrev() {
		prev = fmt.Sprintf("%s?page=%d", path, p.PrevNum())
	}
	if p.HasNext() {
		next = fmt.Sprintf("%s?page=%d", path, p.NextNum())
	}
	return echo.Map{key: items, "prev": prev, "next": next, "count": total}
}

func badRequest(msg string) error { return echo.NewHTTPError(http.StatusBadRequest, msg) }
