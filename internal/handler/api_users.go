package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flasky/internal/model"
	"github.com/iliyamo/flasky/internal/repository"
)

// userParam loads the user named by the :id path parameter.
func (h *APIHandler) userParam(c echo.Context) (*model.User, error) {
	id, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	return h.Store.Users.GetByID(ctx, id)
}

func (h *APIHandler) GetUser(c echo.Context) error {
	u, err := h.userParam(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	out, err := h.toUserJSON(ctx, u)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// UserPosts lists the posts a user wrote, newest first.
func (h *APIHandler) UserPosts(c echo.Context) error {
	u, err := h.userParam(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	page, err := h.Store.Posts.ListByAuthor(ctx, u.ID, h.postsPage(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, paginated("posts", toPostsJSON(page.Items), userURL(u.ID)+"/posts/", page, page.Total))
}

// UserTimeline lists posts of everyone the user follows, own posts
// included.
func (h *APIHandler) UserTimeline(c echo.Context) error {
	u, err := h.userParam(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	page, err := h.Store.Posts.Timeline(ctx, u.ID, h.postsPage(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, paginated("posts", toPostsJSON(page.Items), userURL(u.ID)+"/timeline/", page, page.Total))
}

func (h *APIHandler) UserFollowers(c echo.Context) error {
	return h.follows(c, "followers", h.Store.Follows.Followers)
}

func (h *APIHandler) UserFollowing(c echo.Context) error {
	return h.follows(c, "following", h.Store.Follows.Following)
}

type followLister func(ctx context.Context, userID uint64, req repository.PageRequest) (repository.Page[model.Follow], error)

// follows lists one side of a user's follow edges, the self edge excluded.
func (h *APIHandler) follows(c echo.Context, key string, list followLister) error {
	u, err := h.userParam(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	req := repository.PageRequest{Page: pageParam(c), PerPage: h.Cfg.FollowersPerPage}
	page, err := list(ctx, u.ID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, paginated(key, toFollowsJSON(page.Items), userURL(u.ID)+"/"+key+"/", page, page.Total))
}
