package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flasky/internal/middleware"
	"github.com/iliyamo/flasky/internal/model"
	"github.com/iliyamo/flasky/internal/repository"
)

func (h *APIHandler) postsPage(c echo.Context) repository.PageRequest {
	return repository.PageRequest{Page: pageParam(c), PerPage: h.Cfg.PostsPerPage}
}

// ListPosts returns every post, newest first.
func (h *APIHandler) ListPosts(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	page, err := h.Store.Posts.List(ctx, h.postsPage(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, paginated("posts", toPostsJSON(page.Items), APIRoot+"/posts/", page, page.Total))
}

func (h *APIHandler) GetPost(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	p, err := h.Store.Posts.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toPostJSON(p))
}

// NewPost publishes a post for the caller and answers 201 with its URL in
// the Location header.
func (h *APIHandler) NewPost(c echo.Context) error {
	var req bodyReq
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid JSON body")
	}
	if req.Body == nil {
		return badRequest("post does not have a body")
	}
	u, _ := middleware.CurrentUser(c)
	p, err := model.NewPost(u.ID, *req.Body, h.now())
	if errors.Is(err, model.ErrEmptyBody) {
		return badRequest("post does not have a body")
	}
	if err != nil {
		return err
	}
	p.Author = u

	ctx, cancel := requestContext(c)
	defer cancel()
	if err := h.Store.Posts.Create(ctx, p); err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderLocation, postURL(p.ID))
	return c.JSON(http.StatusCreated, toPostJSON(p))
}

// EditPost replaces the body of a post. Only the author or an
// administrator may edit; an absent body leaves the post unchanged.
func (h *APIHandler) EditPost(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	p, err := h.Store.Posts.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !p.EditableBy(middleware.CurrentIdentity(c)) {
		return middleware.ErrInsufficientPermissions
	}

	var req bodyReq
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid JSON body")
	}
	if req.Body != nil {
		if err := p.SetBody(*req.Body); err != nil {
			return badRequest("post does not have a body")
		}
		if err := h.Store.Posts.UpdateBody(ctx, p); err != nil {
			return err
		}
	}
	return c.JSON(http.StatusOK, toPostJSON(p))
}
