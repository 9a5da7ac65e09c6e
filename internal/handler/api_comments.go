package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flasky/internal/middleware"
	"github.com/iliyamo/flasky/internal/model"
	"github.com/iliyamo/flasky/internal/repository"
)

func (h *APIHandler) commentsPage(c echo.Context) repository.PageRequest {
	return repository.PageRequest{Page: pageParam(c), PerPage: h.Cfg.CommentsPerPage}
}

// ListComments returns every comment, newest first.
func (h *APIHandler) ListComments(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	page, err := h.Store.Comments.List(ctx, h.commentsPage(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, paginated("comments", toCommentsJSON(page.Items), APIRoot+"/comments/", page, page.Total))
}

func (h *APIHandler) GetComment(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	cm, err := h.Store.Comments.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toCommentJSON(cm))
}

// PostComments lists the comments of one post, newest first.
func (h *APIHandler) PostComments(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	if _, err := h.Store.Posts.GetByID(ctx, id); err != nil {
		return err
	}
	page, err := h.Store.Comments.ListByPost(ctx, id, repository.NewestFirst, h.commentsPage(c))
	if err != nil {
		return err
	}
	path := fmt.Sprintf("%s/posts/%d/comments/", APIRoot, id)
	return c.JSON(http.StatusOK, paginated("comments", toCommentsJSON(page.Items), path, page, page.Total))
}

// NewPostComment adds a comment by the caller to a post.
func (h *APIHandler) NewPostComment(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	post, err := h.Store.Posts.GetByID(ctx, id)
	if err != nil {
		return err
	}

	var req bodyReq
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid JSON body")
	}
	if req.Body == nil {
		return badRequest("comment does not have a body")
	}
	u, _ := middleware.CurrentUser(c)
	cm, err := model.NewComment(u.ID, post.ID, *req.Body, h.now())
	if errors.Is(err, model.ErrEmptyBody) {
		return badRequest("comment does not have a body")
	}
	if err != nil {
		return err
	}
	cm.Author = u
	if err := h.Store.Comments.Create(ctx, cm); err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderLocation, commentURL(cm.ID))
	return c.JSON(http.StatusCreated, toCommentJSON(cm))
}
