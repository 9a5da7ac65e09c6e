package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flasky/internal/middleware"
	"github.com/iliyamo/flasky/internal/model"
	"github.com/iliyamo/flasky/internal/repository"
	"github.com/iliyamo/flasky/internal/view"
)

const showFollowedCookie = "show_followed"

// Index shows all posts, or the followed timeline when the visitor chose
// it, and accepts new posts from writers.
func (h *WebHandler) Index(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	id := middleware.CurrentIdentity(c)

	form := newForm(nil)
	if isPost(c) && id.Can(model.PermWrite) {
		var err error
		if form, err = formFrom(c); err != nil {
			return err
		}
		form.Required("body")
		if form.Valid() {
			p, err := model.NewPost(id.ID(), form.Get("body"), h.now())
			if err != nil {
				return err
			}
			if err := h.Store.Posts.Create(ctx, p); err != nil {
				return err
			}
			return redirect(c, "/")
		}
	}

	showFollowed := false
	if !id.IsAnonymous() {
		if ck, err := c.Cookie(showFollowedCookie); err == nil {
			showFollowed = ck.Value == "1"
		}
	}
	req := repository.PageRequest{Page: pageParam(c), PerPage: h.Cfg.PostsPerPage}
	var (
		page repository.Page[*model.Post]
		err  error
	)
	if showFollowed {
		page, err = h.Store.Posts.Timeline(ctx, id.ID(), req)
	} else {
		page, err = h.Store.Posts.List(ctx, req)
	}
	if err != nil {
		return err
	}
	return h.render(c, "index", echo.Map{
		"form":          form,
		"posts":         page.Items,
		"pager":         view.NewPager(page, page.Page, "/", ""),
		"show_followed": showFollowed,
	})
}

// ShowAll and ShowFollowed pick the index listing for 30 days.
func (h *WebHandler) ShowAll(c echo.Context) error      { return h.setShowFollowed(c, "") }
func (h *WebHandler) ShowFollowed(c echo.Context) error { return h.setShowFollowed(c, "1") }

func (h *WebHandler) setShowFollowed(c echo.Context, value string) error {
	c.SetCookie(&http.Cookie{
		Name:     showFollowedCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   int((30 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return redirect(c, "/")
}

// Post shows one post with its comments, oldest first. page=-1 jumps to
// the last page, where a freshly published comment lands.
func (h *WebHandler) Post(c echo.Context) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	post, err := h.Store.Posts.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	id := middleware.CurrentIdentity(c)

	form := newForm(nil)
	if isPost(c) && id.Can(model.PermComment) {
		if form, err = formFrom(c); err != nil {
			return err
		}
		form.Required("body")
		if form.Valid() {
			cm, err := model.NewComment(id.ID(), post.ID, form.Get("body"), h.now())
			if err != nil {
				return err
			}
			if err := h.Store.Comments.Create(ctx, cm); err != nil {
				return err
			}
			h.flash(c, "Your comment has been published.")
			return redirect(c, fmt.Sprintf("/post/%d?page=-1", post.ID))
		}
	}

	perPage := h.Cfg.CommentsPerPage
	pageNum := pageParam(c)
	if pageNum == -1 {
		n, err := h.Store.Comments.CountByPost(ctx, post.ID)
		if err != nil {
			return err
		}
		pageNum = (n-1)/perPage + 1
	}
	page, err := h.Store.Comments.ListByPost(ctx, post.ID, repository.OldestFirst,
		repository.PageRequest{Page: pageNum, PerPage: perPage})
	if err != nil {
		return err
	}
	return h.render(c, "post", echo.Map{
		"form":     form,
		"posts":    []*model.Post{post},
		"comments": page.Items,
		"pager":    view.NewPager(page, page.Page, fmt.Sprintf("/post/%d", post.ID), "#comments"),
	})
}

// EditPost lets the author or an administrator change a post.
func (h *WebHandler) EditPost(c echo.Context) error {
	postID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	post, err := h.Store.Posts.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if !post.EditableBy(middleware.CurrentIdentity(c)) {
		return repository.ErrForbidden
	}

	form := newForm(nil)
	next := c.QueryParam("next")
	if isPost(c) {
		if form, err = formFrom(c); err != nil {
			return err
		}
		next = form.Get("next")
		form.Required("body")
		if form.Valid() {
			if err := post.SetBody(form.Get("body")); err != nil {
				return err
			}
			if err := h.Store.Posts.UpdateBody(ctx, post); err != nil {
				return err
			}
			h.flash(c, "The post has been updated.")
			if target := safeNext(next); target != "" {
				return redirect(c, target)
			}
			return redirect(c, fmt.Sprintf("/post/%d", post.ID))
		}
	} else {
		form.Set("body", post.Body())
	}
	return h.render(c, "edit_post", echo.Map{"form": form, "next": safeNext(next)})
}

// Moderate lists every comment, newest first, with enable/disable links.
func (h *WebHandler) Moderate(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	page, err := h.Store.Comments.List(ctx, repository.PageRequest{Page: pageParam(c), PerPage: h.Cfg.CommentsPerPage})
	if err != nil {
		return err
	}
	return h.render(c, "moderate", echo.Map{
		"comments": page.Items,
		"page":     page.Page,
		"pager":    view.NewPager(page, page.Page, "/moderate", ""),
	})
}

func (h *WebHandler) ModerateEnable(c echo.Context) error  { return h.setDisabled(c, false) }
func (h *WebHandler) ModerateDisable(c echo.Context) error { return h.setDisabled(c, true) }

func (h *WebHandler) setDisabled(c echo.Context, disabled bool) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	if err := h.Store.Comments.SetDisabled(ctx, id, disabled); err != nil {
		return err
	}
	page := pageParam(c)
	if page < 1 {
		page = 1
	}
	return redirect(c, fmt.Sprintf("/moderate?page=%d", page))
}
