package handler

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flasky/internal/middleware"
	"github.com/iliyamo/flasky/internal/model"
	"github.com/iliyamo/flasky/internal/repository"
	"github.com/iliyamo/flasky/internal/utils"
	"github.com/iliyamo/flasky/internal/view"
)

// User shows a profile page with the user's posts.
func (h *WebHandler) User(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	u, err := h.Store.Users.GetByUsername(ctx, c.Param("username"))
	if err != nil {
		return err
	}
	page, err := h.Store.Posts.ListByAuthor(ctx, u.ID, repository.PageRequest{Page: pageParam(c), PerPage: h.Cfg.PostsPerPage})
	if err != nil {
		return err
	}
	followers, err := h.Store.Follows.CountFollowers(ctx, u.ID)
	if err != nil {
		return err
	}
	following, err := h.Store.Follows.CountFollowing(ctx, u.ID)
	if err != nil {
		return err
	}

	data := echo.Map{
		"user":       u,
		"posts":      page.Items,
		"post_count": page.Total,
		"followers":  followers,
		"following":  following,
		"pager":      view.NewPager(page, page.Page, "/user/"+u.Username, ""),
	}
	if me, ok := middleware.CurrentUser(c); ok {
		if data["is_following"], err = h.Store.Follows.IsFollowing(ctx, me, u); err != nil {
			return err
		}
		if data["follows_you"], err = h.Store.Follows.IsFollowedBy(ctx, me, u); err != nil {
			return err
		}
	}
	return h.render(c, "user", data)
}

// EditProfile lets users change their own name, location and about text.
func (h *WebHandler) EditProfile(c echo.Context) error {
	u := currentUser(c)
	form := newForm(nil)
	if isPost(c) {
		var err error
		if form, err = formFrom(c); err != nil {
			return err
		}
		form.MaxLength(64, "name", "location")
		if form.Valid() {
			u.Name, u.Location, u.AboutMe = form.Trimmed("name"), form.Trimmed("location"), form.Get("about_me")
			ctx, cancel := requestContext(c)
			defer cancel()
			if err := h.Store.Users.Update(ctx, u); err != nil {
				return err
			}
			h.flash(c, "Your profile has been updated.")
			return redirect(c, "/user/"+u.Username)
		}
	} else {
		form.Set("name", u.Name)
		form.Set("location", u.Location)
		form.Set("about_me", u.AboutMe)
	}
	return h.render(c, "edit_profile", echo.Map{"form": form})
}

// EditProfileAdmin lets administrators edit any account, including its
// email, username, confirmation state and role.
func (h *WebHandler) EditProfileAdmin(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	u, err := h.Store.Users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	roles, err := h.Store.Roles.List(ctx)
	if err != nil {
		return err
	}

	form := newForm(nil)
	if isPost(c) {
		if form, err = formFrom(c); err != nil {
			return err
		}
		if err := h.applyAdminForm(c, form, u); err != nil {
			return err
		}
		if form.Valid() {
			h.flash(c, "The profile has been updated.")
			return redirect(c, "/user/"+u.Username)
		}
	} else {
		form.Set("email", u.Email)
		form.Set("username", u.Username)
		if u.Confirmed {
			form.Set("confirmed", "y")
		}
		form.Set("role", strconv.FormatUint(u.RoleID, 10))
		form.Set("name", u.Name)
		form.Set("location", u.Location)
		form.Set("about_me", u.AboutMe)
	}
	return h.render(c, "edit_profile", echo.Map{"form": form, "admin": true, "roles": roles})
}

// applyAdminForm validates the admin form and saves u when it is valid.
// Validation problems are recorded on form, not returned.
func (h *WebHandler) applyAdminForm(c echo.Context, form *Form, u *model.User) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	form.Required("email", "username")
	form.MaxLength(64, "email", "username", "name", "location")
	email := utils.NormalizeEmail(form.Get("email"))
	username := form.Trimmed("username")
	if email != "" && model.ValidateEmail(email) != nil {
		form.Fail("email", "Invalid email address.")
	}
	if username != "" && model.ValidateUsername(username) != nil {
		form.Fail("username", "Usernames must have only letters, numbers, dots or underscores")
	}
	if form.Error("email") == "" && email != u.Email {
		taken, err := h.Store.Users.EmailTaken(ctx, email)
		if err != nil {
			return err
		}
		if taken {
			form.Fail("email", "Email already registered.")
		}
	}
	if form.Error("username") == "" && username != u.Username {
		taken, err := h.Store.Users.UsernameTaken(ctx, username)
		if err != nil {
			return err
		}
		if taken {
			form.Fail("username", "Username already in use.")
		}
	}
	var role *model.Role
	if roleID, err := strconv.ParseUint(form.Get("role"), 10, 64); err != nil {
		form.Fail("role", "Not a valid choice.")
	} else if role, err = h.Store.Roles.GetByID(ctx, roleID); errors.Is(err, repository.ErrRoleNotFound) {
		form.Fail("role", "Not a valid choice.")
	} else if err != nil {
		return err
	}
	if !form.Valid() {
		return nil
	}

	next := *u
	next.SetEmail(email)
	next.Username = username
	next.Confirmed = form.Checked("confirmed")
	next.Role, next.RoleID = role, role.ID
	next.Name, next.Location, next.AboutMe = form.Trimmed("name"), form.Trimmed("location"), form.Get("about_me")
	if err := h.Store.Users.Update(ctx, &next); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			form.Fail("email", "Email already registered.")
			return nil
		}
		return err
	}
	*u = next
	return nil
}

// Follow makes the current user follow username.
func (h *WebHandler) Follow(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	me := currentUser(c)
	u, err := h.Store.Users.GetByUsername(ctx, c.Param("username"))
	if errors.Is(err, repository.ErrUserNotFound) {
		h.flash(c, "Invalid user.")
		return redirect(c, "/")
	}
	if err != nil {
		return err
	}
	following, err := h.Store.Follows.IsFollowing(ctx, me, u)
	if err != nil {
		return err
	}
	if following {
		h.flash(c, "You already following this user.")
		return redirect(c, "/user/"+u.Username)
	}
	if err := h.Store.Follows.Follow(ctx, me.ID, u.ID, h.now()); err != nil {
		return err
	}
	h.flash(c, fmt.Sprintf("You are now following %s.", u.Username))
	return redirect(c, "/user/"+u.Username)
}

// Unfollow removes the edge from the current user to username.
func (h *WebHandler) Unfollow(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	me := currentUser(c)
	u, err := h.Store.Users.GetByUsername(ctx, c.Param("username"))
	if errors.Is(err, repository.ErrUserNotFound) {
		h.flash(c, "Invalid user.")
		return redirect(c, "/")
	}
	if err != nil {
		return err
	}
	following, err := h.Store.Follows.IsFollowing(ctx, me, u)
	if err != nil {
		return err
	}
	if !following {
		h.flash(c, "You already unfollowing this user.")
		return redirect(c, "/user/"+u.Username)
	}
	switch err := h.Store.Follows.Unfollow(ctx, me.ID, u.ID); {
	case errors.Is(err, repository.ErrSelfUnfollow):
		h.flash(c, "You cannot unfollow yourself.")
	case err != nil:
		return err
	default:
		h.flash(c, fmt.Sprintf("You are not following %s anymore.", u.Username))
	}
	return redirect(c, "/user/"+u.Username)
}

// Followers lists who follows username.
func (h *WebHandler) Followers(c echo.Context) error {
	return h.followPage(c, "Followers of", "/followers/", h.Store.Follows.Followers)
}

// FollowedBy lists whom username follows.
func (h *WebHandler) FollowedBy(c echo.Context) error {
	return h.followPage(c, "Followed by", "/followed_by/", h.Store.Follows.Following)
}

func (h *WebHandler) followPage(c echo.Context, title, prefix string, list followLister) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	u, err := h.Store.Users.GetByUsername(ctx, c.Param("username"))
	if errors.Is(err, repository.ErrUserNotFound) {
		h.flash(c, "Invalid user.")
		return redirect(c, "/")
	}
	if err != nil {
		return err
	}
	page, err := list(ctx, u.ID, repository.PageRequest{Page: pageParam(c), PerPage: h.Cfg.FollowersPerPage})
	if err != nil {
		return err
	}
	return h.render(c, "followers", echo.Map{
		"title":   title,
		"user":    u,
		"follows": page.Items,
		"pager":   view.NewPager(page, page.Page, prefix+u.Username, ""),
	})
}
