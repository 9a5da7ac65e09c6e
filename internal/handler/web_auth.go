package handler

import (
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flasky/internal/middleware"
	"github.com/iliyamo/flasky/internal/model"
	"github.com/iliyamo/flasky/internal/service"
)

const (
	confirmPath     = "/auth/confirm/"
	resetPath       = "/auth/reset/"
	changeEmailPath = "/auth/change-email/"

	passwordTooLong = "Passwords cannot be longer than 72 bytes."
)

// accountFormError moves a service validation error onto the matching form
// field. It reports false for errors the form cannot show.
func accountFormError(form *Form, err error) bool {
	switch {
	case errors.Is(err, service.ErrEmailTaken):
		form.Fail("email", "Email already registered.")
	case errors.Is(err, service.ErrUsernameTaken):
		form.Fail("username", "Username already in use.")
	case errors.Is(err, model.ErrInvalidEmail):
		form.Fail("email", "Invalid email address.")
	case errors.Is(err, model.ErrInvalidUsername), errors.Is(err, model.ErrFieldTooLong):
		form.Fail("username", "Usernames must have only letters, numbers, dots or underscores")
	case errors.Is(err, service.ErrInvalidCredentials):
		form.Fail("password", "Invalid password.")
	case errors.Is(err, model.ErrPasswordTooLong):
		form.Fail("password", passwordTooLong)
	default:
		return false
	}
	return true
}

// validEmail checks the email field after Required.
func validEmail(form *Form) {
	if form.Error("email") == "" && model.ValidateEmail(form.Trimmed("email")) != nil {
		form.Fail("email", "Invalid email address.")
	}
}

func (h *WebHandler) Login(c echo.Context) error {
	form := newForm(nil)
	next := safeNext(c.QueryParam("next"))
	if isPost(c) {
		var err error
		if form, err = formFrom(c); err != nil {
			return err
		}
		if n := safeNext(form.Get("next")); n != "" {
			next = n
		}
		form.Required("email", "password")
		validEmail(form)
		if form.Valid() {
			ctx, cancel := requestContext(c)
			defer cancel()
			u, err := h.Accounts.Authenticate(ctx, form.Trimmed("email"), form.Get("password"))
			switch {
			case errors.Is(err, service.ErrInvalidCredentials):
				h.flash(c, "Invalid email or password.")
			case err != nil:
				return err
			default:
				if err := middleware.LogIn(ctx, h.Sessions, u, form.Checked("remember_me")); err != nil {
					return err
				}
				if next == "" {
					next = "/"
				}
				return redirect(c, next)
			}
		}
	}
	return h.render(c, "auth/login", echo.Map{"form": form, "next": next})
}

func (h *WebHandler) Logout(c echo.Context) error {
	if err := middleware.LogOut(c.Request().Context(), h.Sessions); err != nil {
		return err
	}
	h.flash(c, "You have been logged out.")
	return redirect(c, "/")
}

func (h *WebHandler) Register(c echo.Context) error {
	form := newForm(nil)
	if isPost(c) {
		var err error
		if form, err = formFrom(c); err != nil {
			return err
		}
		form.Required("email", "username", "password", "password2")
		form.MaxLength(64, "email", "username")
		validEmail(form)
		form.EqualTo("password", "password2", "Passwords must match.")
		if form.Valid() {
			ctx, cancel := requestContext(c)
			defer cancel()
			_, err := h.Accounts.Register(ctx, service.RegisterInput{
				Email:    form.Trimmed("email"),
				Username: form.Trimmed("username"),
				Password: form.Get("password"),
			}, link(c, confirmPath))
			if err == nil {
				h.flash(c, "A confirmation email has been sent to you by email.")
				return redirect(c, "/auth/login")
			}
			if !accountFormError(form, err) {
				return err
			}
		}
	}
	return h.render(c, "auth/register", echo.Map{"form": form})
}

// Confirm redeems a confirmation token for the logged-in user.
func (h *WebHandler) Confirm(c echo.Context) error {
	u := currentUser(c)
	if u.Confirmed {
		return redirect(c, "/")
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	ok, err := h.Accounts.Confirm(ctx, u, c.Param("token"))
	if err != nil {
		return err
	}
	if ok {
		h.flash(c, "You have confirmed your account. Thanks!")
	} else {
		h.flash(c, "The confirmation link is invalid or has expired.")
	}
	return redirect(c, "/")
}

func (h *WebHandler) ResendConfirmation(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	if err := h.Accounts.ResendConfirmation(ctx, currentUser(c), link(c, confirmPath)); err != nil {
		return err
	}
	h.flash(c, "A new confirmation email has been sent to you by email.")
	return redirect(c, "/")
}

// Unconfirmed is where middleware.SessionUser sends users who still have to
// confirm their address.
func (h *WebHandler) Unconfirmed(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok || u.Confirmed {
		return redirect(c, "/")
	}
	return h.render(c, "auth/unconfirmed", nil)
}

func (h *WebHandler) ChangePassword(c echo.Context) error {
	form := newForm(nil)
	if isPost(c) {
		var err error
		if form, err = formFrom(c); err != nil {
			return err
		}
		form.Required("old_password", "password", "password2")
		form.EqualTo("password", "password2", "Passwords must match.")
		if form.Valid() {
			ctx, cancel := requestContext(c)
			defer cancel()
			err := h.Accounts.ChangePassword(ctx, currentUser(c), form.Get("old_password"), form.Get("password"))
			switch {
			case errors.Is(err, service.ErrInvalidCredentials):
				h.flash(c, "Invalid password.")
			case errors.Is(err, model.ErrPasswordTooLong):
				form.Fail("password", passwordTooLong)
			case err != nil:
				return err
			default:
				h.flash(c, "Your password has been updated.")
				return redirect(c, "/")
			}
		}
	}
	return h.render(c, "auth/change_password", echo.Map{"form": form})
}

// PasswordResetRequest mails a reset link. Unknown addresses get the same
// answer as known ones.
func (h *WebHandler) PasswordResetRequest(c echo.Context) error {
	if !middleware.CurrentIdentity(c).IsAnonymous() {
		return redirect(c, "/")
	}
	form := newForm(nil)
	if isPost(c) {
		var err error
		if form, err = formFrom(c); err != nil {
			return err
		}
		form.Required("email")
		validEmail(form)
		if form.Valid() {
			ctx, cancel := requestContext(c)
			defer cancel()
			if err := h.Accounts.RequestPasswordReset(ctx, form.Trimmed("email"), link(c, resetPath)); err != nil {
				return err
			}
			h.flash(c, "An email with instructions to reset your password has been sent to you.")
			return redirect(c, "/auth/login")
		}
	}
	return h.render(c, "auth/reset_request", echo.Map{"form": form})
}

func (h *WebHandler) PasswordReset(c echo.Context) error {
	if !middleware.CurrentIdentity(c).IsAnonymous() {
		return redirect(c, "/")
	}
	form := newForm(nil)
	if isPost(c) {
		var err error
		if form, err = formFrom(c); err != nil {
			return err
		}
		form.Required("password", "password2")
		form.EqualTo("password", "password2", "Passwords must match.")
		if form.Valid() {
			ctx, cancel := requestContext(c)
			defer cancel()
			ok, err := h.Accounts.ResetPassword(ctx, c.Param("token"), form.Get("password"))
			switch {
			case errors.Is(err, model.ErrPasswordTooLong):
				form.Fail("password", passwordTooLong)
			case err != nil:
				return err
			case ok:
				h.flash(c, "Your password has been updated.")
				return redirect(c, "/auth/login")
			default:
				return redirect(c, "/")
			}
		}
	}
	return h.render(c, "auth/reset_password", echo.Map{"form": form})
}

func (h *WebHandler) ChangeEmailRequest(c echo.Context) error {
	form := newForm(nil)
	if isPost(c) {
		var err error
		if form, err = formFrom(c); err != nil {
			return err
		}
		form.Required("email", "password")
		form.MaxLength(64, "email")
		validEmail(form)
		if form.Valid() {
			ctx, cancel := requestContext(c)
			defer cancel()
			err := h.Accounts.RequestEmailChange(ctx, currentUser(c), form.Trimmed("email"), form.Get("password"), link(c, changeEmailPath))
			switch {
			case errors.Is(err, service.ErrInvalidCredentials):
				h.flash(c, "Invalid email or password.")
			case err == nil:
				h.flash(c, "An email with instructions to confirm your new email address has been sent to you.")
				return redirect(c, "/")
			case !accountFormError(form, err):
				return err
			}
		}
	}
	return h.render(c, "auth/change_email", echo.Map{"form": form})
}

func (h *WebHandler) ChangeEmail(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	ok, err := h.Accounts.ChangeEmail(ctx, currentUser(c), c.Param("token"))
	if err != nil {
		return err
	}
	if ok {
		h.flash(c, "Your email address has been updated.")
	} else {
		h.flash(c, "Invalid request.")
	}
	return redirect(c, "/")
}
