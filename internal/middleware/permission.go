package middleware

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flasky/internal/model"
)

// ErrInsufficientPermissions is returned when the caller's role lacks a
// required permission.
var ErrInsufficientPermissions = echo.NewHTTPError(http.StatusForbidden, "Insufficient permissions")

// RequirePermission aborts with 403 unless the current identity holds p.
// Anonymous callers never hold any permission.
func RequirePermission(p model.Permission) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !CurrentIdentity(c).Can(p) {
				return ErrInsufficientPermissions
			}
			return next(c)
		}
	}
}

// RequireAdmin is RequirePermission(PermAdmin).
func RequireAdmin() echo.MiddlewareFunc { return RequirePermission(model.PermAdmin) }

// RequireLogin redirects anonymous web visitors to the login page, keeping
// the requested path in the next parameter.
func RequireLogin(loginPath string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if CurrentIdentity(c).IsAnonymous() {
				target := loginPath + "?next=" + url.QueryEscape(c.Request().URL.RequestURI())
				return c.Redirect(http.StatusFound, target)
			}
			return next(c)
		}
	}
}
