package handler

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flasky/internal/config"
	"github.com/iliyamo/flasky/internal/middleware"
	"github.com/iliyamo/flasky/internal/model"
	"github.com/iliyamo/flasky/internal/repository"
	"github.com/iliyamo/flasky/internal/service"
)

// WebHandler serves the HTML pages. Sessions and the current identity are
// provided by middleware.Sessions and middleware.SessionUser.
type WebHandler struct {
	Store    *repository.Store
	Accounts *service.Accounts
	Sessions *scs.SessionManager
	Cfg      config.Config
	now      func() time.Time
}

func NewWebHandler(store *repository.Store, accounts *service.Accounts, sessions *scs.SessionManager, cfg config.Config) *WebHandler {
	return &WebHandler{Store: store, Accounts: accounts, Sessions: sessions, Cfg: cfg, now: time.Now}
}

// render adds the identity and pending flash messages to data.
func (h *WebHandler) render(c echo.Context, name string, data echo.Map) error {
	if data == nil {
		data = echo.Map{}
	}
	data["identity"] = middleware.CurrentIdentity(c)
	data["flashes"] = middleware.Flashes(c.Request().Context(), h.Sessions)
	return c.Render(http.StatusOK, name, data)
}

func (h *WebHandler) flash(c echo.Context, msg string) {
	middleware.Flash(c.Request().Context(), h.Sessions, msg)
}

func redirect(c echo.Context, path string) error {
	return c.Redirect(http.StatusFound, path)
}

// link builds absolute URLs for mailed tokens from the request's host.
func link(c echo.Context, prefix string) service.LinkFunc {
	return func(tok string) string {
		return c.Scheme() + "://" + c.Request().Host + prefix + tok
	}
}

// currentUser returns the logged-in user. Routes using it sit behind
// middleware.RequireLogin.
func currentUser(c echo.Context) *model.User {
	u, _ := middleware.CurrentUser(c)
	return u
}

// safeNext accepts only local paths as redirect targets.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return ""
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return ""
	}
	return next
}

func isPost(c echo.Context) bool { return c.Request().Method == http.MethodPost }
