package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/alexedwards/scs/v2"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flasky/internal/logger"
	"github.com/iliyamo/flasky/internal/model"
	"github.com/iliyamo/flasky/internal/repository"
)

const (
	sessionUserKey  = "user_id"
	sessionFlashKey = "flash"
)

// Sessions loads and saves the scs session around the request. Handler
// errors are rendered inside the session scope so the response is written
// before scs flushes its buffer.
func Sessions(sm *scs.SessionManager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			orig := c.Response().Writer
			sm.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				c.SetRequest(r)
				c.Response().Writer = w
				if err := next(c); err != nil {
					c.Error(err)
				}
			})).ServeHTTP(orig, c.Request())
			c.Response().Writer = orig
			return nil
		}
	}
}

// SessionUser resolves the logged-in user from the session and pings it.
// Unconfirmed users are sent to unconfirmedPath unless they are already
// on an /auth/ or /static/ page.
func SessionUser(sm *scs.SessionManager, users UserSource, pinger Pinger, unconfirmedPath string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			id := sm.GetInt64(ctx, sessionUserKey)
			if id <= 0 {
				SetIdentity(c, model.Anonymous())
				return next(c)
			}
			u, err := users.GetByID(ctx, uint64(id))
			if errors.Is(err, repository.ErrUserNotFound) {
				sm.Remove(ctx, sessionUserKey)
				SetIdentity(c, model.Anonymous())
				return next(c)
			}
			if err != nil {
				return err
			}
			if err := pinger.Ping(ctx, u); err != nil {
				logger.Warningf("web: ping user %d: %v", u.ID, err)
			}
			SetIdentity(c, model.Authenticated(u))

			path := c.Request().URL.Path
			if !u.Confirmed && !strings.HasPrefix(path, "/auth/") && !strings.HasPrefix(path, "/static/") {
				return c.Redirect(http.StatusFound, unconfirmedPath)
			}
			return next(c)
		}
	}
}

// LogIn binds u to the session under a fresh token. Without remember the
// cookie expires with the browser session.
func LogIn(ctx context.Context, sm *scs.SessionManager, u *model.User, remember bool) error {
	if err := sm.RenewToken(ctx); err != nil {
		return err
	}
	sm.Put(ctx, sessionUserKey, int64(u.ID))
	sm.RememberMe(ctx, remember)
	return nil
}

// LogOut forgets the session user but keeps the session for flashes.
func LogOut(ctx context.Context, sm *scs.SessionManager) error {
	sm.Remove(ctx, sessionUserKey)
	return sm.RenewToken(ctx)
}

// Flash queues a message for the next rendered page.
func Flash(ctx context.Context, sm *scs.SessionManager, msg string) {
	msgs, _ := sm.Get(ctx, sessionFlashKey).([]string)
	sm.Put(ctx, sessionFlashKey, append(msgs, msg))
}

// Flashes pops every queued message.
func Flashes(ctx context.Context, sm *scs.SessionManager) []string {
	msgs, _ := sm.Pop(ctx, sessionFlashKey).([]string)
	return msgs
}
