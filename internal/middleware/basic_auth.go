package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flasky/internal/logger"
	"github.com/iliyamo/flasky/internal/model"
	"github.com/iliyamo/flasky/internal/repository"
	"github.com/iliyamo/flasky/internal/service"
)

// Pinger records activity of an authenticated user.
type Pinger interface {
	Ping(ctx context.Context, u *model.User) error
}

// Credentials checks passwords and records activity.
type Credentials interface {
	Pinger
	Authenticate(ctx context.Context, email, password string) (*model.User, error)
}

// UserSource loads users by id.
type UserSource interface {
	GetByID(ctx context.Context, id uint64) (*model.User, error)
}

// TokenParser resolves an access token to a user id.
type TokenParser interface {
	ParseAccessToken(raw string) (uint64, error)
}

var (
	errInvalidCredentials = echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
	errUnconfirmed        = echo.NewHTTPError(http.StatusForbidden, "Unconfirmed account")
)

// BasicAuth authenticates API requests with HTTP Basic credentials. The
// username is either an email, checked against the password, or an access
// token sent with an empty password. Unconfirmed accounts are refused.
func BasicAuth(creds Credentials, users UserSource, tokens TokenParser) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			u, tokenUsed, err := resolveBasic(c, creds, users, tokens)
			if err != nil {
				return err
			}
			if u == nil {
				c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Basic realm="Authentication Required"`)
				return errInvalidCredentials
			}
			if !u.Confirmed {
				return errUnconfirmed
			}
			if err := creds.Ping(ctx, u); err != nil {
				logger.Warningf("api: ping user %d: %v", u.ID, err)
			}
			SetIdentity(c, model.Authenticated(u))
			c.Set(tokenUsedKey, tokenUsed)
			return next(c)
		}
	}
}

func resolveBasic(c echo.Context, creds Credentials, users UserSource, tokens TokenParser) (*model.User, bool, error) {
	ctx := c.Request().Context()
	name, password, ok := c.Request().BasicAuth()
	if !ok || name == "" {
		return nil, false, nil
	}
	if password == "" {
		id, err := tokens.ParseAccessToken(name)
		if err != nil {
			return nil, true, nil
		}
		u, err := users.GetByID(ctx, id)
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, true, nil
		}
		return u, true, err
	}
	u, err := creds.Authenticate(ctx, name, password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		return nil, false, nil
	}
	return u, false, err
}
