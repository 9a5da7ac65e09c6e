package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flasky/internal/model"
)

// Context keys shared by the auth middlewares and the handlers.
const (
	identityKey  = "identity"
	tokenUsedKey = "token_used"
)

// SetIdentity stores who is making the request.
func SetIdentity(c echo.Context, id model.Identity) { c.Set(identityKey, id) }

// CurrentIdentity returns the request's identity, anonymous when no auth
// middleware ran or none matched.
func CurrentIdentity(c echo.Context) model.Identity {
	if id, ok := c.Get(identityKey).(model.Identity); ok {
		return id
	}
	return model.Anonymous()
}

func CurrentUser(c echo.Context) (*model.User, bool) {
	return CurrentIdentity(c).User()
}

// TokenUsed reports whether the API caller authenticated with an access
// token instead of a password.
func TokenUsed(c echo.Context) bool {
	used, _ := c.Get(tokenUsedKey).(bool)
	return used
}

// userID keys caches and rate limits; anonymous callers share "anon".
func userID(c echo.Context) string {
	id := CurrentIdentity(c).ID()
	if id == 0 {
		return "anon"
	}
	return strconv.FormatUint(id, 10)
}
