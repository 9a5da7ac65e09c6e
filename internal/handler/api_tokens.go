package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flasky/internal/middleware"
)

// NewToken exchanges email/password credentials for an access token. A
// caller that authenticated with a token cannot mint another one.
func (h *APIHandler) NewToken(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok || middleware.TokenUsed(c) {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
	}
	tok, err := h.Tokens.NewAccessToken(u.ID, h.Cfg.AccessTokenTTL)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"token":      tok.Token,
		"expiration": int(h.Cfg.AccessTokenTTL.Seconds()),
	})
}
