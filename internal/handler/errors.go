package handler

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flasky/internal/logger"
	"github.com/iliyamo/flasky/internal/middleware"
	"github.com/iliyamo/flasky/internal/model"
	"github.com/iliyamo/flasky/internal/repository"
)

// ErrorHandler answers failed requests. API paths and clients that accept
// JSON but not HTML get {"error", "message"}; everyone else gets an error
// page.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code, msg := classify(err)
	req := c.Request()
	if code >= http.StatusInternalServerError {
		logger.Errorf("%s %s: %v", req.Method, req.URL.Path, err)
		msg = ""
	}

	var rerr error
	switch {
	case req.Method == http.MethodHead:
		rerr = c.NoContent(code)
	case strings.HasPrefix(req.URL.Path, "/api/") || wantsJSON(req):
		body := echo.Map{"error": http.StatusText(code)}
		if msg != "" && msg != http.StatusText(code) {
			body["message"] = msg
		}
		rerr = c.JSON(code, body)
	default:
		rerr = renderErrorPage(c, code)
	}
	if rerr != nil {
		logger.Errorf("error handler: %v", rerr)
	}
}

func classify(err error) (int, string) {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		if msg, ok := he.Message.(string); ok {
			return he.Code, msg
		}
		return he.Code, fmt.Sprint(he.Message)
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrPostNotFound),
		errors.Is(err, repository.ErrCommentNotFound),
		errors.Is(err, repository.ErrRoleNotFound):
		return http.StatusNotFound, ""
	case errors.Is(err, repository.ErrForbidden):
		return http.StatusForbidden, middleware.ErrInsufficientPermissions.Message.(string)
	case errors.Is(err, model.ErrEmptyBody):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, ""
	}
}

func renderErrorPage(c echo.Context, code int) error {
	r := c.Echo().Renderer
	if r == nil {
		return c.String(code, http.StatusText(code))
	}
	name := fmt.Sprintf("errors/%d", code)
	if h, ok := r.(interface{ Has(string) bool }); ok && !h.Has(name) {
		name = "errors/error"
	}
	return c.Render(code, name, echo.Map{
		"identity": middleware.CurrentIdentity(c),
		"message":  http.StatusText(code),
	})
}

// wantsJSON reports whether the Accept header allows JSON but not HTML.
// Wildcards count for both.
func wantsJSON(r *http.Request) bool {
	var json, html bool
	for _, part := range strings.Split(r.Header.Get(echo.HeaderAccept), ",") {
		mt, params, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil || params["q"] == "0" {
			continue
		}
		switch mt {
		case "*/*":
			json, html = true, true
		case "application/*":
			json = true
		case "text/*":
			html = true
		case echo.MIMEApplicationJSON:
			json = true
		case echo.MIMETextHTML, "application/xhtml+xml":
			html = true
		}
	}
	return json && !html
}
