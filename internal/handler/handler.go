// Package handler exposes the HTTP handlers of the JSON API and the
// session-based web pages, plus the shared error handler.
package handler

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// requestTimeout bounds the database work of one request.
const requestTimeout = 5 * time.Second

func requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// parseID reads a positive integer path parameter. Anything else is a 404,
// the same as an unmatched route.
func parseID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.ErrNotFound
	}
	return id, nil
}

// pageParam reads ?page, defaulting to 1 when absent or not a number.
func pageParam(c echo.Context) int {
	n, err := strconv.Atoi(c.QueryParam("page"))
	if err != nil {
		return 1
	}
	return n
}

// Form holds submitted values and per-field validation errors for
// re-rendering a page.
type Form struct {
	values url.Values
	errors map[string]string
}

func newForm(values url.Values) *Form {
	if values == nil {
		values = url.Values{}
	}
	return &Form{values: values, errors: map[string]string{}}
}

// formFrom parses the request's form body.
func formFrom(c echo.Context) (*Form, error) {
	values, err := c.FormParams()
	if err != nil {
		return nil, err
	}
	return newForm(values), nil
}

func (f *Form) Get(field string) string { return f.values.Get(field) }

func (f *Form) Set(field, value string) { f.values.Set(field, value) }

// Trimmed is Get without surrounding whitespace.
func (f *Form) Trimmed(field string) string { return strings.TrimSpace(f.values.Get(field)) }

func (f *Form) Checked(field string) bool {
	switch strings.ToLower(f.values.Get(field)) {
	case "y", "yes", "on", "true", "1":
		return true
	}
	return false
}

func (f *Form) Error(field string) string { return f.errors[field] }

// Fail records the first error of a field.
func (f *Form) Fail(field, msg string) {
	if _, ok := f.errors[field]; !ok {
		f.errors[field] = msg
	}
}

func (f *Form) Valid() bool { return len(f.errors) == 0 }

// Required fails every listed field that is blank.
func (f *Form) Required(fields ...string) {
	for _, field := range fields {
		if f.Trimmed(field) == "" {
			f.Fail(field, "This field is required.")
		}
	}
}

// MaxLength fails fields longer than n characters.
func (f *Form) MaxLength(n int, fields ...string) {
	for _, field := range fields {
		if len([]rune(f.Get(field))) > n {
			f.Fail(field, "Field cannot be longer than "+strconv.Itoa(n)+" characters.")
		}
	}
}

// EqualTo fails field unless it matches other.
func (f *Form) EqualTo(field, other, msg string) {
	if f.Get(field) != f.Get(other) {
		f.Fail(field, msg)
	}
}
