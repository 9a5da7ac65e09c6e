package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/flasky/internal/model"
	"github.com/iliyamo/flasky/internal/repository"
)

func TestFormValidation(t *testing.T) {
	f := newForm(url.Values{
		"email":     {"  "},
		"name":      {strings.Repeat("x", 65)},
		"password":  {"a"},
		"password2": {"b"},
		"remember":  {"y"},
	})
	f.Required("email")
	f.MaxLength(64, "name")
	f.EqualTo("password", "password2", "Passwords must match.")

	assert.False(t, f.Valid())
	assert.Equal(t, "This field is required.", f.Error("email"))
	assert.Equal(t, "Field cannot be longer than 64 characters.", f.Error("name"))
	assert.Equal(t, "Passwords must match.", f.Error("password"))
	assert.True(t, f.Checked("remember"))
	assert.False(t, f.Checked("missing"))

	f.Fail("email", "second")
	assert.Equal(t, "This field is required.", f.Error("email"))
}

func TestSafeNext(t *testing.T) {
	tests := map[string]string{
		"":                    "",
		"/user/john":          "/user/john",
		"/post/1?page=2":      "/post/1?page=2",
		"//evil.example.com":  "",
		"/\\evil.example.com": "",
		"http://evil.example": "",
		"relative/path":       "",
	}
	for in, want := range tests {
		assert.Equal(t, want, safeNext(in), in)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{echo.ErrNotFound, http.StatusNotFound},
		{repository.ErrPostNotFound, http.StatusNotFound},
		{repository.ErrForbidden, http.StatusForbidden},
		{model.ErrEmptyBody, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		code, _ := classify(tt.err)
		assert.Equal(t, tt.code, code, tt.err.Error())
	}
}

func serveError(t *testing.T, err error, path, accept string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if accept != "" {
		req.Header.Set(echo.HeaderAccept, accept)
	}
	rec := httptest.NewRecorder()
	ErrorHandler(err, e.NewContext(req, rec))
	return rec
}

func TestErrorHandlerJSON(t *testing.T) {
	rec := serveError(t, badRequest("post does not have a body"), "/api/v1/posts/", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Bad Request","message":"post does not have a body"}`, rec.Body.String())

	rec = serveError(t, echo.ErrNotFound, "/wrong/url", "application/json")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Not Found"}`, rec.Body.String())

	rec = serveError(t, errors.New("db down"), "/api/v1/posts/", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestErrorHandlerHTMLFallback(t *testing.T) {
	rec := serveError(t, echo.ErrNotFound, "/wrong/url", "text/html")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found", rec.Body.String())
}

func TestWantsJSON(t *testing.T) {
	tests := map[string]bool{
		"application/json":                true,
		"text/html":                       false,
		"*/*":                             false,
		"application/json, text/html":     false,
		"application/json, text/html;q=0": true,
		"":                                false,
	}
	for accept, want := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(echo.HeaderAccept, accept)
		assert.Equal(t, want, wantsJSON(req), accept)
	}
}

type fakePage struct{ page, perPage, total int }

func (p fakePage) HasPrev() bool { return p.page > 1 }
func (p fakePage) HasNext() bool { return p.page*p.perPage < p.total }
func (p fakePage) PrevNum() int  { return p.page - 1 }
func (p fakePage) NextNum() int  { return p.page + 1 }

func TestPaginated(t *testing.T) {
	m := paginated("posts", []int{}, "/api/v1/posts/", fakePage{page: 1, perPage: 20, total: 25}, 25)
	assert.Nil(t, m["prev"])
	assert.Equal(t, "/api/v1/posts/?page=2", m["next"])
	assert.Equal(t, 25, m["count"])

	m = paginated("posts", []int{}, "/api/v1/posts/", fakePage{page: 2, perPage: 20, total: 25}, 25)
	assert.Equal(t, "/api/v1/posts/?page=1", m["prev"])
	assert.Nil(t, m["next"])
}

func TestParseID(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")

	c.SetParamValues("42")
	id, err := parseID(c, "id")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)

	for _, bad := range []string{"0", "-1", "abc"} {
		c.SetParamValues(bad)
		_, err := parseID(c, "id")
		assert.ErrorIs(t, err, echo.ErrNotFound, bad)
	}
}
