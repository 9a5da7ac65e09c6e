package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/flasky/internal/config"
	"github.com/iliyamo/flasky/internal/model"
	"github.com/iliyamo/flasky/internal/repository"
	"github.com/iliyamo/flasky/internal/service"
)

type stubAccounts struct {
	users  map[uint64]*model.User
	pinged []uint64
}

func (s *stubAccounts) Authenticate(_ context.Context, email, password string) (*model.User, error) {
	for _, u := range s.users {
		if u.Email == email && password == "cat" {
			return u, nil
		}
	}
	return nil, service.ErrInvalidCredentials
}

func (s *stubAccounts) Ping(_ context.Context, u *model.User) error {
	s.pinged = append(s.pinged, u.ID)
	return nil
}

func (s *stubAccounts) GetByID(_ context.Context, id uint64) (*model.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

type stubTokens map[string]uint64

func (s stubTokens) ParseAccessToken(raw string) (uint64, error) {
	if id, ok := s[raw]; ok {
		return id, nil
	}
	return 0, errors.New("bad token")
}

func newAccounts() *stubAccounts {
	role := &model.Role{ID: 1, Name: model.RoleUser, Permissions: model.PermFollow | model.PermComment | model.PermWrite}
	return &stubAccounts{users: map[uint64]*model.User{
		1: {ID: 1, Email: "john@example.com", Username: "john", Confirmed: true, Role: role},
		2: {ID: 2, Email: "susan@example.com", Username: "susan", Confirmed: false, Role: role},
	}}
}

func whoami(c echo.Context) error {
	u, ok := CurrentUser(c)
	if !ok {
		return c.String(http.StatusOK, "anonymous")
	}
	if TokenUsed(c) {
		return c.String(http.StatusOK, u.Username+" via token")
	}
	return c.String(http.StatusOK, u.Username)
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestBasicAuth(t *testing.T) {
	accts := newAccounts()
	e := echo.New()
	e.GET("/", whoami, BasicAuth(accts, accts, stubTokens{"tok": 1, "ghost": 9}))

	cases := []struct {
		name       string
		user, pass string
		noAuth     bool
		status     int
		body       string
	}{
		{name: "password", user: "john@example.com", pass: "cat", status: http.StatusOK, body: "john"},
		{name: "token", user: "tok", status: http.StatusOK, body: "john via token"},
		{name: "wrong password", user: "john@example.com", pass: "dog", status: http.StatusUnauthorized},
		{name: "bad token", user: "nope", status: http.StatusUnauthorized},
		{name: "token for missing user", user: "ghost", status: http.StatusUnauthorized},
		{name: "empty username", user: "", pass: "cat", status: http.StatusUnauthorized},
		{name: "no header", noAuth: true, status: http.StatusUnauthorized},
		{name: "unconfirmed", user: "susan@example.com", pass: "cat", status: http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if !tc.noAuth {
				req.SetBasicAuth(tc.user, tc.pass)
			}
			rec := serve(e, req)
			assert.Equal(t, tc.status, rec.Code)
			if tc.body != "" {
				assert.Equal(t, tc.body, rec.Body.String())
			}
			if tc.status == http.StatusUnauthorized {
				assert.Contains(t, rec.Header().Get(echo.HeaderWWWAuthenticate), "Basic")
			}
		})
	}
	assert.Contains(t, accts.pinged, uint64(1))
	assert.NotContains(t, accts.pinged, uint64(2))
}

func TestRequirePermission(t *testing.T) {
	accts := newAccounts()
	e := echo.New()
	auth := BasicAuth(accts, accts, stubTokens{})
	e.GET("/write", whoami, auth, RequirePermission(model.PermWrite))
	e.GET("/moderate", whoami, auth, RequirePermission(model.PermModerate))
	e.GET("/anon", whoami, RequireAdmin())

	req := httptest.NewRequest(http.MethodGet, "/write", nil)
	req.SetBasicAuth("john@example.com", "cat")
	assert.Equal(t, http.StatusOK, serve(e, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/moderate", nil)
	req.SetBasicAuth("john@example.com", "cat")
	assert.Equal(t, http.StatusForbidden, serve(e, req).Code)

	assert.Equal(t, http.StatusForbidden, serve(e, httptest.NewRequest(http.MethodGet, "/anon", nil)).Code)
}

func TestRequireLoginRedirects(t *testing.T) {
	e := echo.New()
	e.GET("/edit-profile", whoami, RequireLogin("/auth/login"))

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/edit-profile?x=1", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/auth/login?next=%2Fedit-profile%3Fx%3D1", rec.Header().Get(echo.HeaderLocation))
}

func newSessionEcho(t *testing.T, accts *stubAccounts) (*echo.Echo, *scs.SessionManager) {
	t.Helper()
	sm := scs.New()
	sm.Store = memstore.New()
	e := echo.New()
	e.Use(Sessions(sm), SessionUser(sm, accts, accts, "/auth/unconfirmed"))
	e.GET("/", whoami)
	e.GET("/auth/unconfirmed", whoami)
	e.GET("/login/:id", func(c echo.Context) error {
		u, err := accts.GetByID(c.Request().Context(), map[string]uint64{"1": 1, "2": 2}[c.Param("id")])
		if err != nil {
			return err
		}
		if err := LogIn(c.Request().Context(), sm, u, false); err != nil {
			return err
		}
		Flash(c.Request().Context(), sm, "welcome")
		return c.NoContent(http.StatusNoContent)
	})
	e.GET("/flashes", func(c echo.Context) error {
		return c.String(http.StatusOK, strings.Join(Flashes(c.Request().Context(), sm), ","))
	})
	e.GET("/logout", func(c echo.Context) error {
		if err := LogOut(c.Request().Context(), sm); err != nil {
			return err
		}
		return c.NoContent(http.StatusNoContent)
	})
	e.GET("/forbidden", func(c echo.Context) error { return echo.ErrForbidden })
	return e, sm
}

func withCookies(req *http.Request, rec *httptest.ResponseRecorder) *http.Request {
	for _, ck := range rec.Result().Cookies() {
		req.AddCookie(ck)
	}
	return req
}

func TestSessionLoginFlashAndLogout(t *testing.T) {
	e, _ := newSessionEcho(t, newAccounts())

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "anonymous", rec.Body.String())

	login := serve(e, httptest.NewRequest(http.MethodGet, "/login/1", nil))
	require.Equal(t, http.StatusNoContent, login.Code)
	require.NotEmpty(t, login.Result().Cookies())

	rec = serve(e, withCookies(httptest.NewRequest(http.MethodGet, "/", nil), login))
	assert.Equal(t, "john", rec.Body.String())

	rec = serve(e, withCookies(httptest.NewRequest(http.MethodGet, "/flashes", nil), login))
	assert.Equal(t, "welcome", rec.Body.String())
	rec = serve(e, withCookies(httptest.NewRequest(http.MethodGet, "/flashes", nil), login))
	assert.Equal(t, "", rec.Body.String())

	logout := serve(e, withCookies(httptest.NewRequest(http.MethodGet, "/logout", nil), login))
	require.Equal(t, http.StatusNoContent, logout.Code)
	rec = serve(e, withCookies(httptest.NewRequest(http.MethodGet, "/", nil), logout))
	assert.Equal(t, "anonymous", rec.Body.String())
}

func TestSessionUnconfirmedRedirect(t *testing.T) {
	e, _ := newSessionEcho(t, newAccounts())
	login := serve(e, httptest.NewRequest(http.MethodGet, "/login/2", nil))

	rec := serve(e, withCookies(httptest.NewRequest(http.MethodGet, "/", nil), login))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/auth/unconfirmed", rec.Header().Get(echo.HeaderLocation))

	rec = serve(e, withCookies(httptest.NewRequest(http.MethodGet, "/auth/unconfirmed", nil), login))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "susan", rec.Body.String())
}

func TestSessionsRendersHandlerErrors(t *testing.T) {
	e, _ := newSessionEcho(t, newAccounts())
	rec := serve(e, httptest.NewRequest(http.MethodGet, "/forbidden", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestTokenBucket(t *testing.T) {
	_, rdb := newRedis(t)
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            time.Hour,
		KeyStrategy:    "ip",
		Prefix:         "rl",
	}
	e := echo.New()
	e.GET("/", whoami, NewTokenBucket(cfg, rdb))

	for i := 0; i < 2; i++ {
		rec := serve(e, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}
	rec := serve(e, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestCredentialLimiterCountsFailedLogins(t *testing.T) {
	mr, rdb := newRedis(t)
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            time.Hour,
		Prefix:         "rl",
	}
	accts := newAccounts()
	e := echo.New()
	e.GET("/", whoami, NewCredentialLimiter(cfg, rdb), BasicAuth(accts, accts, stubTokens{}))

	attempt := func(pass string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(echo.HeaderXRealIP, "10.0.0.9")
		req.SetBasicAuth("john@example.com", pass)
		return serve(e, req).Code
	}
	assert.Equal(t, http.StatusUnauthorized, attempt("dog"))
	assert.Equal(t, http.StatusUnauthorized, attempt("fish"))
	assert.Equal(t, http.StatusTooManyRequests, attempt("cat"))
	assert.True(t, mr.Exists("rl:auth:ip:10.0.0.9"))
}

func TestTokenBucketDisabledWithoutRedis(t *testing.T) {
	e := echo.New()
	e.GET("/", whoami, NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil))
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(e, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	}
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/posts/", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/v1/posts/")
	SetIdentity(c, model.Authenticated(&model.User{ID: 7}))

	assert.Equal(t, "rl:ip:10.0.0.1", buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip"}, c))
	assert.Equal(t, "rl:user:7:route:GET /api/v1/posts/", buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user_route"}, c))
	assert.Equal(t, "rl:ip:10.0.0.1:user:7:route:GET /api/v1/posts/", buildRateKey(config.RateLimitConfig{Prefix: "rl"}, c))
}

func TestRedisCache(t *testing.T) {
	mr, rdb := newRedis(t)
	cfg := config.CacheConfig{
		Enabled:     true,
		Methods:     map[string]bool{http.MethodGet: true},
		TTL:         time.Minute,
		KeyStrategy: "route_query",
		Prefix:      "cache",
	}
	calls := 0
	e := echo.New()
	e.GET("/posts/:id", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"id": c.Param("id")})
	}, NewRedisCache(cfg, rdb))

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/posts/1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/posts/1", nil))
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"id":"1"}`, rec.Body.String())
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON)

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/posts/2", nil))
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)

	mr.FastForward(2 * time.Minute)
	rec = serve(e, httptest.NewRequest(http.MethodGet, "/posts/1", nil))
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, 3, calls)
}

func TestCachePayloadCodec(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"a":1}`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, `{"a":1}`, string(body))

	_, _, _, ok = decodePayload([]byte{0, 1})
	assert.False(t, ok)
}
