// Package router defines how HTTP routes are registered on the Echo
// instance.
package router

import (
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/flasky/internal/config"
	"github.com/iliyamo/flasky/internal/handler"
	"github.com/iliyamo/flasky/internal/middleware"
	"github.com/iliyamo/flasky/internal/model"
)

const (
	loginPath       = "/auth/login"
	unconfirmedPath = "/auth/unconfirmed"
)

// RegisterRoutes registers routes that need neither a session nor
// credentials. Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAPI registers the JSON API under /api/v1. Every route requires
// Basic Auth; GET responses may be cached in Redis and all requests are
// rate limited when Redis is available, per IP before authentication and
// per user and route after it.
func RegisterAPI(e *echo.Echo, h *handler.APIHandler, creds middleware.Credentials, cfg config.Config, rdb *redis.Client) {
	g := e.Group(
		handler.APIRoot,
		middleware.NewCredentialLimiter(cfg.RateLimit, rdb),
		middleware.BasicAuth(creds, h.Store.Users, h.Tokens),
		middleware.NewTokenBucket(cfg.RateLimit, rdb),
		middleware.NewRedisCache(cfg.Cache, rdb),
	)
	write := middleware.RequirePermission(model.PermWrite)
	comment := middleware.RequirePermission(model.PermComment)

	g.POST("/tokens/", h.NewToken)

	g.GET("/posts/", h.ListPosts)
	g.POST("/posts/", h.NewPost, write)
	g.GET("/posts/:id", h.GetPost)
	g.PUT("/posts/:id", h.EditPost, write)
	g.GET("/posts/:id/comments/", h.PostComments)
	g.POST("/posts/:id/comments/", h.NewPostComment, comment)

	g.GET("/comments/", h.ListComments)
	g.GET("/comments/:id", h.GetComment)

	g.GET("/users/:id", h.GetUser)
	g.GET("/users/:id/posts/", h.UserPosts)
	g.GET("/users/:id/timeline/", h.UserTimeline)
	g.GET("/users/:id/followers/", h.UserFollowers)
	g.GET("/users/:id/following/", h.UserFollowing)
}

// RegisterWeb registers the HTML pages. They share the scs session, which
// also carries flash messages, and see the logged-in user as the current
// identity. The credential forms are rate limited when Redis is available.
func RegisterWeb(e *echo.Echo, h *handler.WebHandler, sm *scs.SessionManager, pinger middleware.Pinger, rdb *redis.Client) {
	g := e.Group("",
		middleware.Sessions(sm),
		middleware.SessionUser(sm, h.Store.Users, pinger, unconfirmedPath),
	)
	login := middleware.RequireLogin(loginPath)
	both := []string{http.MethodGet, http.MethodPost}

	g.Match(both, "/", h.Index)
	g.GET("/all", h.ShowAll, login)
	g.GET("/followed", h.ShowFollowed, login)
	g.Match(both, "/post/:id", h.Post)
	g.Match(both, "/edit/:id", h.EditPost, login)

	moderate := g.Group("/moderate", login, middleware.RequirePermission(model.PermModerate))
	moderate.GET("", h.Moderate)
	moderate.GET("/enable/:id", h.ModerateEnable)
	moderate.GET("/disable/:id", h.ModerateDisable)

	g.GET("/user/:username", h.User)
	g.Match(both, "/edit-profile", h.EditProfile, login)
	g.Match(both, "/edit-profile/:id", h.EditProfileAdmin, login, middleware.RequireAdmin())
	follow := middleware.RequirePermission(model.PermFollow)
	g.GET("/follow/:username", h.Follow, login, follow)
	g.GET("/unfollow/:username", h.Unfollow, login, follow)
	g.GET("/followers/:username", h.Followers)
	g.GET("/followed_by/:username", h.FollowedBy)

	limit := middleware.NewCredentialLimiter(h.Cfg.RateLimit, rdb)
	auth := g.Group("/auth")
	auth.Match(both, "/login", h.Login, limit)
	auth.GET("/logout", h.Logout, login)
	auth.Match(both, "/register", h.Register, limit)
	auth.GET("/confirm/:token", h.Confirm, login)
	auth.GET("/confirm", h.ResendConfirmation, login)
	auth.GET("/unconfirmed", h.Unconfirmed)
	auth.Match(both, "/change-password", h.ChangePassword, login)
	auth.Match(both, "/reset", h.PasswordResetRequest, limit)
	auth.Match(both, "/reset/:token", h.PasswordReset, limit)
	auth.Match(both, "/change-email", h.ChangeEmailRequest, login)
	auth.GET("/change-email/:token", h.ChangeEmail, login)
}
