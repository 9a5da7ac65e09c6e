// Package app assembles the configured services into an Echo server.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/flasky/internal/config"
	"github.com/iliyamo/flasky/internal/database"
	"github.com/iliyamo/flasky/internal/handler"
	"github.com/iliyamo/flasky/internal/logger"
	"github.com/iliyamo/flasky/internal/mail"
	"github.com/iliyamo/flasky/internal/repository"
	"github.com/iliyamo/flasky/internal/router"
	"github.com/iliyamo/flasky/internal/service"
	"github.com/iliyamo/flasky/internal/token"
	"github.com/iliyamo/flasky/internal/view"
)

// App holds the long-lived dependencies of one server process.
type App struct {
	Cfg      config.Config
	DB       *database.DB
	Redis    *redis.Client
	Store    *repository.Store
	Tokens   *token.Issuer
	Accounts *service.Accounts
	Sessions *scs.SessionManager
	Echo     *echo.Echo

	mailer mail.Dispatcher
}

// NewMailer picks the delivery path: the RabbitMQ queue when RABBITMQ_URL
// is set, otherwise in-process delivery over SMTP, or to the log when no
// SMTP server is configured.
func NewMailer(cfg config.Config) mail.Dispatcher {
	if cfg.RabbitURL != "" {
		return service.NewQueuePublisher(cfg.RabbitURL)
	}
	return mail.NewAsyncDispatcher(NewSender(cfg), 30*time.Second)
}

// NewSender returns the synchronous sender used in-process and by the mail
// worker.
func NewSender(cfg config.Config) mail.Sender {
	if cfg.Mail.Server == "" {
		return mail.LogSender{}
	}
	return mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.Mail.Server,
		Port:     cfg.Mail.Port,
		UseTLS:   cfg.Mail.UseTLS,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
	})
}

// New wires the store, account service, sessions and routes on top of an
// open database. rdb may be nil, which disables caching and rate limiting.
func New(cfg config.Config, db *database.DB, rdb *redis.Client, mailer mail.Dispatcher) (*App, error) {
	composer, err := mail.NewComposer(cfg.MailSubjectPrefix, cfg.MailSender)
	if err != nil {
		return nil, err
	}
	renderer, err := view.New()
	if err != nil {
		return nil, err
	}

	store := repository.NewStore(db.DB)
	tokens := token.NewIssuer(cfg.SecretKey)
	accounts := service.NewAccounts(store, tokens, composer, mailer, service.Options{
		AdminEmail:  cfg.AdminEmail,
		BcryptCost:  cfg.BcryptCost,
		TokenMaxAge: cfg.TokenMaxAge,
	})

	sm := scs.New()
	sm.Store = db.NewSessionStore()
	sm.Lifetime = cfg.SessionLifetime
	sm.Cookie.Name = "session"
	sm.Cookie.Persist = false
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = cfg.IsProduction()

	e := echo.New()
	e.HideBanner = true
	e.JSONSerializer = JSONSerializer{}
	e.Renderer = renderer
	e.HTTPErrorHandler = handler.ErrorHandler
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(requestLogger())
	e.Use(echomw.Recover())

	router.RegisterRoutes(e, db)
	router.RegisterAPI(e, handler.NewAPIHandler(store, tokens, cfg), accounts, cfg, rdb)
	router.RegisterWeb(e, handler.NewWebHandler(store, accounts, sm, cfg), sm, accounts, rdb)

	return &App{
		Cfg:      cfg,
		DB:       db,
		Redis:    rdb,
		Store:    store,
		Tokens:   tokens,
		Accounts: accounts,
		Sessions: sm,
		Echo:     e,
		mailer:   mailer,
	}, nil
}

func requestLogger() echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			logger.Infof("%s %s %d %s id=%s", v.Method, v.URI, v.Status, v.Latency, v.RequestID)
			return nil
		},
	})
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
// and waits for queued mail.
func (a *App) Run(ctx context.Context, addr string) error {
	errc := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s (env=%s)", addr, a.Cfg.Env)
		errc <- a.Echo.Start(addr)
	}()

	select {
	case err := <-errc:
		a.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := a.Echo.Shutdown(shutdownCtx)
	if serr := <-errc; serr != nil && !errors.Is(serr, http.ErrServerClosed) && err == nil {
		err = serr
	}
	a.Close()
	return err
}

// Close waits for in-flight mail and stops the session cleanup goroutine.
// The database and Redis client belong to the caller.
func (a *App) Close() {
	if w, ok := a.mailer.(interface{ Wait() }); ok {
		w.Wait()
	}
	if s, ok := a.Sessions.Store.(interface{ StopCleanup() }); ok {
		s.StopCleanup()
	}
}
