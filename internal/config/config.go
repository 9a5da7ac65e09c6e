// Package config loads application configuration from environment
// variables, an optional .env file and an optional config file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable (or the lower-case key of a config file).
type Config struct {
	Env         string // APP_ENV: development, testing or production
	Port        string // APP_PORT
	DatabaseURL string // DATABASE_URL, see github.com/xo/dburl
	SecretKey   string // SECRET_KEY signs account tokens and API tokens

	AdminEmail        string // FLASKY_ADMIN receives the Administrator role
	MailSubjectPrefix string // FLASKY_MAIL_SUBJECT_PREFIX
	MailSender        string // FLASKY_MAIL_SENDER
	Mail              MailConfig

	PostsPerPage     int // FLASKY_POSTS_PER_PAGE
	CommentsPerPage  int // FLASKY_COMMENTS_PER_PAGE
	FollowersPerPage int // FLASKY_FOLLOWERS_PER_PAGE

	TokenMaxAge     time.Duration // TOKEN_MAX_AGE for confirm/reset/change_email
	AccessTokenTTL  time.Duration // ACCESS_TOKEN_TTL_MIN for API tokens
	BcryptCost      int           // BCRYPT_COST
	SessionLifetime time.Duration // SESSION_LIFETIME

	RabbitURL string // RABBITMQ_URL, empty delivers mail in-process
	LogLevel  string // LOG_LEVEL
	LogFile   string // LOG_FILE, empty disables the file backend

	Redis     RedisConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
}

// MailConfig holds SMTP settings. An empty Server logs mail instead of
// sending it.
type MailConfig struct {
	Server   string
	Port     int
	UseTLS   bool
	Username string
	Password string
}

const (
	EnvDevelopment = "development"
	EnvTesting     = "testing"
	EnvProduction  = "production"
)

var ErrMissingSecret = errors.New("SECRET_KEY is required in production")

// Load reads .env (if present), the optional config file and the
// environment. Environment variables take precedence over the file.
func Load(configFile string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}
	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_env", EnvDevelopment)
	v.SetDefault("app_port", "5000")
	v.SetDefault("secret_key", "")
	v.SetDefault("flasky_admin", "")
	v.SetDefault("flasky_mail_subject_prefix", "[Flasky]")
	v.SetDefault("flasky_mail_sender", "Flasky Admin <flasky@example.com>")
	v.SetDefault("mail_server", "")
	v.SetDefault("mail_port", 587)
	v.SetDefault("mail_use_tls", true)
	v.SetDefault("mail_username", "")
	v.SetDefault("mail_password", "")
	v.SetDefault("flasky_posts_per_page", 20)
	v.SetDefault("flasky_comments_per_page", 30)
	v.SetDefault("flasky_followers_per_page", 50)
	v.SetDefault("token_max_age", time.Hour)
	v.SetDefault("access_token_ttl_min", 60)
	v.SetDefault("bcrypt_cost", 12)
	v.SetDefault("session_lifetime", 24*time.Hour)
	v.SetDefault("rabbitmq_url", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("database_url", "")
	for _, k := range []string{"db_user", "db_pass", "db_host", "db_name"} {
		v.SetDefault(k, "")
	}
	v.SetDefault("db_port", "3306")
	setRedisDefaults(v)
	setCacheDefaults(v)
	setRateLimitDefaults(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Env:               strings.ToLower(v.GetString("app_env")),
		Port:              v.GetString("app_port"),
		SecretKey:         v.GetString("secret_key"),
		AdminEmail:        v.GetString("flasky_admin"),
		MailSubjectPrefix: v.GetString("flasky_mail_subject_prefix"),
		MailSender:        v.GetString("flasky_mail_sender"),
		Mail: MailConfig{
			Server:   v.GetString("mail_server"),
			Port:     v.GetInt("mail_port"),
			UseTLS:   v.GetBool("mail_use_tls"),
			Username: v.GetString("mail_username"),
			Password: v.GetString("mail_password"),
		},
		PostsPerPage:     positive(v.GetInt("flasky_posts_per_page"), 20),
		CommentsPerPage:  positive(v.GetInt("flasky_comments_per_page"), 30),
		FollowersPerPage: positive(v.GetInt("flasky_followers_per_page"), 50),
		TokenMaxAge:      v.GetDuration("token_max_age"),
		AccessTokenTTL:   time.Duration(positive(v.GetInt("access_token_ttl_min"), 60)) * time.Minute,
		BcryptCost:       v.GetInt("bcrypt_cost"),
		SessionLifetime:  v.GetDuration("session_lifetime"),
		RabbitURL:        v.GetString("rabbitmq_url"),
		LogLevel:         v.GetString("log_level"),
		LogFile:          v.GetString("log_file"),
		Redis:            loadRedisConfig(v),
		Cache:            loadCacheConfig(v),
		RateLimit:        loadRateLimitConfig(v),
	}
	if cfg.TokenMaxAge <= 0 {
		cfg.TokenMaxAge = time.Hour
	}
	cfg.DatabaseURL = databaseURL(v, cfg.Env)

	if cfg.SecretKey == "" {
		if cfg.Env == EnvProduction {
			return Config{}, ErrMissingSecret
		}
		cfg.SecretKey = "hard to guess string"
	}
	return cfg, nil
}

// databaseURL prefers DATABASE_URL, then the DB_* MySQL variables, then a
// per-environment SQLite file.
func databaseURL(v *viper.Viper, env string) string {
	if u := v.GetString("database_url"); u != "" {
		return u
	}
	if host := v.GetString("db_host"); host != "" {
		u := url.URL{
			Scheme: "mysql",
			Host:   host + ":" + v.GetString("db_port"),
			Path:   "/" + v.GetString("db_name"),
		}
		if pass := v.GetString("db_pass"); pass != "" {
			u.User = url.UserPassword(v.GetString("db_user"), pass)
		} else {
			u.User = url.User(v.GetString("db_user"))
		}
		return u.String()
	}
	switch env {
	case EnvTesting:
		return "sqlite3:file:flasky-test?mode=memory&cache=shared"
	case EnvProduction:
		return "sqlite3:data.sqlite3"
	}
	return "sqlite3:data-dev.sqlite3"
}

func (c Config) IsProduction() bool { return c.Env == EnvProduction }

func positive(n, def int) int {
	if n < 1 {
		return def
	}
	return n
}
