package config

// Redis backs distributed rate limiting and HTTP response caching. When the
// server is unreachable at startup NewRedisClient returns nil and callers
// degrade gracefully by disabling both.

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/iliyamo/flasky/internal/logger"
)

// RedisConfig holds connection settings. REDIS_HOST and REDIS_PORT take
// precedence over REDIS_ADDR when both are set.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	TLS         bool
	TLSInsecure bool // skip certificate verification, local testing only
}

func setRedisDefaults(v *viper.Viper) {
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_host", "")
	v.SetDefault("redis_port", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("redis_tls", false)
	v.SetDefault("redis_tls_insecure", false)
}

func loadRedisConfig(v *viper.Viper) RedisConfig {
	c := RedisConfig{
		Addr:        v.GetString("redis_addr"),
		Password:    v.GetString("redis_password"),
		DB:          v.GetInt("redis_db"),
		TLS:         v.GetBool("redis_tls"),
		TLSInsecure: v.GetBool("redis_tls_insecure"),
	}
	if host, port := v.GetString("redis_host"), v.GetString("redis_port"); host != "" && port != "" {
		c.Addr = host + ":" + port
	}
	return c
}

// NewRedisClient connects and pings the server with a short timeout. It
// returns nil when no address is configured or the ping fails.
func NewRedisClient(c RedisConfig) *redis.Client {
	if c.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:      c.Addr,
		Password:  c.Password,
		DB:        c.DB,
		TLSConfig: c.tlsConfig(),
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warningf("redis unavailable at %s, cache and rate limit disabled: %v", c.Addr, err)
		_ = client.Close()
		return nil
	}
	return client
}

// tlsConfig verifies the server certificate against the host name unless
// TLSInsecure is set.
func (c RedisConfig) tlsConfig() *tls.Config {
	if !c.TLS {
		return nil
	}
	if c.TLSInsecure {
		logger.Warning("redis: TLS certificate verification disabled")
		return &tls.Config{InsecureSkipVerify: true}
	}
	host, _, err := net.SplitHostPort(c.Addr)
	if err != nil {
		host = c.Addr
	}
	return &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
}
