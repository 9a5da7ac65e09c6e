// Package database opens the SQL connection pool and manages the schema.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/xo/dburl"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite3"
)

// DB is a connection pool together with the driver name, which selects the
// migration dialect and session store.
type DB struct {
	*sql.DB
	Driver string
}

// Open parses a database URL (see github.com/xo/dburl), connects and
// verifies the connection.
func Open(rawURL string) (*DB, error) {
	u, err := dburl.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	return OpenDSN(u.Driver, u.DSN)
}

// OpenDSN connects with a driver-specific DSN. MySQL connections always
// parse times as UTC and report matched rather than changed rows; SQLite
// connections enforce foreign keys and use a single connection so
// in-memory databases are shared.
func OpenDSN(driver, dsn string) (*DB, error) {
	switch driver {
	case DriverMySQL:
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		cfg.Loc = time.UTC
		cfg.ClientFoundRows = true
		if cfg.Params == nil {
			cfg.Params = map[string]string{}
		}
		cfg.Params["charset"] = "utf8mb4"
		dsn = cfg.FormatDSN()
	case DriverSQLite:
		if !strings.Contains(dsn, "_foreign_keys") {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + "_foreign_keys=1"
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{DB: db, Driver: driver}, nil
}
