package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/flasky/internal/logger"
)

//go:embed migrations
var migrationFiles embed.FS

// Migration is one versioned schema step with its rollback.
type Migration struct {
	Version     int
	Description string
	Up          string
	Down        string
}

// MigrationStatus represents the current state of migrations.
type MigrationStatus struct {
	CurrentVersion    int   `json:"current_version"`
	PendingMigrations []int `json:"pending_migrations"`
	TotalMigrations   int   `json:"total_migrations"`
}

// Migrator applies the embedded migrations of one dialect. Each step runs
// in its own transaction together with its schema_migrations record.
type Migrator struct {
	db         *sql.DB
	driver     string
	migrations []Migration
}

var migrationName = regexp.MustCompile(`^(\d+)_(.+)\.(up|down)\.sql$`)

// NewMigrator loads the migrations for db's driver.
func NewMigrator(db *DB) (*Migrator, error) {
	sub, err := fs.Sub(migrationFiles, path.Join("migrations", db.Driver))
	if err != nil {
		return nil, err
	}
	migrations, err := loadMigrations(sub)
	if err != nil {
		return nil, err
	}
	return &Migrator{db: db.DB, driver: db.Driver, migrations: migrations}, nil
}

func loadMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	byVersion := map[int]*Migration{}
	for _, e := range entries {
		m := migrationName.FindStringSubmatch(e.Name())
		if e.IsDir() || m == nil {
			continue
		}
		version, _ := strconv.Atoi(m[1])
		body, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			return nil, err
		}
		mig, ok := byVersion[version]
		if !ok {
			mig = &Migration{Version: version, Description: m[2]}
			byVersion[version] = mig
		}
		if m[3] == "up" {
			mig.Up = string(body)
		} else {
			mig.Down = string(body)
		}
	}
	out := make([]Migration, 0, len(byVersion))
	for _, mig := range byVersion {
		if mig.Up == "" || mig.Down == "" {
			return nil, fmt.Errorf("migration %d (%s) is missing its up or down file", mig.Version, mig.Description)
		}
		out = append(out, *mig)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

const createMigrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	description VARCHAR(255) NOT NULL,
	applied_at TIMESTAMP NOT NULL
)`

func (m *Migrator) initialize(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, createMigrationsTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// CurrentVersion returns the highest applied version, 0 when none.
func (m *Migrator) CurrentVersion(ctx context.Context) (int, error) {
	if err := m.initialize(ctx); err != nil {
		return 0, err
	}
	var version int
	err := m.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	return version, nil
}

// Status reports the current version and the pending migrations.
func (m *Migrator) Status(ctx context.Context) (MigrationStatus, error) {
	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return MigrationStatus{}, err
	}
	st := MigrationStatus{CurrentVersion: current, TotalMigrations: len(m.migrations)}
	for _, mig := range m.migrations {
		if mig.Version > current {
			st.PendingMigrations = append(st.PendingMigrations, mig.Version)
		}
	}
	return st, nil
}

// Up applies every pending migration in version order.
func (m *Migrator) Up(ctx context.Context) error {
	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return err
	}
	for _, mig := range m.migrations {
		if mig.Version <= current {
			continue
		}
		logger.Infof("applying migration %04d_%s", mig.Version, mig.Description)
		err := m.inTx(ctx, mig.Up, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?,?,?)",
				mig.Version, mig.Description, time.Now().UTC())
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", mig.Version, err)
		}
	}
	return nil
}

// Down reverts the most recently applied migration.
func (m *Migrator) Down(ctx context.Context) error {
	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return err
	}
	if current == 0 {
		return fmt.Errorf("no migrations to roll back")
	}
	for i := len(m.migrations) - 1; i >= 0; i-- {
		mig := m.migrations[i]
		if mig.Version != current {
			continue
		}
		logger.Infof("rolling back migration %04d_%s", mig.Version, mig.Description)
		err := m.inTx(ctx, mig.Down, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = ?", mig.Version)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to revert migration %d: %w", mig.Version, err)
		}
		return nil
	}
	return fmt.Errorf("applied migration %d is unknown", current)
}

func (m *Migrator) inTx(ctx context.Context, script string, record func(*sql.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, stmt := range splitStatements(script) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := record(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// splitStatements splits a script on semicolons that end a line. Line
// comments are dropped.
func splitStatements(script string) []string {
	var out []string
	var cur strings.Builder
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		cur.WriteString(line)
		cur.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			if stmt := strings.TrimSuffix(strings.TrimSpace(cur.String()), ";"); stmt != "" {
				out = append(out, stmt)
			}
			cur.Reset()
		}
	}
	if stmt := strings.TrimSpace(cur.String()); stmt != "" {
		out = append(out, stmt)
	}
	return out
}
