package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/iliyamo/flasky/internal/app"
	"github.com/iliyamo/flasky/internal/config"
	"github.com/iliyamo/flasky/internal/database"
	"github.com/iliyamo/flasky/internal/fake"
	"github.com/iliyamo/flasky/internal/logger"
	"github.com/iliyamo/flasky/internal/queue"
	"github.com/iliyamo/flasky/internal/repository"
)

// setup loads the configuration and configures logging from it.
func setup() (config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return config.Config{}, err
	}
	logger.InitLogger(logger.ParseLevel(cfg.LogLevel), cfg.LogFile)
	return cfg, nil
}

func openDB(cfg config.Config) (*database.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

const workerFlag = "worker"

var serveFlags = map[string]cobraflags.Flag{
	workerFlag: &cobraflags.BoolFlag{
		Name:  workerFlag,
		Value: false,
		Usage: "Also consume the mail queue in this process (needs RABBITMQ_URL)",
	},
}

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			rdb := config.NewRedisClient(cfg.Redis)
			if rdb != nil {
				defer rdb.Close()
			}

			a, err := app.New(cfg, db, rdb, app.NewMailer(cfg))
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()
			if serveFlags[workerFlag].GetBool() {
				if cfg.RabbitURL == "" {
					return errors.New("--worker needs RABBITMQ_URL")
				}
				go func() {
					if err := queue.StartMailConsumer(ctx, cfg.RabbitURL, app.NewSender(cfg)); err != nil && !errors.Is(err, context.Canceled) {
						logger.Errorf("mail worker: %v", err)
					}
				}()
			}
			return a.Run(ctx, ":"+cfg.Port)
		},
	}
	cobraflags.RegisterMap(cmd, serveFlags)
	return cmd
}

func newWorkerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Deliver queued mail from RabbitMQ",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			if cfg.RabbitURL == "" {
				return errors.New("RABBITMQ_URL is not set")
			}
			ctx, stop := signalContext()
			defer stop()
			err = queue.StartMailConsumer(ctx, cfg.RabbitURL, app.NewSender(cfg))
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

// withDatabase runs fn against the configured database.
func withDatabase(fn func(ctx context.Context, cfg config.Config, db *database.DB, m *database.Migrator) error) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	m, err := database.NewMigrator(db)
	if err != nil {
		return err
	}
	return fn(context.Background(), cfg, db, m)
}

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate [up|down|status]",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(_ *cobra.Command, _ []string) error {
				return withDatabase(func(ctx context.Context, _ config.Config, _ *database.DB, m *database.Migrator) error {
					return m.Up(ctx)
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Revert the latest migration",
			RunE: func(_ *cobra.Command, _ []string) error {
				return withDatabase(func(ctx context.Context, _ config.Config, _ *database.DB, m *database.Migrator) error {
					return m.Down(ctx)
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the schema version and pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDatabase(func(ctx context.Context, _ config.Config, _ *database.DB, m *database.Migrator) error {
					st, err := m.Status(ctx)
					if err != nil {
						return err
					}
					cmd.Printf("current version: %d of %d\n", st.CurrentVersion, st.TotalMigrations)
					cmd.Printf("pending: %v\n", st.PendingMigrations)
					return nil
				})
			},
		},
	)
	return cmd
}

func newDeployCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "deploy",
		Short: "Migrate the schema to the latest version and create or update the roles",
		RunE: func(_ *cobra.Command, _ []string) error {
			return withDatabase(func(ctx context.Context, _ config.Config, db *database.DB, m *database.Migrator) error {
				if err := m.Up(ctx); err != nil {
					return err
				}
				return repository.NewStore(db.DB).InsertRoles(ctx)
			})
		},
	}
}

func newRolesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "Create or update the User, Moderator and Administrator roles",
		RunE: func(_ *cobra.Command, _ []string) error {
			return withDatabase(func(ctx context.Context, _ config.Config, db *database.DB, _ *database.Migrator) error {
				return repository.NewStore(db.DB).InsertRoles(ctx)
			})
		},
	}
}

const countFlag = "count"

var (
	fakeUserFlags = map[string]cobraflags.Flag{
		countFlag: &cobraflags.IntFlag{Name: countFlag, Value: 100, Usage: "Number of users to create"},
	}
	fakePostFlags = map[string]cobraflags.Flag{
		countFlag: &cobraflags.IntFlag{Name: countFlag, Value: 100, Usage: "Number of posts to create"},
	}
)

func newFakeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fake [users|posts]",
		Short: "Generate development data",
	}

	users := &cobra.Command{
		Use:   "users",
		Short: "Create confirmed users with generated profiles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(func(ctx context.Context, cfg config.Config, db *database.DB, _ *database.Migrator) error {
				n, err := fake.Users(ctx, repository.NewStore(db.DB), fakeUserFlags[countFlag].GetInt(), cfg.BcryptCost)
				cmd.Printf("created %d users\n", n)
				return err
			})
		},
	}
	cobraflags.RegisterMap(users, fakeUserFlags)

	posts := &cobra.Command{
		Use:   "posts",
		Short: "Create posts by random existing users",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(func(ctx context.Context, _ config.Config, db *database.DB, _ *database.Migrator) error {
				n, err := fake.Posts(ctx, repository.NewStore(db.DB), fakePostFlags[countFlag].GetInt())
				cmd.Printf("created %d posts\n", n)
				return err
			})
		},
	}
	cobraflags.RegisterMap(posts, fakePostFlags)

	cmd.AddCommand(users, posts)
	return cmd
}
