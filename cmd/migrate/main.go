// Command migrate manages the PostgreSQL schema of the CVR ledger
package main

import (
	"database/sql"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/erp/cvr/internal/infrastructure/config"
	"github.com/erp/cvr/internal/infrastructure/logger"
	"github.com/erp/cvr/internal/infrastructure/migration"
	"github.com/erp/cvr/migrations"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type cli struct {
	out            io.Writer
	configPath     string
	migrationsPath string
	logLevel       string
	log            *zap.Logger
}

func main() {
	c := &cli{out: os.Stdout}
	err := newRootCmd(c).Execute()
	if c.log != nil {
		_ = c.log.Sync()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the CVR ledger database schema",
		Long: `migrate applies the ledger schema to PostgreSQL.

Database settings come from config.toml (or --config) and the CVR_DATABASE_*
environment variables. SQLite databases are migrated by the server on start.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log, err := logger.New(&logger.Config{
				Level:      c.logLevel,
				Format:     "console",
				Output:     "stderr",
				TimeFormat: "2006-01-02 15:04:05",
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			c.log = log
			return nil
		},
	}
	root.SetOut(c.out)

	flags := root.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", "", "Config file (default: ./config.toml or /app/config.toml)")
	flags.StringVar(&c.migrationsPath, "path", "", "Migrations directory on disk (default: the set built into the binary)")
	flags.StringVar(&c.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	root.AddCommand(
		c.upCmd(),
		c.downCmd(),
		c.stepCmd(),
		c.versionCmd(),
		c.statusCmd(),
		c.forceCmd(),
		c.createCmd(),
		c.listCmd(),
	)
	return root
}

func (c *cli) source() fs.FS {
	if c.migrationsPath != "" {
		return os.DirFS(c.migrationsPath)
	}
	return migrations.FS
}

// withMigrator opens the configured PostgreSQL database for the duration of fn
func (c *cli) withMigrator(fn func(*migration.Migrator) error) error {
	cfg, err := config.LoadFrom(c.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.Driver != config.DriverPostgres {
		return fmt.Errorf("database driver %q is not migrated by this tool; sqlite is migrated by the server on start", cfg.Database.Driver)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	m, err := migration.New(db, c.source(), c.log)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			c.log.Warn("Close migrator", zap.Error(err))
		}
	}()
	return fn(m)
}
