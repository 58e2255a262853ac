package main

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/jchristn/lattice/blob"
	"github.com/jchristn/lattice/core"
	"github.com/jchristn/lattice/core/persistence"
	"github.com/jchristn/lattice/mysql"
	"github.com/jchristn/lattice/postgres"
	"github.com/jchristn/lattice/sqladapter"
	"github.com/jchristn/lattice/sqlite"
	"github.com/jchristn/lattice/sqlserver"
)

var rootCmd = &cobra.Command{
	Use:   "lattice",
	Short: "Schema-on-write JSON document database over a relational backend",
	Long: `Lattice stores JSON documents in collections, discovers their schemas on
write, and materializes every indexable leaf value into per-path index
tables so structured searches run entirely in the relational backend.

The serve command runs the REST server. The backend subcommands (sqlite,
postgresql, mysql, sqlserver) run the end-to-end self-test battery
against a live backend and exit 0 on pass, 1 on fail.`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().Bool("enable-locking", false,
		"serialize writers per collection with a mutex")
	rootCmd.PersistentFlags().String("data-dir", "./lattice-data",
		"directory for raw document bodies")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false,
		"enable debug logging")

	viper.SetEnvPrefix("LATTICE")
	viper.AutomaticEnv()
	_ = viper.BindPFlag("enable_locking", rootCmd.PersistentFlags().Lookup("enable-locking"))
	_ = viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func newLogger() (*zap.Logger, error) {
	if viper.GetBool("verbose") {
		return zap.NewDevelopment()
	}
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	return config.Build()
}

// openAdapter builds the dialect adapter for one backend name and DSN.
func openAdapter(backend, dsn string, logger *zap.Logger) (*sqladapter.Adapter, error) {
	switch backend {
	case "sqlite":
		return sqlite.Open(dsn, logger)
	case "postgresql":
		return postgres.Open(dsn, logger)
	case "mysql":
		return mysql.Open(dsn, logger)
	case "sqlserver":
		return sqlserver.Open(dsn, logger)
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}

// openPersistence probes the backend with exponential backoff before
// initializing the metadata tables, so a freshly started database
// container has time to come up.
func openPersistence(ctx context.Context, adapter core.DatabaseAdapter, dataDir string, logger *zap.Logger) (*persistence.Persistence, error) {
	probe := backoff.NewExponentialBackOff()
	probe.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(func() error {
		return adapter.Ping(ctx)
	}, backoff.WithContext(probe, ctx)); err != nil {
		return nil, fmt.Errorf("backend unreachable: %w", err)
	}

	blobs, err := blob.NewStore(dataDir, logger)
	if err != nil {
		return nil, err
	}
	return persistence.New(ctx, adapter, blobs, logger, persistence.Options{
		EnableObjectLocking: viper.GetBool("enable_locking"),
	})
}
