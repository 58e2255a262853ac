package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jchristn/lattice/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST server",
	Long: `Run the REST server over one backend.

Examples:
  lattice serve --backend sqlite --db lattice.db --listen :8000
  lattice serve --backend postgresql --db "postgres://user:pw@localhost:5432/lattice?sslmode=disable"`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("backend", "sqlite", "backend dialect: sqlite, postgresql, mysql, sqlserver")
	serveCmd.Flags().String("db", "lattice.db", "backend DSN (filename for sqlite)")
	serveCmd.Flags().String("listen", ":8000", "listen address")
	_ = viper.BindPFlag("backend", serveCmd.Flags().Lookup("backend"))
	_ = viper.BindPFlag("db", serveCmd.Flags().Lookup("db"))
	_ = viper.BindPFlag("listen", serveCmd.Flags().Lookup("listen"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	adapter, err := openAdapter(viper.GetString("backend"), viper.GetString("db"), logger)
	if err != nil {
		return err
	}
	defer adapter.Close()

	p, err := openPersistence(cmd.Context(), adapter, viper.GetString("data_dir"), logger)
	if err != nil {
		return err
	}

	return server.New(p, logger).Start(viper.GetString("listen"))
}
