package cmd

import (
	"github.com/spf13/cobra"

	"github.com/querygate/querygate/internal/backend"
	"github.com/querygate/querygate/internal/config"
)

var mysqlCmd = &cobra.Command{
	Use:   "mysql",
	Short: "Serve the gateway against a MySQL backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(func(cfg *config.Config) (backend.Adapter, error) {
			return backend.NewMySQL(cfg)
		})
	},
}

var postgresCmd = &cobra.Command{
	Use:   "postgres",
	Short: "Serve the gateway against a PostgreSQL backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(func(cfg *config.Config) (backend.Adapter, error) {
			return backend.NewPostgres(cfg)
		})
	},
}

var sqliteCmd = &cobra.Command{
	Use:   "sqlite",
	Short: "Serve the gateway against a SQLite database file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(func(cfg *config.Config) (backend.Adapter, error) {
			return backend.NewSQLite(cfg)
		})
	},
}

var mongoCmd = &cobra.Command{
	Use:   "mongo",
	Short: "Serve the gateway against a MongoDB backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(func(cfg *config.Config) (backend.Adapter, error) {
			return backend.NewDocument(cfg)
		})
	},
}

func init() {
	rootCmd.AddCommand(mysqlCmd, postgresCmd, sqliteCmd, mongoCmd)
}
