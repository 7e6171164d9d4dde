// Package cmd provides the querygate command-line interface: one
// subcommand per backend family, each of which loads configuration,
// connects the adapter, and serves the gateway over stdio.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "querygate",
	Short: "Read-only query gateway between an AI client and a database",
	Long: `querygate mediates free-form query requests from an AI client against a
single configured database backend. Only read operations are admitted;
every operation is bounded in time and result size.

Configuration comes from environment variables (or a .env file):
DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME, DB_SSLMODE, SQLITE_PATH,
MAX_QUERY_TIME, MAX_ROWS, DB_POOL_SIZE, POOL_ACQUIRE_WAIT,
ENABLE_QUERY_LOGGING, METRICS_ADDR.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
