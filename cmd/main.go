package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "returns-dashboard",
	Short: "Return orders and return requests dashboard",
	Long: `Serves the return management dashboard: two list views over the
returnOrder and returnRequests document collections with search suggestions,
sorting, selection and per-row actions.

Configuration is read from .env files and the environment (see .example.env).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
