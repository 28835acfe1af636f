// Package main provides the query engine CLI entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dominicdesy/intelia-expert-sub012/pkg/engine"
)

var (
	// Global flags
	serverURL  string
	apiKey     string
	outputJSON bool

	ui *UI
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "query-engine-cli",
	Short: "Query engine CLI for querying, cache administration and seeding",
	Long: `Query engine CLI provides commands for working with the query engine.

Use this tool to:
- Ask questions and inspect how they were routed
- Index knowledge documents
- Inspect semantic cache statistics
- Invalidate cached answers
- Seed a local SQLite metric database

All commands support --json for automation.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui = NewUI(outputJSON)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:8086", "query engine API address")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key for authenticated deployments")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")

	rootCmd.AddCommand(newQueryCmd())
	rootCmd.AddCommand(newDocumentsCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newInvalidateCmd())
	rootCmd.AddCommand(newSeedCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func newClient() (*engine.Client, error) {
	return engine.NewClient(engine.ClientConfig{BaseURL: serverURL, APIKey: apiKey})
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("query-engine-cli 0.3.0")
		},
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
