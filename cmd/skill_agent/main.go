// Package main provides the skill_agent CLI and HTTP API server for the
// skill self-improvement engine.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "skill_agent",
	Short: "Skill self-improvement engine",
	Long: "skill_agent records user grades for prompt-driven skills, detects when a skill's quality " +
		"drops, proposes prompt changes and promotes or rolls back skill versions.",
	SilenceUsage: true,
}

var (
	configPath  string
	storeFlag   string
	databaseURL string
	badgerPath  string
	logLevel    string
	verbose     bool
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to a JSON config file")
	flags.StringVar(&storeFlag, "store", "", "Record store: memory, badger or postgres")
	flags.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (postgres store)")
	flags.StringVar(&badgerPath, "badger-path", "", "Data directory (badger store)")
	flags.StringVar(&logLevel, "log-level", "", "Log level: trace, debug, info, warn or error")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Print boxed reports instead of JSON")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
