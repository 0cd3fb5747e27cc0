package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/axellelanca/shortly/internal/config"
)

// Cfg holds the loaded configuration, accessible to all Cobra commands.
var Cfg *config.Config

// RootCmd is the base command; subcommands register themselves via their own
// init() functions, which keeps the command files independent and avoids
// import cycles.
var RootCmd = &cobra.Command{
	Use:   "shortly",
	Short: "A URL shortener service",
	Long: `A URL shortener service with custom aliases, click analytics,
a Redis-backed existence cache and per-endpoint rate limiting.`,
}

// Execute is the entry point called from main.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

// initConfig loads the configuration before any command runs.
func initConfig() {
	var err error
	Cfg, err = config.LoadConfig()
	if err != nil {
		log.Printf("Warning: Problem loading configuration: %v. Using default values.", err)
	}
}
