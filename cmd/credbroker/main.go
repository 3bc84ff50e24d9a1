package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hostops/credbroker/cmd/credbroker/commands"
	"github.com/hostops/credbroker/internal/config"
	"github.com/hostops/credbroker/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile string
		noColor    bool
		debug      bool
	)

	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "credbroker",
		Short: "Credential broker - short-lived sessions from long-lived secrets",
		Long: `credbroker fetches server credentials from a remote secret store,
mints short-lived session tokens from them, and rotates the underlying
secrets while revoking outstanding sessions.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.Path = configFile
			cfg.Logger = logging.New(debug, noColor)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "credbroker.yaml", "Config file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		commands.NewGetCommand(cfg),
		commands.NewRotateCommand(cfg),
		commands.NewSessionsCommand(cfg),
		commands.NewCleanupCommand(cfg),
		commands.NewDoctorCommand(cfg),
	)

	return rootCmd.Execute()
}
