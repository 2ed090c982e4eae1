// Command rrclaw is the CLI entry point for the runtime: a REPL driving
// one Agent, plus management subcommands for routines, skills, and
// configuration.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"

	configPath string
)

func main() {
	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "rrclaw",
		Short:        "A single-user, multi-channel AI agent runtime",
		Version:      fmt.Sprintf("%s (commit %s)", version, commit),
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "path to the TOML config file")

	rootCmd.AddCommand(
		buildRunCmd(),
		buildRoutineCmd(),
		buildSkillCmd(),
		buildConfigCmd(),
	)
	return rootCmd
}

func defaultConfigPath() string {
	if env := os.Getenv("RRCLAW_CONFIG"); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "rrclaw.toml"
	}
	return home + "/.rrclaw/config.toml"
}
