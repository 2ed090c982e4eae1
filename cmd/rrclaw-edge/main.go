// Command rrclaw-edge is a placeholder for a future remote-tool-bridge
// daemon: a process running on a second machine that would expose local
// capabilities (filesystem, browser, device access) back to a rrclaw
// Agent over the network. The runtime this repo implements is
// single-process and single-workspace (spec §1, §5); nothing here is
// wired into internal/agent's tool-call path yet.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	cmd := &cobra.Command{
		Use:     "rrclaw-edge",
		Short:   "Remote-tool-bridge daemon (placeholder, not yet wired to the agent loop)",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(os.Stderr, "rrclaw-edge does not yet connect to a core process; this binary exists as a landing point for future remote tool execution.")
			return nil
		},
	}
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
