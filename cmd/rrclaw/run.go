package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rrclaw/rrclaw/internal/agent"
	"github.com/rrclaw/rrclaw/internal/tools/selfinfo"
)

func buildRunCmd() *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start an interactive REPL session with the agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(cmd.Context(), sessionID)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id (defaults to today's date)")
	return cmd
}

func runREPL(ctx context.Context, sessionID string) error {
	rt, err := buildRuntime(ctx, configPath)
	if err != nil {
		return err
	}
	defer rt.mem.Close()

	a := agent.New(agent.Config{
		Provider:    rt.provider,
		Registry:    rt.registry,
		Policy:      rt.policy,
		Memory:      rt.mem,
		Skills:      rt.skillReg,
		Identity:    rt.identity,
		Confirm:     confirmFromStdin,
		Model:       rt.cfg.Default.Model,
		RouterModel: rt.cfg.Default.RouterModel,
		Temperature: rt.cfg.Default.Temperature,
		SessionID:   sessionID,
		Logger:      rt.logger,
		Metrics:     rt.metrics,
	})

	// self_info reports on this specific Agent's rate-limit tracker, so it
	// is wired into the shared registry only once the Agent exists.
	rt.registry.Register(selfinfo.New(selfinfo.Info{
		Provider:     rt.cfg.Default.Provider,
		Model:        rt.cfg.Default.Model,
		Workspace:    rt.policy.Raw().Workspace,
		AutonomyMode: string(rt.policy.Raw().Mode),
		APIKey:       rt.cfg.Providers[rt.cfg.Default.Provider].APIKey,
	}, a.Tracker()), agent.GroupFileOps)

	rt.cron.Start()
	defer rt.cron.Stop()

	fmt.Fprintln(os.Stdout, "rrclaw ready. Type a message, or /exit to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(os.Stdout, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/exit" || line == "/quit" {
			break
		}
		reply, err := a.ProcessMessage(ctx, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Fprintln(os.Stdout, reply)
	}
	return scanner.Err()
}

// confirmFromStdin implements agent.ConfirmFunc by prompting the operator
// on stdin/stdout, used in Supervised mode before a mutating tool runs.
func confirmFromStdin(ctx context.Context, toolName string, args []byte) bool {
	fmt.Fprintf(os.Stdout, "\nconfirm %s(%s)? [y/N] ", toolName, string(args))
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "y" || line == "yes"
}
