package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rrclaw/rrclaw/pkg/models"
)

func buildRoutineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routine",
		Short: "Manage cron-scheduled routines",
	}
	cmd.AddCommand(
		buildRoutineListCmd(),
		buildRoutineAddCmd(),
		buildRoutineDeleteCmd(),
		buildRoutineEnableCmd(),
		buildRoutineDisableCmd(),
		buildRoutineRunCmd(),
		buildRoutineLogsCmd(),
	)
	return cmd
}

func buildRoutineListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every known routine",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer rt.mem.Close()
			for _, r := range rt.cron.List() {
				status := "disabled"
				if r.Enabled {
					status = "enabled"
				}
				fmt.Printf("%-20s %-20s %-10s %s\n", r.Name, r.Schedule, status, r.Source)
			}
			return nil
		},
	}
}

func buildRoutineAddCmd() *cobra.Command {
	var schedule, message, channel string
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create and schedule a new routine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer rt.mem.Close()
			return rt.cron.Create(models.Routine{
				Name: args[0], Schedule: schedule, Message: message,
				Channel: channel, Enabled: true,
			})
		},
	}
	cmd.Flags().StringVar(&schedule, "schedule", "", "5 or 6 field cron expression")
	cmd.Flags().StringVar(&message, "message", "", "message re-entered into the agent loop on each firing")
	cmd.Flags().StringVar(&channel, "channel", "stderr", "output channel name")
	cmd.MarkFlagRequired("schedule")
	cmd.MarkFlagRequired("message")
	return cmd
}

func buildRoutineDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a routine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer rt.mem.Close()
			return rt.cron.Delete(args[0])
		},
	}
}

func buildRoutineEnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enable <name>",
		Short: "Enable a routine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer rt.mem.Close()
			return rt.cron.SetEnabled(args[0], true)
		},
	}
}

func buildRoutineDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <name>",
		Short: "Disable a routine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer rt.mem.Close()
			return rt.cron.SetEnabled(args[0], false)
		},
	}
}

func buildRoutineRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <name>",
		Short: "Fire a routine immediately, outside its schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer rt.mem.Close()
			exec, err := rt.cron.RunNow(cmd.Context(), args[0])
			if exec != nil {
				out, _ := json.MarshalIndent(exec, "", "  ")
				fmt.Println(string(out))
			}
			return err
		},
	}
}

func buildRoutineLogsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "logs <name>",
		Short: "Show recent executions of a routine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer rt.mem.Close()
			logs, err := rt.cron.Logs(args[0], limit)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			for _, l := range logs {
				_ = enc.Encode(l)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "max entries to return")
	return cmd
}
