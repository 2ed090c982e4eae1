package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func buildSkillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skill",
		Short: "Inspect the skill registry",
	}
	cmd.AddCommand(buildSkillListCmd(), buildSkillShowCmd())
	return cmd
}

func buildSkillListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List discovered skills across all three tiers",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer rt.mem.Close()
			for _, m := range rt.skillReg.Meta() {
				fmt.Printf("%-20s %-10s %s\n", m.Name, m.Source, m.Description)
			}
			return nil
		},
	}
}

func buildSkillShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Print a skill's full body and resource list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer rt.mem.Close()
			content, ok := rt.skillReg.Load(args[0])
			if !ok {
				return fmt.Errorf("skill %q not found", args[0])
			}
			fmt.Println(content.Body)
			if len(content.Resources) > 0 {
				fmt.Println("\nresources:")
				for _, r := range content.Resources {
					fmt.Println("  " + r)
				}
			}
			return nil
		},
	}
}
