package main

import (
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml"
	"github.com/spf13/cobra"
)

func buildConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read or edit the TOML config file in place",
	}
	cmd.AddCommand(buildConfigGetCmd(), buildConfigSetCmd())
	return cmd
}

func buildConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print a dotted config key's value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := toml.LoadFile(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			value := tree.Get(args[0])
			if value == nil {
				return fmt.Errorf("key %q not found", args[0])
			}
			fmt.Println(value)
			return nil
		},
	}
}

func buildConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a dotted config key, preserving the file's formatting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := toml.LoadFile(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			tree.Set(args[0], args[1])
			f, err := os.Create(configPath)
			if err != nil {
				return fmt.Errorf("open config for write: %w", err)
			}
			defer f.Close()
			_, err = tree.WriteTo(f)
			return err
		},
	}
}
