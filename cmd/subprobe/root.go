package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for subprobe.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subprobe",
		Short: "Collect proxy subscriptions and keep only the nodes that work",
		Long: `subprobe aggregates proxy subscriptions (base64 share-link lists and
clash-style proxy documents), tests every node through a local sing-box
instance and writes the reachable ones to healthy.txt and healthy_clash.yaml.

sing-box must be installed; set --engine or SINGBOX_PATH when it is not
in PATH.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .subprobe in current or home directory)")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewParseCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
