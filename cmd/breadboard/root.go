package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "breadboard",
		Short:         "Virtual microcontroller sketch host",
		Long:          "breadboard executes compiled sketch files (.bast) against a virtual board,\nprinting every hardware command as a JSON line.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newInspectCmd())
	return cmd
}
