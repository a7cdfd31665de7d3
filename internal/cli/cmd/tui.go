package cmd

import (
	"github.com/spf13/cobra"
)

func newTuiCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "tui [urls...]",
		Short:         "Force the interactive queue view",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Force TUI; ui.Run errors when stdout is not a terminal.
			return runExecute(cmd, args, runMode{ForceTUI: true})
		},
	}
}
