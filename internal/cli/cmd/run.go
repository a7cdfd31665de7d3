package cmd

import (
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "run [urls...]",
		Short:         "Download the queued links without the TUI",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHeadlessCmd(cmd, args)
		},
	}
	return cmd
}

func runHeadlessCmd(cmd *cobra.Command, args []string) error {
	sess, err := assembleSession(cmd, args, false)
	if err != nil {
		return wrapCLIError(err)
	}
	return runHeadless(cmd, sess)
}
