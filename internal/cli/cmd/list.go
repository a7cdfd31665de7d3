package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"autoytdlp/internal/util"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "list",
		Short:         "Show the queued links",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return wrapCLIError(err)
			}
			links, err := store.Load()
			if err != nil {
				return wrapCLIError(err)
			}

			out := cmd.OutOrStdout()
			if len(links) == 0 {
				fmt.Fprintf(out, "Queue empty (%s)\n", store.Path())
				return nil
			}
			full, _ := cmd.Flags().GetBool("full")
			for i, link := range links {
				shown := link
				if !full {
					shown = util.TruncateURL(link)
				}
				fmt.Fprintf(out, "%3d  %s\n", i+1, shown)
			}
			fmt.Fprintf(out, "%d link(s) in %s\n", len(links), store.Path())
			return nil
		},
	}
	cmd.Flags().Bool("full", false, "Print full URLs instead of shortened ones")
	return cmd
}
