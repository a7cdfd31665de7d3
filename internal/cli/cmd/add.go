package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"autoytdlp/internal/dirs"
	"autoytdlp/internal/linkstore"
)

func newAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "add <url> [urls...]",
		Short:         "Append links to the queue file",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return wrapCLIError(err)
			}

			var links []string
			for _, raw := range args {
				raw = strings.TrimSpace(raw)
				if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
					return &ExitError{Code: ExitCLIError, Err: fmt.Errorf("not an http(s) URL: %q", raw)}
				}
				links = append(links, raw)
			}
			if err := store.Append(links); err != nil {
				return wrapCLIError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %d link(s) to %s\n", len(links), store.Path())
			return nil
		},
	}
}

// openStore resolves the links file the same way a download session does.
func openStore(cmd *cobra.Command) (*linkstore.Store, error) {
	dataDir, err := dirs.DataDir()
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}
	linksFile := getPersistentString(cmd, "links-file", filepath.Join(dataDir, "links.txt"))
	return linkstore.New(linksFile), nil
}
