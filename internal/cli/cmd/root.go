package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"autoytdlp/internal/config"
)

const (
	ExitOK            = 0
	ExitCLIError      = 1
	ExitMissingDep    = 2
	ExitDownloadError = 3
)

// ExitError wraps an error with a process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "autoytdlp [urls...]",
		Short:         "Batch video downloader with queue management",
		Long:          "autoytdlp drives yt-dlp over a persistent queue of links: add URLs, start a batch, and watch concurrent downloads with live progress. Completed links leave the queue; failed ones stay for the next run.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand: TUI on a terminal, headless otherwise.
			return runExecute(cmd, args, runMode{ForceTUI: false})
		},
	}

	// Persistent flags available to all subcommands
	bindSessionFlags(root.PersistentFlags())
	root.Flags().Bool("no-ui", false, "Disable TUI; use plain textual output")

	// Subcommands
	root.AddCommand(newRunCmd())
	root.AddCommand(newTuiCmd())
	root.AddCommand(newAddCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newDoctorCmd())
	root.AddCommand(newCompletionCmd())

	return root
}

func bindSessionFlags(fs *pflag.FlagSet) {
	fs.StringP("links-file", "l", "", "Path to the links file (default: data dir)")
	fs.StringP("download-dir", "o", "downloads", "Directory for downloaded files")
	fs.String("archive-file", "", "yt-dlp download archive path (default: data dir)")
	fs.IntP("concurrent", "j", 0, "Concurrent downloads (0 uses settings)")
	fs.String("dl-binary", "", "Path to yt-dlp or youtube-dl")
	fs.BoolP("verbose", "v", false, "Debug-level logging")
}

// Execute runs the CLI with the provided context.
func Execute(ctx context.Context) error {
	root := newRootCmd()
	_ = config.Init(root)
	return root.ExecuteContext(ctx)
}

// Helpers
func getPersistentString(cmd *cobra.Command, name, def string) string {
	v, err := cmd.Flags().GetString(name)
	if err != nil || v == "" {
		return def
	}
	return v
}

func getPersistentBool(cmd *cobra.Command, name string, def bool) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		return def
	}
	return v
}

func getPersistentInt(cmd *cobra.Command, name string, def int) int {
	v, err := cmd.Flags().GetInt(name)
	if err != nil {
		return def
	}
	return v
}
