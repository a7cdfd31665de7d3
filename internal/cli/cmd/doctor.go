package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"autoytdlp/internal/util/deps"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "doctor",
		Short:         "Diagnose external dependencies (yt-dlp/youtube-dl, ffmpeg)",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dl, derr := deps.FindDownloader(getPersistentString(cmd, "dl-binary", ""))
			if derr != nil {
				return &ExitError{Code: ExitMissingDep, Err: derr}
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Downloader: %s\n", dl)
			if ff, ferr := deps.FindFFmpeg(); ferr != nil {
				fmt.Fprintf(out, "FFmpeg:     not found (merging and audio extraction unavailable)\n")
			} else {
				fmt.Fprintf(out, "FFmpeg:     %s\n", ff)
			}
			for _, warning := range deps.Check(dl) {
				fmt.Fprintln(out, warning)
			}
			return nil
		},
	}
}
