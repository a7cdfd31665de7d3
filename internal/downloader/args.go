package downloader

import (
	"path/filepath"

	"autoytdlp/internal/settings"
)

// progressTemplate makes yt-dlp emit one machine-readable line per progress
// update, wrapped in the sentinel markers Parse understands. The field order
// must match parseTemplate exactly.
const progressTemplate = "download:" +
	ProgressMarkerStart +
	"%(progress.status)s|" +
	"%(progress._percent_str)s|" +
	"%(progress._speed_str)s|" +
	"%(progress._eta_str)s|" +
	"%(progress.downloaded_bytes)s|" +
	"%(progress.total_bytes)s|" +
	"%(progress.fragment_index)s|" +
	"%(progress.fragment_count)s" +
	ProgressMarkerEnd

// ArgsConfig is everything needed to build a job's argument vector besides
// the URL itself.
type ArgsConfig struct {
	// ArchiveFile is the yt-dlp --download-archive path used for
	// de-duplication across runs.
	ArchiveFile string
	// DownloadDir is where output files land.
	DownloadDir string
	// Settings supplies format, container, and extras flags.
	Settings settings.Settings
}

// OutputTemplate returns the yt-dlp output naming template rooted in dir.
func OutputTemplate(dir string) string {
	return filepath.Join(dir, "%(title)s - [%(id)s].%(ext)s")
}

// BuildArgs assembles the full yt-dlp argument vector for one job. The
// result is deterministic for a given (cfg, url) pair: the URL is always
// the final positional argument, preceded by the archive file, the
// settings-derived flags, and the structured progress template.
func BuildArgs(cfg ArgsConfig, url string) []string {
	args := []string{"--download-archive", cfg.ArchiveFile}
	args = append(args, cfg.Settings.YTDLPArgs(OutputTemplate(cfg.DownloadDir))...)
	args = append(args, "--progress-template", progressTemplate)
	args = append(args, url)
	return args
}
