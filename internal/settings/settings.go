// Package settings holds user-tunable download configuration: format
// presets, container choice, concurrency, and retry policy. The concurrency
// core only ever consumes a Settings value; persistence stays here.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/shlex"

	"autoytdlp/internal/dirs"
	"autoytdlp/internal/util"
)

// Flags that collide with arguments autoytdlp manages itself. Custom args
// containing any of these are rejected.
var conflictingFlags = []string{
	"--download-archive",
	"-a",
	"--output",
	"-o",
	"--progress-template",
}

// FormatPreset selects the yt-dlp format expression.
type FormatPreset string

const (
	FormatBest      FormatPreset = "best"
	FormatAudioOnly FormatPreset = "audio-only"
	FormatHD1080p   FormatPreset = "1080p"
	FormatHD720p    FormatPreset = "720p"
	FormatSD480p    FormatPreset = "480p"
	FormatSD360p    FormatPreset = "360p"
)

// FormatArg returns the yt-dlp --format value for this preset.
func (p FormatPreset) FormatArg() string {
	switch p {
	case FormatAudioOnly:
		return "bestaudio/best"
	case FormatHD1080p:
		return "bestvideo[height<=1080]+bestaudio/best[height<=1080]"
	case FormatHD720p:
		return "bestvideo[height<=720]+bestaudio/best[height<=720]"
	case FormatSD480p:
		return "bestvideo[height<=480]+bestaudio/best[height<=480]"
	case FormatSD360p:
		return "bestvideo[height<=360]+bestaudio/best[height<=360]"
	default:
		return "bestvideo*+bestaudio/best"
	}
}

// OutputFormat selects the output container, or audio extraction.
type OutputFormat string

const (
	OutputAuto OutputFormat = "auto"
	OutputMP4  OutputFormat = "mp4"
	OutputMKV  OutputFormat = "mkv"
	OutputMP3  OutputFormat = "mp3"
	OutputWebm OutputFormat = "webm"
)

// ArgModifiers returns the extra yt-dlp arguments implied by the output
// format, or nil for OutputAuto.
func (f OutputFormat) ArgModifiers() []string {
	switch f {
	case OutputMP4:
		return []string{"--merge-output-format", "mp4"}
	case OutputMKV:
		return []string{"--merge-output-format", "mkv"}
	case OutputMP3:
		return []string{"--extract-audio", "--audio-format", "mp3"}
	case OutputWebm:
		return []string{"--merge-output-format", "webm"}
	default:
		return nil
	}
}

// Settings is the persisted user configuration.
type Settings struct {
	FormatPreset        FormatPreset `json:"format_preset"`
	OutputFormat        OutputFormat `json:"output_format"`
	WriteSubtitles      bool         `json:"write_subtitles"`
	WriteThumbnail      bool         `json:"write_thumbnail"`
	AddMetadata         bool         `json:"add_metadata"`
	ConcurrentDownloads int          `json:"concurrent_downloads"`
	NetworkRetry        bool         `json:"network_retry"`
	RetryDelaySec       int          `json:"retry_delay"`
	UseASCIIIndicators  bool         `json:"use_ascii_indicators"`
	CustomArgs          string       `json:"custom_ytdlp_args"`
	ResetStatsOnStart   bool         `json:"reset_stats_on_new_batch"`
}

// Default returns the out-of-the-box configuration.
func Default() Settings {
	return Settings{
		FormatPreset:        FormatBest,
		OutputFormat:        OutputAuto,
		ConcurrentDownloads: 4,
		RetryDelaySec:       2,
		ResetStatsOnStart:   true,
	}
}

// Preset is a named bundle of settings for a common use case.
type Preset string

const (
	PresetBestQuality    Preset = "best-quality"
	PresetAudioArchive   Preset = "audio-archive"
	PresetFastDownload   Preset = "fast-download"
	PresetBandwidthSaver Preset = "bandwidth-saver"
)

// Presets lists all available presets in display order.
func Presets() []Preset {
	return []Preset{PresetBestQuality, PresetAudioArchive, PresetFastDownload, PresetBandwidthSaver}
}

// Name returns the human-readable preset name.
func (p Preset) Name() string {
	switch p {
	case PresetBestQuality:
		return "Best Quality"
	case PresetAudioArchive:
		return "Audio Archive"
	case PresetFastDownload:
		return "Fast Download"
	case PresetBandwidthSaver:
		return "Bandwidth Saver"
	default:
		return string(p)
	}
}

// Description returns a one-line summary shown next to the preset name.
func (p Preset) Description() string {
	switch p {
	case PresetBestQuality:
		return "Best video+audio, subtitles, thumbnails, metadata"
	case PresetAudioArchive:
		return "Audio-only MP3 with metadata for music libraries"
	case PresetFastDownload:
		return "Best quality, 8 concurrent, minimal extras"
	case PresetBandwidthSaver:
		return "480p quality, 2 concurrent downloads"
	default:
		return ""
	}
}

// Apply returns a Settings value configured for this preset.
func (p Preset) Apply() Settings {
	s := Default()
	switch p {
	case PresetBestQuality:
		s.WriteSubtitles = true
		s.WriteThumbnail = true
		s.AddMetadata = true
		s.NetworkRetry = true
	case PresetAudioArchive:
		s.FormatPreset = FormatAudioOnly
		s.OutputFormat = OutputMP3
		s.WriteThumbnail = true
		s.AddMetadata = true
		s.NetworkRetry = true
	case PresetFastDownload:
		s.ConcurrentDownloads = 8
		s.RetryDelaySec = 1
	case PresetBandwidthSaver:
		s.FormatPreset = FormatSD480p
		s.ConcurrentDownloads = 2
		s.NetworkRetry = true
		s.RetryDelaySec = 5
	}
	return s
}

// ValidateCustomArgs rejects custom yt-dlp arguments that would conflict
// with flags autoytdlp sets itself, and malformed shell syntax.
func ValidateCustomArgs(args string) error {
	if strings.TrimSpace(args) == "" {
		return nil
	}
	parsed, err := shlex.Split(args)
	if err != nil {
		return fmt.Errorf("invalid argument syntax: %w", err)
	}
	for _, arg := range parsed {
		for _, conflict := range conflictingFlags {
			if arg == conflict || strings.HasPrefix(arg, conflict+"=") {
				return fmt.Errorf("%q conflicts with autoytdlp's internal handling", conflict)
			}
		}
	}
	return nil
}

// CustomArgList shell-splits the configured custom arguments. Malformed
// syntax yields an empty list rather than an error; validation happens at
// edit time via ValidateCustomArgs.
func (s Settings) CustomArgList() []string {
	if strings.TrimSpace(s.CustomArgs) == "" {
		return nil
	}
	parsed, err := shlex.Split(s.CustomArgs)
	if err != nil {
		return nil
	}
	return parsed
}

// YTDLPArgs builds the settings-derived portion of the yt-dlp argument
// vector. The result is deterministic for a given Settings value and output
// template.
func (s Settings) YTDLPArgs(outputTemplate string) []string {
	args := make([]string, 0, 16)

	args = append(args, "--format", s.FormatPreset.FormatArg())
	args = append(args, "--output", outputTemplate)
	args = append(args, s.OutputFormat.ArgModifiers()...)

	if s.WriteSubtitles {
		args = append(args, "--write-auto-subs", "--sub-langs", "all")
	}
	if s.WriteThumbnail {
		args = append(args, "--write-thumbnail")
	}
	if s.AddMetadata {
		args = append(args, "--add-metadata")
	}

	// One progress line per update; required for line-oriented parsing.
	args = append(args, "--newline")

	args = append(args, s.CustomArgList()...)

	return args
}

// DefaultPath returns the settings file location in the config directory.
func DefaultPath() (string, error) {
	cfg, err := dirs.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg, "settings.json"), nil
}

// Load reads settings from path, creating the file with defaults when it
// does not exist yet.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		s := Default()
		if serr := Save(path, s); serr != nil {
			return s, serr
		}
		return s, nil
	}
	if err != nil {
		return Default(), fmt.Errorf("read settings %s: %w", path, err)
	}

	s := Default()
	if err := json.Unmarshal(data, &s); err != nil {
		return Default(), fmt.Errorf("parse settings %s: %w", path, err)
	}
	if s.ConcurrentDownloads <= 0 {
		s.ConcurrentDownloads = Default().ConcurrentDownloads
	}
	return s, nil
}

// Save persists settings to path with an atomic write, so an interrupted
// save cannot corrupt the existing file.
func Save(path string, s Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	data = append(data, '\n')
	return util.WriteFileAtomic(path, data)
}
