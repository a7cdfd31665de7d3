package downloader

import (
	"reflect"
	"strings"
	"testing"

	"autoytdlp/internal/settings"
)

func TestBuildArgsShape(t *testing.T) {
	cfg := ArgsConfig{
		ArchiveFile: "/data/archive.txt",
		DownloadDir: "/videos",
		Settings:    settings.Default(),
	}
	url := "https://youtube.com/watch?v=abc123"
	args := BuildArgs(cfg, url)

	if args[0] != "--download-archive" || args[1] != "/data/archive.txt" {
		t.Errorf("archive flag not first: %v", args[:2])
	}
	if args[len(args)-1] != url {
		t.Errorf("url not last: %v", args[len(args)-1])
	}

	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "--newline") {
		t.Error("missing --newline")
	}
	if !strings.Contains(joined, "--progress-template") {
		t.Error("missing --progress-template")
	}
	if !strings.Contains(joined, ProgressMarkerStart) || !strings.Contains(joined, ProgressMarkerEnd) {
		t.Error("progress template missing sentinel markers")
	}
	if !strings.Contains(joined, "%(title)s - [%(id)s].%(ext)s") {
		t.Error("missing output template")
	}
}

func TestBuildArgsDeterministic(t *testing.T) {
	cfg := ArgsConfig{
		ArchiveFile: "/data/archive.txt",
		DownloadDir: "/videos",
		Settings:    settings.Default(),
	}
	url := "https://youtube.com/watch?v=abc123"
	a := BuildArgs(cfg, url)
	b := BuildArgs(cfg, url)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("args differ between calls:\n%v\n%v", a, b)
	}
}

func TestBuildArgsExtras(t *testing.T) {
	cfg := ArgsConfig{
		ArchiveFile: "/data/archive.txt",
		DownloadDir: "/videos",
		Settings: settings.Settings{
			FormatPreset:   settings.FormatHD1080p,
			OutputFormat:   settings.OutputMP4,
			WriteSubtitles: true,
			WriteThumbnail: true,
			AddMetadata:    true,
			CustomArgs:     "--no-mtime --socket-timeout 10",
		},
	}
	joined := strings.Join(BuildArgs(cfg, "https://a.example/v"), " ")

	for _, want := range []string{
		"--write-auto-subs", "--write-thumbnail", "--add-metadata",
		"--no-mtime", "--socket-timeout 10",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("missing %q in %s", want, joined)
		}
	}
}
