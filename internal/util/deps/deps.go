// Package deps probes the external tools autoytdlp shells out to.
package deps

import (
	"fmt"
	"os"
	"os/exec"
)

// FindDownloader returns the path to yt-dlp or youtube-dl.
// If customPath is non-empty, it tries that path directly or looks it up in PATH.
func FindDownloader(customPath string) (string, error) {
	if customPath != "" {
		if _, err := os.Stat(customPath); err == nil {
			return customPath, nil
		}
		if p, err := exec.LookPath(customPath); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("could not find downloader at %q", customPath)
	}
	if p, err := exec.LookPath("yt-dlp"); err == nil {
		return p, nil
	}
	if p, err := exec.LookPath("youtube-dl"); err == nil {
		return p, nil
	}
	return "", fmt.Errorf("could not find yt-dlp or youtube-dl in PATH; please install yt-dlp")
}

// FindFFmpeg returns the path to the ffmpeg binary in PATH.
func FindFFmpeg() (string, error) {
	if p, err := exec.LookPath("ffmpeg"); err == nil {
		return p, nil
	}
	return "", fmt.Errorf("could not find ffmpeg in PATH; please install ffmpeg")
}

// Check verifies that yt-dlp and ffmpeg are present and invocable, by
// actually running their version commands rather than only consulting PATH.
// It returns one message per missing tool, suitable for surfacing as log
// lines. An empty slice means all dependencies are available.
func Check(downloaderPath string) []string {
	var missing []string

	dl := downloaderPath
	if dl == "" {
		dl = "yt-dlp"
	}
	if err := probe(dl, "--version"); err != nil {
		missing = append(missing, fmt.Sprintf("%s is not installed or not runnable: %v (https://github.com/yt-dlp/yt-dlp)", dl, err))
	}

	if err := probe("ffmpeg", "-version"); err != nil {
		missing = append(missing, fmt.Sprintf("ffmpeg is not installed or not runnable: %v (https://ffmpeg.org)", err))
	}

	return missing
}

func probe(name string, arg string) error {
	cmd := exec.Command(name, arg)
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run()
}
