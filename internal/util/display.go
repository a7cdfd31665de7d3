package util

import "strings"

// TruncateURL shortens a URL for display in narrow UI columns.
// YouTube URLs collapse to "[VIDEO_ID]"; other URLs fall back to their last
// path segment, or a hard truncation when that is unhelpfully long.
func TruncateURL(url string) string {
	if strings.Contains(url, "youtube.com") || strings.Contains(url, "youtu.be") {
		if id := youtubeID(url); id != "" {
			return "[" + id + "]"
		}
	}

	if i := strings.LastIndex(url, "/"); i >= 0 {
		last := url[i+1:]
		if last != "" && len(last) <= 30 {
			return last
		}
	}

	if len(url) > 30 {
		return url[:27] + "..."
	}
	return url
}

func youtubeID(url string) string {
	if i := strings.Index(url, "youtu.be/"); i >= 0 {
		rest := url[i+len("youtu.be/"):]
		if id := firstSegment(rest); id != "" {
			return id
		}
	}
	if i := strings.Index(url, "v="); i >= 0 {
		rest := url[i+2:]
		if id := firstSegment(rest); id != "" {
			return id
		}
	}
	return ""
}

func firstSegment(s string) string {
	if i := strings.IndexAny(s, "?&/"); i >= 0 {
		return s[:i]
	}
	return s
}
