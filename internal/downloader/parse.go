package downloader

import (
	"strconv"
	"strings"
)

// Sentinel markers wrapped around the structured progress template so its
// output can be picked out of the stream unambiguously.
const (
	ProgressMarkerStart = "|PROGRESS|"
	ProgressMarkerEnd   = "|PROGRESS_END|"
)

// Kind classifies a line of yt-dlp output.
type Kind int

const (
	// KindIgnore is output that should not even be logged.
	KindIgnore Kind = iota
	// KindProgress carries a ProgressInfo update.
	KindProgress
	// KindPostProcess is merging/converting status ([Merger], [ffmpeg]).
	KindPostProcess
	// KindDestination announces the output file path.
	KindDestination
	// KindAlreadyDownloaded means the archive already has this video.
	KindAlreadyDownloaded
	// KindError is an explicit yt-dlp error line.
	KindError
	// KindInfo is any other output worth logging.
	KindInfo
)

// Event is one classified line of yt-dlp output.
type Event struct {
	Kind     Kind
	Line     string
	Progress ProgressInfo // populated when Kind == KindProgress
}

// ProgressInfo is the download state extracted from a progress line.
// Pointer fields are nil when the source line did not carry the value.
type ProgressInfo struct {
	// Status is "downloading", "finished", or "error".
	Status  string
	Percent float64
	Speed   string // e.g. "1.5MiB/s"; empty when unknown
	ETA     string // e.g. "00:35"; empty when unknown

	DownloadedBytes *int64
	TotalBytes      *int64
	FragmentIndex   *int
	FragmentCount   *int
}

// Parse classifies a single line of yt-dlp output. It is a total function:
// malformed or unexpected input degrades to KindInfo or KindIgnore, never
// an error. Structured template lines are preferred over free-text
// heuristics because they are unambiguous and locale-independent.
func Parse(line string) Event {
	line = strings.TrimSpace(line)

	if line == "" {
		return Event{Kind: KindIgnore}
	}

	if strings.Contains(line, ProgressMarkerStart) && strings.Contains(line, ProgressMarkerEnd) {
		if info, ok := parseTemplate(line); ok {
			return Event{Kind: KindProgress, Line: line, Progress: info}
		}
	}

	if strings.HasPrefix(line, "[download]") {
		return parseDownloadLine(line)
	}

	if strings.HasPrefix(line, "[Merger]") || strings.HasPrefix(line, "[ffmpeg]") {
		return Event{Kind: KindPostProcess, Line: line}
	}

	if strings.Contains(line, "Destination:") {
		return Event{Kind: KindDestination, Line: line}
	}

	if strings.Contains(line, "has already been recorded in the archive") ||
		strings.Contains(line, "has already been downloaded") {
		return Event{Kind: KindAlreadyDownloaded, Line: line}
	}

	if strings.Contains(line, "ERROR") || strings.HasPrefix(line, "ERROR:") {
		return Event{Kind: KindError, Line: line}
	}

	// Known noise that adds nothing to the log.
	for _, prefix := range []string{"[youtube]", "[info]", "[debug]", "[generic]", "[ExtractAudio]"} {
		if strings.HasPrefix(line, prefix) {
			return Event{Kind: KindIgnore}
		}
	}

	return Event{Kind: KindInfo, Line: line}
}

// parseTemplate handles the structured format:
// |PROGRESS|status|percent|speed|eta|downloaded|total|frag_idx|frag_count|PROGRESS_END|
func parseTemplate(line string) (ProgressInfo, bool) {
	start := strings.Index(line, ProgressMarkerStart)
	end := strings.Index(line, ProgressMarkerEnd)
	if start < 0 || end < 0 {
		return ProgressInfo{}, false
	}
	start += len(ProgressMarkerStart)
	if end <= start {
		return ProgressInfo{}, false
	}

	parts := strings.Split(line[start:end], "|")
	if len(parts) < 8 {
		return ProgressInfo{}, false
	}

	return ProgressInfo{
		Status:          strings.TrimSpace(parts[0]),
		Percent:         parsePercent(parts[1]),
		Speed:           optString(parts[2]),
		ETA:             optString(parts[3]),
		DownloadedBytes: optInt64(parts[4]),
		TotalBytes:      optInt64(parts[5]),
		FragmentIndex:   optInt(parts[6]),
		FragmentCount:   optInt(parts[7]),
	}, true
}

// parseDownloadLine handles traditional "[download] ..." output.
func parseDownloadLine(line string) Event {
	// Completion special case: "[download] 100% of 50.00MiB in 00:10".
	if strings.Contains(line, "100%") && strings.Contains(line, " of ") {
		return Event{Kind: KindProgress, Line: line, Progress: ProgressInfo{
			Status:  "finished",
			Percent: 100.0,
		}}
	}

	if info, ok := parseTraditional(line); ok {
		return Event{Kind: KindProgress, Line: line, Progress: info}
	}

	if strings.Contains(line, "Destination:") {
		return Event{Kind: KindDestination, Line: line}
	}

	if strings.Contains(line, "Downloading item") || strings.Contains(line, "fragment") {
		if info, ok := parseFragment(line); ok {
			return Event{Kind: KindProgress, Line: line, Progress: info}
		}
	}

	return Event{Kind: KindInfo, Line: line}
}

// parseTraditional handles "[download]  45.2% of 100.00MiB at 1.50MiB/s ETA 00:35".
func parseTraditional(line string) (ProgressInfo, bool) {
	pctEnd := strings.Index(line, "%")
	if pctEnd < 0 {
		return ProgressInfo{}, false
	}
	pctStart := strings.LastIndexFunc(line[:pctEnd], func(r rune) bool {
		return (r < '0' || r > '9') && r != '.'
	})
	if pctStart < 0 {
		return ProgressInfo{}, false
	}
	pctStart++

	percent, err := strconv.ParseFloat(strings.TrimSpace(line[pctStart:pctEnd]), 64)
	if err != nil {
		return ProgressInfo{}, false
	}

	info := ProgressInfo{Percent: percent, Status: "downloading"}
	if percent >= 100.0 {
		info.Status = "finished"
	}

	if at := strings.Index(line, " at "); at >= 0 {
		speedPart := line[at+4:]
		if sp := strings.Index(speedPart, " "); sp >= 0 {
			info.Speed = strings.TrimSpace(speedPart[:sp])
		} else {
			info.Speed = strings.TrimSpace(speedPart)
		}
	}

	if eta := strings.Index(line, "ETA "); eta >= 0 {
		etaStr := strings.TrimSpace(line[eta+4:])
		if etaStr != "" && etaStr != "Unknown" {
			info.ETA = etaStr
		}
	}

	if of := strings.Index(line, " of "); of >= 0 {
		sizePart := line[of+4:]
		if sp := strings.Index(sizePart, " "); sp >= 0 {
			if b, ok := ParseSize(sizePart[:sp]); ok {
				info.TotalBytes = &b
			}
		}
	}

	return info, true
}

// parseFragment handles HLS/DASH item counters like
// "[download] Downloading item 5 of 10".
func parseFragment(line string) (ProgressInfo, bool) {
	of := strings.Index(line, " of ")
	if of < 0 {
		return ProgressInfo{}, false
	}

	before := line[:of]
	i := len(before)
	for i > 0 && before[i-1] >= '0' && before[i-1] <= '9' {
		i--
	}
	current, err := strconv.Atoi(before[i:])
	if err != nil {
		return ProgressInfo{}, false
	}

	after := line[of+4:]
	j := 0
	for j < len(after) && after[j] >= '0' && after[j] <= '9' {
		j++
	}
	total, err := strconv.Atoi(after[:j])
	if err != nil {
		return ProgressInfo{}, false
	}

	info := ProgressInfo{
		Status:        "downloading",
		FragmentIndex: &current,
		FragmentCount: &total,
	}
	if total > 0 {
		info.Percent = float64(current) / float64(total) * 100.0
	}
	return info, true
}

// parsePercent parses "45.2%" or "45.2", defaulting to 0 on failure.
func parsePercent(s string) float64 {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// Placeholder tokens yt-dlp substitutes for unknown template fields.
func isAbsent(s string) bool {
	switch s {
	case "", "NA", "N/A", "Unknown", "None":
		return true
	}
	return false
}

func optString(s string) string {
	s = strings.TrimSpace(s)
	if isAbsent(s) {
		return ""
	}
	return s
}

func optInt64(s string) *int64 {
	s = strings.TrimSpace(s)
	if isAbsent(s) {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

func optInt(s string) *int {
	s = strings.TrimSpace(s)
	if isAbsent(s) {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}

// ParseSize converts a size string like "100.50MiB" to bytes. Both IEC
// ("MiB") and abbreviated ("MB", "m") suffixes use base-1024 multipliers,
// matching what yt-dlp prints. Unknown suffixes report !ok.
func ParseSize(s string) (int64, bool) {
	s = strings.TrimSpace(s)

	numEnd := strings.IndexFunc(s, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.'
	})
	if numEnd < 0 {
		numEnd = len(s)
	}
	num, err := strconv.ParseFloat(s[:numEnd], 64)
	if err != nil {
		return 0, false
	}

	var mult float64
	switch strings.ToLower(s[numEnd:]) {
	case "", "b":
		mult = 1
	case "kib", "kb", "k":
		mult = 1 << 10
	case "mib", "mb", "m":
		mult = 1 << 20
	case "gib", "gb", "g":
		mult = 1 << 30
	case "tib", "tb", "t":
		mult = 1 << 40
	default:
		return 0, false
	}

	return int64(num * mult), true
}

// Substrings that mark an error as network-related and therefore worth an
// automatic retry. Matching is case-sensitive on purpose: these are the
// literal spellings yt-dlp and urllib produce.
var networkErrorMarkers = []string{
	"Unable to download webpage",
	"HTTP Error",
	"Connection",
	"Timeout",
	"Network",
	"SSL",
}

// IsNetworkError reports whether an error line looks like a transient
// network failure rather than a permanent one (private video, bad URL).
func IsNetworkError(line string) bool {
	for _, marker := range networkErrorMarkers {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}
