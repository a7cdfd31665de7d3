// Package state is the single source of truth for the download session:
// the pending queue, the active-job set, per-job progress, logs, and
// control flags. Every mutation goes through one of the named methods
// below, each of which takes and releases the state lock without ever
// blocking inside it; observers read via immutable snapshots.
package state

import (
	"sort"
	"sync"
	"time"

	"autoytdlp/internal/settings"
	"autoytdlp/internal/util"
)

// StaleAfter is the read-side staleness window: observers may flag a
// progress record whose LastUpdate is older than this. It is a display
// judgment only; the core never acts on it.
const StaleAfter = 30 * time.Second

// Log ring capacity. Older entries are dropped first.
const logCap = 1000

// Toast messages disappear from snapshots after this long.
const toastTTL = 3 * time.Second

// ProgressRecord is the live status of one active download. It is replaced
// wholesale on every parsed update; pointer fields are nil when unknown.
type ProgressRecord struct {
	URL         string
	DisplayName string
	// Phase is "downloading", "processing", "finished", or "error".
	Phase   string
	Percent float64
	Speed   string
	ETA     string

	DownloadedBytes *int64
	TotalBytes      *int64
	FragmentIndex   *int
	FragmentCount   *int

	LastUpdate time.Time
}

// NewProgressRecord returns a fresh record for url in the downloading phase.
func NewProgressRecord(url string) ProgressRecord {
	return ProgressRecord{
		URL:         url,
		DisplayName: util.TruncateURL(url),
		Phase:       "downloading",
		LastUpdate:  time.Now(),
	}
}

// IsStale reports whether the record has gone unrefreshed beyond the
// staleness window as of now.
func (r ProgressRecord) IsStale(now time.Time) bool {
	return now.Sub(r.LastUpdate) > StaleAfter
}

// Snapshot is an immutable point-in-time copy of the session state,
// captured under a single lock acquisition so queue, active set, counters,
// and flags are mutually consistent.
type Snapshot struct {
	Queue  []string
	Active []ProgressRecord
	Logs   []string

	Progress          float64 // completed / initial total, 0..1
	CompletedTasks    int
	FailedTasks       int
	TotalTasks        int
	InitialTotalTasks int
	TotalRetries      int
	Concurrent        int

	Started   bool
	Paused    bool
	Completed bool
	Shutdown  bool
	ForceQuit bool

	Toast string
}

// State owns all shared session data. The zero value is not usable; create
// with New.
type State struct {
	mu sync.Mutex

	queue  []string
	active map[string]ProgressRecord
	logs   []string

	completedTasks    int
	failedTasks       int
	totalTasks        int
	initialTotalTasks int
	totalRetries      int
	concurrent        int

	started          bool
	paused           bool
	shutdown         bool
	forceQuit        bool
	completed        bool
	notificationSent bool

	toast   string
	toastAt time.Time

	settings settings.Settings
}

// New returns a State configured from s, with concurrency seeded from the
// settings value.
func New(s settings.Settings) *State {
	concurrent := s.ConcurrentDownloads
	if concurrent <= 0 {
		concurrent = 1
	}
	return &State{
		active:     make(map[string]ProgressRecord),
		concurrent: concurrent,
		settings:   s,
	}
}

// LoadLinks replaces the pending queue with links, dropping entries that
// are already active so a URL never appears in both places. Totals are
// reseeded from the resulting queue length.
func (s *State) LoadLinks(links []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(links))
	queue := make([]string, 0, len(links))
	for _, link := range links {
		if _, dup := seen[link]; dup {
			continue
		}
		if _, running := s.active[link]; running {
			continue
		}
		seen[link] = struct{}{}
		queue = append(queue, link)
	}

	s.queue = queue
	s.totalTasks = len(queue) + len(s.active)
	s.initialTotalTasks = s.totalTasks
}

// Enqueue appends url to the pending queue. It reports false without
// modifying anything when the URL is already pending or active.
func (s *State) Enqueue(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, running := s.active[url]; running {
		return false
	}
	for _, queued := range s.queue {
		if queued == url {
			return false
		}
	}

	s.queue = append(s.queue, url)
	s.totalTasks++
	s.initialTotalTasks++
	return true
}

// Claim atomically pops the head of the queue and moves it into the active
// set, so a URL is owned by exactly one worker and never sits in both the
// queue and the active set. It reports false when the queue is empty.
func (s *State) Claim() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return "", false
	}
	url := s.queue[0]
	s.queue = s.queue[1:]
	s.active[url] = NewProgressRecord(url)
	return url, true
}

// Release removes url from the active set after a terminal outcome.
func (s *State) Release(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, url)
}

// RecordProgress replaces the progress record for url, clamping the
// percentage into [0, 100]. Updates for URLs no longer active are dropped.
func (s *State) RecordProgress(url string, rec ProgressRecord) {
	if rec.Percent < 0 {
		rec.Percent = 0
	} else if rec.Percent > 100 {
		rec.Percent = 100
	}
	rec.URL = url
	if rec.DisplayName == "" {
		rec.DisplayName = util.TruncateURL(url)
	}
	if rec.LastUpdate.IsZero() {
		rec.LastUpdate = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.active[url]; ok {
		s.active[url] = rec
	}
}

// RefreshTimestamps resets LastUpdate on all active records, dismissing
// stale indicators after a manual check.
func (s *State) RefreshTimestamps() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for url, rec := range s.active {
		rec.LastUpdate = now
		s.active[url] = rec
	}
}

// IncrementCompleted bumps the completed counter and re-derives the
// completed flag: completion requires a non-empty run where every task
// finished successfully.
func (s *State) IncrementCompleted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completedTasks < s.totalTasks {
		s.completedTasks++
	}
	s.completed = s.totalTasks > 0 && s.completedTasks == s.totalTasks
}

// IncrementFailed bumps the failed counter.
func (s *State) IncrementFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failedTasks++
}

// IncrementRetries bumps the session retry counter.
func (s *State) IncrementRetries() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalRetries++
}

// AppendLog adds one line to the log ring, dropping the oldest entries
// beyond the cap.
func (s *State) AppendLog(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, line)
	if n := len(s.logs) - logCap; n > 0 {
		s.logs = append(s.logs[:0], s.logs[n:]...)
	}
}

// ClearLogs empties the log ring.
func (s *State) ClearLogs() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = s.logs[:0]
}

func (s *State) SetPaused(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = v
}

func (s *State) SetStarted(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = v
}

func (s *State) SetShutdown(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown = v
}

func (s *State) SetForceQuit(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forceQuit = v
}

func (s *State) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *State) IsStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *State) IsShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}

func (s *State) IsForceQuit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forceQuit
}

func (s *State) IsCompleted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

// NotificationSent latches whether the completion notification was already
// surfaced; the front end reads and sets it so it fires once per run.
func (s *State) NotificationSent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notificationSent
}

func (s *State) SetNotificationSent(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notificationSent = v
}

// Concurrent returns the configured worker count.
func (s *State) Concurrent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.concurrent
}

func (s *State) SetConcurrent(n int) {
	if n <= 0 {
		n = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.concurrent = n
}

// Settings returns a copy of the current settings value.
func (s *State) Settings() settings.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// UpdateSettings replaces the settings value and adopts its concurrency.
func (s *State) UpdateSettings(v settings.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = v
	if v.ConcurrentDownloads > 0 {
		s.concurrent = v.ConcurrentDownloads
	}
}

// QueueLen returns the pending queue length.
func (s *State) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// ActiveLen returns the active set size.
func (s *State) ActiveLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Drained reports whether both the pending queue and the active set are
// empty, checked under one lock.
func (s *State) Drained() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue) == 0 && len(s.active) == 0
}

// RemoveQueued deletes the queue entry at index, adjusting totals. It
// returns the removed URL, or "" when the index is out of range.
func (s *State) RemoveQueued(index int) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.queue) {
		return ""
	}
	url := s.queue[index]
	s.queue = append(s.queue[:index], s.queue[index+1:]...)
	if s.totalTasks > 0 {
		s.totalTasks--
	}
	if s.initialTotalTasks > 0 {
		s.initialTotalTasks--
	}
	return url
}

// SwapQueued exchanges two queue entries, reporting whether both indices
// were valid.
func (s *State) SwapQueued(i, j int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || j < 0 || i >= len(s.queue) || j >= len(s.queue) || i == j {
		return false
	}
	s.queue[i], s.queue[j] = s.queue[j], s.queue[i]
	return true
}

// Queue returns a copy of the pending queue, in claim order.
func (s *State) Queue() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.queue))
	copy(out, s.queue)
	return out
}

// ResetForNewRun clears flags ahead of a fresh start and reseeds the
// totals from the current queue. Must be called before every "start".
// When resetStats is false the session counters carry over, so totals
// accumulate across batches.
func (s *State) ResetForNewRun(resetStats bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.paused = false
	s.started = false
	s.completed = false
	s.shutdown = false
	s.forceQuit = false
	s.notificationSent = false

	if resetStats {
		s.completedTasks = 0
		s.failedTasks = 0
		s.totalRetries = 0
	}
	s.totalTasks = s.completedTasks + s.failedTasks + len(s.queue) + len(s.active)
	s.initialTotalTasks = s.totalTasks

	s.toast = ""
}

// FinishRun marks the run stopped. When the queue drained cleanly (no
// force-quit), the completed flag is derived from the counters.
func (s *State) FinishRun() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.started = false
	if !s.forceQuit && len(s.queue) == 0 && len(s.active) == 0 {
		s.completed = s.totalTasks > 0 && s.completedTasks == s.totalTasks
	}
}

// ShowToast sets a transient message that snapshots carry for a few
// seconds.
func (s *State) ShowToast(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toast = msg
	s.toastAt = time.Now()
}

// ClearToast removes any active toast.
func (s *State) ClearToast() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toast = ""
}

// Snapshot captures a consistent copy of everything an observer needs,
// under a single lock acquisition. The returned value shares no memory
// with internal state; rendering may take as long as it likes.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue := make([]string, len(s.queue))
	copy(queue, s.queue)

	active := make([]ProgressRecord, 0, len(s.active))
	for _, rec := range s.active {
		active = append(active, rec)
	}
	sort.Slice(active, func(i, j int) bool { return active[i].URL < active[j].URL })

	logs := make([]string, len(s.logs))
	copy(logs, s.logs)

	progress := 0.0
	if s.initialTotalTasks > 0 {
		progress = float64(s.completedTasks) / float64(s.initialTotalTasks)
	}

	toast := s.toast
	if toast != "" && time.Since(s.toastAt) > toastTTL {
		toast = ""
	}

	return Snapshot{
		Queue:             queue,
		Active:            active,
		Logs:              logs,
		Progress:          progress,
		CompletedTasks:    s.completedTasks,
		FailedTasks:       s.failedTasks,
		TotalTasks:        s.totalTasks,
		InitialTotalTasks: s.initialTotalTasks,
		TotalRetries:      s.totalRetries,
		Concurrent:        s.concurrent,
		Started:           s.started,
		Paused:            s.paused,
		Completed:         s.completed,
		Shutdown:          s.shutdown,
		ForceQuit:         s.forceQuit,
		Toast:             toast,
	}
}
