// Package control coordinates a download session: starting and stopping
// the worker pool, pausing, the two-step force quit, and edits to the
// pending queue that must stay in sync with the links file.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"autoytdlp/internal/linkstore"
	"autoytdlp/internal/logging"
	"autoytdlp/internal/pool"
	"autoytdlp/internal/state"
	"autoytdlp/internal/util/deps"
)

// A second force-quit press must land within this window of the first to
// take effect.
const forceQuitWindow = 3 * time.Second

var (
	ErrAlreadyRunning = errors.New("a download run is already in progress")
	ErrEmptyQueue     = errors.New("no links queued")
	ErrNotURL         = errors.New("not an http(s) URL")
)

// Controller owns the lifecycle of download runs. All methods are safe for
// concurrent use; the front ends call them from their event loops.
type Controller struct {
	state  *state.State
	store  *linkstore.Store
	pool   *pool.Pool
	binary string
	log    *slog.Logger

	mu            sync.Mutex
	cancel        context.CancelFunc
	done          chan struct{}
	quitRequested time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithBinary records the resolved downloader path so pre-run checks can
// probe it.
func WithBinary(path string) Option {
	return func(c *Controller) { c.binary = path }
}

func New(st *state.State, store *linkstore.Store, p *pool.Pool, opts ...Option) *Controller {
	c := &Controller{
		state: st,
		store: store,
		pool:  p,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start launches a run over the current queue. Missing optional tools are
// logged as warnings, not errors. The pool runs on its own goroutine;
// Start returns once it is launched.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.IsStarted() {
		return ErrAlreadyRunning
	}
	if c.state.QueueLen() == 0 {
		return ErrEmptyQueue
	}

	for _, warning := range deps.Check(c.binary) {
		c.state.AppendLog(warning)
		c.log.Warn("dependency check", "detail", warning)
	}

	c.state.ResetForNewRun(c.state.Settings().ResetStatsOnStart)
	c.state.SetStarted(true)

	runID := uuid.NewString()
	runCtx, cancel := context.WithCancel(ctx)
	runCtx = logging.ContextAttrs(runCtx, slog.String("run_id", runID))
	c.cancel = cancel
	done := make(chan struct{})
	c.done = done

	queued := c.state.QueueLen()
	c.state.AppendLog(fmt.Sprintf("Starting downloads (%d queued)", queued))
	c.log.Info("run started", "run_id", runID, "queued", queued, "concurrent", c.state.Concurrent())

	go func() {
		defer close(done)
		defer cancel()
		if err := c.pool.Run(runCtx); err != nil {
			c.log.Error("run ended with error", "run_id", runID, "error", err)
		}
		snap := c.state.Snapshot()
		c.state.AppendLog(fmt.Sprintf("Run finished: %d complete, %d failed", snap.CompletedTasks, snap.FailedTasks))
		c.log.Info("run finished", "run_id", runID,
			"completed", snap.CompletedTasks, "failed", snap.FailedTasks, "retries", snap.TotalRetries)
	}()
	return nil
}

// Stop requests a graceful shutdown: nothing new is claimed and in-flight
// downloads run to completion.
func (c *Controller) Stop() {
	if !c.state.IsStarted() {
		return
	}
	c.state.SetShutdown(true)
	c.state.AppendLog("Stopping after in-flight downloads finish")
	c.log.Info("graceful stop requested")
}

// ForceQuit implements the two-step abort. The first call arms it and
// returns false; a second call within the confirmation window kills every
// in-flight download and returns true. A late second call re-arms instead.
func (c *Controller) ForceQuit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if c.quitRequested.IsZero() || now.Sub(c.quitRequested) > forceQuitWindow {
		c.quitRequested = now
		c.state.ShowToast("Press again to force quit")
		return false
	}

	c.quitRequested = time.Time{}
	c.state.SetForceQuit(true)
	if c.cancel != nil {
		c.cancel()
	}
	c.state.AppendLog("Force quit: killing active downloads")
	c.log.Warn("force quit confirmed")
	return true
}

// TogglePause flips the paused flag and returns the new value. Paused
// means no new claims; in-flight downloads continue.
func (c *Controller) TogglePause() bool {
	paused := !c.state.IsPaused()
	c.state.SetPaused(paused)
	if paused {
		c.state.AppendLog("Paused: running downloads will finish, no new ones start")
	} else {
		c.state.AppendLog("Resumed")
	}
	c.log.Info("pause toggled", "paused", paused)
	return paused
}

// Wait blocks until the current run's pool goroutine exits. It returns
// immediately when no run was started.
func (c *Controller) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Running reports whether a run is in progress.
func (c *Controller) Running() bool {
	return c.state.IsStarted()
}

// Reload re-reads the links file into the queue. Links already active or
// queued are kept once.
func (c *Controller) Reload() error {
	links, err := c.store.Load()
	if err != nil {
		return fmt.Errorf("reload links: %w", err)
	}
	c.state.LoadLinks(links)
	c.state.AppendLog(fmt.Sprintf("Loaded %d links", len(links)))
	return nil
}

// Enqueue adds one URL to the queue and appends it to the links file.
// Duplicates are dropped silently.
func (c *Controller) Enqueue(url string) error {
	url = strings.TrimSpace(url)
	if !isHTTPURL(url) {
		return ErrNotURL
	}
	if !c.state.Enqueue(url) {
		return nil
	}
	if err := c.store.Append([]string{url}); err != nil {
		return fmt.Errorf("append link: %w", err)
	}
	c.log.Info("link queued", "url", url)
	return nil
}

// ImportText scans text for http(s) URLs, one per line, queueing each new
// one. It returns how many were added.
func (c *Controller) ImportText(text string) (int, error) {
	var added []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !isHTTPURL(line) {
			continue
		}
		if c.state.Enqueue(line) {
			added = append(added, line)
		}
	}
	if len(added) == 0 {
		return 0, nil
	}
	if err := c.store.Append(added); err != nil {
		return len(added), fmt.Errorf("append links: %w", err)
	}
	c.log.Info("links imported", "count", len(added))
	return len(added), nil
}

// RemoveQueued deletes the pending entry at index and persists the change.
func (c *Controller) RemoveQueued(index int) error {
	url := c.state.RemoveQueued(index)
	if url == "" {
		return nil
	}
	if err := c.store.Remove(url); err != nil {
		return fmt.Errorf("remove link: %w", err)
	}
	c.state.AppendLog(fmt.Sprintf("Removed from queue: %s", url))
	return nil
}

// MoveQueued swaps the pending entry at index with its neighbor (delta -1
// moves it up, +1 down) and persists the new order.
func (c *Controller) MoveQueued(index, delta int) error {
	if !c.state.SwapQueued(index, index+delta) {
		return nil
	}
	return c.SaveLinks()
}

// SaveLinks rewrites the links file from current state: active downloads
// first (they are not done yet), then the pending queue.
func (c *Controller) SaveLinks() error {
	snap := c.state.Snapshot()
	links := make([]string, 0, len(snap.Active)+len(snap.Queue))
	for _, rec := range snap.Active {
		links = append(links, rec.URL)
	}
	links = append(links, snap.Queue...)
	if err := c.store.Save(links); err != nil {
		return fmt.Errorf("save links: %w", err)
	}
	return nil
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
