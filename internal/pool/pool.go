// Package pool runs the download workers. A supervisor loop claims URLs
// from shared state and hands each one to a worker goroutine, keeping at
// most the configured number in flight. Workers stream subprocess output
// into progress records and settle each URL with a terminal outcome.
package pool

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"autoytdlp/internal/downloader"
	"autoytdlp/internal/linkstore"
	"autoytdlp/internal/state"
	"autoytdlp/internal/util"
)

const (
	// Supervisor and pause polling cadence.
	pollInterval = 100 * time.Millisecond
	// Minimum gap between progress pushes per job. Terminal updates
	// (100%) bypass the throttle.
	progressThrottle = 250 * time.Millisecond
	// Failed runs that look like network trouble are retried this many
	// times before counting as failed.
	maxNetworkRetries = 3
)

// Pool supervises the worker goroutines for one run.
type Pool struct {
	state  *state.State
	store  *linkstore.Store
	runner *downloader.Runner
	log    *slog.Logger
}

func New(st *state.State, store *linkstore.Store, runner *downloader.Runner, logger *slog.Logger) *Pool {
	return &Pool{state: st, store: store, runner: runner, log: logger}
}

// Run drives the session until the queue drains, the context is cancelled,
// or shutdown/force-quit is flagged. It blocks until every in-flight worker
// has settled, then marks the run finished. At most Concurrent jobs are in
// flight at any moment; while paused nothing new is claimed.
func (p *Pool) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	var inFlight atomic.Int64

	for {
		if gctx.Err() != nil || p.state.IsForceQuit() || p.state.IsShutdown() {
			break
		}
		if p.state.IsPaused() {
			time.Sleep(pollInterval)
			continue
		}

		for inFlight.Load() < int64(p.state.Concurrent()) {
			url, ok := p.state.Claim()
			if !ok {
				break
			}
			inFlight.Add(1)
			g.Go(func() error {
				defer inFlight.Add(-1)
				p.runJob(gctx, url)
				return nil
			})
		}

		if inFlight.Load() == 0 && p.state.QueueLen() == 0 {
			break
		}
		time.Sleep(pollInterval)
	}

	err := g.Wait()
	p.state.FinishRun()
	return err
}

// runJob downloads one URL, retrying transient network failures, and
// settles the counters. The URL leaves the active set on return.
func (p *Pool) runJob(ctx context.Context, url string) {
	defer p.state.Release(url)

	retries := 0
	for {
		res, err := p.runOnce(ctx, url)
		if err != nil {
			p.state.IncrementFailed()
			p.state.AppendLog(fmt.Sprintf("Failed to start download for %s: %v", url, err))
			p.log.ErrorContext(ctx, "spawn failed", "url", url, "error", err)
			return
		}

		switch res.Outcome {
		case downloader.OutcomeSuccess:
			if err := p.store.Remove(url); err != nil {
				p.state.AppendLog(fmt.Sprintf("Could not update links file: %v", err))
				p.log.WarnContext(ctx, "links file update failed", "url", url, "error", err)
			}
			p.state.IncrementCompleted()
			p.state.AppendLog(fmt.Sprintf("Completed: %s", url))
			p.log.InfoContext(ctx, "download complete", "url", url)
			return

		case downloader.OutcomeAborted:
			p.state.AppendLog(fmt.Sprintf("Aborted: %s", url))
			p.log.InfoContext(ctx, "download aborted", "url", url)
			return

		case downloader.OutcomeFailed:
			cfg := p.state.Settings()
			if res.NetworkError && cfg.NetworkRetry && retries < maxNetworkRetries {
				retries++
				p.state.IncrementRetries()
				p.state.AppendLog(fmt.Sprintf("Network error, retrying %s (%d/%d)", url, retries, maxNetworkRetries))
				p.log.WarnContext(ctx, "network retry", "url", url, "attempt", retries)
				if !p.sleepAbortable(ctx, time.Duration(cfg.RetryDelaySec)*time.Second) {
					return
				}
				continue
			}
			p.state.IncrementFailed()
			p.state.AppendLog(fmt.Sprintf("Failed (exit %d): %s", res.ExitCode, url))
			p.log.ErrorContext(ctx, "download failed", "url", url, "exit_code", res.ExitCode, "network_error", res.NetworkError)
			return
		}
	}
}

// runOnce performs a single subprocess attempt, translating parsed output
// events into state mutations.
func (p *Pool) runOnce(ctx context.Context, url string) (downloader.RunResult, error) {
	rec := state.NewProgressRecord(url)
	p.state.RecordProgress(url, rec)

	p.log.DebugContext(ctx, "spawning downloader", "command", util.CommandLine(p.runner.Binary, p.runner.Args(url)))

	// Events arrive from both pipe reader goroutines; rec and lastPush are
	// shared between them.
	var mu sync.Mutex
	var lastPush time.Time
	onEvent := func(ev downloader.Event) {
		mu.Lock()
		defer mu.Unlock()
		switch ev.Kind {
		case downloader.KindProgress:
			rec.Percent = ev.Progress.Percent
			rec.Speed = ev.Progress.Speed
			rec.ETA = ev.Progress.ETA
			rec.DownloadedBytes = ev.Progress.DownloadedBytes
			rec.TotalBytes = ev.Progress.TotalBytes
			rec.FragmentIndex = ev.Progress.FragmentIndex
			rec.FragmentCount = ev.Progress.FragmentCount
			switch ev.Progress.Status {
			case "finished":
				rec.Phase = "finished"
				rec.Percent = 100
			case "error":
				rec.Phase = "error"
			default:
				rec.Phase = "downloading"
			}
			now := time.Now()
			if rec.Percent >= 100 || now.Sub(lastPush) >= progressThrottle {
				rec.LastUpdate = now
				p.state.RecordProgress(url, rec)
				lastPush = now
			}

		case downloader.KindPostProcess:
			rec.Phase = "processing"
			rec.LastUpdate = time.Now()
			p.state.RecordProgress(url, rec)

		case downloader.KindDestination:
			if name := destinationName(ev.Line); name != "" {
				rec.DisplayName = name
				rec.LastUpdate = time.Now()
				p.state.RecordProgress(url, rec)
			}

		case downloader.KindAlreadyDownloaded:
			p.state.AppendLog(fmt.Sprintf("Already in archive: %s", url))

		case downloader.KindError:
			p.state.AppendLog(ev.Line)

		case downloader.KindInfo:
			p.state.AppendLog(ev.Line)
		}
	}

	abort := func() bool { return p.state.IsForceQuit() }
	return p.runner.Run(ctx, url, abort, onEvent)
}

// sleepAbortable waits for d, returning false early when the run is being
// torn down.
func (p *Pool) sleepAbortable(ctx context.Context, d time.Duration) bool {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if ctx.Err() != nil || p.state.IsForceQuit() || p.state.IsShutdown() {
			return false
		}
		time.Sleep(pollInterval)
	}
	return true
}

// destinationName extracts the output file name from a "Destination:" line.
func destinationName(line string) string {
	_, after, found := strings.Cut(line, "Destination: ")
	if !found {
		return ""
	}
	return filepath.Base(strings.TrimSpace(after))
}
