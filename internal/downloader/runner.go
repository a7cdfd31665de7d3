// Package downloader supervises one yt-dlp subprocess per job and turns its
// output stream into typed events.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"autoytdlp/internal/util"
)

// How often the runner re-checks the abort condition while streaming.
const abortPollInterval = 100 * time.Millisecond

// ErrSpawn wraps failures to start the subprocess at all (typically a
// missing yt-dlp binary).
var ErrSpawn = errors.New("spawn downloader")

// Outcome is the terminal result of one subprocess run.
type Outcome int

const (
	// OutcomeSuccess: process exited zero.
	OutcomeSuccess Outcome = iota
	// OutcomeFailed: process exited non-zero or could not be spawned.
	OutcomeFailed
	// OutcomeAborted: the run was cancelled and the process killed.
	OutcomeAborted
)

// RunResult describes how a subprocess run ended.
type RunResult struct {
	Outcome  Outcome
	ExitCode int
	// NetworkError is set when an error line during the run looked like a
	// transient network failure; callers use it to decide on retries.
	NetworkError bool
}

// Runner spawns yt-dlp for individual jobs.
type Runner struct {
	// Binary is the resolved yt-dlp (or youtube-dl) path. Empty means
	// "yt-dlp" via PATH.
	Binary string
	Cfg    ArgsConfig
}

// Args returns the argument vector Run would use for url.
func (r *Runner) Args(url string) []string {
	return BuildArgs(r.Cfg, url)
}

// Run downloads one URL, forwarding every classified output line to
// onEvent as it arrives. Between lines it polls abort; once abort reports
// true the child process is killed and the run ends with OutcomeAborted.
//
// onEvent is called from the subprocess reader goroutine; it must not
// block for long or the child's stdout pipe will fill.
//
// A stream read error is not fatal: reading stops and the exit status
// decides the outcome. Run returns a non-nil error only for spawn
// failures (wrapped ErrSpawn); ordinary non-zero exits are reported
// through RunResult alone.
func (r *Runner) Run(ctx context.Context, url string, abort func() bool, onEvent func(Event)) (RunResult, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Watchdog: translate the polled abort flag into process termination.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(abortPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if abort != nil && abort() {
					cancel()
					return
				}
			}
		}
	}()

	// Set from both pipe reader goroutines.
	var networkError atomic.Bool
	onLine := func(line string) {
		if abort != nil && abort() {
			return
		}
		ev := Parse(line)
		if ev.Kind == KindError && IsNetworkError(ev.Line) {
			networkError.Store(true)
		}
		if onEvent != nil {
			onEvent(ev)
		}
	}

	binary := r.Binary
	if binary == "" {
		binary = "yt-dlp"
	}

	res, err := util.Run(runCtx, util.CmdSpec{
		Path:       binary,
		Args:       r.Args(url),
		StdoutLine: onLine,
		StderrLine: onLine,
	})

	if abort != nil && abort() {
		return RunResult{Outcome: OutcomeAborted, ExitCode: res.Code, NetworkError: networkError.Load()}, nil
	}
	if runCtx.Err() != nil && ctx.Err() != nil {
		// Parent context cancellation, not the abort watchdog.
		return RunResult{Outcome: OutcomeAborted, ExitCode: res.Code, NetworkError: networkError.Load()}, nil
	}

	if err != nil {
		if errors.Is(err, util.ErrStart) {
			// Never started; a signal death after start lands below with
			// Code -1 but no ErrStart.
			return RunResult{Outcome: OutcomeFailed, ExitCode: -1, NetworkError: networkError.Load()},
				fmt.Errorf("%w: %v", ErrSpawn, err)
		}
		return RunResult{Outcome: OutcomeFailed, ExitCode: res.Code, NetworkError: networkError.Load()}, nil
	}

	return RunResult{Outcome: OutcomeSuccess, ExitCode: 0, NetworkError: networkError.Load()}, nil
}
