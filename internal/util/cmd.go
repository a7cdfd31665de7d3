package util

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// CmdSpec describes a subprocess to run.
type CmdSpec struct {
	Path string   // Binary path or name resolvable via PATH
	Args []string // Arguments
	Env  []string // Optional environment (KEY=VALUE). If nil, inherit.
	Dir  string   // Working directory; empty = inherit.

	// StdoutLine is invoked for every line of standard output as it arrives.
	// When nil, stdout is buffered into CmdResult instead.
	StdoutLine func(string)
	// StderrLine is invoked for every line of standard error. Stderr is
	// always captured into CmdResult regardless.
	StderrLine func(string)
}

// CmdResult contains captured output and exit status.
type CmdResult struct {
	Stdout []byte
	Stderr []byte
	Code   int
}

// Scanner buffer sized for yt-dlp: single lines can carry large JSON
// payloads or very long progress output.
const lineBufMax = 1024 * 1024

// ErrStart marks failures before the child produced an exit status: pipe
// setup or process start. A child that started and then died (even by
// signal) never carries it.
var ErrStart = errors.New("start process")

// Run executes the command described by spec, streaming output line by line
// through the configured callbacks until both pipes close, then waits for
// the process to exit.
//
// Cancelling ctx kills the child process. A read error on either pipe is
// treated as end of stream; the exit status still reflects the process
// outcome. On non-zero exit Run returns a non-nil error alongside a
// populated CmdResult.
func Run(ctx context.Context, spec CmdSpec) (CmdResult, error) {
	var stdoutBuf, stderrBuf bytes.Buffer

	cmd := exec.CommandContext(ctx, spec.Path, spec.Args...)
	if spec.Dir != "" {
		cmd.Dir = spec.Dir
	}
	if spec.Env != nil {
		cmd.Env = append(os.Environ(), spec.Env...)
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return CmdResult{Code: -1}, fmt.Errorf("%w: %v", ErrStart, err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return CmdResult{Code: -1}, fmt.Errorf("%w: %v", ErrStart, err)
	}

	if err := cmd.Start(); err != nil {
		return CmdResult{Code: -1}, fmt.Errorf("%w: %v", ErrStart, err)
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		sc := bufio.NewScanner(stdoutPipe)
		sc.Buffer(make([]byte, 0, 64*1024), lineBufMax)
		for sc.Scan() {
			line := sc.Text()
			if spec.StdoutLine != nil {
				spec.StdoutLine(line)
				continue
			}
			stdoutBuf.WriteString(line)
			stdoutBuf.WriteByte('\n')
		}
		// Scanner errors are swallowed: the process exit status is the
		// authoritative signal, and a torn pipe mid-stream must not
		// abort the wait below.
	}()

	go func() {
		defer wg.Done()
		sc := bufio.NewScanner(stderrPipe)
		sc.Buffer(make([]byte, 0, 64*1024), lineBufMax)
		for sc.Scan() {
			line := sc.Text()
			if spec.StderrLine != nil {
				spec.StderrLine(line)
			}
			stderrBuf.WriteString(line)
			stderrBuf.WriteByte('\n')
		}
	}()

	// Drain both pipes to EOF before Wait: os/exec closes the pipe fds in
	// Wait, so reversing this order can drop the tail of the output. On
	// cancellation the pipes must be closed explicitly — only the direct
	// child is killed, and a grandchild holding the write end would
	// otherwise keep the readers blocked past the kill.
	readersDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			stdoutPipe.Close()
			stderrPipe.Close()
		case <-readersDone:
		}
	}()
	wg.Wait()
	close(readersDone)
	waitErr := cmd.Wait()

	code := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}

	res := CmdResult{
		Stdout: stdoutBuf.Bytes(),
		Stderr: stderrBuf.Bytes(),
		Code:   code,
	}

	if waitErr != nil {
		return res, fmt.Errorf("command failed (exit %d): %w", code, waitErr)
	}
	return res, nil
}

// CommandLine returns a printable shell-like command string for logging.
func CommandLine(path string, args []string) string {
	b := &strings.Builder{}
	b.WriteString(quote(path))
	for _, a := range args {
		b.WriteByte(' ')
		b.WriteString(quote(a))
	}
	return b.String()
}

func quote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.ContainsAny(s, " \t\n\"'\\$`(){}[]*&;|<>?!") {
		return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
	}
	return s
}
