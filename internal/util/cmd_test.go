package util

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"
)

func script(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts required")
	}
	path := filepath.Join(t.TempDir(), "script.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunStreamsLines(t *testing.T) {
	path := script(t, "echo out1\necho err1 >&2\necho out2\n")

	var mu sync.Mutex
	var stdout, stderr []string
	res, err := Run(context.Background(), CmdSpec{
		Path:       path,
		StdoutLine: func(l string) { mu.Lock(); stdout = append(stdout, l); mu.Unlock() },
		StderrLine: func(l string) { mu.Lock(); stderr = append(stderr, l); mu.Unlock() },
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Code != 0 {
		t.Errorf("code = %d", res.Code)
	}
	if len(stdout) != 2 || stdout[0] != "out1" || stdout[1] != "out2" {
		t.Errorf("stdout = %v", stdout)
	}
	if len(stderr) != 1 || stderr[0] != "err1" {
		t.Errorf("stderr = %v", stderr)
	}
	// Stderr is captured even with a callback attached.
	if !strings.Contains(string(res.Stderr), "err1") {
		t.Errorf("res.Stderr = %q", res.Stderr)
	}
}

func TestRunBuffersWithoutCallback(t *testing.T) {
	path := script(t, "echo hello\n")
	res, err := Run(context.Background(), CmdSpec{Path: path})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if string(res.Stdout) != "hello\n" {
		t.Errorf("stdout = %q", res.Stdout)
	}
}

func TestRunNonZeroExit(t *testing.T) {
	path := script(t, "exit 7\n")
	res, err := Run(context.Background(), CmdSpec{Path: path})
	if err == nil {
		t.Fatal("want error on non-zero exit")
	}
	if res.Code != 7 {
		t.Errorf("code = %d, want 7", res.Code)
	}
}

func TestRunStartFailureMarked(t *testing.T) {
	res, err := Run(context.Background(), CmdSpec{
		Path: filepath.Join(t.TempDir(), "does-not-exist"),
	})
	if !errors.Is(err, ErrStart) {
		t.Fatalf("err = %v, want ErrStart", err)
	}
	if res.Code != -1 {
		t.Errorf("code = %d, want -1", res.Code)
	}
}

func TestRunSignalDeathNotMarkedAsStart(t *testing.T) {
	path := script(t, "kill -9 $$\n")
	res, err := Run(context.Background(), CmdSpec{Path: path})
	if err == nil {
		t.Fatal("want error when the child is killed")
	}
	if errors.Is(err, ErrStart) {
		t.Fatalf("err = %v, must not be ErrStart", err)
	}
	if res.Code != -1 {
		t.Errorf("code = %d, want -1", res.Code)
	}
}

func TestRunContextCancelKills(t *testing.T) {
	path := script(t, "sleep 30\n")
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := Run(ctx, CmdSpec{Path: path})
	if err == nil {
		t.Fatal("want error after cancellation")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("kill took %v", elapsed)
	}
}

func TestCommandLineQuoting(t *testing.T) {
	got := CommandLine("/usr/bin/yt-dlp", []string{"--output", "/tmp/a b/%(title)s.%(ext)s", "", "plain"})
	want := `/usr/bin/yt-dlp --output '/tmp/a b/%(title)s.%(ext)s' '' plain`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
