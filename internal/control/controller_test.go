package control

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"autoytdlp/internal/downloader"
	"autoytdlp/internal/linkstore"
	"autoytdlp/internal/pool"
	"autoytdlp/internal/settings"
	"autoytdlp/internal/state"
)

func newController(t *testing.T, links []string) (*Controller, *state.State, *linkstore.Store) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts required")
	}
	dir := t.TempDir()
	bin := filepath.Join(dir, "fake-ytdlp")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\nexit 0\n"), 0o755))

	store := linkstore.New(filepath.Join(dir, "links.txt"))
	require.NoError(t, store.Save(links))

	cfg := settings.Default()
	st := state.New(cfg)
	st.LoadLinks(links)

	runner := &downloader.Runner{
		Binary: bin,
		Cfg: downloader.ArgsConfig{
			ArchiveFile: filepath.Join(dir, "archive.txt"),
			DownloadDir: dir,
			Settings:    cfg,
		},
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	p := pool.New(st, store, runner, logger)
	c := New(st, store, p, WithLogger(logger), WithBinary(bin))
	return c, st, store
}

func TestStartRequiresLinks(t *testing.T) {
	c, _, _ := newController(t, nil)
	err := c.Start(context.Background())
	require.ErrorIs(t, err, ErrEmptyQueue)
}

func TestStartRunsToCompletion(t *testing.T) {
	links := []string{"https://a.example/1", "https://a.example/2"}
	c, st, store := newController(t, links)

	require.NoError(t, c.Start(context.Background()))
	require.ErrorIs(t, c.Start(context.Background()), ErrAlreadyRunning)
	c.Wait()

	snap := st.Snapshot()
	require.True(t, snap.Completed)
	require.Equal(t, 2, snap.CompletedTasks)

	remaining, err := store.Load()
	require.NoError(t, err)
	require.Empty(t, remaining)
}

func TestForceQuitNeedsConfirmation(t *testing.T) {
	c, st, _ := newController(t, []string{"https://a.example/1"})

	require.False(t, c.ForceQuit())
	require.False(t, st.IsForceQuit())

	require.True(t, c.ForceQuit())
	require.True(t, st.IsForceQuit())
}

func TestForceQuitWindowExpires(t *testing.T) {
	c, st, _ := newController(t, []string{"https://a.example/1"})

	require.False(t, c.ForceQuit())
	c.mu.Lock()
	c.quitRequested = time.Now().Add(-forceQuitWindow - time.Second)
	c.mu.Unlock()

	// The late second press re-arms instead of quitting.
	require.False(t, c.ForceQuit())
	require.False(t, st.IsForceQuit())
}

func TestEnqueueValidatesAndPersists(t *testing.T) {
	c, st, store := newController(t, nil)

	require.ErrorIs(t, c.Enqueue("not a url"), ErrNotURL)
	require.ErrorIs(t, c.Enqueue("ftp://a.example/1"), ErrNotURL)

	require.NoError(t, c.Enqueue("https://a.example/1"))
	require.NoError(t, c.Enqueue("https://a.example/1")) // duplicate, silent

	require.Equal(t, []string{"https://a.example/1"}, st.Queue())
	links, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, []string{"https://a.example/1"}, links)
}

func TestImportText(t *testing.T) {
	c, st, _ := newController(t, nil)

	text := "https://a.example/1\n\nnot a url\nhttps://a.example/2\nhttps://a.example/1\n"
	n, err := c.ImportText(text)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, []string{"https://a.example/1", "https://a.example/2"}, st.Queue())
}

func TestRemoveQueuedPersists(t *testing.T) {
	links := []string{"https://a.example/1", "https://a.example/2"}
	c, st, store := newController(t, links)

	require.NoError(t, c.RemoveQueued(0))
	require.Equal(t, []string{"https://a.example/2"}, st.Queue())

	remaining, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, []string{"https://a.example/2"}, remaining)
}

func TestMoveQueuedPersists(t *testing.T) {
	links := []string{"https://a.example/1", "https://a.example/2"}
	c, st, store := newController(t, links)

	require.NoError(t, c.MoveQueued(1, -1))
	require.Equal(t, []string{"https://a.example/2", "https://a.example/1"}, st.Queue())

	saved, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, []string{"https://a.example/2", "https://a.example/1"}, saved)

	// Out-of-range moves are no-ops.
	require.NoError(t, c.MoveQueued(0, -1))
}

func TestTogglePause(t *testing.T) {
	c, st, _ := newController(t, nil)
	require.True(t, c.TogglePause())
	require.True(t, st.IsPaused())
	require.False(t, c.TogglePause())
	require.False(t, st.IsPaused())
}
