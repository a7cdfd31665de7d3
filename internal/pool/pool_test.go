package pool

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"autoytdlp/internal/downloader"
	"autoytdlp/internal/linkstore"
	"autoytdlp/internal/settings"
	"autoytdlp/internal/state"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// writeScript drops an executable shell script into dir and returns its
// path. Tests use scripts in place of the real downloader binary.
func writeScript(t *testing.T, dir, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts required")
	}
	path := filepath.Join(dir, "fake-ytdlp")
	err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755)
	require.NoError(t, err)
	return path
}

func newFixture(t *testing.T, scriptBody string, links []string, cfg settings.Settings) (*Pool, *state.State, *linkstore.Store) {
	t.Helper()
	dir := t.TempDir()
	bin := writeScript(t, dir, scriptBody)

	store := linkstore.New(filepath.Join(dir, "links.txt"))
	require.NoError(t, store.Save(links))

	st := state.New(cfg)
	st.LoadLinks(links)
	st.ResetForNewRun(true)

	runner := &downloader.Runner{
		Binary: bin,
		Cfg: downloader.ArgsConfig{
			ArchiveFile: filepath.Join(dir, "archive.txt"),
			DownloadDir: dir,
			Settings:    cfg,
		},
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(st, store, runner, logger), st, store
}

func TestRunDrainsQueueOnSuccess(t *testing.T) {
	links := []string{"https://a.example/1", "https://a.example/2", "https://a.example/3"}
	p, st, store := newFixture(t, "exit 0\n", links, settings.Default())

	require.NoError(t, p.Run(context.Background()))

	snap := st.Snapshot()
	require.Equal(t, len(links), snap.CompletedTasks)
	require.Equal(t, 0, snap.FailedTasks)
	require.True(t, snap.Completed)
	require.Empty(t, snap.Queue)
	require.Empty(t, snap.Active)

	remaining, err := store.Load()
	require.NoError(t, err)
	require.Empty(t, remaining, "completed links must leave the file")
}

func TestRunKeepsFailedLinks(t *testing.T) {
	links := []string{"https://a.example/1"}
	p, st, store := newFixture(t, "exit 1\n", links, settings.Default())

	require.NoError(t, p.Run(context.Background()))

	snap := st.Snapshot()
	require.Equal(t, 0, snap.CompletedTasks)
	require.Equal(t, 1, snap.FailedTasks)
	require.False(t, snap.Completed)

	remaining, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, links, remaining, "failed links must stay in the file")
}

func TestRunRetriesNetworkErrors(t *testing.T) {
	cfg := settings.Default()
	cfg.NetworkRetry = true
	cfg.RetryDelaySec = 0
	links := []string{"https://a.example/1"}
	script := "echo 'ERROR: Unable to download webpage' >&2\nexit 1\n"
	p, st, _ := newFixture(t, script, links, cfg)

	require.NoError(t, p.Run(context.Background()))

	snap := st.Snapshot()
	require.Equal(t, maxNetworkRetries, snap.TotalRetries)
	require.Equal(t, 1, snap.FailedTasks)
}

func TestRunNoRetryWhenDisabled(t *testing.T) {
	cfg := settings.Default()
	cfg.NetworkRetry = false
	links := []string{"https://a.example/1"}
	script := "echo 'ERROR: Unable to download webpage' >&2\nexit 1\n"
	p, st, _ := newFixture(t, script, links, cfg)

	require.NoError(t, p.Run(context.Background()))

	snap := st.Snapshot()
	require.Equal(t, 0, snap.TotalRetries)
	require.Equal(t, 1, snap.FailedTasks)
}

func TestRunMergesConcurrentStreams(t *testing.T) {
	// Both pipes emit at once and both update the same progress record;
	// the race detector covers the event path here.
	script := `(
  i=0
  while [ $i -lt 200 ]; do
    echo '[Merger] Merging formats into "clip.mp4"' 1>&2
    i=$((i+1))
  done
) &
i=0
while [ $i -lt 200 ]; do
  echo '|PROGRESS|downloading|42.0%|1.00MiB/s|00:10|1024|102400|NA|NA|PROGRESS_END|'
  i=$((i+1))
done
wait
exit 0
`
	links := []string{"https://a.example/1"}
	p, st, _ := newFixture(t, script, links, settings.Default())

	require.NoError(t, p.Run(context.Background()))

	snap := st.Snapshot()
	require.Equal(t, 1, snap.CompletedTasks)
	require.Equal(t, 0, snap.FailedTasks)
	require.True(t, snap.Completed)
}

func TestRunHonorsConcurrencyLimit(t *testing.T) {
	var links []string
	for i := 0; i < 10; i++ {
		links = append(links, fmt.Sprintf("https://a.example/%d", i))
	}
	cfg := settings.Default()
	cfg.ConcurrentDownloads = 3
	p, st, _ := newFixture(t, "sleep 0.3\n", links, cfg)

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	maxActive := 0
	timeout := time.After(30 * time.Second)
	for {
		select {
		case err := <-done:
			require.NoError(t, err)
			require.LessOrEqual(t, maxActive, 3, "active set exceeded the concurrency limit")
			require.GreaterOrEqual(t, maxActive, 2, "jobs never overlapped")
			snap := st.Snapshot()
			require.Equal(t, len(links), snap.CompletedTasks)
			require.True(t, snap.Completed)
			return
		case <-timeout:
			t.Fatal("pool did not drain")
		default:
		}
		if n := st.ActiveLen(); n > maxActive {
			maxActive = n
		}
		time.Sleep(time.Millisecond)
	}
}

func TestForceQuitKillsInFlight(t *testing.T) {
	links := []string{"https://a.example/1"}
	p, st, store := newFixture(t, "sleep 30\n", links, settings.Default())

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	// Wait for the job to go in flight, then pull the plug.
	require.Eventually(t, func() bool { return st.ActiveLen() == 1 }, 5*time.Second, 10*time.Millisecond)
	st.SetForceQuit(true)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("pool did not stop after force quit")
	}

	snap := st.Snapshot()
	require.False(t, snap.Completed)
	require.Equal(t, 0, snap.CompletedTasks)

	remaining, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, links, remaining)
}

func TestShutdownStopsClaiming(t *testing.T) {
	var links []string
	for i := 0; i < 10; i++ {
		links = append(links, fmt.Sprintf("https://a.example/%d", i))
	}
	cfg := settings.Default()
	cfg.ConcurrentDownloads = 1
	p, st, _ := newFixture(t, "sleep 0.2\n", links, cfg)

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	require.Eventually(t, func() bool { return st.ActiveLen() == 1 }, 5*time.Second, 10*time.Millisecond)
	st.SetShutdown(true)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("pool did not stop after shutdown")
	}

	// The in-flight job finished, the rest stayed queued.
	snap := st.Snapshot()
	require.GreaterOrEqual(t, len(snap.Queue), 1)
	require.Less(t, snap.CompletedTasks, len(links))
}

func TestDestinationName(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"[download] Destination: /tmp/out/My Video - [abc123].mp4", "My Video - [abc123].mp4"},
		{"[ExtractAudio] Destination: song.mp3", "song.mp3"},
		{"[download] no destination here", ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, destinationName(tt.line), tt.line)
	}
}
