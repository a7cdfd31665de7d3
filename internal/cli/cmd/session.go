package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"autoytdlp/internal/control"
	"autoytdlp/internal/dirs"
	"autoytdlp/internal/downloader"
	"autoytdlp/internal/linkstore"
	"autoytdlp/internal/logging"
	"autoytdlp/internal/pool"
	"autoytdlp/internal/settings"
	"autoytdlp/internal/state"
	"autoytdlp/internal/ui"
	"autoytdlp/internal/util"
	"autoytdlp/internal/util/deps"
)

type runMode struct {
	ForceTUI bool
}

// session is the wired-up object graph for one invocation: settings,
// state, link storage, and the controller driving the pool.
type session struct {
	Settings settings.Settings
	State    *state.State
	Store    *linkstore.Store
	Ctrl     *control.Controller
	Logger   *slog.Logger
}

// assembleSession resolves flags and settings into a ready controller.
// URLs given on the command line are appended to the queue and persisted.
func assembleSession(cmd *cobra.Command, urls []string, forTUI bool) (*session, error) {
	verbose := getPersistentBool(cmd, "verbose", false)

	dataDir, err := dirs.DataDir()
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}

	// Precedence: flag > env/config (viper) > default.
	linksFile := resolveString(cmd, "links-file", "links_file", filepath.Join(dataDir, "links.txt"))
	archiveFile := resolveString(cmd, "archive-file", "archive_file", filepath.Join(dataDir, "archive.txt"))
	downloadDir := resolveString(cmd, "download-dir", "download_dir", "downloads")
	dlBinary := resolveString(cmd, "dl-binary", "dl_binary", "")
	if dlBinary == "" {
		dlBinary = os.Getenv("AUTOYTDLP_DL_BINARY")
	}

	settingsPath, err := settings.DefaultPath()
	if err != nil {
		return nil, fmt.Errorf("resolve settings path: %w", err)
	}
	cfg, err := settings.Load(settingsPath)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	concurrent := getPersistentInt(cmd, "concurrent", 0)
	if concurrent <= 0 {
		concurrent = viper.GetInt("concurrent")
	}
	if concurrent > 0 {
		cfg.ConcurrentDownloads = concurrent
	}

	if err := util.EnsureDir(downloadDir); err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}

	binary, err := deps.FindDownloader(dlBinary)
	if err != nil {
		return nil, &ExitError{Code: ExitMissingDep, Err: err}
	}

	// Keep JSON logs off the screen the TUI is drawing on.
	logger := logging.New(verbose)
	if forTUI {
		logPath := filepath.Join(dataDir, "autoytdlp.log")
		if f, ferr := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); ferr == nil {
			logger = logging.NewWriter(f, verbose)
		}
	}

	store := linkstore.New(linksFile)
	links, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load links: %w", err)
	}

	st := state.New(cfg)
	st.LoadLinks(links)

	runner := &downloader.Runner{
		Binary: binary,
		Cfg: downloader.ArgsConfig{
			ArchiveFile: archiveFile,
			DownloadDir: downloadDir,
			Settings:    cfg,
		},
	}
	p := pool.New(st, store, runner, logger)
	ctrl := control.New(st, store, p, control.WithLogger(logger), control.WithBinary(binary))

	for _, url := range urls {
		if err := ctrl.Enqueue(url); err != nil {
			return nil, &ExitError{Code: ExitCLIError, Err: fmt.Errorf("%q: %w", url, err)}
		}
	}

	return &session{
		Settings: cfg,
		State:    st,
		Store:    store,
		Ctrl:     ctrl,
		Logger:   logger,
	}, nil
}

func runExecute(cmd *cobra.Command, args []string, mode runMode) error {
	noUI, _ := cmd.Flags().GetBool("no-ui")
	useTUI := mode.ForceTUI || (!noUI && isTerminal())

	sess, err := assembleSession(cmd, args, useTUI)
	if err != nil {
		return wrapCLIError(err)
	}

	if useTUI {
		if err := ui.Run(cmd.Context(), ui.Params{
			State:      sess.State,
			Controller: sess.Ctrl,
			Settings:   sess.Settings,
		}); err != nil {
			return &ExitError{Code: ExitCLIError, Err: err}
		}
		return nil
	}

	return runHeadless(cmd, sess)
}

// runHeadless starts the batch immediately and blocks until it drains or
// the context is cancelled. The exit code reflects download failures.
func runHeadless(cmd *cobra.Command, sess *session) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if err := sess.Ctrl.Start(ctx); err != nil {
		return &ExitError{Code: ExitCLIError, Err: err}
	}
	sess.Ctrl.Wait()

	snap := sess.State.Snapshot()
	fmt.Fprintf(out, "Done: %d completed, %d failed, %d retried\n",
		snap.CompletedTasks, snap.FailedTasks, snap.TotalRetries)
	if snap.FailedTasks > 0 {
		return &ExitError{
			Code: ExitDownloadError,
			Err:  fmt.Errorf("%d download(s) failed; links kept in %s", snap.FailedTasks, sess.Store.Path()),
		}
	}
	return nil
}

// resolveString applies flag > env/config > default precedence for a
// string option.
func resolveString(cmd *cobra.Command, flagName, viperKey, def string) string {
	if f := cmd.Flags().Lookup(flagName); f != nil && f.Changed {
		return f.Value.String()
	}
	if v := viper.GetString(viperKey); v != "" {
		return v
	}
	if v := getPersistentString(cmd, flagName, ""); v != "" {
		return v
	}
	return def
}

// wrapCLIError keeps explicit exit codes and folds everything else into a
// generic CLI failure.
func wrapCLIError(err error) error {
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee
	}
	return &ExitError{Code: ExitCLIError, Err: err}
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
