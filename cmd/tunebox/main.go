// Package main provides the tunebox entry point.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunebox/internal/app/command"
	"github.com/osa030/tunebox/internal/app/playback"
	"github.com/osa030/tunebox/internal/app/player"
	"github.com/osa030/tunebox/internal/app/queue"
	"github.com/osa030/tunebox/internal/infra/audio"
	"github.com/osa030/tunebox/internal/infra/config"
	"github.com/osa030/tunebox/internal/infra/desktop"
	"github.com/osa030/tunebox/internal/infra/logger"
	"github.com/osa030/tunebox/internal/infra/mpris"
	"github.com/osa030/tunebox/internal/infra/store"
	"github.com/osa030/tunebox/internal/infra/tags"
	"github.com/osa030/tunebox/internal/infra/watch"
)

const statusWidth = 80

var (
	app        = kingpin.New("tunebox", "Terminal audio player")
	configPath = app.Flag("config", "Path to config file").Default("~/.config/tunebox/config.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stderr)").String()

	shellCmd     = app.Command("shell", "Start the interactive prompt (default)").Default()
	importCmd    = app.Command("import", "Import files or directories into the library and exit")
	importPaths  = importCmd.Arg("paths", "Files or directories").Required().Strings()
	tracksCmd    = app.Command("tracks", "List the library and exit")
	playlistsCmd = app.Command("playlists", "List playlists and exit")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	selected := kingpin.MustParse(app.Parse(os.Args[1:]))

	path, err := player.ExpandPath(*configPath)
	app.FatalIfError(err, "config path")
	cfg, err := config.Load(path)
	app.FatalIfError(err, "failed to load config")

	// Override with command-line flags if specified
	logConfig := logger.Config{Output: cfg.Log.Output, Level: cfg.Log.Level, File: cfg.Log.File}
	if *verbose {
		logConfig.Level = "debug"
	}
	if *logfile != "" {
		logConfig.Output = "file"
		logConfig.File = *logfile
	}
	closeLog, err := logger.Init(logConfig)
	app.FatalIfError(err, "failed to initialize logger")
	defer func() { _ = closeLog() }()

	zlog.Debug().Msgf("main: config loaded path=%s", path)

	if err := run(cfg, selected); err != nil {
		zlog.Error().Msgf("tunebox: %v", err)
		_ = closeLog()
		os.Exit(1)
	}
}

// run executes the selected command. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config, cmd string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPath, err := cfg.DatabasePath()
	if err != nil {
		return err
	}
	st, err := store.Open(dbPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to open library database: %v", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			zlog.Error().Msgf("Failed to close library database: %v", err)
		}
	}()
	state, err := st.Load(ctx)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load library database: %v", err)
	}

	backend, err := audio.New(cfg.Audio.Backend, cfg.Audio.Settings)
	if err != nil {
		return err
	}

	// The watcher is only useful to a long running prompt.
	var watcher player.Watcher
	if cfg.Library.Watch && cmd == shellCmd.FullCommand() {
		w, err := watch.New()
		if err != nil {
			zlog.Warn().Msgf("Library watching disabled: %v", err)
		} else {
			defer func() { _ = w.Close() }()
			watcher = w
		}
	}

	p, err := newPlayer(cfg, st, state, backend, watcher)
	if err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := p.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			zlog.Error().Msgf("player: %v", err)
		}
	}()
	defer func() {
		cancel()
		<-done
		p.Close()
	}()

	exec := command.New(p, os.Stdout, command.Config{SeekStep: cfg.SeekStep(), Width: statusWidth})

	switch cmd {
	case importCmd.FullCommand():
		return importFiles(ctx, p, os.Stdout, *importPaths)
	case tracksCmd.FullCommand():
		return exec.Execute(ctx, "tracks")
	case playlistsCmd.FullCommand():
		return exec.Execute(ctx, "playlist list")
	}

	if cfg.MPRIS.Enabled {
		srv, err := mpris.Start(p, mpris.Options{Name: cfg.MPRIS.Name, Identity: "tunebox", Quit: stop})
		if err != nil {
			zlog.Warn().Msgf("MPRIS disabled: %v", err)
		} else {
			defer func() { _ = srv.Close() }()
		}
	}
	if cfg.Notify.Desktop {
		id := p.Subscribe(desktop.New("tunebox"))
		defer p.Unsubscribe(id)
	}

	return shell(ctx, exec, os.Stdin, os.Stdout, cfg.Prompt)
}

// newPlayer builds the player from configuration and the persisted state.
func newPlayer(cfg *config.Config, st player.Store, state store.State, backend playback.Backend, watcher player.Watcher) (*player.Player, error) {
	loop, err := queue.ParseLoop(cfg.Playback.Loop)
	if err != nil {
		return nil, err
	}
	return player.New(player.Options{
		Backend:    backend,
		Store:      st,
		Tags:       tags.New(),
		Watcher:    watcher,
		Tracks:     state.Tracks,
		Playlists:  state.Playlists,
		NextID:     state.NextID,
		Volume:     cfg.Playback.Volume,
		VolumeStep: cfg.Playback.VolumeStep,
		Loop:       loop,
		Shuffle:    cfg.Playback.Shuffle,
		Extensions: cfg.Library.Extensions,
	}), nil
}

func importFiles(ctx context.Context, p *player.Player, out io.Writer, paths []string) error {
	tracks, err := p.AddTracks(ctx, paths...)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "Imported %d tracks\n", len(tracks))
	return nil
}

// shell reads command lines from in until exit, end of input or ctx is done.
// Command errors are printed and do not end the prompt.
func shell(ctx context.Context, exec *command.Executor, in io.Reader, out io.Writer, prompt string) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		_, _ = fmt.Fprint(out, prompt)
		select {
		case <-ctx.Done():
			_, _ = fmt.Fprintln(out)
			return nil
		case line, ok := <-lines:
			if !ok {
				_, _ = fmt.Fprintln(out)
				select {
				case err := <-readErr:
					return errors.Wrap(err, "failed to read input")
				default:
					return nil
				}
			}
			err := exec.Execute(ctx, line)
			if errors.Is(err, command.ErrExit) {
				return nil
			}
			if err != nil {
				_, _ = fmt.Fprintf(out, "error: %v\n", err)
			}
		}
	}
}
