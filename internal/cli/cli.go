// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/echoflow/internal/app"
	"github.com/jeranaias/echoflow/internal/backend"
	"github.com/jeranaias/echoflow/internal/capability"
	"github.com/jeranaias/echoflow/internal/config"
	"github.com/jeranaias/echoflow/internal/logging"
	"github.com/jeranaias/echoflow/internal/notify"
	"github.com/jeranaias/echoflow/internal/storage"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// GLOBAL FLAGS
// =============================================================================

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	verbose    bool
	ephemeral  bool
}

// env is what a command runs with: the loaded config, a logger and the
// process streams.
type env struct {
	flags globalFlags
	cfg   *config.Config
	log   *zap.Logger
	in    io.Reader
	out   io.Writer
	err   io.Writer
}

// loadConfig reads --config when given, else the default location.
func (e *env) loadConfig() error {
	var (
		cfg *config.Config
		err error
	)
	if e.flags.configPath != "" {
		cfg, err = config.LoadFromPath(config.ExpandPath(e.flags.configPath))
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	e.cfg = cfg
	return nil
}

// initLogger builds the logger. toFile sends it to the log file so the
// terminal only shows the conversation.
func (e *env) initLogger(toFile bool) error {
	opts := logging.Options{Verbose: e.flags.verbose}
	if toFile {
		path, err := e.cfg.LogPath()
		if err != nil {
			return err
		}
		opts.File = path
	}
	log, err := logging.New(e.cfg.Log, opts)
	if err != nil {
		return err
	}
	e.log = log
	return nil
}

// =============================================================================
// APP WIRING
// =============================================================================

// openStore opens the configured conversation store, or an in-memory one
// with --ephemeral.
func (e *env) openStore() (storage.Store, error) {
	if e.flags.ephemeral {
		return storage.NewMemoryStore(), nil
	}
	path, err := e.cfg.StoragePath()
	if err != nil {
		return nil, err
	}
	return storage.Open(e.cfg.Storage.Driver, path,
		storage.WithLogger(e.log.Named("storage")),
		storage.WithDebounce(time.Duration(e.cfg.Storage.WatchDebounceMs)*time.Millisecond),
	)
}

// backendClient builds the HTTP client for the configured backend.
func (e *env) backendClient() *backend.HTTPClient {
	b := e.cfg.Backend
	return backend.NewHTTPClient(b.URL,
		backend.WithTimeout(time.Duration(b.TimeoutSecs)*time.Second),
		backend.WithMaxRetries(b.MaxRetries),
		backend.WithRateLimit(b.RequestsPerSecond, 5),
		backend.WithLogger(e.log.Named("backend")),
	)
}

// deps assembles the device capabilities from the config.
func (e *env) deps(st storage.Store) app.Deps {
	client := e.backendClient()
	d := app.Deps{
		Store:       st,
		Chat:        client,
		Transcriber: client,
		Clipboard:   capability.SystemClipboard{},
		Sharer:      capability.NewCommandSharer(e.cfg.Share.Command),
	}
	if len(e.cfg.Voice.RecordCommand) > 0 {
		d.Recorder = capability.NewExecRecorder(e.cfg.Voice.RecordCommand, e.cfg.Voice.MIMEType)
	}
	if len(e.cfg.Speech.SpeakCommand) > 0 {
		d.Speaker = capability.NewCommandSpeaker(e.cfg.Speech.SpeakCommand, e.cfg.Speech.VoicesCommand)
	}
	if e.cfg.UI.Bell {
		d.Haptic = capability.NewBell(e.out)
	}
	return d
}

// newApp opens the store and builds an App over it. The returned close
// function releases both.
func (e *env) newApp(n notify.Notifier, opts ...app.Option) (*app.App, func(), error) {
	st, err := e.openStore()
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}
	base := []app.Option{
		app.WithLogger(e.log.Named("app")),
		app.WithNotifier(n),
		app.WithLanguage(e.cfg.Speech.Language),
		app.WithAutoplay(e.cfg.Speech.Autoplay),
	}
	a := app.New(e.deps(st), append(base, opts...)...)
	closeFn := func() {
		a.Close()
		if err := st.Close(); err != nil {
			e.log.Warn("close storage", zap.Error(err))
		}
	}
	return a, closeFn, nil
}

// =============================================================================
// ROOT COMMAND
// =============================================================================

// NewRootCommand builds the echoflow command tree.
func NewRootCommand() *cobra.Command {
	e := &env{in: os.Stdin, out: os.Stdout, err: os.Stderr, log: zap.NewNop()}

	root := &cobra.Command{
		Use:   "echoflow",
		Short: "EchoFlow - chat with an AI assistant by text, image or voice",
		Long: `EchoFlow is a terminal chat client for a conversational AI backend.

Conversations are kept locally and can be reopened, renamed, pinned, shared
and exported. Replies can be read aloud, and voice notes are transcribed
before they are sent.

Run without arguments to start the interactive chat.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			e.in = cmd.InOrStdin()
			e.out = cmd.OutOrStdout()
			e.err = cmd.ErrOrStderr()
			if err := e.loadConfig(); err != nil {
				return err
			}
			// The interactive chat owns the terminal; everything else logs
			// to stderr.
			return e.initLogger(cmd.Name() == "chat" || cmd.Name() == "echoflow")
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = e.log.Sync()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), e)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&e.flags.configPath, "config", "c", "", "config file (default ~/.echoflow/config.toml)")
	pf.BoolVarP(&e.flags.verbose, "verbose", "v", false, "debug logging")
	pf.BoolVar(&e.flags.ephemeral, "ephemeral", false, "keep chats in memory only")

	root.AddCommand(
		newChatCommand(e),
		newAskCommand(e),
		newHistoryCommand(e),
		newServeCommand(e),
		newConfigCommand(e),
		newVersionCommand(),
	)
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "echoflow %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
		},
	}
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	root := NewRootCommand()
	if err := root.ExecuteContext(context.Background()); err != nil {
		DisplayError(root.ErrOrStderr(), err)
		return GetExitCode(err)
	}
	return ExitSuccess
}
