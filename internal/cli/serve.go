// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/echoflow/internal/errs"
	"github.com/jeranaias/echoflow/internal/provider"
	"github.com/jeranaias/echoflow/internal/server"
)

func newServeCommand(e *env) *cobra.Command {
	var addr, kind string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat and transcription backend",
		Long: `Run the HTTP backend the chat client talks to.

Endpoints:
  POST /api/chat         {"message": "...", "imageDataUri": "data:..."}
  POST /api/transcribe   {"audioDataUri": "data:..."}
  GET  /health

The model provider is set by [server] in the config. The "echo" provider
needs no API key and answers "You said: <message>".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				e.cfg.Server.Addr = addr
			}
			if kind != "" {
				e.cfg.Server.Provider = kind
			}
			return runServe(cmd.Context(), e)
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (default from config)")
	cmd.Flags().StringVarP(&kind, "provider", "p", "", "model provider: gemini, openai or echo")
	return cmd
}

// serverOptions maps [server] settings to server options.
func (e *env) serverOptions() []server.Option {
	sc := e.cfg.Server
	opts := []server.Option{
		server.WithAddr(sc.Addr),
		server.WithLogger(e.log.Named("server")),
		server.WithRateLimit(sc.RateLimit, sc.RateBurst),
	}
	if sc.BodyLimitMB > 0 {
		opts = append(opts, server.WithBodyLimit(int64(sc.BodyLimitMB)*1024*1024))
	}
	if sc.RequestTimeoutSecs > 0 {
		opts = append(opts, server.WithRequestTimeout(time.Duration(sc.RequestTimeoutSecs)*time.Second))
	}
	if len(sc.AllowedOrigins) > 0 {
		cors := server.DefaultCORSConfig()
		cors.AllowedOrigins = sc.AllowedOrigins
		opts = append(opts, server.WithCORS(cors))
	}
	return opts
}

func runServe(ctx context.Context, e *env) error {
	sc := e.cfg.Server
	p, err := provider.New(ctx, provider.Config{
		Kind:        sc.Provider,
		Model:       sc.Model,
		APIKey:      sc.APIKey,
		BaseURL:     sc.BaseURL,
		Temperature: sc.Temperature,
	})
	if err != nil {
		return errs.Unavailable("serve", err.Error(), err)
	}

	srv := server.New(p, e.serverOptions()...)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		e.log.Info("backend listening", zap.String("addr", srv.Addr()), zap.String("provider", p.Name()))
		return srv.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		e.log.Info("shutting down backend")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	st := srv.Stats()
	e.log.Info("backend stopped",
		zap.Int64("chat_requests", st.ChatRequests.Load()),
		zap.Int64("transcribe_requests", st.TranscribeRequests.Load()),
		zap.Int64("failures", st.Failures.Load()),
	)
	return nil
}
