// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/mdconvert/internal/server"
)

const (
	shutdownTimeout = 15 * time.Second

	// defaultServeAddr binds loopback only; batches read and write local paths.
	defaultServeAddr = "127.0.0.1:8080"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run batches over HTTP and stream progress over websockets",
	Long: `Serve starts an HTTP server. POST /api/batches with {"inputs": [...],
"output": "dir"} starts a batch; GET /api/batches/{id}/events upgrades to a
websocket that replays and then streams the batch's progress records.
Only one batch runs at a time.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := bindConversionFlags(cmd, args); err != nil {
			return err
		}
		return viper.BindPFlag("serve.addr", cmd.Flags().Lookup("addr"))
	},
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	rn, cleanup, err := newRunner()
	defer cleanup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(context.WithoutCancel(ctx), rn.Run, logger)
	addr := viper.GetString("serve.addr")
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		_ = httpSrv.Close()
	}
	if err := srv.Wait(shutdownCtx); err != nil {
		logger.Warn("batch still running at shutdown", "error", err)
	}
	logger.Info("server stopped")
	return nil
}

func init() {
	serveCmd.Flags().String("addr", defaultServeAddr, "listen address (the API is unauthenticated)")
	addConversionFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)
}
