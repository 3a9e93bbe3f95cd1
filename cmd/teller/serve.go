package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/harborbank/teller/internal/server"
	"github.com/harborbank/teller/internal/session"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	// Expired sessions are swept in the background; any transaction
	// still pending confirmation is cancelled first.
	sweeper := session.NewSweeper(a.sessions, a.cfg.Session.IdleTimeout, a.cfg.Session.SweepInterval,
		func(sess *session.Session) {
			if txID := sess.ActiveTransaction(); txID != "" {
				if err := a.workflow.Cancel(txID, sess); err != nil {
					slog.Warn("failed to cancel pending transaction on expiry",
						"session_id", sess.ID(), "transaction_id", txID, "error", err)
				}
			}
		}, slog.Default())
	go sweeper.Run(ctx)

	srv := server.New(a.orch, a.auth, a.cfg.Server.RatePerMinute, slog.Default())
	httpSrv := &http.Server{
		Addr:              a.cfg.Server.Addr(),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP gateway listening", "addr", httpSrv.Addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	slog.Info("server stopped")
	return nil
}
