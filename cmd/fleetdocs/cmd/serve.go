package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	fleethttp "fleetdocs-service/internal/http"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the reconciliation HTTP API",
		Example: `  # Listen on the default address
  fleetdocs serve

  # Protect the API with a shared password
  FLEETDOCS_AUTH_ACCESS_PASSWORD=secret FLEETDOCS_AUTH_JWT_SECRET=key fleetdocs serve --addr :9000`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().String("addr", ":8080", "listen address")
	bindFlags(a.v, cmd.Flags(), map[string]string{"http.addr": "addr"})
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	runs, closeRuns, err := a.runRepository()
	if err != nil {
		return err
	}
	defer closeRuns()

	if a.cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	svc := a.reconcileService(runs)
	auth := fleethttp.NewAuthenticator(a.cfg.Auth.AccessPassword, a.cfg.Auth.JWTSecret, a.cfg.Auth.TokenTTL)
	handler := fleethttp.NewHandler(svc, auth, a.cfg, a.log)

	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           fleethttp.NewRouter(a.cfg, handler, auth, a.log),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		a.log.Info().
			Str("addr", srv.Addr).
			Bool("auth", auth.Enabled()).
			Bool("db", a.cfg.DB.Enabled).
			Str("schema_mode", string(a.cfg.SchemaMode())).
			Str("duplicate_policy", string(a.cfg.DuplicatePolicy())).
			Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("server failed: %w", err)
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		a.log.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	a.log.Info().Msg("server stopped")
	return nil
}
