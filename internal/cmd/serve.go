package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dativo-io/notescrub/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the note pipeline over HTTP",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides serve_addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, p, err := loadPipeline()
	if err != nil {
		return err
	}
	addr := cfg.ServeAddr
	if serveAddr != "" {
		addr = serveAddr
	}

	srv := server.NewServer(p,
		server.WithVersion(resolvedVersion()),
		server.WithAPIKeys(cfg.APIKeys),
		server.WithMaxBodyBytes(cfg.MaxNoteBytes()),
		server.WithTrustedProxy(cfg.TrustProxy),
		server.WithRateLimiter(server.NewRateLimiter(cfg.GlobalRPM, cfg.RateLimitRPM)),
	)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info().
		Str("addr", addr).
		Strs("categories", p.Categories()).
		Bool("auth", len(cfg.APIKeys) > 0).
		Int("rate_limit_rpm", cfg.RateLimitRPM).
		Bool("trust_proxy", cfg.TrustProxy).
		Msg("notescrub_serve_started")

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown_signal_received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("server_stopped")
	return nil
}
