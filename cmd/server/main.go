package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"bread-widget/handler"
	"bread-widget/internal/app"
	"bread-widget/internal/config"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "bread-widget",
		Short:        "Bread baking assistant chat widget",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the widget over HTTP",
		Long: `Serve the widget over HTTP.

Configuration is read from the environment (and a .env file when present):
  BREAD_API_URL      base URL of the bread assistant (required)
  START_PATH         session start path (default /start/)
  TURN_PATH          conversation turn path (default /bread)
  ADDR               listen address (default :8080)
  ALLOWED_ORIGIN     CORS origin (default *)
  SESSION_TABLE      DynamoDB table for the session cache (optional)
  PARAM_PREFIX       SSM prefix for widget copy overrides (optional)
  REQUEST_TIMEOUT    upstream timeout in seconds, 0 for none
  PAGE_TTL_MINUTES   idle time before a page is dropped (default 120)
  LANGUAGE           language sent with every turn (default en)`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides ADDR")
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	h, err := app.NewHandler(ctx, cfg)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.NewRouter(h, cfg.AllowedOrigin),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		slog.Info("starting bread widget server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return eg.Wait()
}
