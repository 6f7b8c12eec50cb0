package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/image-search/internal/config"
	"github.com/kozaktomas/image-search/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Image Search HTTP API.
The stored corpus is restored on startup. Without one the server starts
empty and answers queries with 503 until an ingest job completes.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (default WEB_PORT or 8080)")
	serveCmd.Flags().String("host", "", "Host to bind to (default WEB_HOST or 0.0.0.0)")
}

// resolveServeHostPort applies flag overrides on top of the environment.
func resolveServeHostPort(cmd *cobra.Command, cfg *config.Config) {
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	resolveServeHostPort(cmd, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng, err := newEngine(cfg)
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer closeStore()

	restored, err := eng.Restore(ctx, store)
	switch {
	case err != nil:
		return fmt.Errorf("failed to restore corpus: %w", err)
	case restored:
		fmt.Printf("Restored corpus with %d images\n", eng.Status().Items)
	default:
		fmt.Println("No stored corpus; start an ingest job to build one")
	}

	server := web.NewServer(cfg, eng)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Image Search API on http://%s:%d/api/v1\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
