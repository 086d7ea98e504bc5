package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	rerank "github.com/soundprediction/go-rerank"
	"github.com/soundprediction/go-rerank/pkg/config"
	"github.com/soundprediction/go-rerank/pkg/logger"
	"github.com/soundprediction/go-rerank/pkg/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the reranking HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(os.Stderr, logger.ParseLevel(cfg.Log.Level), cfg.Log.Format)

	svc, err := rerank.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	router := server.New(svc, svc.Health, log).Router(cfg.Server.Mode)
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	// Graceful shutdown: stop accepting connections, then drain the
	// batching pipeline so every submitted request resolves
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Info("shutting down gracefully")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
		if err := svc.Close(); err != nil {
			log.Error("pipeline shutdown failed", "error", err)
		}
	}()

	log.Info("starting reranking server", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
