// Package server implements the `server` CLI command.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"tickettracker/internal/interfaces/cli/bootstrap"
	httpRouter "tickettracker/internal/interfaces/http"
	"tickettracker/internal/shared/logger"
)

var (
	configPath string
	addr       string
	logLevel   string
	logFormat  string
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the web UI",
		Long:  `Start the TicketTracker HTTP server serving the ticket list, settings, and demo-mode controls.`,
		RunE:  run,
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (defaults to standard lookup)")
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	if err := logger.Init(logger.Options{Level: logLevel, Format: logFormat}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	gin.DefaultWriter = io.Discard

	app, err := bootstrap.Open(configPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	router := httpRouter.NewRouter(app.Store, app.Engine, app.Demo)

	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "address", addr, "demo_mode", app.Demo.IsActive())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		return err
	}

	logger.Info("server exited gracefully")
	return nil
}
