package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fentz26/taskman/internal/audit"
	"github.com/fentz26/taskman/internal/config"
	"github.com/fentz26/taskman/internal/server"
	"github.com/fentz26/taskman/internal/storage"
	"github.com/spf13/cobra"
)

var (
	listenAddr string
	dbPath     string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the taskman API server",
	Long:  `Starts the HTTP API that stores tasks in a local SQLite database.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address for the API server (default from config)")
	serveCmd.Flags().StringVar(&dbPath, "db", "", "Path to SQLite database (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("listen") {
		cfg.Listen = listenAddr
	}
	if cmd.Flags().Changed("db") {
		cfg.DBPath = dbPath
	}

	logger.Info("starting taskman server", "db", cfg.ResolvedDBPath(), "version", server.Version)

	s, err := storage.New(cfg.ResolvedDBPath())
	if err != nil {
		return err
	}

	service := server.NewService(s, audit.NewRecorder(s), logger)
	srv := server.NewServer(service, cfg.Listen,
		server.WithLogger(logger),
		server.WithCORSOrigins(cfg.CORSOrigins...),
	)

	// Pick up log level and CORS changes without a restart
	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	err = config.Watch(watchCtx, cfgFile, logger, func(c *config.Config) {
		level, _ := config.ParseLevel(c.LogLevel)
		logLevelVar.Set(level)
		srv.SetCORSOrigins(c.CORSOrigins...)
	})
	if err != nil {
		logger.Warn("config watch disabled", "err", err)
	}

	// Set up signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// Channel to receive server errors
	serverErr := make(chan error, 1)

	go func() {
		err := srv.Start()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigCh:
		logger.Info("received signal, initiating graceful shutdown", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			logger.Error("server error", "err", err)
			s.Close()
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "err", err)
	}

	logger.Info("closing database connection")
	if err := s.Close(); err != nil {
		logger.Error("database close error", "err", err)
	}

	logger.Info("shutdown complete")
	return nil
}
