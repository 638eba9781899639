package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SIMPLYBOYS/pay_usdc/internal/api"
	"github.com/SIMPLYBOYS/pay_usdc/internal/websocket"
	"github.com/SIMPLYBOYS/pay_usdc/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and websocket API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.LogDir != "" {
		if err := logger.EnableFileLogging(cfg.LogDir); err != nil {
			return err
		}
		defer logger.Default().Close()
	}

	logger.Info("Pay USDC starting...")

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wsManager := websocket.NewWebSocketManager()
	go wsManager.Run(ctx)

	batches, cleanup, err := newSettlementService(cfg, store, wsManager)
	if err != nil {
		return err
	}
	defer cleanup()

	resolver, registry := newResolver(cfg)

	gin.SetMode(gin.ReleaseMode)
	handler := api.NewHandler(resolver, registry, batches, store)
	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.SetupRouter(handler, wsManager),
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return logger.Errorf(err, "Failed to run server")
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return logger.Errorf(err, "Graceful shutdown failed")
	}
	return nil
}
