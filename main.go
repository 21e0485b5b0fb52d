package main

import (
	"context"
	"errors"
	"log" // Use standard log only for fatal errors before the logger is set up
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mt5gateway/config"
	"mt5gateway/internal/adapters/logger"
	"mt5gateway/internal/adapters/mt5client"
	"mt5gateway/internal/app"
	"mt5gateway/internal/server"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger := logger.New(logger.Config{
		Level:      cfg.LogLevel,
		OutputFile: cfg.LogFile,
	})
	ctx := context.Background()
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel})

	// 3. Initialize Terminal Client (MT5 Bridge Adapter)
	terminal, err := mt5client.New(mt5client.Config{
		Addr:        cfg.BridgeAddr,
		Logger:      appLogger,
		DialTimeout: cfg.DialTimeout,
		CallTimeout: cfg.CallTimeout,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize MT5 client")
		log.Fatalf("FATAL: Failed to initialize MT5 client: %v", err)
	}

	// The terminal session is the one process-wide resource: opened here,
	// held for the process lifetime, closed on shutdown. No reconnection.
	account, err := terminal.Connect(ctx)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to connect to MT5 terminal")
		log.Fatalf("FATAL: Failed to connect to MT5 terminal: %v", err)
	}
	defer func() {
		if err := terminal.Close(); err != nil {
			appLogger.Error(ctx, err, "Error closing terminal connection")
		}
	}()
	appLogger.Info(ctx, "Terminal session established", map[string]interface{}{
		"login":   account.Login,
		"balance": account.Balance,
		"server":  account.Server,
	})

	// 4. Initialize Gateway Service
	gateway, err := app.New(cfg, appLogger, terminal)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize gateway service")
		log.Fatalf("FATAL: Failed to initialize gateway service: %v", err)
	}

	// 5. Initialize HTTP Server
	srv, err := server.New(gateway, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize HTTP server")
		log.Fatalf("FATAL: Failed to initialize HTTP server: %v", err)
	}
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: srv.Router(),
	}

	// 6. Serve until interrupted
	errCh := make(chan error, 1)
	go func() {
		appLogger.Info(ctx, "MT5 gateway listening", map[string]interface{}{"addr": cfg.BindAddr})
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		appLogger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Error(ctx, err, "HTTP server shutdown failed")
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error(ctx, err, "FATAL: HTTP server exited with error")
			log.Fatalf("FATAL: HTTP server exited with error: %v", err)
		}
	}

	appLogger.Info(ctx, "Gateway stopped.")
}
