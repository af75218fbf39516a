package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-relay/auth"
	"chat-relay/internal"
	"chat-relay/observability"
	"chat-relay/runtime"
	"chat-relay/services"
	"chat-relay/transport/ws"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service
// manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting, so defers execute before the process exits
// and the wiring stays testable outside of main.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	logger := logs.GetLoggerFromString(config.LogLevel)

	signingKey, err := resolveSigningKey(config.TokenSigningKey)
	if err != nil {
		return exitConfig, err
	}

	// 2. Context & Signals
	// NotifyContext captures OS signals and cancels the context to trigger a
	// shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Engine wiring: registries, gateway, coordinator.
	// All state is in memory and rebuilt from zero connections on restart.
	store := auth.NewIdentityStore()
	issuer := auth.NewTokenIssuer(signingKey, config.AuthTokenDuration)
	authService := services.NewAuthService(store, issuer)

	presence := runtime.NewPresence()
	rooms := runtime.NewRooms()
	gateway := runtime.NewGateway()
	coordinator := runtime.NewCoordinator(logger, presence, rooms, gateway)
	monitor := observability.NewMemoryMonitor(ctx, logger, config.MemorySampleInterval)

	server := ws.NewServer(logger, authService, issuer, coordinator, monitor, config.ConnectionBufferSize)

	if config.DebugPort > 0 {
		internal.StartDebugServer(logger, config.DebugPort, rooms, presence)
	}

	// 4. HTTP Server
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{Addr: address, Handler: server.Routes()}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting relay server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 5. Wait for Stop or Error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 6. Final Cleanup (Graceful Shutdown)
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return exitRuntime, fmt.Errorf("shutdown error: %w", err)
	}
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

// resolveSigningKey decodes the configured token key or generates a random
// one. A generated key invalidates every token on restart, which is
// consistent with the rest of the state being volatile.
func resolveSigningKey(configured string) ([]byte, error) {
	if configured != "" {
		return []byte(configured), nil
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("signing key generation failed: %w", err)
	}
	return key, nil
}
