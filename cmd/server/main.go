package main

import (
	"chat-realtime/auth"
	"chat-realtime/infrastructure/http/server"
	"chat-realtime/infrastructure/websocket"
	"chat-realtime/internal"
	"chat-realtime/moderation"
	"chat-realtime/observability"
	"chat-realtime/protocol"
	"chat-realtime/repositories"
	"chat-realtime/runtime"
	"chat-realtime/runtime/workers"
	"chat-realtime/services"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the service manager.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component, serves until a signal arrives, then shuts down
// HTTP first and the live sessions second so that deferred closes run last.
func run() (int, error) {
	// 1. Configuration & Logger
	config, err := internal.LoadConfig(".env")
	if err != nil {
		return exitConfig, err
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Storage (BadgerDB) and search index (Bluge)
	db, err := repositories.OpenBadger(config.BadgerFilepath)
	if err != nil {
		return exitRuntime, err
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	writer, err := repositories.OpenBluge(config.BlugeFilepath)
	if err != nil {
		return exitRuntime, err
	}
	defer func() {
		log.Info("Closing Bluge...")
		_ = writer.Close()
	}()

	// 3. Moderation dictionary, seeded from the environment and kept in Badger
	blacklist := repositories.NewBlacklistRepository(db)
	if err := blacklist.AddWords(ctx, config.Words()...); err != nil {
		return exitRuntime, fmt.Errorf("seed blacklist: %w", err)
	}
	words, err := blacklist.ListWords(ctx)
	if err != nil {
		return exitRuntime, fmt.Errorf("load blacklist: %w", err)
	}
	moderator, err := moderation.NewModerator(words, charReplacement, log)
	if err != nil {
		return exitRuntime, err
	}

	// 4. Repositories & services
	users := repositories.NewUserRepository(db)
	rooms := repositories.NewRoomRepository(db)
	messages := repositories.NewMessageRepository(db, log)
	index := repositories.NewMessageIndex(writer, log)
	tokens := auth.NewTokenManager(config.JWTSecret, auth.DefaultIssuer, config.AuthTokenDuration)

	authService := services.NewAuthService(users, tokens)
	roomService := services.NewRoomService(log, rooms, users, messages)
	messageService := services.NewMessageService(log, messages, users, roomService, index, moderator,
		config.MaxContentLength, config.LimitMessages)

	// 5. Realtime core
	registry := runtime.NewRegistry(config.MaxConnections)
	broadcaster := runtime.NewBroadcaster(log, registry, config.DeliveryTimeout)
	router := protocol.NewRouter(log, registry, broadcaster, roomService, messageService, config.MaxContentLength)
	manager := runtime.NewManager(log, registry, broadcaster, users, tokens, router)

	// 6. Background workers
	monitoring := observability.NewMonitoringManager(log, registry)
	supervisor := workers.NewSupervisor(log, config.RestartInterval)
	supervisor.Add(
		workers.NewMonitoringWorker(monitoring, config.MetricInterval),
		workers.NewReporterWorker(log, monitoring, config.ReportInterval),
	)
	supervisorDone := make(chan struct{})
	go func() {
		supervisor.Run(ctx)
		close(supervisorDone)
	}()

	// 7. HTTP surface
	api := server.NewServer(log, server.Deps{
		Auth:        authService,
		Rooms:       roomService,
		Messages:    messageService,
		Tokens:      tokens,
		Realtime:    manager,
		Presence:    registry,
		Broadcaster: broadcaster,
		Monitoring:  monitoring,
		WSOptions: websocket.Options{
			WriteWait:    config.WriteWait,
			PongWait:     config.PongWait,
			MaxFrameSize: int64(config.MaxFrameSize),
			BufferSize:   config.ConnectionBufferSize,
		},
	})
	httpServer := &http.Server{
		Addr:              config.Address(),
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", config.Address(), "max_connections", config.MaxConnections)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 9. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", "error", err)
	}
	if err := manager.Shutdown(shutdownCtx); err != nil {
		return exitRuntime, fmt.Errorf("realtime shutdown: %w", err)
	}
	supervisor.Stop()
	<-supervisorDone
	log.Info("Program stopped cleanly")
	return exitOK, nil
}
