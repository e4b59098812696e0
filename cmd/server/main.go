package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"

	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/infrastructure/httpapi"
	"chat-relay/infrastructure/ws"
	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/projection"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/bus"
	"chat-relay/runtime/workers"
	"chat-relay/search"
	"chat-relay/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting so deferred cleanup always executes.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := internal.GetLoggerFromString(config.LogLevel)

	replacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return err
	}

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Repositories
	messageRepository, err := repositories.NewMessageRepository(db, log, config.LimitMessages)
	if err != nil {
		return err
	}
	defer func() { _ = messageRepository.Close() }()

	userRepository, err := repositories.NewUserRepository(db)
	if err != nil {
		return err
	}
	defer func() { _ = userRepository.Close() }()

	roomRepository, err := repositories.NewRoomRepository(db)
	if err != nil {
		return err
	}
	defer func() { _ = roomRepository.Close() }()

	membershipRepository := repositories.NewMembershipRepository(db)

	// 4. Room bus: NATS when configured, in-process otherwise
	var roomBus contract.Bus
	if config.NatsURL != "" {
		natsBus, err := bus.ConnectNats(config.NatsURL, "chat-relay", log)
		if err != nil {
			return fmt.Errorf("nats connection failed: %w", err)
		}
		roomBus = natsBus
		log.Info("Using NATS room bus", "url", config.NatsURL)
	} else {
		roomBus = bus.NewMemoryBus(log)
		log.Info("Using in-process room bus")
	}
	defer func() { _ = roomBus.Close() }()

	// 5. Realtime engine
	filter, err := moderation.NewFilter(replacement)
	if err != nil {
		return fmt.Errorf("moderation filter: %w", err)
	}
	registry := runtime.NewRegistry(log, roomBus)
	pipeline := runtime.NewPipeline(log, messageRepository, roomBus,
		filter, config.MaxContentLength, config.BufferSize)

	// 6. Projections & search
	timeline := projection.NewTimeline(config.HistoryLimit)
	index, err := search.Open(config.BlugeFilepath, log)
	if err != nil {
		return fmt.Errorf("search index: %w", err)
	}
	defer func() { _ = index.Close() }()

	// 7. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 8. Supervised workers
	sup := workers.NewSupervisor(log)
	sup.Add(
		workers.NewEventFanout(log, pipeline.Events(), config.SinkTimeout,
			timeline, search.NewSink(index)),
		workers.NewHealthMonitoring(log, registry, config.MetricInterval),
	)
	go sup.Run(ctx)
	defer sup.Stop()

	// 9. Services
	issuer := auth.NewTokenIssuer(config.AuthSecret, config.AuthTokenDuration)
	authService := services.NewAuthService(userRepository, issuer)
	roomService := services.NewRoomService(roomRepository, membershipRepository, config.AutoJoinOnAttach)
	chatService := services.NewChatService(pipeline, messageRepository, timeline, index)

	// 10. HTTP surface: REST API + WebSocket attach on one mux
	mux := http.NewServeMux()
	httpapi.NewHandler(authService, roomService, chatService, config.HistoryLimit, log).Register(mux)
	ws.NewHandler(authService, roomService, chatService, registry,
		config.ConnectionBufferSize, config.HistoryLimit, config.MaxFrameSize, log).Register(mux)

	internal.StartDebugServer(db, config.DebugPort, func() map[string]any {
		return map[string]any{"active_rooms": registry.RoomCount()}
	})

	server := &http.Server{
		Addr:              config.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", config.Addr(), "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 11. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 12. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", "error", err)
	}
	log.Info("Program stopped cleanly")

	return nil
}
