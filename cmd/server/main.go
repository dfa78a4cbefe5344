package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/livecast/livecast/internal/config"
	"github.com/livecast/livecast/internal/events"
	"github.com/livecast/livecast/internal/repository"
	"github.com/livecast/livecast/internal/server"
	"github.com/livecast/livecast/internal/service"
	awssink "github.com/livecast/livecast/pkg/aws"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Optional persistence collaborator: the engine runs fine without it.
	var mirror service.Mirror
	if cfg.Redis.Enabled {
		redisMirror, err := repository.NewRedisMirror(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer redisMirror.Close()
		mirror = redisMirror
		log.Info().Str("addr", cfg.Redis.Addr).Msg("redis mirror enabled")
	}

	hub := server.NewHub()
	notifier := events.Fanout{hub}
	if cfg.Kinesis.Enabled {
		notifier = append(notifier, awssink.NewKinesisSink(cfg.Kinesis.Region, cfg.Kinesis.StreamName))
		log.Info().Str("stream", cfg.Kinesis.StreamName).Msg("kinesis event sink enabled")
	}

	store := service.NewStore()
	store.SetChatHistorySize(cfg.ChatHistorySize)
	analytics := service.NewAnalyticsAggregator(store)
	presence := service.NewViewerPresenceTracker(store, notifier, analytics, mirror)
	chat := service.NewChatFanoutService(store, notifier, analytics, mirror)
	gifts := service.NewGiftLedger(store, chat, analytics, notifier)
	registry := service.NewStreamRegistry(store, notifier, presence, analytics, mirror,
		cfg.Retention, cfg.CleanupInterval)

	hub.SetChatSink(func(streamID, userID, username, content string) error {
		_, err := chat.PostMessage(streamID, service.PostMessageRequest{
			UserID:   userID,
			Username: username,
			Content:  content,
		})
		return err
	})
	go hub.Run()
	registry.Start(ctx)

	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(server.CORSMiddleware())
	router.Use(server.LoggingMiddleware())

	handler := server.NewHandler(registry, presence, chat, gifts, analytics, hub)
	handler.RegisterRoutes(router)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("livecast server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	hub.Close()
	log.Info().Msg("server exited gracefully")
}
