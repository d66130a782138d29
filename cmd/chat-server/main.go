package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/weiawesome/wes-io-chat/internal/cache"
	"github.com/weiawesome/wes-io-chat/internal/config"
	"github.com/weiawesome/wes-io-chat/internal/handler"
	"github.com/weiawesome/wes-io-chat/internal/hub"
	"github.com/weiawesome/wes-io-chat/internal/locks"
	"github.com/weiawesome/wes-io-chat/internal/relay"
	"github.com/weiawesome/wes-io-chat/internal/repository"
	"github.com/weiawesome/wes-io-chat/internal/service"
	"github.com/weiawesome/wes-io-chat/pkg/database"
	"github.com/weiawesome/wes-io-chat/pkg/jwt"
	pkglog "github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/middleware"
	"github.com/weiawesome/wes-io-chat/pkg/pubsub"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty || cfg.Log.Level == "debug",
		ServiceName: "chat-server",
	})
	logger := pkglog.L()

	instanceID := uuid.New().String()

	// Connect to database using GORM
	db, err := database.New(&database.Config{
		Driver:          cfg.Database.Driver,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		FilePath:        cfg.Database.FilePath,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        cfg.Database.LogLevel,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close(db)

	// Auto-migrate
	if err := database.AutoMigrate(db, repository.Models()...); err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	logger.Info().Msg("database migration completed")

	// Initialize repositories
	roomRepo := repository.NewGormRoomRepository(db)

	var messageRepo repository.MessageRepository
	switch cfg.MessageStore.Driver {
	case "cassandra":
		messageRepo, err = repository.NewCassandraMessageRepository(cfg.Cassandra)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to cassandra")
		}
		logger.Info().Strs("hosts", cfg.Cassandra.Hosts).Str("keyspace", cfg.Cassandra.Keyspace).Msg("cassandra message store connected")
	case "gorm", "":
		messageRepo = repository.NewGormMessageRepository(db)
	default:
		logger.Fatal().Str("driver", cfg.MessageStore.Driver).Msg("unknown message store driver")
	}
	defer messageRepo.Close()

	// Initialize room cache
	var roomCache cache.RoomCache = cache.NoopRoomCache{}
	switch cfg.Cache.Driver {
	case "redis":
		redisCache, err := cache.NewRedisRoomCache(cfg.Redis, cfg.Cache.Prefix)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		roomCache = redisCache
		logger.Info().Msg("redis cache connected")
	case "none", "":
	default:
		logger.Fatal().Str("driver", cfg.Cache.Driver).Msg("unknown cache driver")
	}
	defer roomCache.Close()

	// Live delivery
	h := hub.NewHub()
	var (
		broadcaster service.Broadcaster = h
		chatRelay   *relay.Relay
	)
	switch cfg.Relay.Driver {
	case "redis", "kafka":
		kafkaCfg := cfg.Relay.Kafka
		kafkaCfg.GroupID = fmt.Sprintf("%s-%s", kafkaCfg.GroupID, instanceID)
		bus, err := pubsub.NewPubSub(pubsub.Config{
			Driver: cfg.Relay.Driver,
			Redis: pubsub.RedisConfig{
				Address:  cfg.Redis.Address,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			},
			Kafka: kafkaCfg,
		})
		if err != nil {
			logger.Fatal().Err(err).Str("driver", cfg.Relay.Driver).Msg("failed to connect to message bus")
		}
		defer bus.Close()
		chatRelay = relay.New(bus, h, instanceID)
		broadcaster = chatRelay
	case "local", "":
	default:
		logger.Fatal().Str("driver", cfg.Relay.Driver).Msg("unknown relay driver")
	}

	// Initialize services
	roomService := service.NewRoomService(roomRepo, roomCache, locks.NewKeyed(), service.RoomOptions{
		MaxNameLength: cfg.Chat.MaxRoomNameLength,
		CacheTTL:      cfg.Cache.TTL,
	})
	messageService := service.NewMessageService(messageRepo, roomService, service.MessageOptions{
		MaxContentLength: cfg.Chat.MaxContentLength,
		HistoryPageLimit: cfg.Chat.HistoryPageLimit,
		AppendRetries:    cfg.Chat.AppendRetries,
		SeqCacheSize:     cfg.Chat.SeqCacheSize,
	})
	chatService := service.NewChatService(h, roomService, messageService, broadcaster)

	// Initialize auth
	tokens, err := jwt.NewManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create token manager")
	}
	authMiddleware := middleware.NewAuthMiddleware(tokens)

	// Setup Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))

	handler.NewHandler(roomService, messageService, chatService, authMiddleware, cfg.Chat.RequestTimeout).RegisterRoutes(r)
	handler.NewWSHandler(chatService, authMiddleware, cfg.WebSocket, cfg.Chat.RequestTimeout).RegisterRoutes(r)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return h.Run(gCtx)
	})
	if chatRelay != nil {
		g.Go(func() error {
			return chatRelay.Run(pkglog.WithLogger(gCtx, logger))
		})
	}
	g.Go(func() error {
		logger.Info().
			Str("addr", server.Addr).
			Str("instance", instanceID).
			Str("database", cfg.Database.Driver).
			Str("message_store", cfg.MessageStore.Driver).
			Str("cache", cfg.Cache.Driver).
			Str("relay", cfg.Relay.Driver).
			Msg("chat-server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info().Msg("shutting down chat-server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("chat-server stopped with error")
		return
	}
	logger.Info().Msg("chat-server stopped")
}
