package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gatherly/internal/app/bridge"
	"gatherly/internal/app/membership"
	"gatherly/internal/app/pipeline"
	"gatherly/internal/domain/chat"
	domainuser "gatherly/internal/domain/user"
	"gatherly/internal/infra/broker/kafka"
	"gatherly/internal/infra/bus"
	"gatherly/internal/infra/config"
	mongostore "gatherly/internal/infra/db/mongo"
	ginserver "gatherly/internal/infra/http/gin"
	"gatherly/internal/infra/obs"
	"gatherly/internal/infra/security"
	"gatherly/internal/infra/storage/memory"
	"gatherly/internal/infra/ws"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := getenv("APP_ENV", "dev")
	logger := obs.NewLogger(env)

	cfg, err := config.Load()
	if err != nil {
		logger.Warn("using fallback configuration", "error", err)
		cfg.Env = env
		cfg.HTTPAddr = getenv("HTTP_ADDR", ":8080")
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("application wiring failed", "error", err)
		os.Exit(1)
	}
	defer app.close(logger)

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Ready: app.ready,
	}, app.handlers)

	fixturesPath := cfg.UserFixtures
	if fixturesPath == "" {
		fixturesPath = defaultUserFixturesPath()
	}
	if err := app.loadUserFixtures(ctx, fixturesPath, logger); err != nil {
		logger.Warn("user fixtures load failed", "error", err, "path", fixturesPath)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

type application struct {
	handlers ginserver.Handlers
	users    domainuser.Repository
	mongo    *mongostore.Client
	producer *kafka.Producer
	consumer *kafka.Consumer
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	app := &application{}

	var (
		chats    chat.Repository
		messages chat.MessageRepository
		users    domainuser.Repository
	)
	if cfg.MongoURI != "" {
		client, err := mongostore.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("mongo connect: %w", err)
		}
		app.mongo = client
		chats = mongostore.NewChatRepository(client.DB)
		messages = mongostore.NewMessageRepository(client.DB)
		users = mongostore.NewUserRepository(client.DB)
		logger.Info("mongo storage selected", "database", cfg.MongoDB)
	} else {
		chats = memory.NewChatRepository()
		messages = memory.NewMessageRepository()
		users = memory.NewUserRepository()
		logger.Info("in-memory storage selected")
	}
	app.users = users

	fanout := bus.New(logger)
	registry := ws.NewRegistry(chats, fanout, logger, cfg.SessionBuffer)
	fanout.Subscribe(registry.HandleEvent)

	membershipSvc := &membership.Service{
		Chats:    chats,
		Messages: messages,
		Users:    users,
		Bus:      fanout,
		Logger:   logger,
	}
	pipelineSvc := &pipeline.Service{
		Access:   membershipSvc,
		Chats:    chats,
		Messages: messages,
		Bus:      fanout,
		Logger:   logger,
	}
	eventBridge := &bridge.Bridge{Membership: membershipSvc, Logger: logger}

	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		app.producer = producer
		fanout.Subscribe(kafka.EgressSink{
			Producer: producer,
			Topic:    cfg.ChatEventTopic,
			Logger:   logger,
		}.HandleEvent)

		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, logger, kafka.BridgeHandler{
			Bridge: eventBridge,
			Logger: logger,
		})
		if err != nil {
			return nil, fmt.Errorf("kafka consumer: %w", err)
		}
		app.consumer = consumer
		go func() {
			if err := consumer.Run(ctx, []string{cfg.ExternalEventTopic}); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("kafka consumer stopped", "error", err)
			}
		}()
		logger.Info("kafka wired", "brokers", cfg.KafkaBrokers, "ingress", cfg.ExternalEventTopic, "egress", cfg.ChatEventTopic)
	} else {
		logger.Info("kafka disabled, external event bridge idle")
	}

	verifier := security.TokenVerifier{Secret: []byte(cfg.TokenSecret)}
	wsHandler := &ws.Handler{
		Registry:         registry,
		Auth:             verifier,
		Reads:            pipelineSvc,
		Logger:           logger,
		HandshakeTimeout: cfg.WSHandshakeTimeout,
	}

	app.handlers = ginserver.Handlers{
		Chat: ginserver.ChatHandler{
			Membership: membershipSvc,
			Pipeline:   pipelineSvc,
			Logger:     logger,
		},
		WS:             wsHandler.Serve,
		AuthMiddleware: ginserver.RequireAuth(verifier),
	}
	return app, nil
}

func (a *application) ready() error {
	if a.mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return a.mongo.Ping(ctx)
	}
	return nil
}

func (a *application) close(logger *slog.Logger) {
	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			logger.Error("kafka consumer close failed", "error", err)
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			logger.Error("kafka producer close failed", "error", err)
		}
	}
}

func (a *application) loadUserFixtures(ctx context.Context, path string, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("user fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}

	var fixtures []userFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}

	now := time.Now()
	for _, fx := range fixtures {
		u, err := domainuser.New(domainuser.ID(fx.ID), fx.Name, now)
		if err != nil {
			logger.Error("fixture invalid", "user_id", fx.ID, "error", err)
			continue
		}
		if err := a.users.Save(ctx, u); err != nil {
			logger.Error("cannot store fixture user", "user_id", fx.ID, "error", err)
			continue
		}
		logger.Info("user fixture imported", "user_id", u.ID)
	}
	return nil
}

type userFixture struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func defaultUserFixturesPath() string {
	candidates := []string{
		filepath.Join("data", "users.json"),
		filepath.Join("gatherly", "data", "users.json"),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return candidates[0]
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
