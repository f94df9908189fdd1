package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/Gautammer/mangekimambi-api/internal/cache"
	"github.com/Gautammer/mangekimambi-api/internal/config"
	"github.com/Gautammer/mangekimambi-api/internal/lib/envelope"
	"github.com/Gautammer/mangekimambi-api/internal/lib/jwt"
	"github.com/Gautammer/mangekimambi-api/internal/lib/rabbitmq"
	"github.com/Gautammer/mangekimambi-api/internal/migrations"
	"github.com/Gautammer/mangekimambi-api/internal/storage/repository"

	authservice "github.com/Gautammer/mangekimambi-api/internal/services/auth"
	contentservice "github.com/Gautammer/mangekimambi-api/internal/services/content"
	subservice "github.com/Gautammer/mangekimambi-api/internal/services/subscription"
)

// App держит HTTP-сервер и внешние соединения приложения.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	rabbit *amqp.Connection
}

// New инициализирует приложение: подключает PostgreSQL, прогоняет миграции,
// поднимает Redis и RabbitMQ, собирает сервисы и маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	rabbitConn, err := rabbitmq.Connect(cfg.RabbitConnectionString, 5, 3*time.Second)
	if err != nil {
		return nil, err
	}
	rabbitCh, err := rabbitmq.SetupChannel(rabbitConn, []rabbitmq.QueueConfig{
		{QueueName: "comments", RoutingKey: "comments"},
		{QueueName: "contact", RoutingKey: "contact"},
	})
	if err != nil {
		return nil, err
	}
	publisher := rabbitmq.NewPublisher(rabbitCh)

	codec, err := envelope.New(cfg.Envelope.Key, cfg.Envelope.IV)
	if err != nil {
		return nil, err
	}
	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)

	subscriptionService := subservice.New(db, cacheRedis, cfg.IsFree(), logger)
	authService := authservice.New(db, jwtMaker, subscriptionService)
	contentService := contentservice.New(db, publisher, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, db, codec, authService, subscriptionService, contentService)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		rabbit: rabbitConn,
	}, nil
}

// Run запускает HTTP-сервер и останавливает его по отмене контекста.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		_ = a.rabbit.Close()
		_ = a.db.DB.Close()
		return err
	}
}
