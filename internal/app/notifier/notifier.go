// Package notifier собирает фоновый процесс почтовых уведомлений:
// потребители очередей RabbitMQ и SMTP транспорт.
package notifier

import (
	"context"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/Gautammer/mangekimambi-api/internal/config"
	"github.com/Gautammer/mangekimambi-api/internal/lib/rabbitmq"
	"github.com/Gautammer/mangekimambi-api/internal/lib/smtp"
	notifierservice "github.com/Gautammer/mangekimambi-api/internal/services/notifier"
)

type App struct {
	conn    *amqp.Connection
	ch      *amqp.Channel
	service *notifierservice.Service
	logger  *slog.Logger
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitConnectionString, 5, 3*time.Second)
	if err != nil {
		return nil, err
	}

	ch, err := rabbitmq.SetupChannel(conn, []rabbitmq.QueueConfig{
		{QueueName: "comments", RoutingKey: "comments"},
		{QueueName: "contact", RoutingKey: "contact"},
	})
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	transport := smtp.NewTransport(cfg.SMTP, logger)
	service := notifierservice.New(transport, cfg.AdminEmail, logger)

	return &App{
		conn:    conn,
		ch:      ch,
		service: service,
		logger:  logger,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	if err := rabbitmq.ConsumeQueue(ctx, a.ch, "comments", a.service.HandleComment); err != nil {
		a.logger.Error("failed to start comments consumer", slog.Any("err", err))
		return err
	}
	if err := rabbitmq.ConsumeQueue(ctx, a.ch, "contact", a.service.HandleContact); err != nil {
		a.logger.Error("failed to start contact consumer", slog.Any("err", err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("notifier shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}
	return nil
}
