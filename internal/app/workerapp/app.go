package workerapp

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/delawer33/edumaster/internal/config"
	"github.com/delawer33/edumaster/internal/infra/rabbitmq"
	pgrepo "github.com/delawer33/edumaster/internal/repo/postgres"
	paymentsvc "github.com/delawer33/edumaster/internal/services/payments"
)

// App consumes payment intents from the queue and settles them in postgres.
// Unlike the api app it refuses to start without its backing services.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	postgres *pgxpool.Pool
	rabbit   *rabbitmq.Client
	worker   *paymentsvc.Worker
	policy   rabbitmq.FailurePolicy
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	pool, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("init postgres for worker app: %w", err)
	}

	rabbitClient, err := rabbitmq.Dial(rabbitmq.Config{
		URL:             cfg.RabbitMQ.URL,
		ConnectAttempts: cfg.RabbitMQ.ConnectAttempts,
		ConnectDelay:    cfg.RabbitMQ.ConnectDelay,
	}, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init rabbitmq for worker app: %w", err)
	}

	policy, err := rabbitmq.ParseFailurePolicy(cfg.Payments.OnError)
	if err != nil {
		pool.Close()
		_ = rabbitClient.Close()
		return nil, err
	}

	worker := paymentsvc.NewWorker(paymentsvc.Dependencies{
		Transactions: pgrepo.NewPaymentTransactionRepo(pool),
		Purchases:    pgrepo.NewPurchaseRepo(pool),
		Courses:      pgrepo.NewCourseRepo(pool),
	}, log)

	return &App{
		cfg:      cfg,
		logger:   log,
		postgres: pool,
		rabbit:   rabbitClient,
		worker:   worker,
		policy:   policy,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	a.logger.Info("payment worker started",
		zap.String("queue", a.cfg.Payments.Queue),
		zap.String("on_error", string(a.policy)),
	)

	err := a.rabbit.Consume(ctx, a.cfg.Payments.Queue, a.policy, a.worker.HandleMessage)
	if err == nil || errors.Is(err, context.Canceled) {
		a.logger.Info("payment worker stopped")
		return nil
	}
	return err
}

func (a *App) Close() {
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.rabbit != nil {
		_ = a.rabbit.Close()
	}
}
