package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/delawer33/edumaster/internal/config"
	"github.com/delawer33/edumaster/internal/infra/rabbitmq"
	s3infra "github.com/delawer33/edumaster/internal/infra/s3"
	pgrepo "github.com/delawer33/edumaster/internal/repo/postgres"
	redrepo "github.com/delawer33/edumaster/internal/repo/redis"
	authsvc "github.com/delawer33/edumaster/internal/services/auth"
	coursesvc "github.com/delawer33/edumaster/internal/services/courses"
	filesvc "github.com/delawer33/edumaster/internal/services/files"
	paymentsvc "github.com/delawer33/edumaster/internal/services/payments"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	s3         *minio.Client
	rabbit     *rabbitmq.Client
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	sessionRepo := redrepo.NewSessionRepo(redisClient)

	userRepo := pgrepo.NewUserRepo(pool)
	courseRepo := pgrepo.NewCourseRepo(pool)
	moduleRepo := pgrepo.NewModuleRepo(pool)
	lessonRepo := pgrepo.NewLessonRepo(pool, moduleRepo)
	lessonBlockRepo := pgrepo.NewLessonBlockRepo(pool)
	fileRepo := pgrepo.NewFileRepo(pool)
	purchaseRepo := pgrepo.NewPurchaseRepo(pool)
	transactionRepo := pgrepo.NewPaymentTransactionRepo(pool)

	jwtManager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTTL)
	authService := authsvc.NewService(userRepo, sessionRepo, jwtManager, cfg.Auth.RefreshTTL)

	courseService := coursesvc.NewService(coursesvc.Dependencies{
		Courses: courseRepo,
		Modules: moduleRepo,
		Lessons: lessonRepo,
		Blocks:  lessonBlockRepo,
	})

	var s3Client *minio.Client
	if c, err := s3infra.NewClient(s3infra.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		UseSSL:    cfg.S3.UseSSL,
	}); err != nil {
		log.Warn("s3 init failed, continuing in degraded mode", zap.Error(err))
	} else {
		s3Client = c
	}

	fileStorage := filesvc.NewS3Storage(s3Client, cfg.S3.Bucket)
	fileService := filesvc.NewService(fileRepo, fileStorage, cfg.Upload.MaxSizeBytes)

	var rabbitClient *rabbitmq.Client
	if c, err := rabbitmq.Dial(rabbitmq.Config{
		URL:             cfg.RabbitMQ.URL,
		ConnectAttempts: cfg.RabbitMQ.ConnectAttempts,
		ConnectDelay:    cfg.RabbitMQ.ConnectDelay,
	}, log); err != nil {
		log.Warn("rabbitmq init failed, continuing in degraded mode", zap.Error(err))
	} else {
		rabbitClient = c
	}

	paymentService := paymentsvc.NewService(paymentsvc.Dependencies{
		Transactions: transactionRepo,
		Purchases:    purchaseRepo,
		Courses:      courseRepo,
		Publisher:    rabbitClient,
	}, cfg.Payments.Queue)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	RegisterRoutes(r, Dependencies{
		AuthService:    authService,
		CourseService:  courseService,
		FileService:    fileService,
		PaymentService: paymentService,
		Logger:         log,
		Config:         cfg,
	})

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		s3:         s3Client,
		rabbit:     rabbitClient,
		httpRouter: r,
	}, nil
}

func (a *App) Run() error {
	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}
	if err := a.rabbit.Close(); err != nil && shutdownErr == nil {
		shutdownErr = err
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
