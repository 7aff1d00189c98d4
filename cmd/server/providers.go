package main

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/septivank/meter-reading-service/internal/api"
	"github.com/septivank/meter-reading-service/internal/config"
	"github.com/septivank/meter-reading-service/internal/db"
	"github.com/septivank/meter-reading-service/internal/ingest"
	"github.com/septivank/meter-reading-service/internal/mq"
	"github.com/septivank/meter-reading-service/internal/reconcile"
	"github.com/septivank/meter-reading-service/internal/repository"
	"github.com/septivank/meter-reading-service/internal/seed"
	"github.com/septivank/meter-reading-service/internal/service"
	"github.com/septivank/meter-reading-service/internal/validator"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ProvideStore opens the PostgreSQL store, or the in-memory one when
// DATABASE_URL is "memory".
func ProvideStore(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (repository.Store, error) {
	if cfg.Database.URL == repository.MemoryURL {
		logger.Warn("using in-memory store, data is lost on shutdown")
		return repository.NewMemory(), nil
	}

	pool, err := db.NewPool(lc, logger, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return nil, err
	}
	return repository.NewPostgres(pool, cfg.Database.QueryTimeout), nil
}

func ProvideEngine(store repository.Store, logger *zap.Logger) *reconcile.Engine {
	return reconcile.NewEngine(store, logger)
}

func ProvideValidator() *validator.Validator {
	return validator.NewValidator(time.Now)
}

func ProvideSeeder(engine *reconcile.Engine, logger *zap.Logger) *seed.Seeder {
	return seed.NewSeeder(engine, logger)
}

// ProvidePublisher connects to RabbitMQ when it is configured and falls back
// to dropping batch events otherwise.
func ProvidePublisher(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (service.Publisher, *mq.Connection, error) {
	if !cfg.RabbitMQ.Enabled() {
		logger.Info("RABBITMQ_URL not set, batch events are not published")
		return mq.NoopPublisher{}, nil, nil
	}

	conn, err := mq.NewConnection(lc, logger, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, nil, err
	}
	publisher, err := mq.NewPublisher(conn, cfg.RabbitMQ.EventsExchange, cfg.RabbitMQ.EventsRoutingKey, logger)
	if err != nil {
		return nil, nil, err
	}
	return publisher, conn, nil
}

func ProvideAccountService(
	store repository.Store,
	engine *reconcile.Engine,
	validator *validator.Validator,
	seeder *seed.Seeder,
	publisher service.Publisher,
	logger *zap.Logger,
) *service.AccountService {
	return service.NewAccountService(store, engine, validator, seeder, publisher, logger)
}

func ProvideMeterReadingService(
	store repository.Store,
	engine *reconcile.Engine,
	validator *validator.Validator,
	seeder *seed.Seeder,
	publisher service.Publisher,
	logger *zap.Logger,
) *service.MeterReadingService {
	return service.NewMeterReadingService(store, engine, validator, seeder, publisher, logger)
}

func ProvideProcessorService(
	accounts *service.AccountService,
	readings *service.MeterReadingService,
	cfg *config.Config,
	logger *zap.Logger,
) *service.ProcessorService {
	return service.NewProcessorService(accounts, readings, ingestOptions(cfg), logger)
}

func ProvideRouter(
	accounts *service.AccountService,
	readings *service.MeterReadingService,
	cfg *config.Config,
	logger *zap.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	opts := ingestOptions(cfg)
	return api.NewRouter(api.Handlers{
		Accounts:      api.NewAccountHandler(accounts, opts, cfg.HTTP.MaxUploadBytes, logger),
		MeterReadings: api.NewMeterReadingHandler(readings, opts, cfg.HTTP.MaxUploadBytes, logger),
	}, logger)
}

func ingestOptions(cfg *config.Config) ingest.Options {
	return ingest.Options{Delimiter: cfg.Ingest.Delimiter, SkipLines: cfg.Ingest.SkipLines}
}
