package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/stem/pkg/database"
	"github.com/Ramsey-B/stem/pkg/middleware"
	"github.com/Ramsey-B/stem/pkg/startup"
	"github.com/Ramsey-B/stem/pkg/tracing"
	"github.com/Ramsey-B/stem/pkg/tracing/exporters"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/repositories/syncrun"
	"github.com/Ramsey-B/fern/pkg/extraction"
	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/provider"
	fernredis "github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/routes/entity"
	"github.com/Ramsey-B/fern/pkg/routes/health"
	"github.com/Ramsey-B/fern/pkg/routes/review"
	syncroutes "github.com/Ramsey-B/fern/pkg/routes/sync"
	"github.com/Ramsey-B/fern/pkg/syncer"
)

func main() {
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	logger := newLogger(cfg)
	ctx := context.Background()

	if err := initTracing(ctx, cfg); err != nil {
		logger.WithError(err).Warn("Failed to initialize tracing exporter - continuing without export")
	}

	// Postgres (sync-run history)
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseUserName, cfg.DatabasePassword, cfg.DatabaseName, cfg.DatabaseSSLMode)
	sqlxDB, err := sqlx.Connect(cfg.DatabaseDriver, dsn)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to postgres")
		os.Exit(1)
	}
	sqlxDB.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
	sqlxDB.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
	sqlxDB.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)
	defer sqlxDB.Close()

	if err := runMigrations(cfg, logger, sqlxDB); err != nil {
		logger.WithError(err).Error("Failed to run database migrations")
		os.Exit(1)
	}

	db := database.NewDatabaseInstance(sqlxDB, logger)
	runRepo := syncrun.NewRepository(db, logger)

	// Graph engine
	graphClient, err := graph.NewClient(graph.Config{
		Host:          cfg.GraphDBHost,
		Port:          cfg.GraphDBPort,
		Username:      cfg.GraphDBUser,
		Password:      cfg.GraphDBPassword,
		MaxConcurrent: cfg.GraphMaxConcurrentWrites,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to create graph client")
		os.Exit(1)
	}
	defer graphClient.Close(ctx)

	indexes := graph.NewIndexManager(graphClient, logger)
	nodes := graph.NewNodeProcessor(graphClient, logger)
	relationships := graph.NewRelationshipProcessor(graphClient, logger, cfg.SyncRelationshipChunkSize, cfg.SyncRelationshipChunkWait)
	metadata := graph.NewMetadataService(graphClient, logger)
	entities := graph.NewEntityService(graphClient, logger)
	reviews := graph.NewReviewService(graphClient, logger)

	// Redis sync lock (optional)
	var locker syncer.Locker
	var redisClient *fernredis.Client
	if cfg.RedisEnabled {
		redisClient, err = fernredis.NewClient(fernredis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
		if err != nil {
			logger.WithError(err).Error("Failed to connect to redis")
			os.Exit(1)
		}
		defer redisClient.Close()
		locker = fernredis.NewLocker(redisClient, "fern:sync:")
	}

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		Topic:        cfg.KafkaOutputTopic,
		BatchSize:    cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: cfg.KafkaRequiredAcks,
		Compression:  cfg.KafkaCompression,
	}, logger)
	defer producer.Close()

	registry := provider.NewRegistry()
	status := syncer.NewStatusTracker()
	orchestrator := syncer.NewOrchestrator(registry, nodes, relationships, metadata, status, locker, runRepo, producer, logger, syncer.Config{
		SyncKey:           cfg.SyncKey,
		ProviderName:      cfg.CrmProvider,
		LockTTL:           cfg.SyncLockTTL,
		ErrorDisplayLimit: cfg.SyncErrorDisplayLimit,
		AllowedLabels:     cfg.SyncAllowedLabels,
	})

	var consumer *kafka.Consumer
	if cfg.KafkaConsumerEnabled {
		extractor := extraction.NewProcessor(nodes, relationships, entities, logger, cfg.SyncAllowedLabels)
		consumer = kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:       cfg.KafkaBrokers,
			Topic:         cfg.KafkaInputTopic,
			ConsumerGroup: cfg.KafkaConsumerGroup,
		}, logger, extractor.HandleMessage)
	}

	// DI container for route handlers
	container, err := ectoinject.NewDIDefaultContainer()
	if err != nil {
		logger.WithError(err).Error("Failed to create dependency container")
		os.Exit(1)
	}
	ectoinject.RegisterInstance[ectologger.Logger](container, logger)
	ectoinject.RegisterInstance[*syncer.Orchestrator](container, orchestrator)
	ectoinject.RegisterInstance[*syncrun.Repository](container, runRepo)
	ectoinject.RegisterInstance[*graph.EntityService](container, entities)
	ectoinject.RegisterInstance[*graph.ReviewService](container, reviews)
	ectoinject.SetDefaultContainer(container.GetContainerID())

	// HTTP server
	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.Server.MaxHeaderBytes = cfg.MaxHeaderBytes
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))

	api := e.Group("/api/v1")
	syncroutes.Register(api)
	entity.Register(api.Group("/entities"))
	review.Register(api.Group("/review"))

	checker := health.NewChecker(sqlxDB, graphClient, nil, cfg.Version)
	if redisClient != nil {
		checker = health.NewChecker(sqlxDB, graphClient, redisClient, cfg.Version)
	}
	checker.RegisterRoutes(e)

	boot := startup.NewStartup[any](logger, cfg.StartupMaxAttempts)
	boot.AddDependency(&graphIndexes{indexes: indexes})
	if consumer != nil {
		boot.AddDependency(&kafkaConsumer{consumer: consumer})
	}
	boot.AddDependency(&httpServer{e: e, port: cfg.Port, logger: logger})

	if err := boot.Start(ctx); err != nil {
		logger.WithError(err).Error("Startup failed")
		os.Exit(1)
	}
	checker.SetReady(true)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	checker.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := boot.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}
}

func newLogger(cfg config.Config) ectologger.Logger {
	var zapLogger *zap.Logger
	var err error
	if cfg.PrettyLogs {
		zapLogger, err = zap.NewDevelopment()
	} else {
		zapLogger, err = zap.NewProduction()
	}
	if err != nil {
		panic(fmt.Sprintf("failed to create zap logger: %v", err))
	}
	sugar := zapLogger.Sugar()

	return ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {
		fields := make([]any, 0, len(msg.Fields)*2)
		for k, v := range msg.Fields {
			fields = append(fields, k, v)
		}
		switch msg.Level {
		case "debug":
			sugar.Debugw(msg.Message, fields...)
		case "warn":
			sugar.Warnw(msg.Message, fields...)
		case "error":
			sugar.Errorw(msg.Message, fields...)
		default:
			sugar.Infow(msg.Message, fields...)
		}
	})
}

func initTracing(ctx context.Context, cfg config.Config) error {
	opts := []sdktrace.TracerProviderOption{}
	if cfg.TracingEnabled {
		exporter, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
			Endpoint: cfg.TracingOTLPEndpoint,
			Protocol: "grpc",
			Insecure: true,
			Timeout:  10 * time.Second,
		})
		if err != nil {
			return err
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	tracing.SetTracer(otel.Tracer(cfg.AppName))
	return nil
}

func runMigrations(cfg config.Config, logger ectologger.Logger, db *sqlx.DB) error {
	driver, err := migratepg.WithInstance(db.DB, &migratepg.Config{})
	if err != nil {
		return err
	}

	ms := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
		AutoRollback:        cfg.DatabaseMigrationAutoRollback,
	})
	return ms.Migrate(cfg.DatabaseName, driver)
}

// startup adapters

type graphIndexes struct {
	indexes *graph.IndexManager
}

func (g *graphIndexes) GetName() string     { return "graph-indexes" }
func (g *graphIndexes) DependsOn() []string { return nil }

func (g *graphIndexes) Start(ctx context.Context) error {
	g.indexes.EnsureIndexes(ctx)
	return nil
}
func (g *graphIndexes) Stop(ctx context.Context) error { return nil }

type kafkaConsumer struct {
	consumer *kafka.Consumer
}

func (k *kafkaConsumer) GetName() string     { return "kafka-consumer" }
func (k *kafkaConsumer) DependsOn() []string { return []string{"graph-indexes"} }

func (k *kafkaConsumer) Start(ctx context.Context) error {
	return k.consumer.Start(ctx)
}
func (k *kafkaConsumer) Stop(ctx context.Context) error { return k.consumer.Stop() }

type httpServer struct {
	e      *echo.Echo
	port   int
	logger ectologger.Logger
}

func (h *httpServer) GetName() string     { return "http-server" }
func (h *httpServer) DependsOn() []string { return []string{"graph-indexes"} }

func (h *httpServer) Start(ctx context.Context) error {
	go func() {
		addr := fmt.Sprintf(":%d", h.port)
		if err := h.e.Start(addr); err != nil && err != http.ErrServerClosed {
			h.logger.WithError(err).Error("HTTP server stopped unexpectedly")
		}
	}()
	return nil
}

func (h *httpServer) Stop(ctx context.Context) error {
	return h.e.Shutdown(ctx)
}
