package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	app "github.com/mohammadpnp/prospect-import/internal/application/prospect"
	"github.com/mohammadpnp/prospect-import/internal/config"
	"github.com/mohammadpnp/prospect-import/internal/infrastructure/auth"
	"github.com/mohammadpnp/prospect-import/internal/infrastructure/cache"
	"github.com/mohammadpnp/prospect-import/internal/infrastructure/db"
	infrafile "github.com/mohammadpnp/prospect-import/internal/infrastructure/file"
	"github.com/mohammadpnp/prospect-import/internal/infrastructure/metrics"
	"github.com/mohammadpnp/prospect-import/internal/infrastructure/queue"
	"github.com/mohammadpnp/prospect-import/internal/infrastructure/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// App owns every long-lived resource of the service process.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	server   *echo.Echo
	sweeper  *app.Sweeper
	memory   *queue.Memory
	producer *queue.KafkaProducer
	consumer *queue.KafkaConsumer

	gormDB *gorm.DB
	pool   *pgxpool.Pool
	redis  *redis.Client
}

func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.cfg

	gormDB, err := gorm.Open(postgres.Open(cfg.Database.URL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	a.gormDB = gormDB

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx, gormDB); err != nil {
			return err
		}
	}

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("create pgx pool: %w", err)
	}
	a.pool = pool

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	var progressCache app.ProgressCache = app.NopProgressCache{}
	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		a.redis = client
		progressCache = cache.NewProgressCache(client, cfg.Redis.TTL, a.logger)
	}

	mode := app.ProgressMode(cfg.Progress.Mode)
	jobs := repository.NewImportJobRepository(gormDB)
	prospects := repository.NewProspectQueryRepository(gormDB)
	store := repository.NewProspectStore(pool)
	storage := infrafile.NewLocalStorage(cfg.Storage.Dir)
	codec := infrafile.CSVCodec{}

	tracker := app.NewJobTracker(jobs, progressCache, a.logger)
	reconciler := app.NewReconciler(store, m, a.logger, app.ReconcilerConfig{
		BatchSize:         cfg.Import.BatchSize,
		CountDoneRows:     mode == app.ProgressCounter,
		HeartbeatInterval: cfg.Worker.HeartbeatInterval,
	})
	worker := app.NewImportWorker(jobs, tracker, storage, codec, reconciler, m, a.logger, app.ImportWorkerConfig{
		JobTimeout: cfg.Worker.JobTimeout,
	})

	var dispatcher app.Dispatcher
	switch cfg.Queue.Driver {
	case "kafka":
		kcfg := queue.KafkaConfig{
			Brokers:       cfg.Kafka.Brokers,
			Topic:         cfg.Kafka.Topic,
			ConsumerGroup: cfg.Kafka.ConsumerGroup,
			Concurrency:   cfg.Worker.Concurrency,
		}
		a.producer = queue.NewKafkaProducer(kcfg, a.logger)
		a.consumer = queue.NewKafkaConsumer(kcfg, worker.Process, a.logger)
		dispatcher = a.producer
	default:
		a.memory = queue.NewMemory(worker.Process, a.logger,
			queue.WithWorkers(cfg.Worker.Concurrency),
			queue.WithQueueSize(cfg.Worker.QueueSize),
		)
		dispatcher = a.memory
	}

	a.sweeper = app.NewSweeper(jobs, dispatcher, a.logger, app.SweeperConfig{
		Interval:        cfg.Worker.SweepInterval,
		StaleAfter:      cfg.Worker.StaleAfter,
		RedispatchAfter: cfg.Worker.RedispatchAfter,
	})

	a.server = NewHTTPServer(HTTPDeps{
		Server:      cfg.Server,
		Metrics:     cfg.Metrics,
		Logger:      a.logger,
		Verifier:    auth.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		Observer:    m,
		Gatherer:    reg,
		StartImport: app.NewStartImport(jobs, storage, codec, dispatcher, m, a.logger),
		Progress:    app.NewGetImportProgress(jobs, prospects, progressCache, mode),
		List:        app.NewListProspects(prospects),
	})
	return nil
}

// Run serves HTTP and runs the background loops until ctx is cancelled or one
// of them fails, then drains in-flight imports.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	addr := ":" + strconv.Itoa(a.cfg.Server.Port)

	g.Go(func() error {
		a.logger.Info("http server listening", zap.String("addr", addr))
		if err := a.server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return a.sweeper.Run(gctx)
	})
	if a.consumer != nil {
		g.Go(func() error {
			return a.consumer.Run(gctx)
		})
	}

	runErr := g.Wait()

	if a.memory != nil {
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := a.memory.Shutdown(drainCtx); err != nil {
			a.logger.Warn("import queue did not drain in time", zap.Error(err))
		}
	}
	return runErr
}

func (a *App) Close() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.gormDB != nil {
		if sqlDB, err := a.gormDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
