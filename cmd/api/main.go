package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/display-support/internal/api/http"
	"github.com/spec-kit/display-support/internal/api/http/handlers"
	"github.com/spec-kit/display-support/internal/auth"
	"github.com/spec-kit/display-support/internal/cache"
	"github.com/spec-kit/display-support/internal/catalog"
	"github.com/spec-kit/display-support/internal/config"
	"github.com/spec-kit/display-support/internal/events"
	"github.com/spec-kit/display-support/internal/observability"
	"github.com/spec-kit/display-support/internal/persistence"
	"github.com/spec-kit/display-support/internal/repository"
	"github.com/spec-kit/display-support/internal/service"
	"github.com/spec-kit/display-support/internal/ticketnumber"
	"github.com/spec-kit/display-support/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps := map[string]handlers.Pinger{}
	var ticketRepo repository.TicketRepository
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer pg.Close()
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.Pool, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		ticketRepo = repository.NewTicketRepository(pg.Pool)
		deps["postgres"] = pg
	default:
		store, err := persistence.NewBolt(cfg.Store, logger)
		if err != nil {
			logger.Fatal("failed to open bolt store", zap.Error(err))
		}
		defer store.Close()
		boltRepo, err := repository.NewBoltTicketRepository(store.DB, nil)
		if err != nil {
			logger.Fatal("failed to prepare bolt buckets", zap.Error(err))
		}
		ticketRepo = boltRepo
		deps["bolt"] = store
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()
	if redis != nil {
		deps["redis"] = redis
	}
	trackingCache := cache.NewRedisTrackingCache(redis.Handle(), cfg.Redis.TrackingCacheTTL())
	idempotency := cache.NewRedisIdempotencyStore(redis.Handle(), cfg.Redis.IdempotencyKeyTTL(), cfg.Redis.IdempotencyPendingTTL())

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		logger.Fatal("failed to load catalog", zap.Error(err))
	}
	staffRepo, err := repository.LoadStaffFile(cfg.Auth.StaffFile)
	if err != nil {
		logger.Fatal("failed to load staff directory", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:    ticketRepo,
		Catalog:       cat,
		Generator:     ticketnumber.NewDateRandom(nil, 0),
		MaxAttempts:   cfg.TicketNumber.MaxAttempts,
		Dispatcher:    dispatcher,
		TrackingCache: trackingCache,
		Idempotency:   idempotency,
		Metrics:       metrics,
		Logger:        logger,
	})
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authService := service.NewAuthService(staffRepo, tokens, logger)
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), staffRepo)

	worker.StartEventWorkers(dispatcher, worker.Subscribers{
		Audit:         service.NewAuditService(dispatcher, logger),
		TrackingCache: trackingCache,
		Metrics:       metrics,
		Logger:        logger,
	})

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Catalog:        handlers.NewCatalogHandler(cat),
		Staff:          handlers.NewStaffHandler(authService),
		StaffTickets:   handlers.NewStaffTicketsHandler(ticketService),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()
	logger.Info("display-support api started",
		zap.String("addr", cfg.App.Addr()),
		zap.String("store", cfg.Store.Driver))

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
