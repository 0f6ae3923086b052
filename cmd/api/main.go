package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/campusdesk/ticket-engine/internal/api/http"
	"github.com/campusdesk/ticket-engine/internal/api/http/handlers"
	"github.com/campusdesk/ticket-engine/internal/auth"
	"github.com/campusdesk/ticket-engine/internal/config"
	"github.com/campusdesk/ticket-engine/internal/notify"
	"github.com/campusdesk/ticket-engine/internal/observability"
	"github.com/campusdesk/ticket-engine/internal/outbox"
	"github.com/campusdesk/ticket-engine/internal/persistence"
	"github.com/campusdesk/ticket-engine/internal/repository"
	"github.com/campusdesk/ticket-engine/internal/service"
	"github.com/campusdesk/ticket-engine/internal/sla"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	txRunner := repository.NewTxRunner(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	statusRepo := repository.NewStatusRepository(pool)
	assignmentRepo := repository.NewAssignmentRepository(pool)
	categoryRepo := repository.NewCategoryRepository(pool)
	groupRepo := repository.NewGroupRepository(pool)
	outboxRepo := repository.NewOutboxRepository(pool)
	adminRepo := repository.NewAdminRepository(pool)

	metrics := observability.NewMetrics()
	location := cfg.App.Location()

	catalog := sla.NewCatalog(statusRepo, sla.NewRedisCache(redis.Client, logger), 5*time.Minute, logger)

	dispatcher := outbox.NewDispatcher(outbox.Dependencies{
		Repo:    outboxRepo,
		Chat:    notify.NewChatSender(cfg.Notify, logger),
		Email:   notify.NewEmailSender(cfg.Notify, logger),
		Logger:  logger,
		Metrics: metrics,
	}, cfg.Outbox)
	go dispatcher.Run(ctx)

	ticketService := service.NewTicketService(service.TicketDependencies{
		Tx:             txRunner,
		TicketRepo:     ticketRepo,
		CategoryRepo:   categoryRepo,
		AssignmentRepo: assignmentRepo,
		OutboxRepo:     outboxRepo,
		Catalog:        catalog,
		Notifier:       dispatcher,
		Logger:         logger,
		Metrics:        metrics,
		Location:       location,
	})
	groupService := service.NewGroupService(service.GroupDependencies{
		Tx:         txRunner,
		TicketRepo: ticketRepo,
		GroupRepo:  groupRepo,
		OutboxRepo: outboxRepo,
		Catalog:    catalog,
		Notifier:   dispatcher,
		Logger:     logger,
	})
	sweepService := service.NewSweepService(service.SweepDependencies{
		Tx:         txRunner,
		TicketRepo: ticketRepo,
		OutboxRepo: outboxRepo,
		Notifier:   dispatcher,
		Logger:     logger,
		Metrics:    metrics,
		Location:   location,
		BatchSize:  cfg.Sweep.BatchSize,
	})
	if cfg.Sweep.Enabled {
		go sweepService.RunLoop(ctx, cfg.Sweep.Interval())
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens, adminRepo)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(adminRepo, tokens),
		Tickets:        handlers.NewTicketsHandler(ticketService, location),
		Groups:         handlers.NewGroupsHandler(groupService),
		Ops:            handlers.NewOpsHandler(sweepService, outboxRepo),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
