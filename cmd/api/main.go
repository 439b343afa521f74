package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/crm-service/internal/api/http"
	"github.com/spec-kit/crm-service/internal/api/http/handlers"
	"github.com/spec-kit/crm-service/internal/auth"
	"github.com/spec-kit/crm-service/internal/config"
	"github.com/spec-kit/crm-service/internal/events"
	"github.com/spec-kit/crm-service/internal/observability"
	"github.com/spec-kit/crm-service/internal/persistence"
	"github.com/spec-kit/crm-service/internal/repository"
	"github.com/spec-kit/crm-service/internal/repository/memory"
	"github.com/spec-kit/crm-service/internal/service"
	"github.com/spec-kit/crm-service/internal/worker"
)

type repositories struct {
	companies repository.CompanyRepository
	users     repository.UserRepository
	customers repository.CustomerRepository
	tickets   repository.TicketRepository
	sequence  repository.TicketSequence
	queue     repository.CascadeQueue
}

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

	if cfg.Postgres.RunMigrations && pg.Enabled() {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	repos := buildRepositories(cfg, pg, redis, logger)

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics()
	}

	dispatcher := events.NewInMemoryDispatcher()
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	var limiter *auth.LoginLimiter
	if redis.Available() {
		limiter = auth.NewLoginLimiter(redis.Client, cfg.Auth.LoginMaxAttempts, cfg.Auth.LoginWindow())
	}

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:    repos.users,
		CompanyRepo: repos.companies,
		Limiter:     limiter,
		Logger:      logger,
	})
	if err := authService.EnsureAdmin(ctx, cfg.Admin); err != nil {
		logger.Fatal("failed to ensure admin account", zap.Error(err))
	}

	cascade := service.NewCascadeCoordinator(service.CascadeDependencies{
		CustomerRepo: repos.customers,
		Queue:        repos.queue,
		Metrics:      metrics,
		Logger:       logger,
		Concurrency:  cfg.Cascade.Concurrency,
	})
	companyService := service.NewCompanyService(service.CompanyDependencies{
		CompanyRepo: repos.companies,
		UserRepo:    repos.users,
		Dispatcher:  dispatcher,
		Logger:      logger,
		BcryptCost:  cfg.Auth.BcryptCost,
	})
	employeeService := service.NewEmployeeService(service.EmployeeDependencies{
		UserRepo:   repos.users,
		Cascade:    cascade,
		Dispatcher: dispatcher,
		Logger:     logger,
		BcryptCost: cfg.Auth.BcryptCost,
	})
	customerService := service.NewCustomerService(service.CustomerDependencies{
		CustomerRepo: repos.customers,
		UserRepo:     repos.users,
		Dispatcher:   dispatcher,
		Metrics:      metrics,
		Logger:       logger,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:   repos.tickets,
		CustomerRepo: repos.customers,
		UserRepo:     repos.users,
		Sequence:     repos.sequence,
		Dispatcher:   dispatcher,
		Metrics:      metrics,
		Logger:       logger,
	})

	if cfg.Cascade.WorkerEnable {
		cascadeWorker := worker.NewCascadeWorker(repos.queue, cascade, metrics, logger, cfg.Cascade.MaxAttempts, cfg.Cascade.PollInterval())
		go cascadeWorker.Run(ctx)
	}

	app := httptransport.NewApp(cfg.App.Name, logger, cfg.App.RequestTimeout(), httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Companies:      handlers.NewCompaniesHandler(companyService),
		Employees:      handlers.NewEmployeesHandler(employeeService),
		Customers:      handlers.NewCustomersHandler(customerService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), repos.users),
		Metrics:        metrics,
		MetricsPath:    cfg.Metrics.Path,
	})

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

// buildRepositories prefers Postgres and Redis and falls back to in-memory
// stores when they are not configured or unreachable.
func buildRepositories(cfg *config.Config, pg *persistence.Postgres, redis *persistence.Redis, logger *zap.Logger) repositories {
	var repos repositories
	if pool := pg.PoolHandle(); pool != nil {
		repos.companies = repository.NewCompanyRepository(pool)
		repos.users = repository.NewUserRepository(pool)
		repos.customers = repository.NewCustomerRepository(pool)
		repos.tickets = repository.NewTicketRepository(pool)
	} else {
		logger.Warn("using in-memory stores; data will not survive a restart")
		repos.companies = memory.NewCompanyStore()
		repos.users = memory.NewUserStore()
		repos.customers = memory.NewCustomerStore()
		repos.tickets = memory.NewTicketStore()
	}

	switch pool := pg.PoolHandle(); {
	case redis.Available():
		repos.sequence = repository.NewRedisTicketSequence(redis.Client)
	case pool != nil:
		repos.sequence = repository.NewPostgresTicketSequence(pool)
	default:
		repos.sequence = memory.NewTicketSequence()
	}

	if redis.Available() {
		repos.queue = repository.NewRedisCascadeQueue(redis.Client, cfg.Cascade.QueueKey)
	} else {
		logger.Warn("redis unavailable; cascade queue is process-local")
		repos.queue = memory.NewCascadeQueue(1024)
	}
	return repos
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
