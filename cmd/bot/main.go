// Command bot is the webhook-ingress process of §4.1/§6: it loads
// configuration, opens the shared Postgres/Redis connections, wires the
// domain and application layers into a per-bot-token dispatcher.Registry,
// and serves POST /webhook + GET /healthcheck until signalled to stop.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/unimi-net/campus-hub/config"
	"github.com/unimi-net/campus-hub/internal/application/dispatcher"
	"github.com/unimi-net/campus-hub/internal/application/permission"
	"github.com/unimi-net/campus-hub/internal/application/rolepropagator"
	"github.com/unimi-net/campus-hub/internal/domain/shared"
	"github.com/unimi-net/campus-hub/internal/infrastructure/eventlog"
	bottelegram "github.com/unimi-net/campus-hub/internal/infrastructure/external/telegram"
	"github.com/unimi-net/campus-hub/internal/infrastructure/messaging"
	"github.com/unimi-net/campus-hub/internal/infrastructure/persistence/postgres"
	"github.com/unimi-net/campus-hub/internal/infrastructure/persistence/redis"
	"github.com/unimi-net/campus-hub/internal/infrastructure/scheduler/jobs"
	"github.com/unimi-net/campus-hub/internal/infrastructure/secret"
	httpserver "github.com/unimi-net/campus-hub/internal/interface/http"
	"github.com/unimi-net/campus-hub/internal/interface/http/handlers"
	bottable "github.com/unimi-net/campus-hub/internal/interface/telegram"
	"github.com/unimi-net/campus-hub/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		AddCaller: true,
	})

	if err := run(cfg, log); err != nil {
		log.Fatal("bot exited", logger.Err(err))
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.App.SecretKeyHash != "" {
		if err := secret.Verify(cfg.App.SecretKey, cfg.App.SecretKeyHash); err != nil {
			return fmt.Errorf("secret key verification failed: %w", err)
		}
	}

	conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer conn.Close()

	migrator := postgres.NewMigrator(conn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	var cache *redis.Cache
	if !cfg.Redis.Disabled {
		rcfg := redis.DefaultConfig()
		rcfg.Host, rcfg.Port = cfg.Redis.Host, cfg.Redis.Port
		rcfg.Password, rcfg.DB = cfg.Redis.Password, cfg.Redis.DB
		rcfg.PoolSize, rcfg.MinIdleConns = cfg.Redis.PoolSize, cfg.Redis.MinIdleConns
		rcfg.DialTimeout, rcfg.ReadTimeout, rcfg.WriteTimeout = cfg.Redis.DialTimeout, cfg.Redis.ReadTimeout, cfg.Redis.WriteTimeout
		cache, err = redis.NewCache(rcfg)
		if err != nil {
			log.Warn("redis unavailable, continuing without redis", logger.Err(err))
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	users := postgres.NewTelegramUserRepository(conn)
	groups := postgres.NewGroupRepository(conn)
	bots := postgres.NewBotRepository(conn)
	memberships := postgres.NewMembershipRepository(conn)
	roleRepo := postgres.NewRoleRepository(conn)
	catalogRepo := postgres.NewCatalogRepository(conn)
	blacklist := postgres.NewBlacklistRepository(conn)
	eventLogRepo := postgres.NewEventLogRepository(conn)
	taskRepo := postgres.NewSchedulerRepository(conn)

	slogLogger := slog.Default()
	clients := bottelegram.NewClientCache(cfg.App.Debug, slogLogger)

	deleter := jobs.NewDeleter(taskRepo)

	// The Propagator resolves against the plain role repository, not the
	// propagating wrapper below, so a role write doesn't recurse into
	// itself while fanning the change out to every group a user sits in.
	baseResolver := permission.NewResolver(roleRepo, catalogRepo)
	propagator := rolepropagator.New(baseResolver, memberships, groups, clients, log)
	propagatingRoles := rolepropagator.NewPropagatingRoleRepository(roleRepo, propagator)

	loggingClient := clients.ClientFor(cfg.Telegram.LoggingBotToken)

	bus := messaging.NewInMemoryEventBus(messaging.DefaultInMemoryEventBusConfig())
	defer bus.Close()
	// Mirrors every audit entry into the structured logger, independent of
	// the Telegram-rendered copy eventlog.Logger already sends — useful for
	// log-aggregator-based alerting without re-parsing chat messages.
	bus.SubscribeAll(func(event shared.Event) error {
		log.Info("audit event",
			logger.String("type", string(event.EventType())),
			logger.String("aggregate_id", event.AggregateID()),
		)
		return nil
	})

	events := eventlog.New(eventlog.Config{LoggingChatID: cfg.Telegram.LoggingChatID}, loggingClient, eventLogRepo, users, groups, log, bus)

	deps := bottable.Dependencies{
		Clients:     clients,
		Users:       users,
		Groups:      groups,
		Memberships: memberships,
		Bots:        bots,
		Blacklist:   blacklist,
		Roles:       propagatingRoles,
		CatalogRepo: catalogRepo,
		Events:      events,
		Scheduler:   deleter,
		StaffChatID: cfg.Telegram.StaffChatID,
		Log:         log,
	}

	registry := dispatcher.NewRegistry(bottable.NewTableFactory(deps))
	processor := bottable.NewProcessor(bots, registry, log)

	checker := handlers.NewCompositeHealthChecker(cfg.App.Version)
	checker.AddCheck("database", handlers.NewDatabaseCheck(conn))
	if cache != nil {
		checker.AddCheck("redis", handlers.NewCacheCheck(cache))
	}

	srvCfg := httpserver.DefaultConfig()
	srv := httpserver.NewServer(srvCfg, httpserver.Dependencies{
		Processor:     processor,
		HealthChecker: checker,
		Logger:        log,
	})

	errCh := srv.StartAsync()
	log.Info("bot listening", logger.String("addr", srvCfg.Address()))

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
