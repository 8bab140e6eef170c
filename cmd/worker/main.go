// Command worker runs the background task framework of §4.9/§9: the
// durable delete_message task table (polled frequently) plus the two
// recurring jobs, refresh_group_info and sync_external_blocklist,
// registered on internal/infrastructure/scheduler's generic Scheduler.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/unimi-net/campus-hub/config"
	bottelegram "github.com/unimi-net/campus-hub/internal/infrastructure/external/telegram"
	"github.com/unimi-net/campus-hub/internal/infrastructure/persistence/postgres"
	"github.com/unimi-net/campus-hub/internal/infrastructure/scheduler"
	"github.com/unimi-net/campus-hub/internal/infrastructure/scheduler/jobs"
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
		log.Fatal("worker exited", logger.Err(err))
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer conn.Close()

	groups := postgres.NewGroupRepository(conn)
	blacklist := postgres.NewBlacklistRepository(conn)
	users := postgres.NewTelegramUserRepository(conn)
	taskRepo := postgres.NewSchedulerRepository(conn)

	clients := bottelegram.NewClientCache(cfg.App.Debug, slog.Default())

	// delete_message tasks carry no bot token in their payload (§4.9's
	// payload is {chat_id, message_id}), so the runner executes them
	// against the logging bot's client; see DESIGN.md for the multi-bot
	// caveat this leaves open.
	taskClient := clients.ClientFor(cfg.Telegram.LoggingBotToken)

	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:         slog.Default(),
		MaxHistorySize: 500,
		EnableMetrics:  true,
	})

	runner := jobs.NewTaskRunner(taskRepo, taskClient, log, 20)
	if err := sched.Register(runner, scheduler.NewIntervalSchedule(cfg.Scheduler.PollInterval)); err != nil {
		return fmt.Errorf("register task_runner: %w", err)
	}

	refresher := jobs.NewRefreshGroupInfoJob(groups, clients, log)
	if err := sched.Register(refresher, scheduler.NewIntervalSchedule(cfg.Scheduler.RefreshGroupInfo)); err != nil {
		return fmt.Errorf("register refresh_group_info: %w", err)
	}

	if cfg.Telegram.ExternalBlocklistURL != "" {
		syncer := jobs.NewSyncExternalBlocklistJob(cfg.Telegram.ExternalBlocklistURL, blacklist, users, log)
		if err := sched.Register(syncer, scheduler.NewIntervalSchedule(cfg.Scheduler.SyncExternalBlocklist)); err != nil {
			return fmt.Errorf("register sync_external_blocklist: %w", err)
		}
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	log.Info("worker started",
		logger.Duration("poll_interval", cfg.Scheduler.PollInterval),
		logger.Duration("refresh_group_info_interval", cfg.Scheduler.RefreshGroupInfo),
	)

	<-ctx.Done()
	log.Info("shutting down")
	return sched.Stop()
}
