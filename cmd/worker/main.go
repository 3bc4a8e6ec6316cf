// Package main - точка входа фонового процесса Planboard.
//
// Worker отвечает за:
// - периодическое обновление справочника участников
// - периодический пересчёт прогресса проектов и его публикацию
// - HTTP API доски (/api/board, /api/progress) и health-пробы
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/planboard/planboard-core/config"
	"github.com/planboard/planboard-core/internal/app"
	"github.com/planboard/planboard-core/internal/infrastructure/scheduler"
	"github.com/planboard/planboard-core/internal/infrastructure/scheduler/jobs"
	httpapi "github.com/planboard/planboard-core/internal/interface/http"
	"github.com/planboard/planboard-core/internal/interface/http/handlers"
	"github.com/planboard/planboard-core/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Options{
		Output: os.Stdout,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
		Format: logger.ParseFormat(cfg.Observability.LogFormat),
	})
	slog.SetDefault(log)
	log.Info("starting Planboard worker",
		slog.String("env", string(cfg.App.Environment)),
		slog.String("version", cfg.App.Version),
		slog.String("task_backend", cfg.Aggregator.TaskBackend),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ПОДКЛЮЧЕНИЯ И КОМПОНЕНТЫ
	// ─────────────────────────────────────────────────────────────────────────
	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Database.AutoMigrate {
		applied, err := a.Migrate(ctx)
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date", slog.Int("applied", applied))
	}

	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("failed to start event bridge: %w", err)
	}

	// Первая загрузка справочника. Ошибка не фатальна: Refresh уже
	// попробовал кеш, а планировщик повторит попытку.
	if err := a.Directory.Refresh(ctx); err != nil {
		log.Warn("initial directory refresh failed", logger.Err(err))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПЛАНИРОВЩИК
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.New(scheduler.Config{
		Logger:         log,
		Timezone:       cfg.App.Location,
		Tick:           cfg.Scheduler.Tick,
		MaxHistorySize: cfg.Scheduler.MaxHistory,
		RunOnStart:     cfg.Scheduler.RunOnStart,
	})
	if cfg.Scheduler.Enabled {
		if err := registerJobs(sched, a); err != nil {
			return err
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. HTTP API
	// ─────────────────────────────────────────────────────────────────────────
	var server *httpapi.Server
	var serverErr <-chan error
	if cfg.HTTP.Enabled {
		health := handlers.NewCompositeHealthChecker(cfg.App.Version)
		health.AddCheck("postgres", handlers.PingCheck(a.DB))
		if a.Cache != nil {
			health.AddCheck("redis", handlers.PingCheck(a.Cache))
		}
		health.AddCheck("directory", handlers.DirectoryCheck(a.Directory))
		health.AddCheck("task_store", handlers.BreakerCheck(a.Tasks))

		server = httpapi.NewServer(httpapi.Config{
			Addr:         cfg.HTTP.Addr,
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
			IdleTimeout:  cfg.HTTP.IdleTimeout,
			Version:      cfg.App.Version,
		}, httpapi.Dependencies{
			Board:       a.Board,
			Progress:    a.Aggregator,
			Computers:   a.Sessions,
			Directory:   a.Directory,
			Shared:      a.Shared,
			Health:      health,
			DefaultMode: cfg.App.DefaultRankingMode,
			Logger:      log,
		})
		serverErr = server.StartAsync()
	}

	log.Info("Planboard worker is running")

	// ─────────────────────────────────────────────────────────────────────────
	// 5. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	var runErr error
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err, ok := <-serverErr:
		if ok && err != nil {
			runErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown failed", logger.Err(err))
		}
	}
	if sched.IsRunning() {
		if err := sched.Stop(); err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
			log.Warn("scheduler stop failed", logger.Err(err))
		}
	}

	log.Info("shutdown completed")
	return runErr
}

func registerJobs(sched *scheduler.Scheduler, a *app.App) error {
	cfg := a.Config

	dirSchedule, err := scheduler.ParseSchedule(cfg.Scheduler.DirectorySchedule)
	if err != nil {
		return err
	}
	progressSchedule, err := scheduler.ParseSchedule(cfg.Scheduler.ProgressSchedule)
	if err != nil {
		return err
	}

	if err := sched.Register(
		jobs.NewRefreshDirectoryJob(a.Directory, cfg.Directory.RefreshTimeout, a.Logger),
		dirSchedule,
	); err != nil {
		return err
	}
	return sched.Register(
		jobs.NewRecomputeProgressJob(a.Projects, a.Aggregator, cfg.Aggregator.ComputeTimeout, a.Logger),
		progressSchedule,
	)
}
