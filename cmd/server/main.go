// Package main - точка входа для profile server PyKids Progress Hub.
//
// Profile server - авторитетное удалённое хранилище прогресса учеников.
// Агенты доталкивают сюда свои очереди обновлений через REST API,
// сервер хранит профили в PostgreSQL, отдаёт учебную программу и раз в
// сутки сверяет хранимые агрегаты с полным пересчётом (integrity sweep).
//
// Архитектура следует принципам Clean Architecture и DDD:
// - Domain: чистая бизнес-логика без внешних зависимостей
// - Application: оркестрация use cases
// - Infrastructure: PostgreSQL, планировщик, event bus
// - Interface: HTTP handlers
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	// Domain layer
	"github.com/pykids/progress-hub/internal/domain/curriculum"

	// Infrastructure layer
	"github.com/pykids/progress-hub/internal/infrastructure/messaging"
	"github.com/pykids/progress-hub/internal/infrastructure/persistence/postgres"
	"github.com/pykids/progress-hub/internal/infrastructure/scheduler"
	"github.com/pykids/progress-hub/internal/infrastructure/scheduler/jobs"

	// Interface layer
	httpserver "github.com/pykids/progress-hub/internal/interface/http"
	"github.com/pykids/progress-hub/internal/interface/http/handlers"

	// Packages
	"github.com/pykids/progress-hub/config"
	"github.com/pykids/progress-hub/pkg/logger"
	"github.com/pykids/progress-hub/pkg/retry"
)

func main() {
	// Создаём корневой контекст с возможностью отмены
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Запускаем приложение
	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	level := cfg.Observability.LogLevel
	if cfg.App.Debug {
		level = "debug"
	}
	log := logger.New(logger.Options{
		Level:  level,
		Format: cfg.Observability.LogFormat,
	})
	log.Info("starting PyKids profile server",
		"env", cfg.App.Environment,
		"debug", cfg.App.Debug,
		"version", cfg.App.Version,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ (PostgreSQL)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")

	var dbConn *postgres.Connection
	err = retry.Do(ctx, func(ctx context.Context) error {
		var connErr error
		dbConn, connErr = postgres.NewConnectionFromURL(ctx, cfg.Database.URL, postgres.PoolSettings{
			MaxConns:        int32(cfg.Database.MaxOpenConns),
			MinConns:        int32(cfg.Database.MaxIdleConns),
			MaxConnLifetime: cfg.Database.ConnMaxLifetime,
			MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		})
		// Startup races docker-compose; a refused connection is retryable
		return retry.Retryable(connErr)
	},
		retry.WithMaxAttempts(5),
		retry.WithInitialDelay(time.Second),
		retry.WithMaxDelay(10*time.Second),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			log.Warn("database connection failed, retrying",
				"attempt", attempt,
				"delay", delay.String(),
				"error", err,
			)
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	// Проверяем соединение
	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ЗАПУСК МИГРАЦИЙ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("running database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	status, err := migrator.Status(ctx)
	if err != nil {
		log.Warn("failed to get migration status", "error", err)
	} else {
		appliedCount := 0
		for _, m := range status {
			if m.IsApplied {
				appliedCount++
			}
		}
		log.Info("migrations completed", "applied", appliedCount, "total", len(status))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ИНИЦИАЛИЗАЦИЯ РЕПОЗИТОРИЕВ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing repositories...")
	profileRepo := postgres.NewProfileRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ЗАГРУЗКА УЧЕБНОЙ ПРОГРАММЫ
	// ─────────────────────────────────────────────────────────────────────────
	curr, err := curriculum.LoadFile(cfg.App.CurriculumPath)
	if err != nil {
		// Сломанный файл не должен ронять сервер: встроенная программа
		// покрывает все штатные активности
		log.Warn("failed to load curriculum file, using built-in",
			"path", cfg.App.CurriculumPath,
			"error", err,
		)
		curr = curriculum.Default()
	}
	log.Info("curriculum loaded",
		"version", curr.Version,
		"modules", len(curr.Modules),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ИНИЦИАЛИЗАЦИЯ EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus...")
	eventBusConfig := messaging.DefaultInMemoryEventBusConfig()
	eventBusConfig.Logger = log
	eventBus := messaging.NewInMemoryEventBus(eventBusConfig)
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 8. НАСТРОЙКА ПЛАНИРОВЩИКА (integrity sweep)
	// ─────────────────────────────────────────────────────────────────────────
	featCtx := &config.FeatureContext{}

	var sched *scheduler.Scheduler
	var sweepJob *jobs.IntegritySweepJob

	if cfg.Scheduler.Enabled && cfg.Features.IsEnabled(config.FeatureServerIntegritySweep, featCtx) {
		log.Info("initializing scheduler...")

		sched = scheduler.NewScheduler(scheduler.SchedulerConfig{
			Logger:            log,
			MaxConcurrentJobs: cfg.Scheduler.MaxConcurrentJobs,
			JobTimeout:        cfg.Scheduler.JobTimeout,
			EnableMetrics:     cfg.Observability.MetricsEnabled,
		})

		sweepJob = jobs.NewIntegritySweepJob(profileRepo, eventBus, log, jobs.DefaultIntegritySweepConfig())

		// Cron выигрывает у интервала; непарсибельный cron не роняет
		// сервер, сторож просто ходит по интервалу
		var sweepSchedule scheduler.Schedule
		if cron, cronErr := scheduler.ParseCronExpression(cfg.Scheduler.SweepCron); cronErr != nil {
			log.Warn("invalid sweep cron expression, falling back to interval",
				"cron", cfg.Scheduler.SweepCron,
				"interval", cfg.Scheduler.IntegritySweepInterval.String(),
				"error", cronErr,
			)
			sweepSchedule = scheduler.NewIntervalSchedule(cfg.Scheduler.IntegritySweepInterval)
		} else {
			sweepSchedule = cron
		}

		if err := sched.Register(sweepJob, sweepSchedule); err != nil {
			return fmt.Errorf("failed to register integrity sweep: %w", err)
		}

		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	} else {
		log.Info("integrity sweep disabled")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. СОЗДАНИЕ HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing HTTP server...")

	healthChecker := handlers.NewCompositeHealthChecker(cfg.App.Version)
	healthChecker.AddCheck("database", handlers.NewDatabaseCheck(dbConn))

	adminKeyHash := cfg.Auth.AdminKeyHash
	if !cfg.Features.IsEnabled(config.FeatureServerAdminAPI, featCtx) {
		adminKeyHash = ""
	}

	httpConfig := httpserver.DefaultConfig()
	httpConfig.Port = cfg.Server.Port
	httpConfig.ReadTimeout = cfg.Server.ReadTimeout
	httpConfig.WriteTimeout = cfg.Server.WriteTimeout
	httpConfig.IdleTimeout = cfg.Server.IdleTimeout
	httpConfig.EnableMetrics = cfg.Observability.MetricsEnabled
	httpConfig.JWTSecret = cfg.Auth.JWTSecret
	httpConfig.AdminKeyHash = adminKeyHash
	httpConfig.Version = cfg.App.Version

	httpDeps := httpserver.Dependencies{
		Profiles:      profileRepo,
		Curriculum:    curr,
		HealthChecker: healthChecker,
		Logger:        log,
	}
	if sweepJob != nil {
		httpDeps.Sweep = sweepJob
	}

	srv := httpserver.NewServer(httpConfig, httpDeps)

	// ─────────────────────────────────────────────────────────────────────────
	// 10. ЗАПУСК СЕРВИСОВ
	// ─────────────────────────────────────────────────────────────────────────
	errCh := srv.StartAsync()

	log.Info("profile server is running",
		"address", srv.Address(),
		"auth", cfg.Auth.JWTSecret != "",
		"admin_api", adminKeyHash != "",
		"sweep", sweepJob != nil,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 11. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			log.Error("http server error", "error", err)
			return err
		}
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	var shutdownErr error

	// 1. Останавливаем HTTP сервер (перестаём принимать запросы)
	log.Info("stopping HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", "error", err)
		shutdownErr = err
	}

	// 2. Останавливаем планировщик
	if sched != nil {
		log.Info("stopping scheduler...")
		if err := sched.Stop(); err != nil {
			log.Error("failed to stop scheduler gracefully", "error", err)
			shutdownErr = err
		}
	}

	// 3. Event bus и база данных закроются через defer

	if shutdownErr != nil {
		log.Warn("shutdown completed with errors")
	} else {
		log.Info("shutdown completed successfully")
	}

	return nil
}
