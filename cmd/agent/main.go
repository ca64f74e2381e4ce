// Package main - точка входа для учебного агента PyKids Progress Hub.
//
// Агент - это локальный процесс одного ученика. Он держит прогресс в
// сессии и в долговременной очереди (Redis или память), синхронизирует
// его с удалённым profile server в фоне и спокойно переживает офлайн:
// ни одно сохранение не теряется и не блокирует ученика.
//
// Архитектура следует принципам Clean Architecture и DDD:
// - Domain: чистая бизнес-логика без внешних зависимостей
// - Application: оркестрация use cases (Commands/Queries/Event handlers)
// - Infrastructure: хранилища, sync engine, внешние API
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	// Application layer
	"github.com/pykids/progress-hub/internal/application/command"
	"github.com/pykids/progress-hub/internal/application/eventhandler"
	"github.com/pykids/progress-hub/internal/application/session"

	// Domain layer
	"github.com/pykids/progress-hub/internal/domain/profile"
	"github.com/pykids/progress-hub/internal/domain/progress"
	"github.com/pykids/progress-hub/internal/domain/shared"

	// Infrastructure layer
	"github.com/pykids/progress-hub/internal/infrastructure/external/profileapi"
	"github.com/pykids/progress-hub/internal/infrastructure/messaging"
	"github.com/pykids/progress-hub/internal/infrastructure/persistence/memory"
	"github.com/pykids/progress-hub/internal/infrastructure/persistence/redis"
	"github.com/pykids/progress-hub/internal/infrastructure/scheduler"
	"github.com/pykids/progress-hub/internal/infrastructure/scheduler/jobs"
	"github.com/pykids/progress-hub/internal/infrastructure/service"
	"github.com/pykids/progress-hub/internal/infrastructure/syncer"

	// Packages
	"github.com/pykids/progress-hub/config"
	"github.com/pykids/progress-hub/pkg/logger"
)

// startupTimeout ограничивает первичную проверку связи и загрузку
// профиля. По истечении агент просто стартует офлайн.
const startupTimeout = 30 * time.Second

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
	if cfg.Agent.UserID == "" {
		return errors.New("AGENT_USER_ID is required")
	}

	featCtx := &config.FeatureContext{UserID: cfg.Agent.UserID}

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

	// InstanceID отличает соседние процессы одного ученика
	instanceID := cfg.Agent.InstanceID
	if instanceID == "" {
		instanceID = "agent-" + uuid.NewString()
	}

	log.Info("starting PyKids progress agent",
		"env", cfg.App.Environment,
		"debug", cfg.App.Debug,
		"user_id", cfg.Agent.UserID,
		"instance_id", instanceID,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПОДКЛЮЧЕНИЕ К REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var cache *redis.Cache

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCfg := redis.DefaultConfig()
		redisCfg.URL = cfg.Redis.URL
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		cache, err = redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, falling back to in-memory stores", "error", err)
			cache = nil
		} else {
			defer func() {
				log.Info("closing Redis connection...")
				_ = cache.Close()
			}()
			log.Info("Redis connection established")
		}
	} else {
		log.Info("Redis disabled, using in-memory stores")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ИНИЦИАЛИЗАЦИЯ ХРАНИЛИЩ
	// ─────────────────────────────────────────────────────────────────────────
	var (
		queue        progress.QueueStore
		marker       progress.SyncMarker
		drops        progress.DropLog
		statusStore  progress.StatusStore
		profileCache profile.Cache
	)

	if cache != nil {
		queue = redis.NewPendingQueueStore(cache, cfg.Agent.UserID)
		marker = redis.NewSyncMarkerStore(cache, cfg.Agent.UserID, instanceID, cfg.Sync.MarkerTTL)
		drops = redis.NewDropLogStore(cache, cfg.Agent.UserID)
		statusStore = redis.NewSyncStatusStore(cache, cfg.Agent.UserID)
		if cfg.Features.IsEnabled(config.FeatureAgentProfileCache, featCtx) {
			profileCache = redis.NewProfileCache(cache, cfg.ProfileAPI.CacheTTL)
		}
	} else {
		// Память: очередь не переживает перезапуск, но семантика та же
		queue = memory.NewQueueStore()
		marker = memory.NewSyncMarker(instanceID)
		drops = memory.NewDropLog(0)
		statusStore = memory.NewStatusStore()
	}
	log.Info("stores initialized", "durable", cache != nil)

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ИНИЦИАЛИЗАЦИЯ ВНЕШНИХ КЛИЕНТОВ (profile server)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing profile server client...", "base_url", cfg.ProfileAPI.BaseURL)

	apiCfg := profileapi.DefaultClientConfig(cfg.ProfileAPI.BaseURL)
	apiCfg.Timeout = cfg.ProfileAPI.RequestTimeout
	apiCfg.Logger = log
	apiCfg.Debug = cfg.App.Debug

	switch {
	case cfg.ProfileAPI.StaticToken != "":
		apiCfg.Tokens = profileapi.NewStaticTokenProvider(cfg.ProfileAPI.StaticToken)
	case cfg.Auth.JWTSecret != "":
		apiCfg.Tokens = profileapi.NewHMACTokenProvider(
			cfg.Auth.JWTSecret,
			cfg.Agent.UserID,
			cfg.Agent.Email,
			cfg.Auth.TokenTTL,
		)
	default:
		log.Warn("no static token and no JWT secret configured, API requests will be unauthenticated")
	}

	// Конфиг задаёт лимит в запросах в минуту, клиент считает в секундах
	apiCfg.RateLimiterConfig.RequestsPerSecond = float64(cfg.ProfileAPI.RateLimit) / 60.0
	apiCfg.RateLimiterConfig.BurstSize = cfg.ProfileAPI.RateLimitBurst
	apiCfg.CircuitBreakerConfig.FailureThreshold = cfg.ProfileAPI.CircuitBreakerThreshold
	apiCfg.CircuitBreakerConfig.Timeout = cfg.ProfileAPI.CircuitBreakerTimeout
	apiCfg.CircuitBreakerConfig.HalfOpenMaxRetries = cfg.ProfileAPI.CircuitBreakerHalfOpenMax
	apiCfg.RetryConfig.MaxRetries = cfg.ProfileAPI.MaxRetries
	apiCfg.RetryConfig.InitialBackoff = cfg.ProfileAPI.RetryBaseDelay
	apiCfg.RetryConfig.MaxBackoff = cfg.ProfileAPI.RetryMaxDelay

	apiClient := profileapi.NewClient(apiCfg)
	remote := service.NewRemoteStoreAdapter(apiClient, cfg.Agent.Email, cfg.Agent.Avatar)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ИНИЦИАЛИЗАЦИЯ EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus...")

	localBusCfg := messaging.DefaultInMemoryEventBusConfig()
	localBusCfg.Logger = log

	var eventBus shared.EventBus
	var closeBus func() error

	if cache != nil && cfg.Features.IsEnabled(config.FeatureSyncEventBus, featCtx) {
		redisBus, busErr := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         service.NewCacheEventTransport(cache),
			InstanceID:     instanceID,
			LocalBusConfig: localBusCfg,
			Logger:         log,
		})
		if busErr != nil {
			log.Warn("failed to start Redis event bus, events stay in-process", "error", busErr)
		} else {
			eventBus = redisBus
			closeBus = redisBus.Close
			log.Info("cross-process event bus active", "channel", messaging.DefaultEventChannel)
		}
	}
	if eventBus == nil {
		localBus := messaging.NewInMemoryEventBus(localBusCfg)
		eventBus = localBus
		closeBus = localBus.Close
	}
	defer func() {
		log.Info("closing event bus...")
		_ = closeBus()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ЗАПУСК SYNC ENGINE
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("starting sync engine...")

	engine, err := syncer.New(syncer.Config{
		UserID:     cfg.Agent.UserID,
		InstanceID: instanceID,
		Queue:      queue,
		Marker:     marker,
		Drops:      drops,
		Status:     statusStore,
		Remote:     remote,
		Events:     eventBus,
		Logger:     log,
		MaxRetries: cfg.Sync.MaxRetries,
		Backoff: syncer.BackoffPolicy{
			Base:       cfg.Sync.BackoffBase,
			Multiplier: cfg.Sync.BackoffMultiplier,
			Max:        cfg.Sync.BackoffMax,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create sync engine: %w", err)
	}
	defer func() {
		log.Info("closing sync engine...")
		_ = engine.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ИНИЦИАЛИЗАЦИЯ APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing application layer...")

	store := session.NewStore()
	refreshHandler := command.NewRefreshProfileHandler(store, apiClient, profileCache, eventBus, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 9. РЕГИСТРАЦИЯ EVENT HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("registering event handlers...")

	pulseHandler := eventhandler.NewOnRemotePulseHandler(
		instanceID,
		cfg.Agent.UserID,
		cfg.Agent.Email,
		refreshHandler,
		engine,
		log,
		eventhandler.DefaultPulseConfig(),
	)
	stateHandler := eventhandler.NewOnSyncStateChangedHandler(store, log)
	droppedHandler := eventhandler.NewOnUpdateDroppedHandler(log)

	// Dispatcher добавляет поверх шины retry, recovery и dead letter queue
	dispatcher := messaging.NewDispatcherBuilder(eventBus).
		WithLogger(log).
		Build()
	dispatcher.Use(messaging.RecoveryMiddleware(log))

	// Пульс тянет профиль по сети, поэтому асинхронно; обновления
	// состояния и дропы дешёвые и должны применяться в порядке публикации
	if err := dispatcher.Register(pulseHandler.EventType(), "remote_pulse", pulseHandler.Handle); err != nil {
		return fmt.Errorf("failed to register pulse handler: %w", err)
	}
	if err := dispatcher.RegisterSync(stateHandler.EventType(), "sync_state", stateHandler.Handle); err != nil {
		return fmt.Errorf("failed to register sync state handler: %w", err)
	}
	if err := dispatcher.RegisterSync(droppedHandler.EventType(), "update_dropped", droppedHandler.Handle); err != nil {
		return fmt.Errorf("failed to register drop handler: %w", err)
	}
	if err := dispatcher.Start(); err != nil {
		return fmt.Errorf("failed to start event dispatcher: %w", err)
	}
	defer func() {
		log.Info("stopping event dispatcher...")
		_ = dispatcher.Stop()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 10. НАСТРОЙКА ПЛАНИРОВЩИКА
	// ─────────────────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler

	if cfg.Scheduler.Enabled {
		log.Info("initializing scheduler...")

		sched = scheduler.NewScheduler(scheduler.SchedulerConfig{
			Logger:            log,
			MaxConcurrentJobs: cfg.Scheduler.MaxConcurrentJobs,
			JobTimeout:        cfg.Scheduler.JobTimeout,
			EnableMetrics:     cfg.Observability.MetricsEnabled,
		})

		// Проба связи держит флаг online в актуальном состоянии
		probeJob := jobs.NewConnectivityProbeJob(remote, engine, log, jobs.DefaultConnectivityProbeConfig())
		if err := sched.Register(probeJob, scheduler.NewIntervalSchedule(cfg.Sync.ProbeInterval)); err != nil {
			return fmt.Errorf("failed to register connectivity probe: %w", err)
		}

		if cfg.Features.IsEnabled(config.FeatureSyncPeriodicDrain, featCtx) {
			flushJob := jobs.NewFlushPendingJob(engine, log, jobs.DefaultFlushPendingConfig())
			if err := sched.Register(flushJob, scheduler.NewIntervalSchedule(cfg.Scheduler.FlushPendingInterval)); err != nil {
				return fmt.Errorf("failed to register flush job: %w", err)
			}
		}

		if cfg.Features.IsEnabled(config.FeatureSyncStaleAlerts, featCtx) {
			staleCfg := jobs.DefaultStaleQueueAlertConfig()
			staleCfg.Threshold = cfg.Scheduler.StaleThreshold
			staleJob := jobs.NewStaleQueueAlertJob(queue, log, staleCfg)
			if err := sched.Register(staleJob, scheduler.NewIntervalSchedule(cfg.Scheduler.StaleCheckInterval)); err != nil {
				return fmt.Errorf("failed to register stale queue alert: %w", err)
			}
		}

		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	} else {
		log.Warn("scheduler disabled, queue drains only on explicit sync")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 11. ПЕРВИЧНАЯ ЗАГРУЗКА ПРОФИЛЯ
	// ─────────────────────────────────────────────────────────────────────────
	startCtx, cancelStart := context.WithTimeout(ctx, startupTimeout)

	if remote.Healthy(startCtx) {
		if err := engine.SetOnline(startCtx, true); err != nil {
			log.Warn("failed to mark engine online", "error", err)
		}
	} else {
		log.Warn("profile server unreachable, starting offline")
	}

	if _, err := refreshHandler.Handle(startCtx, command.RefreshProfileCommand{
		UserID: cfg.Agent.UserID,
		Email:  cfg.Agent.Email,
		Avatar: cfg.Agent.Avatar,
	}); err != nil {
		// Офлайн-старт без профиля допустим: сессия наполнится при
		// первом успешном refresh
		log.Warn("initial profile load failed, starting with empty session", "error", err)
	}
	cancelStart()

	// ─────────────────────────────────────────────────────────────────────────
	// 12. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	status := engine.Status()
	log.Info("progress agent is running",
		"instance_id", instanceID,
		"online", status.IsOnline,
		"pending", status.PendingCount,
		"durable", cache != nil,
	)

	// Ожидаем сигнал завершения
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sig := <-sigCh
	log.Info("received shutdown signal", "signal", sig.String())

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	// 1. Останавливаем планировщик (перестаём запускать фоновые задачи)
	if sched != nil {
		log.Info("stopping scheduler...")
		if err := sched.Stop(); err != nil {
			log.Error("failed to stop scheduler gracefully", "error", err)
		}
	}

	// 2. Последний слив очереди, чтобы не оставлять хвост следующему запуску
	if engine.IsOnline() {
		if report, err := engine.Drain(shutdownCtx); err != nil {
			log.Warn("final drain failed, queue stays for the next run", "error", err)
		} else if report.Synced > 0 || report.Failed > 0 || report.Dropped > 0 {
			log.Info("final drain completed",
				"synced", report.Synced,
				"failed", report.Failed,
				"dropped", report.Dropped,
				"remaining", report.Remaining,
			)
		}
	}

	// 3. Dispatcher, engine, event bus и Redis закроются через defer

	log.Info("shutdown completed successfully")
	return nil
}
