package server

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/TextNexus/backend/internal/api/http"
	"github.com/GriffinCanCode/TextNexus/backend/internal/api/middleware"
	"github.com/GriffinCanCode/TextNexus/backend/internal/api/ws"
	"github.com/GriffinCanCode/TextNexus/backend/internal/domain/activity"
	"github.com/GriffinCanCode/TextNexus/backend/internal/domain/catalog"
	"github.com/GriffinCanCode/TextNexus/backend/internal/domain/notification"
	"github.com/GriffinCanCode/TextNexus/backend/internal/domain/persistence"
	"github.com/GriffinCanCode/TextNexus/backend/internal/domain/session"
	"github.com/GriffinCanCode/TextNexus/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/TextNexus/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/TextNexus/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/TextNexus/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/TextNexus/backend/internal/providers/notify"
	"github.com/GriffinCanCode/TextNexus/backend/internal/providers/storage"
	"github.com/GriffinCanCode/TextNexus/backend/internal/shared/paths"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	http     *nethttp.Server
	store    *persistence.Coordinator
	notifier *notification.Router
	activity *activity.Hub
	sessions *session.Tracker
	hub      *ws.Hub
	tracer   *tracing.Tracer
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics

	// cancel stops the background pipelines
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	if err := paths.Ensure(cfg.Storage.DataDir); err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.Logging, cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	logger.Info("Initializing TextNexus Server",
		zap.String("port", cfg.Server.Port),
		zap.String("data_dir", cfg.Storage.DataDir),
	)

	// Initialize metrics first (needed by other components)
	metrics := monitoring.NewMetrics()
	tracer := tracing.New("backend", logger.Logger)

	store, err := openStore(cfg.Storage, metrics, logger.Logger)
	if err != nil {
		tracer.Close()
		_ = logger.Close()
		return nil, err
	}

	services := catalog.New(catalog.HostPlatform(), logger.Logger)
	if path := dataFile(cfg.Storage, cfg.Catalog.OverridesPath, paths.OverridesFile); path != "" {
		if err := services.LoadOverrides(path); err != nil {
			logger.Warn("Failed to load catalog overrides", zap.String("path", path), zap.Error(err))
		}
	}
	if icon := cfg.Notifications.DefaultIcon; icon != "" {
		if err := services.SetDefaultIcon(icon); err != nil {
			logger.Warn("Ignoring default icon", zap.String("icon", icon), zap.Error(err))
		}
	}

	hub := ws.NewHub(nil, ws.DefaultConfig(), logger.Logger).WithMetrics(metrics)

	ui := notify.NewUI(hub, logger.Logger)
	sinks := []notification.Notifier{ui}

	ctx, cancel := context.WithCancel(context.Background())

	var push *notify.WebPush
	if wp := cfg.Notifications.WebPush; wp.Enabled {
		push, err = notify.NewWebPush(ctx, notify.WebPushConfig{
			PublicKey:  wp.PublicKey,
			PrivateKey: wp.PrivateKey,
			Subscriber: wp.Subscriber,
			TTL:        wp.TTL,
			Retries:    wp.Retries,
		}, store, logger.Logger)
		if err != nil {
			logger.Warn("Web Push disabled", zap.Error(err))
			push = nil
		} else {
			sinks = append(sinks, push)
		}
	}
	if url := cfg.Notifications.WebhookURL; url != "" {
		sinks = append(sinks, notify.NewWebhook(url, cfg.Notifications.WebhookRetries, logger.Logger))
		logger.Info("Webhook notifications enabled", zap.String("url", url))
	}

	router := notification.NewRouter(notify.NewMulti(logger.Logger, sinks...), ui, notification.Config{
		AppName:          cfg.Notifications.AppName,
		DefaultIcon:      services.DefaultIcon(),
		Icons:            services.Icons(),
		RestoreDelay:     cfg.Notifications.RestoreDelay.Duration,
		ConfirmTTL:       cfg.Notifications.ConfirmTTL.Duration,
		BackgroundNotice: cfg.Notifications.BackgroundNotice,
	}, logger.Logger).WithMetrics(metrics)

	factory := activity.HeuristicFactory(logger.Logger)
	if path := dataFile(cfg.Storage, cfg.Notifications.DetectorScript, paths.DetectorFile); path != "" {
		script, err := activity.LoadScript(path, 0, logger.Logger)
		if err != nil {
			logger.Warn("Falling back to heuristic detector", zap.String("path", path), zap.Error(err))
		} else {
			factory = activity.StaticFactory(script)
			logger.Info("Using scripted activity detector", zap.String("path", path))
		}
	}
	monitors := activity.NewHub(activity.Config{
		Spacing:    cfg.Notifications.QueueSpacing.Duration,
		QueueLimit: cfg.Notifications.QueueLimit,
	}, factory, logger.Logger).WithMetrics(metrics)

	tracker := session.NewTracker(store, cfg.Sessions.SnapshotInterval.Duration, logger.Logger).WithMetrics(metrics)

	handlers := http.NewHandlers(http.Deps{
		Store:    store,
		Router:   router,
		Activity: monitors,
		Sessions: tracker,
		Catalog:  services,
		Push:     push,
		UI:       hub,
		Clients:  hub,
		Metrics:  metrics,
		Logger:   logger.Logger,
	})
	hub.SetDispatcher(handlers)

	go router.Consume(ctx, monitors.Requests(ctx))

	if cfg.Storage.Watch {
		err := store.Watch(ctx, func(ch storage.Change) {
			logger.Info("Storage changed externally",
				zap.String("backend", ch.Backend),
				zap.String("path", ch.Path),
			)
			hub.Broadcast(notify.EventStoreChanged, gin.H{
				"backend": ch.Backend,
				"at":      ch.At.UnixMilli(),
			})
		})
		if err != nil {
			logger.Warn("Failed to watch storage", zap.Error(err))
		}
	}

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()

	// Add middleware
	engine.Use(gin.Recovery())
	engine.Use(tracing.HTTPMiddleware(tracer))
	engine.Use(middleware.Logger(logger.Logger, "/health", "/metrics"))
	engine.Use(monitoring.Middleware(metrics))
	engine.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		engine.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	// Register routes
	handlers.Register(engine)
	engine.GET("/stream", hub.Handle)
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	logger.Info("Server initialized successfully",
		zap.Int("storage_slots", len(store.Status())),
		zap.Int("notification_sinks", len(sinks)),
	)

	return &Server{
		router:   engine,
		store:    store,
		notifier: router,
		activity: monitors,
		sessions: tracker,
		hub:      hub,
		tracer:   tracer,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
		cancel:   cancel,
	}, nil
}

// dataFile returns the configured path resolved against the data
// directory, or the default file when it exists there.
func dataFile(cfg config.StorageConfig, configured, fallback string) string {
	if configured != "" {
		return cfg.ResolvePath(configured)
	}
	return paths.Optional(cfg.DataDir, fallback)
}

func newLogger(cfg config.LogConfig, dataDir string) (*logging.Logger, error) {
	base := logging.DefaultConfig()
	if cfg.Development {
		base = logging.DevelopmentConfig()
	}
	if cfg.Level != "" && !cfg.Development {
		base.Level = cfg.Level
	}
	base.File = paths.Resolve(dataDir, cfg.File)
	base.MaxSizeMB = cfg.MaxSizeMB
	base.MaxBackups = cfg.MaxBackups
	base.MaxAgeDays = cfg.MaxAgeDays
	return logging.New(base)
}

// openStore opens every configured slot. A slot that fails to open is
// skipped so the app keeps working on the remaining ones.
func openStore(cfg config.StorageConfig, metrics *monitoring.Metrics, logger *zap.Logger) (*persistence.Coordinator, error) {
	base := storage.Options{
		DataDir:    cfg.DataDir,
		QuotaBytes: cfg.QuotaBytes,
		OpTimeout:  cfg.OpTimeout.Duration,
		Logger:     logger,
	}

	durable := base
	durable.EncryptionKey = cfg.EncryptionKey
	durable.Defaults = storage.DefaultDocument()

	prefixed := base
	prefixed.KeyPrefix = cfg.KeyPrefix

	dsns := []struct {
		slot persistence.Slot
		dsn  string
		opts storage.Options
	}{
		{persistence.SlotDurable, cfg.DurableDSN, durable},
		{persistence.SlotDocument, cfg.DocumentDSN, base},
		{persistence.SlotLocal, cfg.LocalDSN, prefixed},
		{persistence.SlotSession, cfg.SessionDSN, prefixed},
	}

	slots := persistence.Slots{}
	var failed []error
	for _, d := range dsns {
		backend, err := storage.Open(d.dsn, d.opts)
		if err != nil {
			logger.Warn("Storage slot unavailable",
				zap.String("slot", string(d.slot)),
				zap.Error(err),
			)
			failed = append(failed, err)
			continue
		}
		if backend == nil {
			continue
		}
		slots[d.slot] = backend
		logger.Info("Storage slot ready",
			zap.String("slot", string(d.slot)),
			zap.String("backend", backend.Name()),
		)
	}
	if len(slots) == 0 && len(failed) > 0 {
		return nil, fmt.Errorf("no storage backend available: %w", errors.Join(failed...))
	}

	opts := []persistence.Option{persistence.WithMetrics(metrics)}
	if cfg.BreakerFailures > 0 {
		opts = append(opts, persistence.WithBreaker(uint32(cfg.BreakerFailures), cfg.BreakerTimeout.Duration))
	}
	return persistence.New(slots, logger, opts...), nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() nethttp.Handler {
	return s.router
}

// Run starts the HTTP server and blocks until it stops. It returns nil
// after a graceful Close.
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.http = &nethttp.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		return err
	}
	return nil
}

// Close gracefully shuts down the server. Sessions are flushed before the
// storage backends close.
func (s *Server) Close() error {
	var errs []error
	s.closeOnce.Do(func() {
		s.logger.Info("Shutting down server...")

		if s.http != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			if err := s.http.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("http shutdown: %w", err))
			}
			cancel()
		}

		s.cancel()
		s.notifier.Close()
		s.activity.Close()
		s.hub.Close()

		s.sessions.Close()
		s.logger.Info("Sessions flushed", zap.Int64("saved_total", s.sessions.Stats().Saved))

		if err := s.store.Close(); err != nil {
			s.logger.Error("Failed to close storage", zap.Error(err))
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
		s.tracer.Close()

		// Sync logger before exit
		_ = s.logger.Close()
	})
	return errors.Join(errs...)
}
