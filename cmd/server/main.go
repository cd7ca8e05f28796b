package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/datarest/internal/config"
	"github.com/benvon/datarest/internal/database"
	"github.com/benvon/datarest/internal/handlers"
	"github.com/benvon/datarest/internal/logger"
	"github.com/benvon/datarest/internal/mapping"
	"github.com/benvon/datarest/internal/middleware"
	"github.com/benvon/datarest/internal/queue"
	"github.com/benvon/datarest/internal/telemetry"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	routesFlag := flag.String("routes", "", "Path to the routes file (overrides ROUTES_FILE)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *routesFlag != "" {
		cfg.RoutesFile = *routesFlag
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync(zapLogger)
	}()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("base_path", cfg.BasePath),
		zap.String("routes_file", cfg.RoutesFile),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	// Initialize OpenTelemetry if enabled
	tracingEnabled := false
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.InitTracer(context.Background(), telemetry.ServiceName, cfg.OTELEndpoint)
			if err != nil {
				zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
			} else {
				tracingEnabled = true
				zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
				defer func() {
					shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer shutdownCancel()
					if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
						zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
					}
				}()
			}
		}
	}

	// Validate the routes file before any connection so a bad
	// cross-origin attribute fails startup immediately.
	routes, err := config.LoadRoutes(cfg.RoutesFile)
	if err != nil {
		zapLogger.Fatal("failed_to_load_routes_file", zap.String("routes_file", cfg.RoutesFile), zap.Error(err))
	}
	zapLogger.Info("routes_file_loaded",
		zap.Int("resources", len(routes.Resources)),
		zap.Int("global_cors_mappings", routes.Global.Len()),
	)

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_database")

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = db.Migrate(migrateCtx)
	migrateCancel()
	if err != nil {
		zapLogger.Fatal("failed_to_migrate_database", zap.Error(err))
	}

	entityRepo := database.NewEntityRepository(db)
	crossOriginRepo := database.NewCrossOriginRepository(db)
	ratelimitConfigRepo := database.NewRatelimitConfigRepository(db)

	// Route table: built once here, then rebuilt by the reloader
	holder := &mapping.Holder{}
	routeReloader := mapping.NewReloader(holder, cfg.BasePath, routes.Resources, routes.Global, crossOriginRepo,
		logger.Component(zapLogger, "route_table"), cfg.CORSReloadInterval)
	if err := routeReloader.Reload(context.Background()); err != nil {
		zapLogger.Fatal("failed_to_build_route_table", zap.Error(err))
	}
	table := holder.Load()

	// Redis-backed rate limiting (optional)
	var redisLimiter *middleware.RedisRateLimiter
	var rateLimitReloader *middleware.RateLimitReloader
	if cfg.RedisURL != "" {
		redisLimiter, err = middleware.NewRedisRateLimiter(cfg.RedisURL)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
		}
		defer func() {
			if err := redisLimiter.Close(); err != nil {
				zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
			}
		}()
		store, err := redisLimiter.Store()
		if err != nil {
			zapLogger.Fatal("failed_to_create_rate_limit_store", zap.Error(err))
		}
		rateLimitReloader = middleware.NewRateLimitReloader(store, ratelimitConfigRepo, cfg.RateLimitDefault,
			logger.Component(zapLogger, "ratelimit"), cfg.CORSReloadInterval)
		rateLimitReloader.Reload(context.Background())
		zapLogger.Info("connected_to_redis")
	} else {
		zapLogger.Warn("redis_not_configured_rate_limiting_disabled")
	}

	// Handlers
	var redisPinger handlers.Pinger
	if redisLimiter != nil {
		redisPinger = handlers.PingFunc(redisLimiter.Ping)
	}
	healthChecker := handlers.NewHealthChecker(db, redisPinger)
	corsInspector := handlers.NewCORSInspector(holder)
	repositoryHandler := handlers.NewRepositoryHandler(entityRepo, table.Mappings(), logger.Component(zapLogger, "repository"))

	// Router. gorilla/mux only runs r.Use middleware for matched routes, so
	// everything that must also see 404, 405 and preflight responses wraps
	// the router instead (see handler below).
	r := mux.NewRouter()
	if tracingEnabled {
		r.Use(telemetry.RouterMiddleware(telemetry.ServiceName))
	}
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(middleware.DefaultRequestTimeout))

	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/cors/routes", corsInspector.ListRoutes).Methods(http.MethodGet)

	apiRouter := r
	if base := table.Mappings().BasePath(); base != "" {
		apiRouter = r.PathPrefix(base).Subrouter()
	}
	if rateLimitReloader != nil {
		apiRouter.Use(rateLimitReloader.Middleware())
	}
	repositoryHandler.RegisterRoutes(apiRouter)

	// Outermost first: resource tagging, panic recovery, security headers,
	// request logging, audit, then per-route CORS ahead of route matching.
	var handler http.Handler = r
	handler = holder.Middleware()(handler)
	handler = middleware.Audit(zapLogger)(handler)
	handler = middleware.Logging(zapLogger)(handler)
	handler = middleware.SecurityHeaders(cfg.EnableHSTS)(handler)
	handler = middleware.ErrorHandler(zapLogger)(handler)
	handler = holder.Tag()(handler)

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        handler,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   middleware.DefaultRequestTimeout + 5*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB max header size
	}

	// Hot-reload loops
	reloadCtx, reloadCancel := context.WithCancel(context.Background())
	defer reloadCancel()
	go routeReloader.Start(reloadCtx)
	if rateLimitReloader != nil {
		go rateLimitReloader.Start(reloadCtx)
	}

	// Reconfiguration events (optional; polling still applies without them)
	if cfg.RabbitMQURL != "" {
		if bus := connectRabbitMQ(cfg.RabbitMQURL, zapLogger); bus != nil {
			defer func() {
				if err := bus.Close(); err != nil {
					zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
				}
			}()
			healthChecker.AddCheck("rabbitmq", handlers.PingFunc(bus.HealthCheck))
			events, errs, err := bus.Subscribe(reloadCtx)
			if err != nil {
				zapLogger.Warn("failed_to_subscribe_to_reconfigure_events", zap.Error(err))
			} else {
				var rl triggerer
				if rateLimitReloader != nil {
					rl = rateLimitReloader
				}
				go dispatchEvents(reloadCtx, events, errs, routeReloader, rl, logger.Component(zapLogger, "events"))
				zapLogger.Info("subscribed_to_reconfigure_events", zap.String("exchange", queue.DefaultExchangeName))
			}
		}
	}

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	reloadCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

// connectRabbitMQ retries with exponential backoff to ride out broker startup
// delays. It returns nil when the broker stays unreachable.
func connectRabbitMQ(url string, log *zap.Logger) *queue.RabbitMQBus {
	const maxRetries = 5
	const initialDelay = 2 * time.Second

	for attempt := 0; attempt < maxRetries; attempt++ {
		bus, err := queue.NewRabbitMQBus(url)
		if err == nil {
			log.Info("connected_to_rabbitmq")
			return bus
		}
		delay := min(initialDelay*time.Duration(1<<uint(attempt)), 30*time.Second)
		log.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
			zap.Duration("retry_delay", delay),
		)
		time.Sleep(delay)
	}
	log.Warn("rabbitmq_unavailable_reconfigure_events_disabled", zap.Int("max_retries", maxRetries))
	return nil
}
