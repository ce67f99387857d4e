package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"household-inventory-api/internal/cache"
	"household-inventory-api/internal/config"
	"household-inventory-api/internal/handler"
	"household-inventory-api/internal/listener"
	"household-inventory-api/internal/logger"
	"household-inventory-api/internal/metrics"
	"household-inventory-api/internal/repository"
	"household-inventory-api/internal/router"
	"household-inventory-api/internal/service"
	"household-inventory-api/pkg/clock"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg := config.MustLoad()

	log, err := logger.New(logger.Config{
		IsDevelopment:     cfg.App.IsDevelopment(),
		Encoding:          cfg.Logger.Encoding,
		Level:             cfg.Logger.Level,
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	})
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting household inventory API",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version))

	clk := clock.NewReal()
	m := metrics.New()

	// Initialize primary store based on config
	primary, seeder := openPrimaryStore(cfg, log)

	// Optional dedicated backends
	var recipes repository.RecipeBackend
	var recipeSeeder repository.RecipeSeeder = seeder
	if cfg.Recipes.Backend == "mongodb" {
		mongoStore, err := repository.NewMongoRecipeStore(cfg.Recipes.MongoURI, cfg.Recipes.MongoDatabase, log)
		if err != nil {
			log.Fatal("failed to initialize MongoDB recipe store", zap.Error(err))
		}
		recipes = mongoStore
		recipeSeeder = mongoStore
		log.Info("MongoDB recipe store initialized", zap.String("database", cfg.Recipes.MongoDatabase))
	}

	var members repository.MemberBackend
	if cfg.Members.Enabled {
		db, err := sqlx.Connect("mysql", cfg.Members.DSN())
		if err != nil {
			log.Fatal("failed to connect member directory", zap.Error(err))
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		members = repository.NewMySQLMemberDirectory(db, cfg.Members.Table)
		log.Info("MySQL member directory initialized", zap.String("table", cfg.Members.Table))
	}

	var store repository.Store = primary
	if recipes != nil || members != nil {
		store = repository.NewCompositeStore(primary, recipes, members)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("failed to close store", zap.Error(err))
		}
	}()

	if cfg.App.SeedCatalog && seeder != nil {
		cat, err := repository.DefaultSeedCatalog()
		if err != nil {
			log.Fatal("failed to load seed catalog", zap.Error(err))
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = repository.Seed(ctx, cat, seeder, recipeSeeder, log)
		cancel()
		if err != nil {
			log.Fatal("failed to seed catalog", zap.Error(err))
		}
	}

	// Food catalog cache
	var foods repository.FoodCatalog = store
	var catalogCache cache.Cache
	switch cfg.Cache.Type {
	case "redis":
		redisCache, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:      cfg.Cache.RedisAddress(),
			Password:  cfg.Cache.RedisPassword,
			DB:        cfg.Cache.RedisDB,
			KeyPrefix: cfg.Cache.RedisPrefix,
		}, log)
		if err != nil {
			log.Warn("redis cache unavailable, falling back to memory", zap.Error(err))
			catalogCache = cache.NewMemoryCache(clk, time.Minute)
		} else {
			catalogCache = redisCache
		}
	case "memory":
		catalogCache = cache.NewMemoryCache(clk, time.Minute)
	}
	if catalogCache != nil {
		defer catalogCache.Close()
		foods = cache.NewCachedFoodCatalog(store, catalogCache, cfg.Cache.TTL, log)
	}

	// Initialize services
	seasonal, err := service.DefaultSeasonalTable()
	if err != nil {
		log.Fatal("failed to load seasonal table", zap.Error(err))
	}

	tracker := service.NewInventoryTracker(store, foods, clk, m, log, service.TrackerConfig{
		DeleteDepleted: cfg.Engine.DeleteDepleted,
	})
	shopping := service.NewShoppingService(store, foods, tracker, seasonal, clk, log)
	notifications := service.NewNotificationService(store, shopping, clk, m, log, service.NotificationConfig{
		RetentionDays:   cfg.Engine.RetentionDays,
		WasteWindowDays: cfg.Engine.WasteWindowDays,
	})
	monitor := service.NewExpiryMonitor(store, notifications, clk, m, log, service.MonitorConfig{
		ExpiringDays:  cfg.Engine.ExpiringSummaryDays,
		TrendDays:     cfg.Engine.TrendDays,
		SweepPageSize: cfg.Engine.SweepPageSize,
	})
	recipeService := service.NewRecipeService(store, clk, m, log)

	scheduler := service.NewScheduler(monitor, notifications, service.SchedulerConfig{
		ExpiryInterval:       cfg.Scheduler.ExpiryInterval,
		NotificationInterval: cfg.Scheduler.NotificationInterval,
		RetentionInterval:    cfg.Scheduler.RetentionInterval,
		JobTimeout:           cfg.Scheduler.JobTimeout,
		InitialDelay:         cfg.Scheduler.InitialDelay,
	}, log)
	if cfg.Scheduler.Enabled {
		scheduler.Start()
	}

	// Procurement events
	listenerCtx, stopListener := context.WithCancel(context.Background())
	listenerDone := make(chan struct{})
	var procurement *listener.ProcurementListener
	if cfg.Kafka.Enabled {
		reader := listener.NewKafkaReader(listener.ReaderConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		})
		procurement = listener.NewProcurementListener(reader, tracker, foods, m, log)
		go func() {
			defer close(listenerDone)
			procurement.Start(listenerCtx)
		}()
		log.Info("procurement listener started", zap.String("topic", cfg.Kafka.Topic))
	} else {
		close(listenerDone)
	}

	// Initialize handlers
	checks := map[string]handler.Pinger{
		"store": handler.PingFunc(func(ctx context.Context) error {
			_, err := store.GetStoreStats(ctx)
			return err
		}),
	}
	if catalogCache != nil {
		checks["cache"] = handler.PingFunc(func(ctx context.Context) error {
			_, err := catalogCache.Exists(ctx, "healthcheck")
			return err
		})
	}

	r := router.New(router.Config{
		Handler:             handler.New(cfg.App.Name, cfg.App.Version, checks, clk),
		InventoryHandler:    handler.NewInventoryHandler(tracker),
		ExpiryHandler:       handler.NewExpiryHandler(monitor),
		NotificationHandler: handler.NewNotificationHandler(notifications),
		RecipeHandler:       handler.NewRecipeHandler(recipeService),
		ShoppingHandler:     handler.NewShoppingHandler(shopping),
		AdminHandler:        handler.NewAdminHandler(scheduler, store, cfg.Store.Type, clk),
		Metrics:             m.Handler(),
		AdminAPIKeys:        cfg.App.AdminKeys,
		AllowedOrigins:      cfg.Server.AllowedOrigins,
		Logger:              log,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("addr", cfg.Server.Address()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	}

	// Stop background work before the stores close
	scheduler.Stop()
	stopListener()
	<-listenerDone
	if procurement != nil {
		if err := procurement.Close(); err != nil {
			log.Warn("failed to close kafka reader", zap.Error(err))
		}
	}

	log.Info("server stopped")
}

// openPrimaryStore opens the configured inventory store. The returned seeder is
// the same store, which owns the food catalog and member list.
func openPrimaryStore(cfg *config.Config, log *zap.Logger) (repository.Store, repository.Seeder) {
	switch cfg.Store.Type {
	case "memory":
		s := repository.NewMemoryStore()
		log.Info("memory store initialized")
		return s, s
	default:
		dsn := cfg.Store.DSN()
		if cfg.Store.Type == repository.DialectSQLite {
			dsn = repository.SQLiteDSN(cfg.Store.Path)
		}
		s, err := repository.NewSQLStore(repository.SQLConfig{
			Dialect:         cfg.Store.Type,
			DSN:             dsn,
			MaxOpenConns:    cfg.Store.MaxOpenConns,
			MaxIdleConns:    cfg.Store.MaxIdleConns,
			ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
		}, log)
		if err != nil {
			log.Fatal("failed to initialize store", zap.String("type", cfg.Store.Type), zap.Error(err))
		}
		log.Info("SQL store initialized", zap.String("dialect", cfg.Store.Type))
		return s, s
	}
}
