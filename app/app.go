// Package app wires configuration into the running monitoring engine.
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ccjoness/StellarIQ-API/config"
	"github.com/ccjoness/StellarIQ-API/controllers"
	"github.com/ccjoness/StellarIQ-API/middleware"
	"github.com/ccjoness/StellarIQ-API/models"
	"github.com/ccjoness/StellarIQ-API/repository"
	"github.com/ccjoness/StellarIQ-API/routes"
	"github.com/ccjoness/StellarIQ-API/scheduler"
	"github.com/ccjoness/StellarIQ-API/services/analysis"
	"github.com/ccjoness/StellarIQ-API/services/cache"
	"github.com/ccjoness/StellarIQ-API/services/marketdata"
	"github.com/ccjoness/StellarIQ-API/services/monitor"
	"github.com/ccjoness/StellarIQ-API/services/notification"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// App holds every long-lived component
type App struct {
	Config     *config.Config
	DB         *gorm.DB
	Repository *repository.Repository
	Cache      *cache.Store
	Gateway    *marketdata.Gateway
	Analyzer   *analysis.Analyzer
	Feed       *notification.Feed
	Dispatcher *notification.Dispatcher
	Monitor    *monitor.Monitor
	Scheduler  *scheduler.Scheduler
	Limiter    *middleware.LoginRateLimiter

	stopCleanup context.CancelFunc
}

// New connects the database and cache and builds the component graph
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	strategy, err := analysis.StrategyByName(cfg.AnalysisStrategy)
	if err != nil {
		return nil, err
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		return nil, err
	}

	store, err := newCacheStore(ctx, cfg)
	if err != nil {
		closeDB(db)
		return nil, err
	}

	if cfg.AlphaVantageAPIKey == "" {
		log.Println("⚠️  ALPHA_VANTAGE_API_KEY is not set, upstream requests will be rejected")
	}

	repo := repository.New(db)
	fetcher := marketdata.NewFetcher(cfg.AlphaVantageBaseURL, cfg.AlphaVantageAPIKey, cfg.RateLimitPerMinute, cfg.UpstreamTimeout)
	gateway := marketdata.NewGateway(fetcher, store)
	analyzer := analysis.NewAnalyzer(gateway, strategy, analysis.Thresholds{
		RSIOverbought:   cfg.RSIOverbought,
		RSIOversold:     cfg.RSIOversold,
		StochOverbought: cfg.StochOverbought,
		StochOversold:   cfg.StochOversold,
	})

	feed := notification.NewFeed()
	dispatcher := notification.NewDispatcher(
		repo, repo, repo,
		notification.NewExpoClient(cfg.ExpoPushURL, cfg.ExpoAccessToken),
		newEmailSender(cfg),
		feed,
		notification.Options{
			PushEnabled:  cfg.EnablePushNotifications,
			EmailEnabled: cfg.EnableEmailNotifications,
		},
	)

	mon := monitor.NewMonitor(repo, analyzer, gateway, dispatcher, cfg.AlertCooldown)
	sched := scheduler.NewScheduler(mon, repo, scheduler.Options{
		SweepInterval:         cfg.SweepInterval,
		CleanupAt:             cfg.CleanupAt,
		NotificationRetention: cfg.NotificationRetention,
		TokenRetention:        cfg.TokenRetention,
	})

	limiter := middleware.DefaultLoginRateLimiter()
	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	limiter.StartCleanup(cleanupCtx, 10*time.Minute)

	log.Printf("✓ Monitoring engine initialized (strategy=%s, cache=%s)", strategy.Name(), cfg.CacheBackend)

	return &App{
		Config:      cfg,
		DB:          db,
		Repository:  repo,
		Cache:       store,
		Gateway:     gateway,
		Analyzer:    analyzer,
		Feed:        feed,
		Dispatcher:  dispatcher,
		Monitor:     mon,
		Scheduler:   sched,
		Limiter:     limiter,
		stopCleanup: stopCleanup,
	}, nil
}

// Migrate runs database migrations
func (a *App) Migrate() error {
	log.Println("Running database migrations...")
	if err := models.MigrateMonitoringModels(a.DB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	log.Println("Database migrations completed successfully")
	return nil
}

// RegisterRoutes mounts the admin API on router
func (a *App) RegisterRoutes(router *gin.Engine) {
	routes.SetupRoutes(router, routes.Deps{
		Monitoring: controllers.NewMonitoringController(a.Scheduler, a.Monitor, a.Analyzer, a.Gateway, a.Repository),
		Auth:       controllers.NewAuthController(a.Config.AdminSecretHash, a.Config.JWTSecret, a.Limiter),
		Limiter:    a.Limiter,
		AlertFeed:  a.Feed.HandleWebSocket,
		JWTSecret:  a.Config.JWTSecret,
	})
}

// Close releases the feed, cache and database
func (a *App) Close(ctx context.Context) {
	a.stopCleanup()
	a.Feed.Shutdown()

	if err := a.Cache.Close(ctx); err != nil {
		log.Printf("Error closing cache: %v", err)
	}
	closeDB(a.DB)
}

func newCacheStore(ctx context.Context, cfg *config.Config) (*cache.Store, error) {
	if cfg.CacheBackend == "mongo" {
		backend, err := cache.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return cache.NewStore(backend, cfg.CacheTTL), nil
	}
	return cache.NewStore(cache.NewMemory(), cfg.CacheTTL), nil
}

func newEmailSender(cfg *config.Config) notification.EmailSender {
	if cfg.SMTPHost == "" {
		log.Println("SMTP_HOST not set, emails will be logged instead of sent")
		return notification.LogSender{}
	}
	return notification.NewSMTPSender(notification.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
}

func closeDB(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err == nil {
		log.Println("Database connection closed")
	}
}
