// Package app assembles the ledger services from configuration.
package app

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"partsledger/internal/config"
	"partsledger/internal/database"
	"partsledger/internal/logger"
	"partsledger/internal/services"
	"partsledger/internal/store"
	"partsledger/internal/utils"
)

// App holds the wired services and the connections they use.
type App struct {
	Config    *config.Config
	Location  *time.Location
	Store     store.Store
	Catalog   *services.CatalogService
	Invoices  *services.InvoiceService
	Dashboard *services.DashboardService

	DB    *gorm.DB
	Redis *utils.RedisClient

	redisClient *redis.Client
}

// New connects the configured backends and builds the services.
func New(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Location: loc}

	switch cfg.StoreDriver {
	case config.StorePostgres:
		db, err := database.ConnectPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(db); err != nil {
			database.ClosePostgres(db)
			return nil, err
		}
		a.DB = db
		a.Store = store.NewGormStore(db)
	default:
		logger.Log.Warn("⚠️ Using in-memory store, data is lost on restart")
		a.Store = store.NewMemoryStore()
	}

	if cfg.RedisURL != "" || len(cfg.RedisSentinelAddrs) > 0 {
		client, err := database.ConnectRedis(cfg.RedisURL, cfg.RedisSentinelAddrs, cfg.RedisMasterName)
		if err != nil {
			// Redis only backs optional features.
			logger.Log.Warn("⚠️ Redis unavailable, idempotency keys disabled", zap.Error(err))
		} else {
			a.redisClient = client
			a.Redis = utils.NewRedisClient(client)
		}
	}

	a.Catalog = services.NewCatalogService(a.Store)
	if err := a.Catalog.SetImportCharset(cfg.ImportCharset); err != nil {
		a.Close()
		return nil, err
	}

	a.Invoices = services.NewInvoiceService(a.Store)
	a.Invoices.SetReceiptOptions(cfg.ShopName, loc)
	// The database sequence survives restarts on its own; an in-memory
	// ledger borrows Redis's counter so printed numbers are never reissued.
	if a.DB == nil && a.Redis != nil {
		a.Invoices.SetNumberer(services.NewRedisNumberer(a.Redis, ""))
		logger.Log.Info("🔢 Invoice numbers drawn from Redis")
	}

	a.Dashboard = services.NewDashboardService(a.Store, loc)
	return a, nil
}

// SetPublisher routes ledger events from every service to p.
func (a *App) SetPublisher(p services.EventPublisher) {
	a.Catalog.SetPublisher(p)
	a.Invoices.SetPublisher(p)
}

// Close releases every connection opened by New.
func (a *App) Close() error {
	var errs []error
	if a.redisClient != nil {
		errs = append(errs, database.CloseRedis(a.redisClient))
	}
	if a.DB != nil {
		errs = append(errs, database.ClosePostgres(a.DB))
	}
	return errors.Join(errs...)
}
