package main

import (
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/lvandyk/schoolpay/internal/domain/invoice"
	"github.com/lvandyk/schoolpay/internal/domain/reconcile"
	statementhandler "github.com/lvandyk/schoolpay/internal/domain/statement/handler"
	"github.com/lvandyk/schoolpay/internal/domain/statement/profile"
	statementservice "github.com/lvandyk/schoolpay/internal/domain/statement/service"
	"github.com/lvandyk/schoolpay/pkg/config"
	"github.com/lvandyk/schoolpay/pkg/cron"
	"github.com/lvandyk/schoolpay/pkg/db"
	"github.com/lvandyk/schoolpay/pkg/metrics"
	"github.com/lvandyk/schoolpay/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config  *config.Config
	DB      *db.DB
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Repositories
	Ledger       *invoice.Ledger
	ProfileStore *profile.Store
	FileLog      *statementservice.FileLog

	// Services
	Archive          *storage.Archive
	Engine           *reconcile.Engine
	StatementService *statementservice.Service
	Scheduler        *cron.Scheduler

	// Handlers
	StatementHandler *statementhandler.StatementHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}
	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}
	deps.initHandlers()

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}
	d.DB = database

	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initServices initializes repositories and the statement pipeline
func (d *Dependencies) initServices() error {
	d.Metrics = metrics.New()

	d.Ledger = invoice.NewLedger(d.DB.Pool)
	d.ProfileStore = profile.NewStore(d.DB.Pool)
	d.FileLog = statementservice.NewFileLog(d.DB.Pool)

	archive, err := storage.NewArchive(d.Config.Storage.StatementDir)
	if err != nil {
		return fmt.Errorf("failed to init statement archive: %w", err)
	}
	d.Archive = archive

	d.Engine = reconcile.NewEngine(d.Ledger, d.Logger)
	d.StatementService = statementservice.New(
		d.ProfileStore, d.Engine, d.Archive, d.FileLog, d.Metrics, d.Logger)

	d.Scheduler = cron.NewScheduler(d.Ledger, d.Config.Jobs.DigestSchedule, d.Logger)

	d.Logger.Info("services initialized")
	return nil
}

// initHandlers initializes the HTTP handlers
func (d *Dependencies) initHandlers() {
	limiter := rate.NewLimiter(
		rate.Limit(d.Config.Server.RateLimitPerSecond),
		d.Config.Server.RateLimitBurst,
	)
	d.StatementHandler = statementhandler.New(
		d.StatementService, d.Logger, limiter, d.Config.Server.MaxUploadBytes)

	d.Logger.Info("handlers initialized")
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.Scheduler != nil {
		<-d.Scheduler.Stop().Done()
	}
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
