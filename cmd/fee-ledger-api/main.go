package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/fee-ledger-api/api/swagger"
	"github.com/noah-isme/fee-ledger-api/internal/handler"
	internalmiddleware "github.com/noah-isme/fee-ledger-api/internal/middleware"
	"github.com/noah-isme/fee-ledger-api/internal/models"
	"github.com/noah-isme/fee-ledger-api/internal/repository"
	"github.com/noah-isme/fee-ledger-api/internal/service"
	"github.com/noah-isme/fee-ledger-api/pkg/cache"
	"github.com/noah-isme/fee-ledger-api/pkg/config"
	"github.com/noah-isme/fee-ledger-api/pkg/database"
	"github.com/noah-isme/fee-ledger-api/pkg/export"
	"github.com/noah-isme/fee-ledger-api/pkg/jobs"
	"github.com/noah-isme/fee-ledger-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/fee-ledger-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/fee-ledger-api/pkg/middleware/requestid"
	"github.com/noah-isme/fee-ledger-api/pkg/storage"
)

// @title Fee Ledger API
// @version 1.0.0
// @description Student fee ledger with derived settlement status, numbered receipts and reports.
// @BasePath /api/v1
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = logr.Sync() }()

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		logr.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	policy := models.NewFeePolicy(cfg.Ledger.TotalFee, cfg.Ledger.Classes, cfg.Ledger.RecentLimit)
	validate := service.NewValidator()
	metricsSvc := service.NewMetricsService()

	studentRepo := repository.NewStudentRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	store := repository.NewStore(db)

	checks := map[string]handler.Pinger{"database": store}

	var cacheRepo service.CacheRepository
	if cfg.Summary.CacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, summary cache disabled", zap.Error(err))
		} else {
			defer client.Close()
			redisRepo := repository.NewCacheRepository(client)
			cacheRepo = redisRepo
			checks["redis"] = redisRepo
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Summary.CacheTTL, logr, cacheRepo != nil)

	receiptStore := mustStorage(logr, cfg.Receipts.StorageDir, "receipts")
	backupStore := mustStorage(logr, cfg.Backups.StorageDir, "backups")

	studentSvc := service.NewStudentService(studentRepo, paymentRepo, policy, cacheSvc, metricsSvc, validate, logr)
	paymentSvc := service.NewPaymentService(store, paymentRepo, service.NewPaymentStatusReconciler(policy), policy, cacheSvc, metricsSvc, validate, logr)
	summarySvc := service.NewSummaryService(studentRepo, policy, cacheSvc, cfg.Summary.CacheTTL, logr)
	receiptSvc := service.NewReceiptService(paymentRepo, paymentSvc, receiptStore, export.NewReceiptRenderer(),
		storage.NewSignedURLSigner("receipt", cfg.Receipts.SignedURLSecret, cfg.Receipts.SignedURLTTL),
		policy, metricsSvc, logr, service.ReceiptConfig{
			APIPrefix: cfg.APIPrefix,
			School: export.School{
				Name:    cfg.School.Name,
				Slogan:  cfg.School.Slogan,
				Address: cfg.School.Address,
				Contact: cfg.School.Contact,
			},
		})

	handlers := handler.Handlers{
		Students: handler.NewStudentHandler(studentSvc, paymentSvc),
		Payments: handler.NewPaymentHandler(paymentSvc),
		Receipts: handler.NewReceiptHandler(receiptSvc),
		Summary:  handler.NewSummaryHandler(summarySvc),
		Imports:  handler.NewImportHandler(service.NewImportService(studentSvc, logr)),
		Backups:  handler.NewBackupHandler(service.NewBackupService(db, backupStore, logr)),
	}

	var reportQueue *jobs.Queue
	if cfg.Reports.Enabled {
		reportStore := mustStorage(logr, cfg.Reports.StorageDir, "reports")
		exporter := service.NewExportService(paymentRepo, summarySvc, reportStore,
			storage.NewSignedURLSigner("report", cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL),
			service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Reports.SignedURLTTL}, logr, nil, nil)
		reportRepo := repository.NewReportRepository(db)
		worker := service.NewReportWorker(reportRepo, exporter, metricsSvc, logr)
		reportQueue = jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
			Workers:     cfg.Reports.WorkerConcurrency,
			MaxRetries:  cfg.Reports.WorkerRetries,
			OnExhausted: worker.Fail,
			Logger:      logr,
		})
		reportQueue.Start(ctx)

		reportSvc := service.NewReportService(reportRepo, reportQueue, exporter, paymentSvc, validate, logr,
			service.ReportServiceConfig{ResultTTL: cfg.Reports.SignedURLTTL, CleanupInterval: cfg.Reports.CleanupInterval})
		reportSvc.RecoverPendingJobs(ctx)
		reportSvc.StartCleanup(ctx)
		handlers.Reports = handler.NewReportHandler(reportSvc, logr)
	}

	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))
	r.Use(internalmiddleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != "production" {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handlers.Register(r.Group(cfg.APIPrefix))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("starting fee ledger api", zap.Int("port", cfg.Port), zap.String("database", cfg.Database.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	if reportQueue != nil {
		reportQueue.Stop()
	}
}

func mustStorage(logr *zap.Logger, dir, name string) *storage.LocalStorage {
	store, err := storage.NewLocalStorage(dir)
	if err != nil {
		logr.Fatal("failed to prepare storage", zap.String("storage", name), zap.String("dir", dir), zap.Error(err))
	}
	logr.Debug("storage ready", zap.String("storage", name), zap.String("root", store.Root()))
	return store
}
