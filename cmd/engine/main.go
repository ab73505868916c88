package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/audit"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/config"
	cronrunner "github.com/Recursive-Llama/Lotus-Trader-sub014/internal/cron"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/db"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/executor"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/handler"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/httpmw"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/logger"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/orchestrator"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/phase"
	gormrepository "github.com/Recursive-Llama/Lotus-Trader-sub014/internal/repository/gorm"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/scoring"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/service"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/trend"

	_ "github.com/Recursive-Llama/Lotus-Trader-sub014/docs"
)

func main() {
	cfgPath := os.Getenv("LT_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("LT_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)

	settingsSvc := &service.SettingsService{Repo: store}
	if err := settingsSvc.EnsureDefaults(context.Background()); err != nil {
		logger.Warn("init default switches failed", zap.Error(err))
	}

	trendEngine := trend.New(trend.Config{
		BandATR:                cfg.Trend.BandATR,
		ExtensionATR:           cfg.Trend.ExtensionATR,
		EmergencyBreakBuffer:   cfg.Trend.EmergencyBreakBuffer,
		RSIHot:                 cfg.Trend.RSIHot,
		ResetFirstDipOnReclaim: cfg.Engine.FirstDipResetOnReentry,
	})
	phaseProvider := &phase.Provider{Repo: store, Config: cfg.Phase, Logger: logger}
	scorer := &scoring.Scorer{Config: cfg.Scoring, Phase: phaseProvider, Logger: logger}
	sizing := scoring.NewSizing(cfg.Sizing)

	execHTTP := &http.Client{Timeout: cfg.Executor.Timeout}
	dispatcher := &executor.Dispatcher{
		Live:        executor.NewHTTP(execHTTP, cfg.Executor.BaseURL),
		Dry:         &executor.DryRun{Logger: logger},
		Switch:      settingsSvc,
		LiveDefault: cfg.Executor.LiveEnabled,
		Logger:      logger,
	}

	auditRec := audit.NewRecorder(store, logger)

	orch := &orchestrator.Orchestrator{
		Repo:       store,
		Engine:     trendEngine,
		Scorer:     scorer,
		Decider:    &orchestrator.Decider{Sizing: sizing},
		Dispatcher: dispatcher,
		Audit:      auditRec,
		Settings:   settingsSvc,
		Logger:     logger,
		Config:     cfg.Engine,
	}

	lifecycleSvc := &service.LifecycleService{
		Repo:    store,
		Engine:  trendEngine,
		Audit:   auditRec,
		Logger:  logger,
		MinBars: int64(cfg.Engine.MinBars),
		MaxRows: cfg.Engine.CatchupRows,
	}
	allocationSvc := &service.AllocationService{
		Repo:       store,
		Logger:     logger,
		Timeframes: cfg.Timeframes,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(httpmw.RequireBearer(os.Getenv("LT_AUTH_TOKEN")))
	engine.Use(httpmw.WriteAudit(logger))

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm, Settings: settingsSvc}
	healthHandler.Register(engine)
	positionHandler := &handler.PositionHandler{Repo: store, Allocation: allocationSvc, Logger: logger}
	positionHandler.Register(engine)
	decisionHandler := &handler.DecisionHandler{Repo: store}
	decisionHandler.Register(engine)
	settingsHandler := &handler.SettingsHandler{Repo: store, Settings: settingsSvc, LiveDefault: cfg.Executor.LiveEnabled}
	settingsHandler.Register(engine)

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	auditDone := make(chan struct{})
	go func() {
		auditRec.Run(ctx)
		close(auditDone)
	}()

	// Fold stored history into trend context before the first tick so
	// promoted positions do not start cold.
	lifecycleSvc.RunBootstrap(ctx)

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		for _, tf := range cfg.Timeframes {
			if !tf.Enabled {
				continue
			}
			tf := tf
			if _, err := cronRunner.Add("tick:"+tf.Name, tf.Cron, func(ctx context.Context) {
				orch.Tick(ctx, tf.Name)
			}); err != nil {
				logger.Warn("cron register tick failed",
					zap.Error(err), zap.String("timeframe", tf.Name))
			}
		}
		if _, err := cronRunner.Add("promotion", cfg.Cron.Promotion, lifecycleSvc.RunPromotion); err != nil {
			logger.Warn("cron register promotion failed", zap.Error(err))
		}
		if _, err := cronRunner.Add("bootstrap", cfg.Cron.Bootstrap, lifecycleSvc.RunBootstrap); err != nil {
			logger.Warn("cron register bootstrap failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	} else {
		logger.Warn("cron disabled, decision passes will not run")
	}

	errCh := make(chan error, 2)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	stop()
	select {
	case <-auditDone:
	case <-time.After(5 * time.Second):
		logger.Warn("audit drain timed out")
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
