package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/audit"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/config"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/db"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/logger"
	gormrepository "github.com/Recursive-Llama/Lotus-Trader-sub014/internal/repository/gorm"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/service"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/trend"
)

// One-shot lifecycle pass for external schedulers: refresh bar counts,
// promote dormant positions that cleared the history gate, then seed trend
// context for cold watchlist entries. Exits when both passes finish.
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

	if err := db.Ping(dbConn); err != nil {
		logger.Fatal("db unreachable", zap.Error(err))
	}
	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)

	trendEngine := trend.New(trend.Config{
		BandATR:                cfg.Trend.BandATR,
		ExtensionATR:           cfg.Trend.ExtensionATR,
		EmergencyBreakBuffer:   cfg.Trend.EmergencyBreakBuffer,
		RSIHot:                 cfg.Trend.RSIHot,
		ResetFirstDipOnReclaim: cfg.Engine.FirstDipResetOnReentry,
	})

	auditRec := audit.NewRecorder(store, logger)

	lifecycleSvc := &service.LifecycleService{
		Repo:    store,
		Engine:  trendEngine,
		Audit:   auditRec,
		Logger:  logger,
		MinBars: int64(cfg.Engine.MinBars),
		MaxRows: cfg.Engine.CatchupRows,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	auditCtx, auditCancel := context.WithCancel(context.Background())
	auditDone := make(chan struct{})
	go func() {
		auditRec.Run(auditCtx)
		close(auditDone)
	}()

	start := time.Now()
	lifecycleSvc.RunPromotion(ctx)
	lifecycleSvc.RunBootstrap(ctx)

	auditCancel()
	select {
	case <-auditDone:
	case <-time.After(5 * time.Second):
		logger.Warn("audit drain timed out")
	}

	logger.Info("maintenance pass complete", zap.Duration("elapsed", time.Since(start)))
}
