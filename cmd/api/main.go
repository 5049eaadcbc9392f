package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"sevaatlas/audit"
	"sevaatlas/auth"
	"sevaatlas/config"
	"sevaatlas/db"
	"sevaatlas/fieldworker"
	"sevaatlas/geo"
	"sevaatlas/logger"
	"sevaatlas/member"
	"sevaatlas/seva"
	"sevaatlas/stats"
	"sevaatlas/village"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zlog, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal("bootstrap database pool", zap.Error(err))
	}
	defer pool.Close()

	geoIndex := geo.NewIndex(cfg.BlocksGeoJSON)
	if err := geoIndex.Load(); err != nil {
		// Village creation falls back to default coordinates without the
		// reference geometry, so a missing file is not fatal.
		zlog.Warn("block geometry unavailable", zap.String("path", cfg.BlocksGeoJSON), zap.Error(err))
	}

	authService := auth.NewService(auth.NewRepository(pool), cfg.SessionSecret)
	guard := auth.NewGuard()
	auditWriter := audit.NewWriter()

	villageRepo := village.NewRepository(pool)
	resolver := village.NewResolver(villageRepo, geoIndex, zlog)

	workerService := fieldworker.NewService(pool, fieldworker.NewRepository(pool), resolver, guard, auditWriter, zlog)
	memberService := member.NewService(member.NewRepository(pool))
	sevaService := seva.NewService(pool, seva.NewRepository(pool), auditWriter, zlog)
	aggregator := stats.NewAggregator(pool, stats.NewRepository(pool), zlog)

	zlog.Info("sevaatlas ready",
		zap.Bool("auth", authService != nil),
		zap.Bool("fieldworkers", workerService != nil),
		zap.Bool("members", memberService != nil),
		zap.Bool("seva", sevaService != nil),
		zap.Bool("stats", aggregator != nil),
		zap.String("admin", cfg.AdminEmail),
	)

	<-ctx.Done()
	zlog.Info("shutting down")
	os.Exit(0)
}
