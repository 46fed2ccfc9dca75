package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/lfhwnqe/gen-novel-gateway/internal/api"
	"github.com/lfhwnqe/gen-novel-gateway/internal/controller"
	"github.com/lfhwnqe/gen-novel-gateway/internal/metrics"
	"github.com/lfhwnqe/gen-novel-gateway/internal/migrations"
	"github.com/lfhwnqe/gen-novel-gateway/internal/service"
	"github.com/lfhwnqe/gen-novel-gateway/internal/storage"
	"github.com/lfhwnqe/gen-novel-gateway/internal/storage/memory"
	"github.com/lfhwnqe/gen-novel-gateway/internal/storage/postgres"
	redisstorage "github.com/lfhwnqe/gen-novel-gateway/internal/storage/redis"
	"github.com/lfhwnqe/gen-novel-gateway/internal/util"

	_ "github.com/lib/pq"
)

func main() {
	ctx := context.Background()
	logger := util.NewZapLogger()

	sessionCfg := util.NewSessionConfig()
	upstreamCfg := util.NewUpstreamConfig()

	var cleanupFuncs []func()
	var repo storage.SessionRepository

	switch sessionCfg.Backend {
	case "postgres":
		db, dbCleanup, err := util.NewDBConnection(logger)
		if err != nil {
			logger.Fatal(zap.Error(err))
		}
		if err := migrations.RunMigrations(db, logger, "./internal/migrations"); err != nil {
			logger.Fatal(zap.Error(err))
		}
		repo = postgres.NewStorage(db)
		cleanupFuncs = append(cleanupFuncs, dbCleanup)
	case "memory":
		repo = memory.NewSessionRepository(logger)
	default:
		redisClient, redisCleanup, err := util.NewRedisClient(logger, util.NewRedisConfig())
		if err != nil {
			logger.Fatal(zap.Error(err))
		}
		repo = redisstorage.NewSessionRepository(redisClient)
		cleanupFuncs = append(cleanupFuncs, redisCleanup)
	}

	sessions := service.NewSessionManager(repo, sessionCfg, logger)
	webhooks := service.NewWebhookService(logger, util.GetWebhookURL())
	gatewayMetrics := metrics.New(prometheus.DefaultRegisterer)

	upstream, err := service.NewUpstreamClient(upstreamCfg, sessions, webhooks, gatewayMetrics, logger)
	if err != nil {
		logger.Fatal(zap.Error(err))
	}

	ctrl := controller.NewController(logger, sessions, upstream, upstreamCfg)

	apiServer := api.NewAPI(ctrl, sessions, util.NewServerConfig(), util.NewRateLimiterConfig(), logger, cleanupFuncs)
	apiServer.Run(ctx)
}
