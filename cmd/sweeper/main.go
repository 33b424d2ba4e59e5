// Command sweeper runs the reaper on a fixed interval for deployments
// without an external cron trigger.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mkrogh/elregning/internal/analysis/gemini"
	"github.com/mkrogh/elregning/internal/blob"
	"github.com/mkrogh/elregning/internal/chainer"
	"github.com/mkrogh/elregning/internal/common"
	"github.com/mkrogh/elregning/internal/jobstore"
	"github.com/mkrogh/elregning/internal/reaper"
	"github.com/mkrogh/elregning/internal/trigger"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := common.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("redis ping failed", zap.Error(err))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.S3Region))
	if err != nil {
		logger.Fatal("load aws config", zap.Error(err))
	}
	s3c := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	store := jobstore.New(rdb, cfg.JobTTL, logger)
	blobs := blob.NewS3Store(s3c, cfg.S3Bucket, logger)
	analyzer := gemini.NewClient(gemini.Config{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiModel,
		Timeout: cfg.AttemptBudget,
	}, logger)
	trig := trigger.NewHTTPTrigger(cfg.BaseURL, cfg.InternalSecret, logger)
	chain := chainer.New(store, blobs, analyzer, trig, cfg, logger)
	reap := reaper.New(store, blobs, chain, cfg, logger)

	tick := time.NewTicker(cfg.SweepInterval)
	defer tick.Stop()
	logger.Info("sweeper running", zap.Duration("interval", cfg.SweepInterval))

	for {
		select {
		case <-ctx.Done():
			logger.Info("sweeper stopped")
			return
		case <-tick.C:
			reap.Run(ctx)
		}
	}
}
