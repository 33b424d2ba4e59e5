package main

import (
	"context"
	"errors"
	"net/http"
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
	"github.com/mkrogh/elregning/internal/gateway"
	"github.com/mkrogh/elregning/internal/jobstore"
	"github.com/mkrogh/elregning/internal/reaper"
	"github.com/mkrogh/elregning/internal/server"
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
	logger.Info("redis connected", zap.String("addr", cfg.RedisAddr))

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

	gw := gateway.New(store, blobs, trig, cfg, logger)
	chain := chainer.New(store, blobs, analyzer, trig, cfg, logger)
	reap := reaper.New(store, blobs, chain, cfg, logger)
	srv := server.New(gw, chain, reap, store, cfg.InternalSecret, logger)

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http serving", zap.String("addr", cfg.HTTPAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http serve", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	if err := rdb.Close(); err != nil {
		logger.Error("redis close", zap.Error(err))
	}
	logger.Info("stopped")
}
