package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"

	"github.com/gofrolist/calorie-track-ai-bot/config"
	"github.com/gofrolist/calorie-track-ai-bot/internal/cache"
	"github.com/gofrolist/calorie-track-ai-bot/internal/logger"
	"github.com/gofrolist/calorie-track-ai-bot/internal/models"
	"github.com/gofrolist/calorie-track-ai-bot/internal/providers/vision"
	"github.com/gofrolist/calorie-track-ai-bot/internal/queue"
	pgrepo "github.com/gofrolist/calorie-track-ai-bot/internal/repositories/postgres"
	"github.com/gofrolist/calorie-track-ai-bot/internal/services"
	"github.com/gofrolist/calorie-track-ai-bot/internal/storage"
	"github.com/gofrolist/calorie-track-ai-bot/internal/telegram"
	"github.com/gofrolist/calorie-track-ai-bot/internal/workers"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()

	if err := config.LoadApp(); err != nil {
		log.WithError(err).Fatal("config load failed")
	}
	cfg := config.App

	if err := config.InitPostgres(); err != nil {
		log.WithError(err).Fatal("postgres init failed")
	}
	if err := config.InitRedis(); err != nil {
		log.WithError(err).Fatal("redis init failed")
	}
	if err := models.AutoMigrate(config.PostgresDB); err != nil {
		log.WithError(err).Fatal("schema migration failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewGCSStore(ctx, cfg.GCSBucket)
	if err != nil {
		log.WithError(err).Fatal("gcs init failed")
	}
	defer store.Close()

	provider, err := buildVisionProvider(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("vision provider init failed")
	}
	log.WithField("provider", cfg.VisionProvider).Info("vision provider ready")

	q := queue.NewRedisQueue(config.RedisClient)
	kv := cache.NewRedisCache(config.RedisClient)

	userRepo := pgrepo.NewUserRepo(config.PostgresDB)
	photoRepo := pgrepo.NewPhotoRepo(config.PostgresDB)
	estimateRepo := pgrepo.NewEstimateRepo(config.PostgresDB)
	mealRepo := pgrepo.NewMealRepo(config.PostgresDB)
	analyticsRepo := pgrepo.NewInlineAnalyticsRepo(config.PostgresDB)

	userSvc := services.NewUserService(userRepo)
	photoSvc := services.NewPhotoService(photoRepo, store, store)
	estimateSvc := services.NewEstimateService(photoRepo, estimateRepo, q, store, provider, cfg.GCSBucket, log)
	mealSvc := services.NewMealService(mealRepo, estimateRepo, photoRepo, log)
	analyticsSvc := services.NewAnalyticsService(analyticsRepo, log)
	throttle := services.NewNotifyThrottle(kv)

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		log.WithError(err).Fatal("telegram bot init failed")
	}
	log.WithField("username", bot.Self.UserName).Info("telegram bot authorized")
	sender := telegram.NewClient(bot, log)

	estimatePool := &workers.EstimateWorkerPool{
		Queue:      q,
		Estimates:  estimateSvc,
		Meals:      mealSvc,
		Users:      userSvc,
		Photos:     photoSvc,
		Sender:     sender,
		Redis:      config.RedisClient,
		NumWorkers: cfg.EstimateWorkers,
		Logger:     log,
	}
	if err := estimatePool.Start(ctx); err != nil {
		log.WithError(err).Fatal("estimate pool start failed")
	}

	inlinePool := &workers.InlineWorkerPool{
		Queue:      q,
		Cache:      kv,
		Uploader:   store,
		Signer:     store,
		Vision:     provider,
		Sender:     sender,
		Throttle:   throttle,
		Analytics:  analyticsSvc,
		Bucket:     cfg.GCSBucket,
		NumWorkers: cfg.InlineWorkers,
		Logger:     log,
	}
	if err := inlinePool.Start(ctx); err != nil {
		log.WithError(err).Fatal("inline pool start failed")
	}

	purger := &workers.PurgeWorker{Store: store, Logger: log}
	if err := purger.Start(ctx); err != nil {
		log.WithError(err).Fatal("purge worker start failed")
	}

	log.Info("worker pools running")
	<-ctx.Done()
	log.Info("shutting down")
}

func buildVisionProvider(ctx context.Context, cfg *config.AppConfig) (vision.Provider, error) {
	if cfg.VisionProvider == "vertex" {
		return vision.NewVertexGemini(ctx, cfg.VertexProjectID, cfg.VertexLocation, cfg.VertexModel)
	}
	return vision.NewOpenAI(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel), nil
}
