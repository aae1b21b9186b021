package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"

	"github.com/gofrolist/calorie-track-ai-bot/config"
	"github.com/gofrolist/calorie-track-ai-bot/internal/api/handlers"
	"github.com/gofrolist/calorie-track-ai-bot/internal/api/middleware"
	"github.com/gofrolist/calorie-track-ai-bot/internal/api/routes"
	"github.com/gofrolist/calorie-track-ai-bot/internal/cache"
	"github.com/gofrolist/calorie-track-ai-bot/internal/logger"
	"github.com/gofrolist/calorie-track-ai-bot/internal/models"
	"github.com/gofrolist/calorie-track-ai-bot/internal/queue"
	pgrepo "github.com/gofrolist/calorie-track-ai-bot/internal/repositories/postgres"
	"github.com/gofrolist/calorie-track-ai-bot/internal/services"
	"github.com/gofrolist/calorie-track-ai-bot/internal/storage"
	"github.com/gofrolist/calorie-track-ai-bot/internal/telegram"
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

	q := queue.NewRedisQueue(config.RedisClient)
	kv := cache.NewRedisCache(config.RedisClient)

	userRepo := pgrepo.NewUserRepo(config.PostgresDB)
	photoRepo := pgrepo.NewPhotoRepo(config.PostgresDB)
	estimateRepo := pgrepo.NewEstimateRepo(config.PostgresDB)
	mealRepo := pgrepo.NewMealRepo(config.PostgresDB)
	goalRepo := pgrepo.NewGoalRepo(config.PostgresDB)
	analyticsRepo := pgrepo.NewInlineAnalyticsRepo(config.PostgresDB)

	userSvc := services.NewUserService(userRepo)
	photoSvc := services.NewPhotoService(photoRepo, store, store)
	// The API process only dispatches estimation jobs and reads stored
	// results; the vision provider lives in the worker.
	estimateSvc := services.NewEstimateService(photoRepo, estimateRepo, q, store, nil, cfg.GCSBucket, log)
	mealSvc := services.NewMealService(mealRepo, estimateRepo, photoRepo, log)
	goalSvc := services.NewGoalService(goalRepo)
	statsSvc := services.NewStatsService(mealRepo, goalRepo)
	analyticsSvc := services.NewAnalyticsService(analyticsRepo, log)

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		log.WithError(err).Fatal("telegram bot init failed")
	}
	log.WithField("username", bot.Self.UserName).Info("telegram bot authorized")

	sender := telegram.NewClient(bot, log)
	hasher := services.NewSubjectHasher(cfg.IDHashSecret)

	inline := telegram.NewInlineHandler(q, kv, sender, hasher, bot.Self.UserName, log)
	updates := telegram.NewUpdateHandler(ctx, userSvc, photoSvc, estimateSvc, inline, sender, bot.Self.UserName, log)

	r := gin.New()
	r.Use(middleware.RequestLogger(log), gin.Recovery())

	routes.RegisterRoutes(r, routes.Deps{
		Webhook:   handlers.NewWebhookHandler(updates, cfg.TelegramWebhookSecret, log),
		Photo:     handlers.NewPhotoHandler(photoSvc, estimateSvc),
		Meal:      handlers.NewMealHandler(mealSvc),
		Goal:      handlers.NewGoalHandler(goalSvc),
		Stats:     handlers.NewStatsHandler(statsSvc),
		Analytics: handlers.NewAnalyticsHandler(analyticsSvc),
		Health:    handlers.NewHealthHandler(config.PostgresDB, config.RedisClient),
		WS:        handlers.NewWSHandler(photoSvc, config.RedisClient),
		Users:     userSvc,
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		log.WithField("port", cfg.Port).Info("api server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("api server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown failed")
	}
}
