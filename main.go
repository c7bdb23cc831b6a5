package main

import (
	"context"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"backend/internal/cache"
	"backend/internal/classifier"
	"backend/internal/config"
	"backend/internal/dataset"
	"backend/internal/notifier"
	"backend/internal/queue"
	"backend/internal/repository"
	"backend/internal/retrain"
	"backend/internal/server"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err) // Should not happen in development
	}
	defer func() {
		_ = logger.Sync() // Flushes buffer, if any
	}()
	log := logrus.New()

	if err := godotenv.Load(); err != nil {
		logger.Warn("No .env file loaded", zap.Error(err))
	}

	// Load configuration
	cfgPath := "configs/config.yml"
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}
	if cfg.Auth.JWTSecret == "" {
		logger.Fatal("JWT secret is not configured (auth.jwt_secret or JWT_SECRET)")
	}

	// Database connection
	db, err := repository.NewPostgresDB(cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	repository.MigrateDB(db, logger)

	// Serving classifier: loads the checkpoint once; retrained weights are
	// promoted through the explicit reload endpoint.
	clf := classifier.New(cfg.Model.CheckpointPath, logger)
	reviewQueue := queue.NewReviewQueue()

	// Optional Redis verdict cache
	var verdicts *cache.ClassificationCache
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			logger.Fatal("Failed to connect Redis", zap.Error(err))
		}
		verdicts = cache.New(rdb, time.Duration(cfg.Redis.TTLSeconds)*time.Second, logger)
		logger.Info("Redis verdict cache enabled", zap.String("addr", cfg.Redis.Addr))
	}

	// Optional Telegram notifications for newly flagged comments
	tgNotifier, err := notifier.NewTelegramNotifier(cfg, logger)
	if err != nil {
		logger.Warn("Failed to initialize Telegram notifier, continuing without it", zap.Error(err))
		tgNotifier = nil
	}

	// Retraining: dataset builder + single-slot job manager
	moderationRepo := repository.NewModerationRepository(db, logger)
	builder := dataset.NewBuilder(moderationRepo, logger)
	manager := retrain.NewManager(builder, retrain.Config{
		TrainerBin:     cfg.Training.TrainerBin,
		BaseDataset:    cfg.Training.BaseDataset,
		MergedDataset:  cfg.Training.MergedDataset,
		ValDataset:     cfg.Training.ValDataset,
		CheckpointPath: cfg.Model.CheckpointPath,
		Epochs:         cfg.Training.Epochs,
		BatchSize:      cfg.Training.BatchSize,
		LearningRate:   cfg.Training.LearningRate,
	}, logger)

	srv := server.NewServer(db, cfg, logger, log, clf, reviewQueue, moderationRepo, manager, verdicts, tgNotifier)
	srv.Run(cfg.Server.Port)
}
