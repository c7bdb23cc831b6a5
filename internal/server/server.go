package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"backend/internal/cache"
	"backend/internal/classifier"
	"backend/internal/config"
	"backend/internal/handler"
	"backend/internal/middleware"
	"backend/internal/notifier"
	"backend/internal/queue"
	"backend/internal/repository"
	"backend/internal/retrain"
	"backend/internal/service"
)

type Server struct {
	router *gin.Engine
	db     *sqlx.DB
	cfg    *config.Config
	logger *zap.Logger
	log    *logrus.Logger

	clf            *classifier.Classifier
	reviewQueue    *queue.ReviewQueue
	moderationRepo repository.ModerationRepository
	manager        *retrain.Manager
	verdicts       *cache.ClassificationCache
	notifier       *notifier.TelegramNotifier
}

func NewServer(
	db *sqlx.DB,
	cfg *config.Config,
	logger *zap.Logger,
	log *logrus.Logger,
	clf *classifier.Classifier,
	reviewQueue *queue.ReviewQueue,
	moderationRepo repository.ModerationRepository,
	manager *retrain.Manager,
	verdicts *cache.ClassificationCache,
	tgNotifier *notifier.TelegramNotifier,
) *Server {
	s := &Server{
		router:         gin.Default(),
		db:             db,
		cfg:            cfg,
		logger:         logger,
		log:            log,
		clf:            clf,
		reviewQueue:    reviewQueue,
		moderationRepo: moderationRepo,
		manager:        manager,
		verdicts:       verdicts,
		notifier:       tgNotifier,
	}

	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	authRepo := repository.NewAuthRepository(s.db, s.log)
	authService := service.NewAuthService(authRepo, s.cfg.Auth.JWTSecret, s.logger)
	authHandler := handler.NewAuthHandler(authService, s.log)

	detectHandler := handler.NewDetectHandler(s.clf, s.reviewQueue, s.verdicts, s.notifier, s.logger)
	moderationHandler := handler.NewModerationHandler(s.reviewQueue, s.moderationRepo, s.logger)
	retrainHandler := handler.NewRetrainHandler(s.manager, s.logger)
	modelHandler := handler.NewModelHandler(s.clf, s.logger)

	// Ping route for health check
	s.router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	// Authentication routes
	authGroup := s.router.Group("/api/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)

	// All moderation and retraining routes require a valid token.
	authRequired := s.router.Group("/api")
	authRequired.Use(middleware.AuthMiddleware(authService.JWTSecret(), s.logger))
	{
		authRequired.POST("/detect", detectHandler.Detect)

		authRequired.GET("/queue", moderationHandler.GetQueue)
		authRequired.DELETE("/queue/:comment_id", moderationHandler.DeleteFromQueue)
		authRequired.POST("/action", moderationHandler.Action)
		authRequired.GET("/history", moderationHandler.GetHistory)

		authRequired.POST("/retrain", retrainHandler.Start)
		authRequired.GET("/retrain/stream", retrainHandler.Stream)
		authRequired.GET("/retrain/ws", retrainHandler.StreamWS)
		authRequired.POST("/retrain/cancel", retrainHandler.Cancel)

		authRequired.POST("/model/reload", modelHandler.Reload)
	}
}

func (s *Server) Run(addr string) {
	s.logger.Info("Server starting", zap.String("addr", addr))
	if err := s.router.Run(addr); err != nil {
		s.logger.Fatal("Server failed to start", zap.Error(err))
	}
}
