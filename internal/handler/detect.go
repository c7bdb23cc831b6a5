package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"backend/internal/cache"
	"backend/internal/classifier"
	"backend/internal/notifier"
	"backend/internal/queue"
)

type DetectHandler interface {
	Detect(c *gin.Context)
}

type detectHandler struct {
	clf         *classifier.Classifier
	reviewQueue *queue.ReviewQueue
	verdicts    *cache.ClassificationCache
	notifier    *notifier.TelegramNotifier
	logger      *zap.Logger
}

func NewDetectHandler(clf *classifier.Classifier, reviewQueue *queue.ReviewQueue, verdicts *cache.ClassificationCache, notifier *notifier.TelegramNotifier, logger *zap.Logger) DetectHandler {
	return &detectHandler{
		clf:         clf,
		reviewQueue: reviewQueue,
		verdicts:    verdicts,
		notifier:    notifier,
		logger:      logger,
	}
}

type DetectRequest struct {
	CommentID string `json:"comment_id" binding:"required"`
	Text      string `json:"text" binding:"required"`
}

type DetectResponse struct {
	CommentID  string  `json:"comment_id"`
	Text       string  `json:"text"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Detect classifies one comment and, if flagged, enqueues it for review.
// POST /api/detect
func (h *detectHandler) Detect(c *gin.Context) {
	var req DetectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	label, confidence, err := h.classify(c, req.Text)
	if err != nil {
		h.logger.Error("Detection failed", zap.String("comment_id", req.CommentID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal detection error"})
		return
	}

	if label == classifier.LabelCyberbully {
		h.reviewQueue.Enqueue(req.CommentID, req.Text, confidence)
		go h.notifier.NotifyFlagged(req.CommentID, req.Text, confidence)
	}

	c.JSON(http.StatusOK, DetectResponse{
		CommentID:  req.CommentID,
		Text:       req.Text,
		Label:      label,
		Confidence: confidence,
	})
}

func (h *detectHandler) classify(c *gin.Context, text string) (string, float64, error) {
	if v, ok := h.verdicts.Get(c.Request.Context(), text); ok {
		return v.Label, v.Confidence, nil
	}

	label, confidence, err := h.clf.Classify(text)
	if err != nil {
		return "", 0, err
	}

	h.verdicts.Set(c.Request.Context(), text, cache.Verdict{Label: label, Confidence: confidence})
	return label, confidence, nil
}
