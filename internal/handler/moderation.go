package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"backend/internal/classifier"
	"backend/internal/models"
	"backend/internal/queue"
	"backend/internal/repository"
)

type ModerationHandler interface {
	GetQueue(c *gin.Context)
	DeleteFromQueue(c *gin.Context)
	Action(c *gin.Context)
	GetHistory(c *gin.Context)
}

type moderationHandler struct {
	reviewQueue    *queue.ReviewQueue
	moderationRepo repository.ModerationRepository
	logger         *zap.Logger
}

func NewModerationHandler(reviewQueue *queue.ReviewQueue, moderationRepo repository.ModerationRepository, logger *zap.Logger) ModerationHandler {
	return &moderationHandler{
		reviewQueue:    reviewQueue,
		moderationRepo: moderationRepo,
		logger:         logger,
	}
}

// GetQueue returns pending flagged comments without clearing them, so the UI
// can re-fetch.
// GET /api/queue
func (h *moderationHandler) GetQueue(c *gin.Context) {
	items := h.reviewQueue.List()
	out := make([]DetectResponse, 0, len(items))
	for _, item := range items {
		out = append(out, DetectResponse{
			CommentID:  item.CommentID,
			Text:       item.Text,
			Label:      classifier.LabelCyberbully,
			Confidence: item.Confidence,
		})
	}
	c.JSON(http.StatusOK, out)
}

// DeleteFromQueue dismisses a flagged comment without recording a decision.
// DELETE /api/queue/:comment_id
func (h *moderationHandler) DeleteFromQueue(c *gin.Context) {
	commentID := c.Param("comment_id")
	if _, err := h.reviewQueue.Remove(commentID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Comment not found in queue"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("%s removed from queue.", commentID)})
}

type ActionRequest struct {
	CommentID string `json:"comment_id" binding:"required"`
	Action    string `json:"action" binding:"required,oneof=approved rejected"`
}

// Action approves or rejects a flagged comment permanently. The queue pop
// happens first; a pop with a failed insert is logged as an inconsistency
// rather than risking a duplicate decision.
// POST /api/action
func (h *moderationHandler) Action(c *gin.Context) {
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := h.reviewQueue.Remove(req.CommentID)
	if err != nil {
		if errors.Is(err, queue.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Comment not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove comment"})
		return
	}

	action, err := h.moderationRepo.SaveAction(item.CommentID, item.Text, req.Action)
	if err != nil {
		h.logger.Error("Decision not persisted for popped queue item",
			zap.String("comment_id", item.CommentID),
			zap.String("action", req.Action),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record action"})
		return
	}

	h.logger.Info("Moderation action recorded",
		zap.String("comment_id", action.CommentID),
		zap.String("action", action.Action),
	)
	c.JSON(http.StatusOK, gin.H{"message": "Action recorded"})
}

type HistoryEntry struct {
	CommentID string `json:"comment_id"`
	Text      string `json:"text"`
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
}

// GetHistory returns every moderation decision, most recent first.
// GET /api/history
func (h *moderationHandler) GetHistory(c *gin.Context) {
	actions, err := h.moderationRepo.History()
	if err != nil {
		h.logger.Error("Failed to load moderation history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch history"})
		return
	}

	out := make([]HistoryEntry, 0, len(actions))
	for _, a := range actions {
		out = append(out, historyEntry(a))
	}
	c.JSON(http.StatusOK, out)
}

func historyEntry(a models.ModeratorAction) HistoryEntry {
	return HistoryEntry{
		CommentID: a.CommentID,
		Text:      a.Text,
		Action:    a.Action,
		Timestamp: a.Timestamp.UTC().Format(time.RFC3339),
	}
}
