package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"backend/internal/classifier"
)

type ModelHandler interface {
	Reload(c *gin.Context)
}

type modelHandler struct {
	clf    *classifier.Classifier
	logger *zap.Logger
}

func NewModelHandler(clf *classifier.Classifier, logger *zap.Logger) ModelHandler {
	return &modelHandler{clf: clf, logger: logger}
}

// Reload swaps the served model to the checkpoint currently on disk. The
// serving classifier never picks up a retrained checkpoint on its own; this
// endpoint is the deliberate promotion step.
// POST /api/model/reload
func (h *modelHandler) Reload(c *gin.Context) {
	if err := h.clf.Reload(); err != nil {
		h.logger.Error("Checkpoint reload failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reload checkpoint"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Checkpoint reloaded"})
}
