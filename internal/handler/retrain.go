package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"backend/internal/retrain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type RetrainHandler interface {
	Start(c *gin.Context)
	Stream(c *gin.Context)
	StreamWS(c *gin.Context)
	Cancel(c *gin.Context)
}

type retrainHandler struct {
	manager *retrain.Manager
	logger  *zap.Logger
}

func NewRetrainHandler(manager *retrain.Manager, logger *zap.Logger) RetrainHandler {
	return &retrainHandler{manager: manager, logger: logger}
}

// Start triggers an asynchronous retraining job. Starting while a job is in
// flight is an idempotent acknowledgment, not an error.
// POST /api/retrain
func (h *retrainHandler) Start(c *gin.Context) {
	job, err := h.manager.Start()
	if err != nil {
		if errors.Is(err, retrain.ErrAlreadyRunning) {
			c.JSON(http.StatusOK, gin.H{"message": "Training already in progress"})
			return
		}
		h.logger.Error("Failed to start retraining", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start retraining"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "Retraining started", "job_id": job.ID})
}

// Stream sends the job's events as server-sent events, replaying from the
// start and terminating after the terminal event.
// GET /api/retrain/stream
func (h *retrainHandler) Stream(c *gin.Context) {
	job := h.manager.Current()
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No training job"})
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Streaming unsupported"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	for ev := range job.Subscribe(c.Request.Context()) {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", data)
		flusher.Flush()
		if ev.Terminal() {
			break
		}
	}
}

// StreamWS mirrors the event stream over a websocket, one JSON message per
// event, derived from the same subscription primitive as the SSE stream.
// GET /api/retrain/ws
func (h *retrainHandler) StreamWS(c *gin.Context) {
	job := h.manager.Current()
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No training job"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	for ev := range job.Subscribe(c.Request.Context()) {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
		if ev.Terminal() {
			return
		}
	}
}

// Cancel requests cooperative cancellation of the running job. With nothing
// running it acknowledges the no-op.
// POST /api/retrain/cancel
func (h *retrainHandler) Cancel(c *gin.Context) {
	if err := h.manager.Cancel(); err != nil {
		if errors.Is(err, retrain.ErrNoJob) {
			c.JSON(http.StatusOK, gin.H{"message": "No training in progress"})
			return
		}
		h.logger.Error("Failed to cancel retraining", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel retraining"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cancel requested"})
}
