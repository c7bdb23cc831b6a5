package handler_test

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"backend/internal/classifier"
	"backend/internal/handler"
	"backend/internal/queue"
)

const detectTestDim = 1 << 12

func bullyClassifier(texts ...string) *classifier.Classifier {
	ckpt := classifier.NewCheckpoint(detectTestDim)
	for _, text := range texts {
		for i := range classifier.Features(text, detectTestDim) {
			ckpt.Weights[i] = 10
		}
	}
	return classifier.NewFromCheckpoint(ckpt, zap.NewNop())
}

func detectRouter(clf *classifier.Classifier, q *queue.ReviewQueue) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := handler.NewDetectHandler(clf, q, nil, nil, zap.NewNop())
	r := gin.New()
	r.POST("/api/detect", h.Detect)
	return r
}

func TestDetect_FlagsAndEnqueues(t *testing.T) {
	q := queue.NewReviewQueue()
	r := detectRouter(bullyClassifier("you are awful"), q)

	w := postJSON(r, "/api/detect", gin.H{"comment_id": "c1", "text": "you are awful"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp handler.DetectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "c1", resp.CommentID)
	assert.Equal(t, classifier.LabelCyberbully, resp.Label)
	assert.Greater(t, resp.Confidence, 0.5)

	items := q.List()
	require.Len(t, items, 1)
	assert.Equal(t, "c1", items[0].CommentID)
	assert.Equal(t, resp.Confidence, items[0].Confidence)
}

func TestDetect_BenignNotEnqueued(t *testing.T) {
	q := queue.NewReviewQueue()
	r := detectRouter(bullyClassifier("you are awful"), q)

	w := postJSON(r, "/api/detect", gin.H{"comment_id": "c2", "text": "have a great day"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp handler.DetectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, classifier.LabelNonCyberbully, resp.Label)
	assert.Equal(t, 0, q.Len())
}

func TestDetect_InvalidPayload(t *testing.T) {
	r := detectRouter(bullyClassifier("x"), queue.NewReviewQueue())

	w := postJSON(r, "/api/detect", gin.H{"comment_id": "c1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(r, "/api/detect", gin.H{"text": "hello"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDetect_NoModel(t *testing.T) {
	clf := classifier.New(filepath.Join(t.TempDir(), "missing.json"), zap.NewNop())
	r := detectRouter(clf, queue.NewReviewQueue())

	w := postJSON(r, "/api/detect", gin.H{"comment_id": "c1", "text": "anything"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Internal detection error")
}
