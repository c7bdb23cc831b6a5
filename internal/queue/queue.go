package queue

import (
	"errors"
	"sync"

	"backend/internal/models"
)

var ErrNotFound = errors.New("comment not found in queue")

// ReviewQueue holds flagged comments awaiting a moderator decision. It is
// in-memory only and best-effort: pending items do not survive a restart.
// An item leaves the queue exactly once, either by dismissal or by a
// moderation action.
type ReviewQueue struct {
	mu    sync.Mutex
	items map[string]*models.FlaggedItem
	order []string
}

func NewReviewQueue() *ReviewQueue {
	return &ReviewQueue{
		items: make(map[string]*models.FlaggedItem),
	}
}

// Enqueue inserts or overwrites the record for commentID. Re-flagging an id
// keeps its original queue position.
func (q *ReviewQueue) Enqueue(commentID, text string, confidence float64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.items[commentID]; !exists {
		q.order = append(q.order, commentID)
	}
	q.items[commentID] = &models.FlaggedItem{
		CommentID:  commentID,
		Text:       text,
		Confidence: confidence,
	}
}

// List returns a snapshot of pending items in insertion order.
func (q *ReviewQueue) List() []models.FlaggedItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]models.FlaggedItem, 0, len(q.items))
	for _, id := range q.order {
		if item, ok := q.items[id]; ok {
			out = append(out, *item)
		}
	}
	return out
}

// Remove deletes and returns the record for commentID, or ErrNotFound.
func (q *ReviewQueue) Remove(commentID string) (*models.FlaggedItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.items[commentID]
	if !ok {
		return nil, ErrNotFound
	}
	delete(q.items, commentID)
	for i, id := range q.order {
		if id == commentID {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	return item, nil
}

// Len reports the number of pending items.
func (q *ReviewQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
