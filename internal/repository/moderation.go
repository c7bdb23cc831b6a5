package repository

import (
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"backend/internal/models"
)

// ModerationRepository persists moderator decisions. The table is append-only:
// decisions are never updated or deleted by this service.
type ModerationRepository interface {
	SaveAction(commentID, text, action string) (*models.ModeratorAction, error)
	History() ([]models.ModeratorAction, error)
	LatestFeedback() ([]models.FeedbackSample, error)
}

type moderationRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewModerationRepository(db *sqlx.DB, logger *zap.Logger) ModerationRepository {
	return &moderationRepository{db: db, logger: logger}
}

// SaveAction inserts one decision with a server-assigned UTC timestamp and
// returns the persisted row.
func (r *moderationRepository) SaveAction(commentID, text, action string) (*models.ModeratorAction, error) {
	act := &models.ModeratorAction{
		CommentID: commentID,
		Text:      text,
		Action:    action,
		Timestamp: time.Now().UTC(),
	}
	query := `INSERT INTO moderator_actions (comment_id, text, action, timestamp)
	          VALUES ($1, $2, $3, $4) RETURNING id`
	err := r.db.QueryRowx(query, act.CommentID, act.Text, act.Action, act.Timestamp).Scan(&act.ID)
	if err != nil {
		return nil, err
	}
	return act, nil
}

// History returns every decision, most recent first.
func (r *moderationRepository) History() ([]models.ModeratorAction, error) {
	var actions []models.ModeratorAction
	query := `SELECT id, comment_id, text, action, timestamp
	          FROM moderator_actions
	          ORDER BY timestamp DESC`
	if err := r.db.Select(&actions, query); err != nil {
		return nil, err
	}
	return actions, nil
}

// LatestFeedback returns the most recent approved/rejected decision per
// comment_id, for the dataset builder.
func (r *moderationRepository) LatestFeedback() ([]models.FeedbackSample, error) {
	var samples []models.FeedbackSample
	query := `SELECT DISTINCT ON (comment_id) comment_id, text, action, timestamp
	          FROM moderator_actions
	          WHERE action IN ('approved', 'rejected')
	          ORDER BY comment_id, timestamp DESC`
	if err := r.db.Select(&samples, query); err != nil {
		return nil, err
	}
	return samples, nil
}
