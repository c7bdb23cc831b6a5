package models

import "time"

// Moderation decision values persisted in the 'moderator_actions' table.
const (
	ActionApproved = "approved"
	ActionRejected = "rejected"
)

// ModeratorAction records one approve/reject decision taken by a moderator
// on a flagged comment. Rows are append-only and never updated.
type ModeratorAction struct {
	ID        int64     `db:"id" json:"id"`
	CommentID string    `db:"comment_id" json:"comment_id"`
	Text      string    `db:"text" json:"text"`
	Action    string    `db:"action" json:"action"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
}

// FeedbackSample is a moderation decision feeding the dataset builder, which
// keeps only the latest decision per comment and maps it to a training label
// (approved=1, rejected=0).
type FeedbackSample struct {
	CommentID string    `db:"comment_id"`
	Text      string    `db:"text"`
	Action    string    `db:"action"`
	Timestamp time.Time `db:"timestamp"`
}
