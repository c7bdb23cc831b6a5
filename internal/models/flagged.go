package models

// FlaggedItem is a comment the classifier flagged as cyberbullying, waiting
// for a moderator decision. Items live only in process memory; the review
// queue is deliberately volatile across restarts.
type FlaggedItem struct {
	CommentID  string  `json:"comment_id"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}
