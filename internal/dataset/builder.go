package dataset

import (
	"errors"
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"backend/internal/models"
)

// ErrNoFeedback means no moderation decisions exist yet; the caller decides
// whether a retrain proceeds on the base corpus alone.
var ErrNoFeedback = errors.New("no moderator feedback available")

// shuffleSeed keeps the merged corpus ordering reproducible across builds.
const shuffleSeed = 42

// FeedbackSource supplies the latest moderation decision per comment.
type FeedbackSource interface {
	LatestFeedback() ([]models.FeedbackSample, error)
}

// Builder merges moderator feedback with the base corpus into a training set.
type Builder struct {
	feedback FeedbackSource
	logger   *zap.Logger
}

func NewBuilder(feedback FeedbackSource, logger *zap.Logger) *Builder {
	return &Builder{feedback: feedback, logger: logger}
}

// Build joins the latest decision per comment with the base corpus, removes
// exact-text duplicates keeping the first occurrence (base rows first), then
// shuffles deterministically and writes outputPath. With zero feedback rows
// nothing is written and ErrNoFeedback is returned.
func (b *Builder) Build(basePath, outputPath string) (int, error) {
	feedback, err := b.feedback.LatestFeedback()
	if err != nil {
		return 0, fmt.Errorf("failed to load moderator feedback: %w", err)
	}
	if len(feedback) == 0 {
		return 0, ErrNoFeedback
	}
	feedback = latestPerComment(feedback)

	base, err := ReadSamples(basePath)
	if err != nil {
		return 0, err
	}

	merged := make([]Sample, 0, len(base)+len(feedback))
	seen := make(map[string]bool, len(base)+len(feedback))
	appendUnique := func(s Sample) {
		if seen[s.Text] {
			return
		}
		seen[s.Text] = true
		merged = append(merged, s)
	}

	for _, s := range base {
		appendUnique(s)
	}
	for _, f := range feedback {
		label := 0
		if f.Action == models.ActionApproved {
			label = 1
		}
		appendUnique(Sample{Text: f.Text, Label: label})
	}

	rng := rand.New(rand.NewSource(shuffleSeed))
	rng.Shuffle(len(merged), func(i, j int) {
		merged[i], merged[j] = merged[j], merged[i]
	})

	if err := WriteSamples(outputPath, merged); err != nil {
		return 0, err
	}

	b.logger.Info("Training dataset built",
		zap.Int("base_samples", len(base)),
		zap.Int("feedback_samples", len(feedback)),
		zap.Int("merged_samples", len(merged)),
		zap.String("output", outputPath),
	)
	return len(merged), nil
}

// latestPerComment collapses feedback to one decision per comment, keeping
// the newest by timestamp regardless of row order. First-seen order of
// comment ids is preserved so the pre-shuffle sequence stays deterministic.
func latestPerComment(feedback []models.FeedbackSample) []models.FeedbackSample {
	latest := make(map[string]models.FeedbackSample, len(feedback))
	order := make([]string, 0, len(feedback))
	for _, f := range feedback {
		prev, ok := latest[f.CommentID]
		if !ok {
			order = append(order, f.CommentID)
			latest[f.CommentID] = f
			continue
		}
		if !f.Timestamp.Before(prev.Timestamp) {
			latest[f.CommentID] = f
		}
	}

	out := make([]models.FeedbackSample, 0, len(order))
	for _, id := range order {
		out = append(out, latest[id])
	}
	return out
}
