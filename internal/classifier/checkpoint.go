package classifier

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// Checkpoint is the serialized model: a binary logistic regression over
// hashed bag-of-words features. There is a single mutable checkpoint slot on
// disk; the trainer overwrites it only on a strict validation improvement.
type Checkpoint struct {
	FeatureDim int       `json:"feature_dim"`
	Weights    []float64 `json:"weights"`
	Bias       float64   `json:"bias"`
}

// NewCheckpoint returns a zero-initialized model of the given dimension.
func NewCheckpoint(dim int) *Checkpoint {
	return &Checkpoint{
		FeatureDim: dim,
		Weights:    make([]float64, dim),
	}
}

// PositiveProb returns the positive-class probability for a sparse feature
// vector, via the logistic function.
func (c *Checkpoint) PositiveProb(features map[int]float64) float64 {
	z := c.Bias
	for i, v := range features {
		z += c.Weights[i] * v
	}
	return 1.0 / (1.0 + math.Exp(-z))
}

// LoadCheckpoint reads a checkpoint file from disk.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var ckpt Checkpoint
	if err := json.Unmarshal(data, &ckpt); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if ckpt.FeatureDim <= 0 || len(ckpt.Weights) != ckpt.FeatureDim {
		return nil, fmt.Errorf("checkpoint is inconsistent: dim=%d weights=%d", ckpt.FeatureDim, len(ckpt.Weights))
	}
	return &ckpt, nil
}

// Save writes the checkpoint atomically: a temp file in the same directory is
// renamed over the target, so readers never observe a partial write.
func (c *Checkpoint) Save(path string) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("failed to create temp checkpoint: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close checkpoint: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
