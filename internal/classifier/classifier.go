package classifier

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

// Labels returned by Classify. The positive class uses a fixed 0.5 threshold.
const (
	LabelCyberbully    = "cyberbully"
	LabelNonCyberbully = "non-cyberbully"
)

var ErrNoModel = errors.New("no model loaded")

// Classifier serves predictions from the checkpoint on disk. A retrained
// checkpoint is picked up only through an explicit Reload call; there is no
// automatic hot-swap.
type Classifier struct {
	mu             sync.RWMutex
	ckpt           *Checkpoint
	checkpointPath string
	logger         *zap.Logger
}

// New loads the checkpoint at checkpointPath. A missing checkpoint is not
// fatal: the service starts and Classify fails with ErrNoModel until a
// checkpoint is trained and loaded.
func New(checkpointPath string, logger *zap.Logger) *Classifier {
	c := &Classifier{
		checkpointPath: checkpointPath,
		logger:         logger,
	}
	ckpt, err := LoadCheckpoint(checkpointPath)
	if err != nil {
		logger.Warn("No usable checkpoint at startup", zap.String("path", checkpointPath), zap.Error(err))
		return c
	}
	c.ckpt = ckpt
	logger.Info("Model checkpoint loaded", zap.String("path", checkpointPath), zap.Int("feature_dim", ckpt.FeatureDim))
	return c
}

// NewFromCheckpoint wraps an in-memory checkpoint, mainly for tests.
func NewFromCheckpoint(ckpt *Checkpoint, logger *zap.Logger) *Classifier {
	return &Classifier{ckpt: ckpt, logger: logger}
}

// Classify labels the text as cyberbully/non-cyberbully with the maximum of
// the two class probabilities as confidence. It has no side effects; queue
// insertion is the caller's responsibility.
func (c *Classifier) Classify(text string) (string, float64, error) {
	c.mu.RLock()
	ckpt := c.ckpt
	c.mu.RUnlock()

	if ckpt == nil {
		return "", 0, ErrNoModel
	}

	p := ckpt.PositiveProb(Features(text, ckpt.FeatureDim))
	if p > 0.5 {
		return LabelCyberbully, p, nil
	}
	return LabelNonCyberbully, 1 - p, nil
}

// Reload re-reads the checkpoint from disk, swapping the served model under a
// write lock. In-flight Classify calls finish against the old model.
func (c *Classifier) Reload() error {
	ckpt, err := LoadCheckpoint(c.checkpointPath)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.ckpt = ckpt
	c.mu.Unlock()

	c.logger.Info("Model checkpoint reloaded", zap.String("path", c.checkpointPath))
	return nil
}
