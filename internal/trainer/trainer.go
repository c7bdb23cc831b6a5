package trainer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"runtime"
	"sync"

	"backend/internal/classifier"
	"backend/internal/dataset"
)

// ErrCancelled is returned when the training loop stops on a cancelled
// context. The current batch is always finished first.
var ErrCancelled = errors.New("training cancelled")

// Config holds the fixed training schedule.
type Config struct {
	Epochs         int
	BatchSize      int
	LearningRate   float64
	FeatureDim     int
	Workers        int // gradient workers; 0 means one per CPU
	CheckpointPath string
}

func (c *Config) applyDefaults() {
	if c.Epochs <= 0 {
		c.Epochs = 3
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 8
	}
	if c.LearningRate <= 0 {
		c.LearningRate = 0.5
	}
	if c.FeatureDim <= 0 {
		c.FeatureDim = 1 << 16
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
}

// Trainer runs mini-batch gradient descent on the logistic model, emitting
// structured events as it goes. Gradient accumulation fans out across the
// configured workers; a single worker gives identical event semantics.
type Trainer struct {
	cfg  Config
	emit *Emitter
}

func New(cfg Config, out io.Writer) *Trainer {
	cfg.applyDefaults()
	return &Trainer{cfg: cfg, emit: NewEmitter(out)}
}

// Run trains for the fixed schedule and promotes the checkpoint after every
// epoch whose validation F1 strictly exceeds the best seen in this run.
func (t *Trainer) Run(ctx context.Context, train, val []dataset.Sample) error {
	if len(train) == 0 {
		return errors.New("empty training set")
	}
	if t.cfg.BatchSize > len(train) {
		t.cfg.BatchSize = len(train)
	}

	trainFeats, trainLabels := featurize(train, t.cfg.FeatureDim)
	valFeats, valLabels := featurize(val, t.cfg.FeatureDim)

	numBatches := (len(train) + t.cfg.BatchSize - 1) / t.cfg.BatchSize
	totalSteps := t.cfg.Epochs * numBatches

	t.emit.Emit(Event{
		Type:       EventSummary,
		Epochs:     t.cfg.Epochs,
		BatchSize:  t.cfg.BatchSize,
		TotalSteps: totalSteps,
		Device:     fmt.Sprintf("cpu:%d", t.cfg.Workers),
	})
	t.emit.Emit(Event{Type: EventTrainingStarted})

	model := classifier.NewCheckpoint(t.cfg.FeatureDim)
	rng := rand.New(rand.NewSource(1))
	indices := make([]int, len(train))
	for i := range indices {
		indices[i] = i
	}

	step := 0
	lastProg := -1
	bestF1 := 0.0

	for epoch := 1; epoch <= t.cfg.Epochs; epoch++ {
		rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})

		runningLoss := 0.0
		for start := 0; start < len(indices); start += t.cfg.BatchSize {
			if err := ctx.Err(); err != nil {
				t.emit.Emit(Event{Type: EventCancelled})
				return ErrCancelled
			}

			end := start + t.cfg.BatchSize
			if end > len(indices) {
				end = len(indices)
			}
			runningLoss += t.trainBatch(model, trainFeats, trainLabels, indices[start:end])

			step++
			prog := step * 100 / totalSteps
			if prog > lastProg {
				t.emit.Emit(Event{Type: EventProgress, Epoch: epoch, Step: step, Progress: prog})
				lastProg = prog
			}
		}

		avgLoss := runningLoss / float64(numBatches)
		preds := predict(model, valFeats)
		t.emit.Emit(Event{Type: EventConfusionMatrix, Matrix: ConfusionMatrix(valLabels, preds)})

		f1 := BinaryF1(valLabels, preds)
		t.emit.Emit(Event{Type: EventEpochEnd, Epoch: epoch, AvgLoss: round4(avgLoss), F1: round4(f1)})

		if f1 > bestF1 {
			bestF1 = f1
			if err := model.Save(t.cfg.CheckpointPath); err != nil {
				return fmt.Errorf("failed to save checkpoint: %w", err)
			}
			t.emit.Emit(Event{Type: EventModelSaved, F1: round4(f1)})
		}
	}

	t.emit.Emit(Event{Type: EventComplete, BestF1: round4(bestF1)})
	return nil
}

// trainBatch computes the batch gradient across workers, applies one update
// and returns the mean logistic loss of the batch.
func (t *Trainer) trainBatch(model *classifier.Checkpoint, feats []map[int]float64, labels []int, batch []int) float64 {
	workers := t.cfg.Workers
	if workers > len(batch) {
		workers = len(batch)
	}

	type partial struct {
		grad     map[int]float64
		gradBias float64
		loss     float64
	}
	parts := make([]partial, workers)
	chunk := (len(batch) + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > len(batch) {
			hi = len(batch)
		}
		if lo >= hi {
			continue
		}
		wg.Add(1)
		go func(w, lo, hi int) {
			defer wg.Done()
			p := partial{grad: make(map[int]float64)}
			for _, idx := range batch[lo:hi] {
				x := feats[idx]
				y := float64(labels[idx])
				prob := model.PositiveProb(x)
				p.loss += logisticLoss(prob, y)
				diff := prob - y
				for i, v := range x {
					p.grad[i] += diff * v
				}
				p.gradBias += diff
			}
			parts[w] = p
		}(w, lo, hi)
	}
	wg.Wait()

	scale := t.cfg.LearningRate / float64(len(batch))
	loss := 0.0
	for _, p := range parts {
		for i, g := range p.grad {
			model.Weights[i] -= scale * g
		}
		model.Bias -= scale * p.gradBias
		loss += p.loss
	}
	return loss / float64(len(batch))
}

func featurize(samples []dataset.Sample, dim int) ([]map[int]float64, []int) {
	feats := make([]map[int]float64, len(samples))
	labels := make([]int, len(samples))
	for i, s := range samples {
		feats[i] = classifier.Features(s.Text, dim)
		labels[i] = s.Label
	}
	return feats, labels
}

func predict(model *classifier.Checkpoint, feats []map[int]float64) []int {
	preds := make([]int, len(feats))
	for i, x := range feats {
		if model.PositiveProb(x) > 0.5 {
			preds[i] = 1
		}
	}
	return preds
}

func logisticLoss(prob, y float64) float64 {
	const eps = 1e-12
	if y == 1 {
		return -math.Log(math.Max(prob, eps))
	}
	return -math.Log(math.Max(1-prob, eps))
}

func round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}
