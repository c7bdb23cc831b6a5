package trainer_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backend/internal/classifier"
	"backend/internal/dataset"
	"backend/internal/trainer"
)

const (
	bullyText  = "you are awful and horrible"
	benignText = "what a lovely nice day"
)

func trainingSet(pairs int) []dataset.Sample {
	samples := make([]dataset.Sample, 0, pairs*2)
	for i := 0; i < pairs; i++ {
		samples = append(samples,
			dataset.Sample{Text: bullyText, Label: 1},
			dataset.Sample{Text: benignText, Label: 0},
		)
	}
	return samples
}

func decodeEvents(t *testing.T, r io.Reader) []trainer.Event {
	t.Helper()
	dec := json.NewDecoder(r)
	var events []trainer.Event
	for {
		var ev trainer.Event
		if err := dec.Decode(&ev); err == io.EOF {
			break
		} else if err != nil {
			t.Fatalf("malformed event stream: %v", err)
		}
		events = append(events, ev)
	}
	return events
}

func TestConfusionMatrix(t *testing.T) {
	labels := []int{0, 0, 0, 1, 1, 1, 1}
	preds := []int{0, 1, 0, 1, 1, 0, 1}
	assert.Equal(t, [][]int{{2, 1}, {1, 3}}, trainer.ConfusionMatrix(labels, preds))
}

func TestBinaryF1(t *testing.T) {
	assert.Equal(t, 1.0, trainer.BinaryF1([]int{1, 0, 1}, []int{1, 0, 1}))
	assert.Equal(t, 0.0, trainer.BinaryF1([]int{1, 1}, []int{0, 0}), "no positive predictions")
	assert.Equal(t, 0.0, trainer.BinaryF1([]int{0, 0}, []int{1, 1}), "no true positives")
	// tp=1, fp=1, fn=1: precision and recall are both 0.5.
	assert.InDelta(t, 0.5, trainer.BinaryF1([]int{1, 1, 0}, []int{1, 0, 1}), 1e-9)
	// tp=1, fp=1, fn=0: precision 0.5, recall 1.
	assert.InDelta(t, 2.0/3.0, trainer.BinaryF1([]int{1, 0}, []int{1, 1}), 1e-9)
}

func TestRun_EventStream(t *testing.T) {
	ckptPath := filepath.Join(t.TempDir(), "model.json")
	var out bytes.Buffer
	tr := trainer.New(trainer.Config{
		Epochs:         3,
		BatchSize:      8,
		FeatureDim:     1 << 12,
		CheckpointPath: ckptPath,
	}, &out)

	train := trainingSet(8)
	val := []dataset.Sample{
		{Text: bullyText, Label: 1},
		{Text: benignText, Label: 0},
	}
	require.NoError(t, tr.Run(context.Background(), train, val))

	events := decodeEvents(t, &out)
	require.NotEmpty(t, events)

	// Fixed preamble, then exactly one terminal event, as the last one.
	assert.Equal(t, trainer.EventSummary, events[0].Type)
	assert.Equal(t, 3, events[0].Epochs)
	assert.Equal(t, 8, events[0].BatchSize)
	assert.Equal(t, 6, events[0].TotalSteps)
	assert.Equal(t, trainer.EventTrainingStarted, events[1].Type)

	var terminals int
	for _, ev := range events {
		if ev.Terminal() {
			terminals++
		}
	}
	assert.Equal(t, 1, terminals)
	assert.Equal(t, trainer.EventComplete, events[len(events)-1].Type)

	// Progress is strictly increasing and ends at 100.
	lastProg := -1
	var progressEvents int
	for _, ev := range events {
		if ev.Type != trainer.EventProgress {
			continue
		}
		progressEvents++
		assert.Greater(t, ev.Progress, lastProg)
		assert.LessOrEqual(t, ev.Progress, 100)
		lastProg = ev.Progress
	}
	assert.Equal(t, 6, progressEvents, "every step lands on a new percentage here")
	assert.Equal(t, 100, lastProg)

	// Checkpoints are promoted only on strict F1 improvement.
	bestF1 := 0.0
	var epochs, matrices int
	for _, ev := range events {
		switch ev.Type {
		case trainer.EventEpochEnd:
			epochs++
		case trainer.EventConfusionMatrix:
			matrices++
			require.Len(t, ev.Matrix, 2)
		case trainer.EventModelSaved:
			assert.Greater(t, ev.F1, bestF1)
			bestF1 = ev.F1
		}
	}
	assert.Equal(t, 3, epochs)
	assert.Equal(t, 3, matrices)
	assert.Equal(t, 1.0, bestF1, "the separable set must converge in the first epoch")
	assert.Equal(t, bestF1, events[len(events)-1].BestF1)

	// The saved checkpoint serves the same verdicts the run validated.
	ckpt, err := classifier.LoadCheckpoint(ckptPath)
	require.NoError(t, err)
	assert.Greater(t, ckpt.PositiveProb(classifier.Features(bullyText, ckpt.FeatureDim)), 0.5)
	assert.Less(t, ckpt.PositiveProb(classifier.Features(benignText, ckpt.FeatureDim)), 0.5)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	tr := trainer.New(trainer.Config{
		FeatureDim:     1 << 12,
		CheckpointPath: filepath.Join(t.TempDir(), "model.json"),
	}, &out)

	err := tr.Run(ctx, trainingSet(4), trainingSet(1))
	assert.ErrorIs(t, err, trainer.ErrCancelled)

	events := decodeEvents(t, &out)
	require.NotEmpty(t, events)
	assert.Equal(t, trainer.EventCancelled, events[len(events)-1].Type)

	var terminals int
	for _, ev := range events {
		if ev.Terminal() {
			terminals++
		}
	}
	assert.Equal(t, 1, terminals)
}

func TestRun_EmptyTrainingSet(t *testing.T) {
	var out bytes.Buffer
	tr := trainer.New(trainer.Config{CheckpointPath: filepath.Join(t.TempDir(), "model.json")}, &out)
	err := tr.Run(context.Background(), nil, nil)
	assert.Error(t, err)
	assert.Empty(t, out.Bytes(), "no events before validation of the inputs")
}
