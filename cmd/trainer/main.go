package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"

	"backend/internal/dataset"
	"backend/internal/trainer"
)

// The trainer runs as a child process of the backend: it reads the merged
// corpus, trains the checkpoint and reports progress as JSON lines on stdout.
// SIGINT requests cooperative cancellation; exit code 130 signals it was
// honored.
func main() {
	trainPath := flag.String("train", "data/merged_train.csv", "training corpus (text,label CSV)")
	valPath := flag.String("val", "data/val.csv", "validation corpus (text,label CSV)")
	checkpointPath := flag.String("checkpoint", "data/best_model.json", "checkpoint output path")
	epochs := flag.Int("epochs", 3, "number of epochs")
	batchSize := flag.Int("batch-size", 8, "mini-batch size")
	learningRate := flag.Float64("lr", 0.5, "learning rate")
	featureDim := flag.Int("dim", 1<<16, "hashed feature dimension")
	workers := flag.Int("workers", 0, "gradient workers (0 = one per CPU)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	emit := trainer.NewEmitter(os.Stdout)

	train, err := dataset.ReadSamples(*trainPath)
	if err != nil {
		emit.Emit(trainer.Event{Type: trainer.EventError, Message: err.Error()})
		os.Exit(1)
	}
	val, err := dataset.ReadSamples(*valPath)
	if err != nil {
		emit.Emit(trainer.Event{Type: trainer.EventError, Message: err.Error()})
		os.Exit(1)
	}

	t := trainer.New(trainer.Config{
		Epochs:         *epochs,
		BatchSize:      *batchSize,
		LearningRate:   *learningRate,
		FeatureDim:     *featureDim,
		Workers:        *workers,
		CheckpointPath: *checkpointPath,
	}, os.Stdout)

	if err := t.Run(ctx, train, val); err != nil {
		if errors.Is(err, trainer.ErrCancelled) {
			os.Exit(130)
		}
		emit.Emit(trainer.Event{Type: trainer.EventError, Message: err.Error()})
		os.Exit(1)
	}
}
