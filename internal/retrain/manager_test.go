package retrain

import (
	"context"
	"errors"
	"os/exec"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"backend/internal/dataset"
	"backend/internal/trainer"
)

type fakeBuilder struct {
	rows int
	err  error
}

func (f *fakeBuilder) Build(basePath, outputPath string) (int, error) {
	return f.rows, f.err
}

func testManager(t *testing.T, builder DatasetBuilder, script string) (*Manager, *atomic.Value) {
	t.Helper()
	var trainPath atomic.Value
	m := NewManager(builder, Config{
		BaseDataset:   "base.csv",
		MergedDataset: "merged.csv",
	}, zap.NewNop())
	m.newCommand = func(path string) *exec.Cmd {
		trainPath.Store(path)
		return exec.Command("/bin/sh", "-c", script)
	}
	return m, &trainPath
}

// drain consumes a subscription to completion and returns the full sequence.
func drain(t *testing.T, job *Job) []trainer.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var events []trainer.Event
	for ev := range job.Subscribe(ctx) {
		events = append(events, ev)
	}
	require.NoError(t, ctx.Err(), "subscription did not terminate")
	return events
}

func terminalCount(events []trainer.Event) int {
	n := 0
	for _, ev := range events {
		if ev.Terminal() {
			n++
		}
	}
	return n
}

func TestManager_StreamWithRawPassthrough(t *testing.T) {
	script := `echo '{"type":"summary","epochs":3,"batch_size":8,"total_steps":6}'
echo '{"type":"training_started"}'
echo 'stray diagnostic line' >&2
echo '{"type":"progress","epoch":1,"step":1,"progress":16}'
echo '{"type":"complete","best_f1":0.9}'`
	m, trainPath := testManager(t, &fakeBuilder{rows: 4}, script)

	job, err := m.Start()
	require.NoError(t, err)

	events := drain(t, job)
	require.Len(t, events, 5)
	assert.Equal(t, trainer.EventSummary, events[0].Type)
	assert.Equal(t, trainer.EventTrainingStarted, events[1].Type)
	assert.Equal(t, trainer.EventRaw, events[2].Type, "stderr noise wraps as a raw event")
	assert.Equal(t, "stray diagnostic line", events[2].Line)
	assert.Equal(t, trainer.EventProgress, events[3].Type)
	assert.Equal(t, trainer.EventComplete, events[4].Type)
	assert.Equal(t, 1, terminalCount(events))

	assert.Equal(t, StatusCompleted, job.Status())
	assert.Equal(t, 0, job.ExitCode())
	assert.Equal(t, "merged.csv", trainPath.Load())
}

func TestManager_LateSubscriberReplaysHistory(t *testing.T) {
	script := `echo '{"type":"training_started"}'
echo '{"type":"complete"}'`
	m, _ := testManager(t, &fakeBuilder{rows: 1}, script)

	job, err := m.Start()
	require.NoError(t, err)

	live := drain(t, job)
	late := drain(t, job)
	assert.Equal(t, live, late, "every subscriber observes the identical sequence")
}

func TestManager_CleanExitSynthesizesComplete(t *testing.T) {
	m, _ := testManager(t, &fakeBuilder{rows: 1}, `echo '{"type":"training_started"}'`)

	job, err := m.Start()
	require.NoError(t, err)

	events := drain(t, job)
	require.Len(t, events, 2)
	assert.Equal(t, trainer.EventComplete, events[1].Type)
	assert.Equal(t, 1, terminalCount(events))
	assert.Equal(t, StatusCompleted, job.Status())
}

func TestManager_CrashSynthesizesError(t *testing.T) {
	script := `echo '{"type":"training_started"}'
exit 3`
	m, _ := testManager(t, &fakeBuilder{rows: 1}, script)

	job, err := m.Start()
	require.NoError(t, err)

	events := drain(t, job)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, trainer.EventError, last.Type)
	assert.Contains(t, last.Message, "exited with code 3")
	assert.Equal(t, 1, terminalCount(events))
	assert.Equal(t, StatusFailed, job.Status())
	assert.Equal(t, 3, job.ExitCode())
}

func TestManager_OversizedLineFailsTheStream(t *testing.T) {
	// One line well past the scanner's 1 MB limit.
	script := `head -c 2000000 /dev/zero | tr '\0' x
echo
echo '{"type":"complete"}'`
	m, _ := testManager(t, &fakeBuilder{rows: 1}, script)

	job, err := m.Start()
	require.NoError(t, err)

	events := drain(t, job)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, trainer.EventError, last.Type)
	assert.Contains(t, last.Message, "trainer output unreadable")
	assert.Equal(t, 1, terminalCount(events))
	assert.Equal(t, StatusFailed, job.Status())
}

func TestManager_ChildTerminalEventWins(t *testing.T) {
	script := `echo '{"type":"error","message":"dataset unreadable"}'
exit 1`
	m, _ := testManager(t, &fakeBuilder{rows: 1}, script)

	job, err := m.Start()
	require.NoError(t, err)

	events := drain(t, job)
	require.Len(t, events, 1, "no second terminal is synthesized")
	assert.Equal(t, trainer.EventError, events[0].Type)
	assert.Equal(t, "dataset unreadable", events[0].Message)
	assert.Equal(t, StatusFailed, job.Status())
}

func TestManager_SingleSlot(t *testing.T) {
	script := `echo '{"type":"training_started"}'
exec sleep 30`
	m, _ := testManager(t, &fakeBuilder{rows: 1}, script)

	job, err := m.Start()
	require.NoError(t, err)

	// Wait for the child before racing it with Cancel.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sub := job.Subscribe(ctx)
	ev := <-sub
	require.Equal(t, trainer.EventTrainingStarted, ev.Type)

	_, err = m.Start()
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	require.NoError(t, m.Cancel())

	events := append([]trainer.Event{ev}, drainChannel(t, sub)...)
	last := events[len(events)-1]
	assert.Equal(t, trainer.EventCancelled, last.Type)
	assert.Equal(t, 1, terminalCount(events))
	assert.Equal(t, StatusCancelled, job.Status())
}

func drainChannel(t *testing.T, ch <-chan trainer.Event) []trainer.Event {
	t.Helper()
	var events []trainer.Event
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func TestManager_CancelWithoutJob(t *testing.T) {
	m, _ := testManager(t, &fakeBuilder{rows: 1}, `true`)
	assert.ErrorIs(t, m.Cancel(), ErrNoJob)
}

func TestManager_CancelAfterFinish(t *testing.T) {
	m, _ := testManager(t, &fakeBuilder{rows: 1}, `echo '{"type":"complete"}'`)
	job, err := m.Start()
	require.NoError(t, err)
	drain(t, job)
	assert.ErrorIs(t, m.Cancel(), ErrNoJob)

	// The slot frees up once a job reaches a terminal state.
	next, err := m.Start()
	require.NoError(t, err)
	assert.NotEqual(t, job.ID, next.ID)
	drain(t, next)
}

func TestManager_BuilderFailureSkipsSpawn(t *testing.T) {
	var spawned atomic.Bool
	m := NewManager(&fakeBuilder{err: errors.New("disk full")}, Config{}, zap.NewNop())
	m.newCommand = func(path string) *exec.Cmd {
		spawned.Store(true)
		return exec.Command("/bin/true")
	}

	job, err := m.Start()
	require.NoError(t, err)

	events := drain(t, job)
	require.Len(t, events, 1)
	assert.Equal(t, trainer.EventError, events[0].Type)
	assert.Contains(t, events[0].Message, "disk full")
	assert.Equal(t, StatusFailed, job.Status())
	assert.False(t, spawned.Load(), "no trainer process on a failed dataset build")
}

func TestManager_NoFeedbackFallsBackToBaseCorpus(t *testing.T) {
	m, trainPath := testManager(t, &fakeBuilder{err: dataset.ErrNoFeedback}, `echo '{"type":"complete"}'`)

	job, err := m.Start()
	require.NoError(t, err)
	drain(t, job)

	assert.Equal(t, StatusCompleted, job.Status())
	assert.Equal(t, "base.csv", trainPath.Load(), "without feedback the base corpus is trained directly")
}
