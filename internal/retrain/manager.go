package retrain

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"backend/internal/dataset"
	"backend/internal/trainer"
)

var (
	// ErrAlreadyRunning means a job occupies the single in-flight slot.
	// Callers treat it as "already in the desired state", not a failure.
	ErrAlreadyRunning = errors.New("training already in progress")
	// ErrNoJob means there is nothing to cancel or stream.
	ErrNoJob = errors.New("no training in progress")
)

// sigintExitCode is what the trainer exits with after honoring SIGINT.
const sigintExitCode = 130

// DatasetBuilder produces the merged training corpus before a job starts.
type DatasetBuilder interface {
	Build(basePath, outputPath string) (int, error)
}

// Config locates the trainer binary and its datasets.
type Config struct {
	TrainerBin     string
	BaseDataset    string
	MergedDataset  string
	ValDataset     string
	CheckpointPath string
	Epochs         int
	BatchSize      int
	LearningRate   float64
}

// Manager owns the lifecycle of the single training job slot. It spawns the
// trainer as a child process, multiplexes its JSON-line output to
// subscribers and exposes cooperative cancellation.
type Manager struct {
	mu      sync.Mutex
	job     *Job
	builder DatasetBuilder
	cfg     Config
	logger  *zap.Logger

	// newCommand is swappable in tests.
	newCommand func(trainPath string) *exec.Cmd
}

func NewManager(builder DatasetBuilder, cfg Config, logger *zap.Logger) *Manager {
	m := &Manager{
		builder: builder,
		cfg:     cfg,
		logger:  logger,
	}
	m.newCommand = m.trainerCommand
	return m
}

func (m *Manager) trainerCommand(trainPath string) *exec.Cmd {
	return exec.Command(m.cfg.TrainerBin,
		"-train", trainPath,
		"-val", m.cfg.ValDataset,
		"-checkpoint", m.cfg.CheckpointPath,
		"-epochs", strconv.Itoa(m.cfg.Epochs),
		"-batch-size", strconv.Itoa(m.cfg.BatchSize),
		"-lr", strconv.FormatFloat(m.cfg.LearningRate, 'g', -1, 64),
	)
}

// Start spawns a new training job unless one is already in flight. The call
// returns immediately; dataset building and training happen in the job
// goroutine.
func (m *Manager) Start() (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.job != nil && m.job.running() {
		return nil, ErrAlreadyRunning
	}

	job := newJob(uuid.NewString())
	m.job = job
	go m.run(job)

	m.logger.Info("Training job started", zap.String("job_id", job.ID))
	return job, nil
}

// Current returns the running or most recently finished job, or nil.
func (m *Manager) Current() *Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.job
}

// Cancel sends SIGINT to the running job. With nothing running it returns
// ErrNoJob, which callers acknowledge as a no-op.
func (m *Manager) Cancel() error {
	m.mu.Lock()
	job := m.job
	m.mu.Unlock()

	if job == nil || !job.running() {
		return ErrNoJob
	}
	if err := job.requestCancel(); err != nil {
		return err
	}
	m.logger.Info("Training cancellation requested", zap.String("job_id", job.ID))
	return nil
}

// run drives one job from dataset build to terminal event.
func (m *Manager) run(job *Job) {
	trainPath := m.cfg.MergedDataset
	if _, err := m.builder.Build(m.cfg.BaseDataset, m.cfg.MergedDataset); err != nil {
		if errors.Is(err, dataset.ErrNoFeedback) {
			// No decisions yet: train on the base corpus alone.
			m.logger.Warn("No moderator feedback, training on base corpus", zap.String("job_id", job.ID))
			trainPath = m.cfg.BaseDataset
		} else {
			m.logger.Error("Dataset build failed", zap.String("job_id", job.ID), zap.Error(err))
			job.publish(trainer.Event{Type: trainer.EventError, Message: err.Error()})
			job.finish(StatusFailed, -1)
			return
		}
	}

	cmd := m.newCommand(trainPath)

	// Merge stderr into the event stream; anything unstructured surfaces
	// as raw passthrough events rather than disappearing.
	pr, pw, err := os.Pipe()
	if err != nil {
		job.publish(trainer.Event{Type: trainer.EventError, Message: err.Error()})
		job.finish(StatusFailed, -1)
		return
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	job.setCmd(cmd)
	if err := cmd.Start(); err != nil {
		pw.Close()
		pr.Close()
		m.logger.Error("Failed to spawn trainer", zap.String("job_id", job.ID), zap.Error(err))
		job.publish(trainer.Event{Type: trainer.EventError, Message: fmt.Sprintf("failed to spawn trainer: %v", err)})
		job.finish(StatusFailed, -1)
		return
	}
	pw.Close()

	sawTerminal := false
	lastTerminal := trainer.Event{}

	scanner := bufio.NewScanner(pr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		ev := parseLine(line)
		if ev.Type == trainer.EventProgress {
			m.logger.Info("Training progress", zap.String("job_id", job.ID), zap.Int("progress", ev.Progress))
		}
		if ev.Terminal() {
			sawTerminal = true
			lastTerminal = ev
		}
		job.publish(ev)
	}
	if err := scanner.Err(); err != nil {
		m.logger.Error("Trainer output scan failed", zap.String("job_id", job.ID), zap.Error(err))
		if !sawTerminal {
			ev := trainer.Event{Type: trainer.EventError, Message: fmt.Sprintf("trainer output unreadable: %v", err)}
			sawTerminal = true
			lastTerminal = ev
			job.publish(ev)
		}
	}
	pr.Close()

	waitErr := cmd.Wait()
	exitCode := cmd.ProcessState.ExitCode()

	status := m.resolve(job, sawTerminal, lastTerminal, exitCode)
	job.finish(status, exitCode)
	m.logger.Info("Training job finished",
		zap.String("job_id", job.ID),
		zap.String("status", string(status)),
		zap.Int("exit_code", exitCode),
		zap.Error(waitErr),
	)
}

// resolve guarantees the stream carries exactly one terminal event: the
// child's own if it emitted one, otherwise one synthesized from exit status.
func (m *Manager) resolve(job *Job, sawTerminal bool, last trainer.Event, exitCode int) Status {
	if sawTerminal {
		switch last.Type {
		case trainer.EventComplete:
			return StatusCompleted
		case trainer.EventCancelled:
			return StatusCancelled
		default:
			return StatusFailed
		}
	}

	switch {
	case exitCode == 0:
		job.publish(trainer.Event{Type: trainer.EventComplete})
		return StatusCompleted
	case exitCode == sigintExitCode || job.Status() == StatusExitRequested:
		job.publish(trainer.Event{Type: trainer.EventCancelled})
		return StatusCancelled
	default:
		job.publish(trainer.Event{Type: trainer.EventError, Message: fmt.Sprintf("trainer exited with code %d", exitCode)})
		return StatusFailed
	}
}

// parseLine decodes a child output line into an event; non-conforming lines
// wrap as raw passthrough events.
func parseLine(line string) trainer.Event {
	var ev trainer.Event
	if err := json.Unmarshal([]byte(line), &ev); err != nil || ev.Type == "" {
		return trainer.Event{Type: trainer.EventRaw, Line: line}
	}
	return ev
}
