package retrain

import (
	"context"
	"os"
	"os/exec"
	"sync"

	"backend/internal/trainer"
)

// Status of a training job. At most one job is running or exit_requested at
// any time.
type Status string

const (
	StatusRunning       Status = "running"
	StatusExitRequested Status = "exit_requested"
	StatusCompleted     Status = "completed"
	StatusCancelled     Status = "cancelled"
	StatusFailed        Status = "failed"
)

// Job is one training run: the child process handle plus the event history
// it has produced so far. Subscribers replay the history and then follow
// live events, so every subscriber observes the identical sequence.
type Job struct {
	ID string

	mu       sync.Mutex
	cond     *sync.Cond
	events   []trainer.Event
	closed   bool
	status   Status
	exitCode int
	cmd      *exec.Cmd
}

func newJob(id string) *Job {
	j := &Job{ID: id, status: StatusRunning, exitCode: -1}
	j.cond = sync.NewCond(&j.mu)
	return j
}

// Status returns the job's current lifecycle state.
func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// ExitCode returns the child's exit code, or -1 while running.
func (j *Job) ExitCode() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.exitCode
}

func (j *Job) running() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status == StatusRunning || j.status == StatusExitRequested
}

func (j *Job) setCmd(cmd *exec.Cmd) {
	j.mu.Lock()
	j.cmd = cmd
	j.mu.Unlock()
}

// requestCancel sends a cooperative interrupt to the child. Termination is
// not immediate; the final event reflects the actual exit status.
func (j *Job) requestCancel() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cmd == nil || j.cmd.Process == nil {
		return ErrNoJob
	}
	if err := j.cmd.Process.Signal(os.Interrupt); err != nil {
		return err
	}
	j.status = StatusExitRequested
	return nil
}

// publish appends an event to the history and wakes subscribers.
func (j *Job) publish(ev trainer.Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return
	}
	j.events = append(j.events, ev)
	j.cond.Broadcast()
}

// finish seals the event history; subscriber streams terminate once they
// have drained it.
func (j *Job) finish(status Status, exitCode int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = status
	j.exitCode = exitCode
	j.closed = true
	j.cond.Broadcast()
}

// Subscribe streams the job's events from the beginning: the recorded
// history first, then live events, closing after the terminal event. Each
// call gets an independent cursor, so concurrent subscribers never race for
// events.
func (j *Job) Subscribe(ctx context.Context) <-chan trainer.Event {
	ch := make(chan trainer.Event)
	go func() {
		defer close(ch)
		next := 0
		for {
			j.mu.Lock()
			for next >= len(j.events) && !j.closed {
				j.cond.Wait()
			}
			if next >= len(j.events) {
				j.mu.Unlock()
				return
			}
			ev := j.events[next]
			next++
			j.mu.Unlock()

			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}
