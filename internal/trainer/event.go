package trainer

import (
	"encoding/json"
	"io"
)

// Event types emitted by a training job, one JSON object per stdout line.
const (
	EventSummary         = "summary"
	EventTrainingStarted = "training_started"
	EventProgress        = "progress"
	EventConfusionMatrix = "confusion_matrix"
	EventEpochEnd        = "epoch_end"
	EventModelSaved      = "model_saved"
	EventComplete        = "complete"
	EventCancelled       = "cancelled"
	EventError           = "error"
	EventRaw             = "raw"
)

// Event is the tagged union streamed from the training job to subscribers.
// The Raw case wraps any child output line that does not parse as an event,
// so no line is ever dropped silently.
type Event struct {
	Type       string  `json:"type"`
	Epochs     int     `json:"epochs,omitempty"`
	BatchSize  int     `json:"batch_size,omitempty"`
	TotalSteps int     `json:"total_steps,omitempty"`
	Device     string  `json:"device,omitempty"`
	Epoch      int     `json:"epoch,omitempty"`
	Step       int     `json:"step,omitempty"`
	Progress   int     `json:"progress,omitempty"`
	AvgLoss    float64 `json:"avg_loss,omitempty"`
	F1         float64 `json:"f1,omitempty"`
	BestF1     float64 `json:"best_f1,omitempty"`
	Matrix     [][]int `json:"matrix,omitempty"`
	Message    string  `json:"message,omitempty"`
	Line       string  `json:"line,omitempty"`
}

// Terminal reports whether the event ends a job's stream. Every consumed
// stream carries exactly one terminal event, as its last event.
func (e Event) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventCancelled || e.Type == EventError
}

// Emitter writes events as JSON lines.
type Emitter struct {
	enc *json.Encoder
}

func NewEmitter(w io.Writer) *Emitter {
	return &Emitter{enc: json.NewEncoder(w)}
}

func (e *Emitter) Emit(ev Event) error {
	return e.enc.Encode(ev)
}
