package run

import "time"

// Status is the lifecycle state of a training run.
type Status string

const (
	// StatusQueued marks a run admitted but not yet picked up by a worker.
	StatusQueued Status = "queued"
	// StatusRunning marks a run being trained.
	StatusRunning Status = "running"
	// StatusCompleted marks a run that finished all steps.
	StatusCompleted Status = "completed"
	// StatusFailed marks a run that raised an internal fault.
	StatusFailed Status = "failed"
	// StatusCanceled marks a run stopped by a cancel request.
	StatusCanceled Status = "canceled"
)

// Terminal reports whether the status ends the run lifecycle.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// Active reports whether the run counts against the admission ceiling.
func (s Status) Active() bool {
	return s == StatusQueued || s == StatusRunning
}

// Config bounds and retention limits for runs.
const (
	MaxEmbeddingWidth = 64
	MaxHeadCount      = 8
	MaxLayerCount     = 2
	MaxBlockSize      = 64
	MaxStepCount      = 2000
	MaxSampleCount    = 20
	MaxTopK           = 20
	MaxConcurrent     = 3

	// Retention is how long all per-run state survives after the last write.
	Retention = 24 * time.Hour
)

// Config holds the training hyperparameters for one run.
type Config struct {
	NEmbd               int     `json:"n_embd" yaml:"n_embd"`
	NHead               int     `json:"n_head" yaml:"n_head"`
	NLayer              int     `json:"n_layer" yaml:"n_layer"`
	BlockSize           int     `json:"block_size" yaml:"block_size"`
	NumSteps            int     `json:"num_steps" yaml:"num_steps"`
	LearningRate        float64 `json:"learning_rate" yaml:"learning_rate"`
	Temperature         float64 `json:"temperature" yaml:"temperature"`
	Seed                int64   `json:"seed" yaml:"seed"`
	SampleCount         int     `json:"sample_count" yaml:"sample_count"`
	SampleInterval      int     `json:"sample_interval" yaml:"sample_interval"`
	TopK                int     `json:"top_k" yaml:"top_k"`
	OpGraphTokenIndex   int     `json:"op_graph_token_index" yaml:"op_graph_token_index"`
	OpGraphStepInterval int     `json:"op_graph_step_interval" yaml:"op_graph_step_interval"`
}

// DefaultConfig returns the config used when a field is left unset.
func DefaultConfig() Config {
	return Config{
		NEmbd:               32,
		NHead:               4,
		NLayer:              1,
		BlockSize:           16,
		NumSteps:            300,
		LearningRate:        0.01,
		Temperature:         0.8,
		Seed:                42,
		SampleCount:         5,
		SampleInterval:      100,
		TopK:                5,
		OpGraphTokenIndex:   0,
		OpGraphStepInterval: 25,
	}
}

// Summary is the externally visible snapshot of a run.
type Summary struct {
	RunID     string    `json:"run_id"`
	Status    Status    `json:"status"`
	PackID    string    `json:"pack_id"`
	Config    Config    `json:"config"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Error     string    `json:"error,omitempty"`
}
