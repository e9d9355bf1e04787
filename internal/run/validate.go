package run

import (
	"fmt"
	"strings"
)

// Issue captures a validation problem with a config field.
type Issue struct {
	Field   string
	Message string
}

// ValidationError aggregates config validation issues.
type ValidationError struct {
	Issues []Issue
}

// Error renders validation errors as a multi-line string.
func (err *ValidationError) Error() string {
	if err == nil || len(err.Issues) == 0 {
		return "run config validation failed"
	}
	lines := make([]string, 0, len(err.Issues))
	for _, issue := range err.Issues {
		lines = append(lines, fmt.Sprintf("%s: %s", issue.Field, issue.Message))
	}
	return strings.Join(lines, "\n")
}

// ValidateConfig checks a run config against the documented bounds.
func ValidateConfig(cfg Config) error {
	var issues []Issue
	add := func(field, message string) {
		issues = append(issues, Issue{Field: field, Message: message})
	}

	if cfg.NEmbd < 8 {
		add("n_embd", "must be >= 8")
	} else if cfg.NEmbd > MaxEmbeddingWidth {
		add("n_embd", fmt.Sprintf("exceeds %d", MaxEmbeddingWidth))
	}
	if cfg.NHead < 1 {
		add("n_head", "must be >= 1")
	} else if cfg.NHead > MaxHeadCount {
		add("n_head", fmt.Sprintf("exceeds %d", MaxHeadCount))
	}
	if cfg.NLayer < 1 {
		add("n_layer", "must be >= 1")
	} else if cfg.NLayer > MaxLayerCount {
		add("n_layer", fmt.Sprintf("exceeds %d", MaxLayerCount))
	}
	if cfg.BlockSize < 4 {
		add("block_size", "must be >= 4")
	} else if cfg.BlockSize > MaxBlockSize {
		add("block_size", fmt.Sprintf("exceeds %d", MaxBlockSize))
	}
	if cfg.NumSteps < 1 {
		add("num_steps", "must be >= 1")
	} else if cfg.NumSteps > MaxStepCount {
		add("num_steps", fmt.Sprintf("exceeds %d", MaxStepCount))
	}
	if cfg.NHead >= 1 && cfg.NEmbd >= 8 && cfg.NEmbd%cfg.NHead != 0 {
		add("n_embd", "must be divisible by n_head")
	}
	if cfg.LearningRate <= 0 {
		add("learning_rate", "must be > 0")
	}
	if cfg.Temperature <= 0 {
		add("temperature", "must be > 0")
	}
	if cfg.SampleCount < 1 || cfg.SampleCount > MaxSampleCount {
		add("sample_count", fmt.Sprintf("must be between 1 and %d", MaxSampleCount))
	}
	if cfg.SampleInterval < 1 {
		add("sample_interval", "must be >= 1")
	}
	if cfg.TopK < 1 || cfg.TopK > MaxTopK {
		add("top_k", fmt.Sprintf("must be between 1 and %d", MaxTopK))
	}
	if cfg.OpGraphTokenIndex < 0 {
		add("op_graph_token_index", "must be >= 0")
	}
	if cfg.OpGraphStepInterval < 1 {
		add("op_graph_step_interval", "must be >= 1")
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}
