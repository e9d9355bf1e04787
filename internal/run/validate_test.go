package run

import (
	"errors"
	"strings"
	"testing"
)

// TestValidateConfigDefaults verifies the default config passes validation.
func TestValidateConfigDefaults(t *testing.T) {
	if err := ValidateConfig(DefaultConfig()); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

// TestValidateConfigBounds verifies each documented bound is enforced.
func TestValidateConfigBounds(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"embedding too wide", func(c *Config) { c.NEmbd = 128 }, "n_embd"},
		{"too many heads", func(c *Config) { c.NHead = 16 }, "n_head"},
		{"too many layers", func(c *Config) { c.NLayer = 3 }, "n_layer"},
		{"block too long", func(c *Config) { c.BlockSize = 128 }, "block_size"},
		{"too many steps", func(c *Config) { c.NumSteps = 5000 }, "num_steps"},
		{"width not divisible", func(c *Config) { c.NEmbd = 30; c.NHead = 4 }, "n_embd"},
		{"zero learning rate", func(c *Config) { c.LearningRate = 0 }, "learning_rate"},
		{"zero temperature", func(c *Config) { c.Temperature = 0 }, "temperature"},
		{"sample count over cap", func(c *Config) { c.SampleCount = 21 }, "sample_count"},
		{"top_k over cap", func(c *Config) { c.TopK = 50 }, "top_k"},
		{"zero graph interval", func(c *Config) { c.OpGraphStepInterval = 0 }, "op_graph_step_interval"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := ValidateConfig(cfg)
			if err == nil {
				t.Fatalf("expected validation error")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if !strings.Contains(err.Error(), tc.field) {
				t.Fatalf("expected error to name %q, got %q", tc.field, err.Error())
			}
		})
	}
}

// TestStatusTerminal verifies terminal status classification.
func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusFailed, StatusCanceled} {
		if !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
		if s.Active() {
			t.Fatalf("%s should not be active", s)
		}
	}
	for _, s := range []Status{StatusQueued, StatusRunning} {
		if s.Terminal() {
			t.Fatalf("%s should not be terminal", s)
		}
		if !s.Active() {
			t.Fatalf("%s should be active", s)
		}
	}
}
