package event

import "llmlab/internal/run"

// Payload is the variant part of an event, keyed by the event type.
type Payload interface {
	payloadType() Type
}

// RunStarted describes the corpus and model at the start of training.
type RunStarted struct {
	VocabSize int        `json:"vocab_size"`
	DocCount  int        `json:"doc_count"`
	NumParams int        `json:"num_params"`
	Config    run.Config `json:"config"`
}

// TokenProb is one entry of a top-k prediction list.
type TokenProb struct {
	TokenID int     `json:"token_id"`
	Token   string  `json:"token"`
	Prob    float64 `json:"prob"`
}

// TokenSummary captures the prediction context for one position.
type TokenSummary struct {
	Position    int         `json:"position"`
	InputToken  string      `json:"input_token"`
	TargetToken string      `json:"target_token"`
	TopK        []TokenProb `json:"top_k"`
}

// StepForward carries the per-token summaries of one forward pass.
type StepForward struct {
	Step           int            `json:"step"`
	TokenSummaries []TokenSummary `json:"token_summaries"`
}

// TokenAttention holds attention weights for one position, one row per head
// per layer, each row spanning the positions attended to so far.
type TokenAttention struct {
	Position int         `json:"position"`
	Heads    [][]float64 `json:"heads"`
}

// StepAttention carries the attention weights of one forward pass.
type StepAttention struct {
	Step           int              `json:"step"`
	TokenAttention []TokenAttention `json:"token_attention"`
}

// StepLoss carries the mean cross-entropy loss for one step.
type StepLoss struct {
	Step int     `json:"step"`
	Loss float64 `json:"loss"`
}

// GraphNode is one node of an op-graph snapshot.
type GraphNode struct {
	ID    int64   `json:"id"`
	Value float64 `json:"value"`
	Grad  float64 `json:"grad"`
}

// GraphEdge is a directed edge from an operand to its result.
type GraphEdge struct {
	Source int64 `json:"source"`
	Target int64 `json:"target"`
}

// OpGraph is a snapshot of the computation graph for one selected token at
// one training step. Nodes and edges are immutable per snapshot.
type OpGraph struct {
	Step  int         `json:"step"`
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// StepBackward carries grouped gradient norms and an optional op-graph.
type StepBackward struct {
	Step          int                `json:"step"`
	GradientNorms map[string]float64 `json:"gradient_norms"`
	OpGraph       *OpGraph           `json:"op_graph,omitempty"`
}

// StepUpdate carries the decayed learning rate and grouped update norms.
type StepUpdate struct {
	Step         int                `json:"step"`
	LearningRate float64            `json:"learning_rate"`
	UpdateNorms  map[string]float64 `json:"update_norms"`
}

// SampleGenerated carries generated sequences; each event replaces the
// previous sample set wholesale.
type SampleGenerated struct {
	Step    int      `json:"step"`
	Samples []string `json:"samples"`
}

// RunCompleted is the terminal payload of a successful run.
type RunCompleted struct {
	StepsCompleted int     `json:"steps_completed"`
	FinalLoss      float64 `json:"final_loss"`
	VocabSize      int     `json:"vocab_size"`
}

// RunFailed is the terminal payload of a failed run. Error is never empty.
type RunFailed struct {
	Error string `json:"error"`
}

// RunCanceled is the terminal payload of a canceled run. Step is the step at
// which the cancel flag was observed, zero when canceled before starting.
type RunCanceled struct {
	Step int `json:"step"`
}

func (*RunStarted) payloadType() Type      { return TypeRunStarted }
func (*StepForward) payloadType() Type     { return TypeStepForward }
func (*StepAttention) payloadType() Type   { return TypeStepAttention }
func (*StepLoss) payloadType() Type        { return TypeStepLoss }
func (*StepBackward) payloadType() Type    { return TypeStepBackward }
func (*StepUpdate) payloadType() Type      { return TypeStepUpdate }
func (*SampleGenerated) payloadType() Type { return TypeSampleGenerated }
func (*RunCompleted) payloadType() Type    { return TypeRunCompleted }
func (*RunFailed) payloadType() Type       { return TypeRunFailed }
func (*RunCanceled) payloadType() Type     { return TypeRunCanceled }
