package live

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"llmlab/internal/client"
)

// renderHeader renders the run identity line.
func renderHeader(state client.ViewState, packID string, now, startedAt time.Time, noColor bool) string {
	line := "Run " + state.RunID
	if packID != "" {
		line += " | Pack: " + packID
	}
	if !startedAt.IsZero() {
		line += " | Elapsed: " + now.Sub(startedAt).Round(100*time.Millisecond).String()
	}
	return stylize(line, noColor, lipgloss.Color("33"))
}

// renderStatus renders status, progress, loss, and learning rate.
func renderStatus(state client.ViewState, noColor bool) string {
	line := "Status: " + string(state.Status)
	if state.Err != "" {
		line += " (" + state.Err + ")"
	}
	if frame, ok := client.CurrentFrame(state); ok {
		line += " | Step " + fmtInt(frame.Step) + "/" + fmtInt(state.Config.NumSteps)
	}
	if loss, ok := client.LatestLoss(state); ok {
		line += " | Loss " + fmtFloat(loss.Loss)
	}
	if len(state.Updates) > 0 {
		line += " | LR " + fmtFloat(state.Updates[len(state.Updates)-1].LearningRate)
	}
	if state.NumParams > 0 {
		line += " | " + fmtInt(state.NumParams) + " params, vocab " + fmtInt(state.VocabSize)
	}
	return stylize(line, noColor, lipgloss.Color("242"))
}

// renderSamples renders the latest generated samples.
func renderSamples(state client.ViewState, noColor bool) string {
	if len(state.Samples) == 0 {
		return ""
	}
	lines := make([]string, 0, len(state.Samples)+1)
	lines = append(lines, "Samples (step "+fmtInt(state.SampleStep)+"):")
	for _, sample := range state.Samples {
		lines = append(lines, "  "+truncate(sample, 76))
	}
	return stylize(strings.Join(lines, "\n"), noColor, lipgloss.Color("250"))
}

// renderNorms renders the latest grouped gradient and update norms.
func renderNorms(state client.ViewState, noColor bool) string {
	if len(state.Gradients) == 0 {
		return ""
	}
	grads := state.Gradients[len(state.Gradients)-1].GradientNorms
	line := "Grad norms:"
	for _, group := range normGroups {
		if v, ok := grads[group]; ok {
			line += " " + group + "=" + fmtFloat(v)
		}
	}
	if len(state.Updates) > 0 {
		updates := state.Updates[len(state.Updates)-1].UpdateNorms
		line += " | Update norms:"
		for _, group := range normGroups {
			if v, ok := updates[group]; ok {
				line += " " + group + "=" + fmtFloat(v)
			}
		}
	}
	return stylize(line, noColor, lipgloss.Color("244"))
}

var normGroups = []string{"embeddings", "attention", "mlp", "lm_head"}

// renderGraph renders the op-graph playback line with the highlighted node.
func renderGraph(state client.ViewState, highlight int, playing bool, noColor bool) string {
	graph, ok := client.LatestGraph(state)
	if !ok {
		return ""
	}
	mode := "playing"
	if !playing {
		mode = "paused"
	}
	line := "Op graph (step " + fmtInt(graph.Step) + "): node " +
		fmtInt(highlight+1) + "/" + fmtInt(len(graph.Nodes)) + " [" + mode + "]"
	if highlight >= 0 && highlight < len(graph.Nodes) {
		node := graph.Nodes[highlight]
		line += " value=" + fmtFloat(node.Value) + " grad=" + fmtFloat(node.Grad)
	}
	return stylize(line, noColor, lipgloss.Color("178"))
}

// renderFooter renders the key hints and the follow/pin mode.
func renderFooter(state client.ViewState, noColor bool) string {
	mode := "following live"
	if !state.LiveFollow {
		mode = "pinned to frame " + fmtInt(state.FrameIndex+1)
	}
	return stylize(mode+"  |  f follow  ←/→ frame  space playback  q quit",
		noColor, lipgloss.Color("240"))
}

// stylize applies optional color styling.
func stylize(text string, noColor bool, color lipgloss.Color) string {
	if noColor {
		return text
	}
	return lipgloss.NewStyle().Foreground(color).Render(text)
}
