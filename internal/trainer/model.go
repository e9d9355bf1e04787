package trainer

import (
	"math"
	"math/rand"

	"llmlab/internal/run"
)

// Parameter group names used for gradient and update norms.
const (
	groupEmbeddings = "embeddings"
	groupAttention  = "attention"
	groupMLP        = "mlp"
	groupLMHead     = "lm_head"
)

// layerBlock holds the weights of one transformer layer.
type layerBlock struct {
	wq, wk, wv, wo [][]*value
	fc1, fc2       [][]*value
}

// model is a pre-norm GPT with RMSNorm, multi-head attention over a KV
// cache, and a ReLU MLP with 4x widening.
type model struct {
	g       *graph
	cfg     run.Config
	headDim int
	wte     [][]*value
	wpe     [][]*value
	lmHead  [][]*value
	layers  []layerBlock
}

func newModel(g *graph, cfg run.Config, vocabSize int, rng *rand.Rand) *model {
	m := &model{
		g:       g,
		cfg:     cfg,
		headDim: cfg.NEmbd / cfg.NHead,
		wte:     matrix(g, rng, vocabSize, cfg.NEmbd),
		wpe:     matrix(g, rng, cfg.BlockSize, cfg.NEmbd),
		lmHead:  matrix(g, rng, vocabSize, cfg.NEmbd),
	}
	for i := 0; i < cfg.NLayer; i++ {
		m.layers = append(m.layers, layerBlock{
			wq:  matrix(g, rng, cfg.NEmbd, cfg.NEmbd),
			wk:  matrix(g, rng, cfg.NEmbd, cfg.NEmbd),
			wv:  matrix(g, rng, cfg.NEmbd, cfg.NEmbd),
			wo:  matrix(g, rng, cfg.NEmbd, cfg.NEmbd),
			fc1: matrix(g, rng, 4*cfg.NEmbd, cfg.NEmbd),
			fc2: matrix(g, rng, cfg.NEmbd, 4*cfg.NEmbd),
		})
	}
	return m
}

func matrix(g *graph, rng *rand.Rand, nout, nin int) [][]*value {
	m := make([][]*value, nout)
	for o := range m {
		row := make([]*value, nin)
		for i := range row {
			row[i] = g.val(rng.NormFloat64() * initStd)
		}
		m[o] = row
	}
	return m
}

// forward processes one token at one position, extending the KV caches. It
// returns the logits and the attention weights of every head of every layer
// over the positions seen so far.
func (m *model) forward(tokenID, posID int, keys, values [][][]*value) ([]*value, [][]float64) {
	g := m.g
	x := make([]*value, m.cfg.NEmbd)
	for i := range x {
		x[i] = g.add(m.wte[tokenID][i], m.wpe[posID][i])
	}
	x = g.rmsnorm(x)

	var headWeights [][]float64
	for li := range m.layers {
		layer := &m.layers[li]
		residual := x
		x = g.rmsnorm(x)
		q := g.linear(x, layer.wq)
		k := g.linear(x, layer.wk)
		v := g.linear(x, layer.wv)
		keys[li] = append(keys[li], k)
		values[li] = append(values[li], v)

		attnOut := make([]*value, 0, m.cfg.NEmbd)
		for h := 0; h < m.cfg.NHead; h++ {
			start := h * m.headDim
			logits := make([]*value, len(keys[li]))
			for t := range keys[li] {
				dot := g.val(0)
				for j := 0; j < m.headDim; j++ {
					dot = g.add(dot, g.mul(q[start+j], keys[li][t][start+j]))
				}
				logits[t] = g.mul(dot, g.val(1/math.Sqrt(float64(m.headDim))))
			}
			weights := g.softmax(logits)
			row := make([]float64, len(weights))
			for t, w := range weights {
				row[t] = round6(w.data)
			}
			headWeights = append(headWeights, row)

			for j := 0; j < m.headDim; j++ {
				out := g.val(0)
				for t := range values[li] {
					out = g.add(out, g.mul(weights[t], values[li][t][start+j]))
				}
				attnOut = append(attnOut, out)
			}
		}
		x = g.linear(attnOut, layer.wo)
		for i := range x {
			x[i] = g.add(x[i], residual[i])
		}

		residual = x
		x = g.rmsnorm(x)
		x = g.linear(x, layer.fc1)
		for i := range x {
			x[i] = g.relu(x[i])
		}
		x = g.linear(x, layer.fc2)
		for i := range x {
			x[i] = g.add(x[i], residual[i])
		}
	}

	return g.linear(x, m.lmHead), headWeights
}

// sample generates SampleCount sequences with temperature sampling, each
// capped at the block size and terminated early by a BOS prediction.
func (m *model) sample(voc vocab, rng *rand.Rand) []string {
	samples := make([]string, 0, m.cfg.SampleCount)
	for s := 0; s < m.cfg.SampleCount; s++ {
		keys := newCache(m.cfg.NLayer)
		values := newCache(m.cfg.NLayer)
		tokenID := voc.bosID
		var chars []rune
		for pos := 0; pos < m.cfg.BlockSize; pos++ {
			logits, _ := m.forward(tokenID, pos, keys, values)
			scaled := make([]*value, len(logits))
			for i, l := range logits {
				scaled[i] = m.g.mul(l, m.g.val(1/m.cfg.Temperature))
			}
			probs := m.g.softmax(scaled)
			tokenID = weightedChoice(probs, rng)
			if tokenID == voc.bosID {
				break
			}
			chars = append(chars, voc.chars[tokenID])
		}
		samples = append(samples, string(chars))
	}
	return samples
}

// weightedChoice draws an index proportionally to the probabilities.
func weightedChoice(probs []*value, rng *rand.Rand) int {
	total := 0.0
	for _, p := range probs {
		total += p.data
	}
	target := rng.Float64() * total
	cumulative := 0.0
	for i, p := range probs {
		cumulative += p.data
		if target < cumulative {
			return i
		}
	}
	return len(probs) - 1
}

// flattenParams collects all trainable parameters in a stable order, grouped
// for norm reporting. groupOf is parallel to the returned slice.
func flattenParams(m *model) ([]*value, map[string][]*value, []string) {
	var params []*value
	groups := map[string][]*value{
		groupEmbeddings: {},
		groupAttention:  {},
		groupMLP:        {},
		groupLMHead:     {},
	}
	var groupOf []string
	collect := func(mat [][]*value, group string) {
		for _, row := range mat {
			for _, p := range row {
				params = append(params, p)
				groups[group] = append(groups[group], p)
				groupOf = append(groupOf, group)
			}
		}
	}
	collect(m.wte, groupEmbeddings)
	collect(m.wpe, groupEmbeddings)
	collect(m.lmHead, groupLMHead)
	for i := range m.layers {
		layer := &m.layers[i]
		collect(layer.wq, groupAttention)
		collect(layer.wk, groupAttention)
		collect(layer.wv, groupAttention)
		collect(layer.wo, groupAttention)
		collect(layer.fc1, groupMLP)
		collect(layer.fc2, groupMLP)
	}
	return params, groups, groupOf
}
