package trainer

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"llmlab/internal/event"
	"llmlab/internal/run"
)

// EmitFunc delivers one event to the run's log. The trainer never assigns
// sequence numbers; ordering comes from append order alone.
type EmitFunc func(event.Type, event.Payload) error

// Result summarizes a finished training loop.
type Result struct {
	Status         run.Status
	FinalLoss      float64
	StepsCompleted int
	VocabSize      int
}

// Adam hyperparameters, fixed across runs.
const (
	adamBeta1 = 0.85
	adamBeta2 = 0.99
	adamEps   = 1e-8
	initStd   = 0.08
)

// Train runs the full training loop over docs, emitting events as it goes.
// cancelRequested is polled between steps; when it reports true the trainer
// emits the terminal run.canceled event and stops. Any returned error means
// the run failed and no terminal event has been emitted yet.
func Train(docs []string, cfg run.Config, emit EmitFunc, cancelRequested func() bool) (Result, error) {
	rng := rand.New(rand.NewSource(cfg.Seed))
	shuffled := make([]string, len(docs))
	copy(shuffled, docs)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	voc, err := newVocab(shuffled)
	if err != nil {
		return Result{}, err
	}

	g := &graph{}
	m := newModel(g, cfg, voc.size(), rng)
	params, groups, groupOf := flattenParams(m)

	adamM := make([]float64, len(params))
	adamV := make([]float64, len(params))

	err = emit(event.TypeRunStarted, &event.RunStarted{
		VocabSize: voc.size(),
		DocCount:  len(shuffled),
		NumParams: len(params),
		Config:    cfg,
	})
	if err != nil {
		return Result{}, err
	}

	lastLoss := 0.0
	for step := 0; step < cfg.NumSteps; step++ {
		if cancelRequested() {
			if err := emit(event.TypeRunCanceled, &event.RunCanceled{Step: step + 1}); err != nil {
				return Result{}, err
			}
			return Result{
				Status:         run.StatusCanceled,
				FinalLoss:      lastLoss,
				StepsCompleted: step,
				VocabSize:      voc.size(),
			}, nil
		}

		doc := shuffled[step%len(shuffled)]
		tokens := voc.encode(doc)
		n := len(tokens) - 1
		if n > cfg.BlockSize {
			n = cfg.BlockSize
		}

		keys := newCache(cfg.NLayer)
		values := newCache(cfg.NLayer)
		var losses []*value
		var selectedLoss *value
		summaries := make([]event.TokenSummary, 0, n)
		attention := make([]event.TokenAttention, 0, n)

		for pos := 0; pos < n; pos++ {
			tokenID, targetID := tokens[pos], tokens[pos+1]
			logits, heads := m.forward(tokenID, pos, keys, values)
			probs := g.softmax(logits)
			lossT := g.mul(g.log(probs[targetID]), g.val(-1))
			losses = append(losses, lossT)

			summaries = append(summaries, event.TokenSummary{
				Position:    pos,
				InputToken:  voc.tokenString(tokenID),
				TargetToken: voc.tokenString(targetID),
				TopK:        topKProbs(probs, voc, cfg.TopK),
			})
			attention = append(attention, event.TokenAttention{Position: pos, Heads: heads})
			if pos == cfg.OpGraphTokenIndex {
				selectedLoss = lossT
			}
		}

		sum := g.val(0)
		for _, l := range losses {
			sum = g.add(sum, l)
		}
		loss := g.mul(g.val(1/float64(n)), sum)
		lastLoss = round6(loss.data)

		if err := emit(event.TypeStepForward, &event.StepForward{Step: step + 1, TokenSummaries: summaries}); err != nil {
			return Result{}, err
		}
		if err := emit(event.TypeStepAttention, &event.StepAttention{Step: step + 1, TokenAttention: attention}); err != nil {
			return Result{}, err
		}
		if err := emit(event.TypeStepLoss, &event.StepLoss{Step: step + 1, Loss: round6(loss.data)}); err != nil {
			return Result{}, err
		}

		backward(loss)

		gradNorms := make(map[string]float64, len(groups))
		for name, groupParams := range groups {
			total := 0.0
			for _, p := range groupParams {
				total += p.grad * p.grad
			}
			gradNorms[name] = round6(math.Sqrt(total))
		}

		var opGraph *event.OpGraph
		if selectedLoss != nil && step%cfg.OpGraphStepInterval == 0 {
			opGraph = snapshotGraph(selectedLoss, step+1)
		}
		if err := emit(event.TypeStepBackward, &event.StepBackward{
			Step:          step + 1,
			GradientNorms: gradNorms,
			OpGraph:       opGraph,
		}); err != nil {
			return Result{}, err
		}

		// Adam with the learning rate decaying linearly to zero at the last step.
		lrT := cfg.LearningRate * (1.0 - float64(step)/float64(cfg.NumSteps))
		deltaSquares := map[string]float64{}
		for i, p := range params {
			adamM[i] = adamBeta1*adamM[i] + (1.0-adamBeta1)*p.grad
			adamV[i] = adamBeta2*adamV[i] + (1.0-adamBeta2)*p.grad*p.grad
			mHat := adamM[i] / (1.0 - math.Pow(adamBeta1, float64(step+1)))
			vHat := adamV[i] / (1.0 - math.Pow(adamBeta2, float64(step+1)))
			delta := lrT * mHat / (math.Sqrt(vHat) + adamEps)
			p.data -= delta
			deltaSquares[groupOf[i]] += delta * delta
			p.grad = 0
		}
		updateNorms := make(map[string]float64, len(deltaSquares))
		for name, total := range deltaSquares {
			updateNorms[name] = round6(math.Sqrt(total))
		}
		if err := emit(event.TypeStepUpdate, &event.StepUpdate{
			Step:         step + 1,
			LearningRate: round8(lrT),
			UpdateNorms:  updateNorms,
		}); err != nil {
			return Result{}, err
		}

		if (step+1)%cfg.SampleInterval == 0 || step+1 == cfg.NumSteps {
			samples := m.sample(voc, rng)
			if err := emit(event.TypeSampleGenerated, &event.SampleGenerated{Step: step + 1, Samples: samples}); err != nil {
				return Result{}, err
			}
		}
	}

	return Result{
		Status:         run.StatusCompleted,
		FinalLoss:      lastLoss,
		StepsCompleted: cfg.NumSteps,
		VocabSize:      voc.size(),
	}, nil
}

// topKProbs ranks next-token probabilities and keeps the k most likely.
func topKProbs(probs []*value, voc vocab, k int) []event.TokenProb {
	ranked := make([]int, len(probs))
	for i := range ranked {
		ranked[i] = i
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return probs[ranked[a]].data > probs[ranked[b]].data
	})
	if k > len(ranked) {
		k = len(ranked)
	}
	out := make([]event.TokenProb, 0, k)
	for _, tokenID := range ranked[:k] {
		out = append(out, event.TokenProb{
			TokenID: tokenID,
			Token:   voc.tokenString(tokenID),
			Prob:    round6(probs[tokenID].data),
		})
	}
	return out
}

// newCache allocates empty per-layer KV caches.
func newCache(layers int) [][][]*value {
	cache := make([][][]*value, layers)
	for i := range cache {
		cache[i] = nil
	}
	return cache
}

func round6(x float64) float64 {
	return math.Round(x*1e6) / 1e6
}

func round8(x float64) float64 {
	return math.Round(x*1e8) / 1e8
}

// vocab is a character-level tokenizer with a BOS sentinel after the last
// character id.
type vocab struct {
	chars []rune
	index map[rune]int
	bosID int
}

func newVocab(docs []string) (vocab, error) {
	seen := map[rune]struct{}{}
	for _, doc := range docs {
		for _, r := range doc {
			seen[r] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return vocab{}, fmt.Errorf("no characters available in corpus")
	}
	chars := make([]rune, 0, len(seen))
	for r := range seen {
		chars = append(chars, r)
	}
	sort.Slice(chars, func(i, j int) bool { return chars[i] < chars[j] })
	index := make(map[rune]int, len(chars))
	for i, r := range chars {
		index[r] = i
	}
	return vocab{chars: chars, index: index, bosID: len(chars)}, nil
}

// size includes the BOS sentinel.
func (v vocab) size() int {
	return len(v.chars) + 1
}

// encode wraps a document in BOS markers.
func (v vocab) encode(doc string) []int {
	tokens := make([]int, 0, len(doc)+2)
	tokens = append(tokens, v.bosID)
	for _, r := range doc {
		tokens = append(tokens, v.index[r])
	}
	tokens = append(tokens, v.bosID)
	return tokens
}

func (v vocab) tokenString(tokenID int) string {
	if tokenID == v.bosID {
		return "<BOS>"
	}
	return string(v.chars[tokenID])
}
