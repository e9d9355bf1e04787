// Package trainer runs a tiny character-level GPT on a scalar autograd
// engine, emitting one typed event per notable phase of every step. It is a
// pure producer: it never assigns sequence numbers and never touches run
// state beyond the emit and cancel callbacks it is given.
package trainer

import "math"

// value is one node of the computation graph. Node ids are assigned by the
// owning graph in creation order, which keeps op-graph snapshots
// deterministic for a fixed seed.
type value struct {
	id         int64
	data       float64
	grad       float64
	children   []*value
	localGrads []float64
}

// graph allocates values and owns the id counter.
type graph struct {
	nextID int64
}

func (g *graph) node(data float64, children []*value, localGrads []float64) *value {
	g.nextID++
	return &value{id: g.nextID, data: data, children: children, localGrads: localGrads}
}

func (g *graph) val(x float64) *value {
	return g.node(x, nil, nil)
}

func (g *graph) add(a, b *value) *value {
	return g.node(a.data+b.data, []*value{a, b}, []float64{1, 1})
}

func (g *graph) mul(a, b *value) *value {
	return g.node(a.data*b.data, []*value{a, b}, []float64{b.data, a.data})
}

func (g *graph) pow(a *value, p float64) *value {
	return g.node(math.Pow(a.data, p), []*value{a}, []float64{p * math.Pow(a.data, p-1)})
}

func (g *graph) div(a, b *value) *value {
	return g.mul(a, g.pow(b, -1))
}

func (g *graph) sub(a, b *value) *value {
	return g.add(a, g.mul(b, g.val(-1)))
}

func (g *graph) log(a *value) *value {
	return g.node(math.Log(a.data), []*value{a}, []float64{1 / a.data})
}

func (g *graph) exp(a *value) *value {
	e := math.Exp(a.data)
	return g.node(e, []*value{a}, []float64{e})
}

func (g *graph) relu(a *value) *value {
	if a.data > 0 {
		return g.node(a.data, []*value{a}, []float64{1})
	}
	return g.node(0, []*value{a}, []float64{0})
}

// backward seeds the root gradient and back-propagates through the graph in
// reverse topological order.
func backward(root *value) {
	topo := topoSort(root)
	root.grad = 1
	for i := len(topo) - 1; i >= 0; i-- {
		node := topo[i]
		for j, child := range node.children {
			child.grad += node.localGrads[j] * node.grad
		}
	}
}

// topoSort returns the graph reachable from root in topological order, root
// last. Iterative to keep deep loss chains off the call stack.
func topoSort(root *value) []*value {
	var topo []*value
	visited := map[*value]bool{}
	type frame struct {
		node  *value
		child int
	}
	stack := []frame{{node: root}}
	visited[root] = true
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.child < len(top.node.children) {
			child := top.node.children[top.child]
			top.child++
			if !visited[child] {
				visited[child] = true
				stack = append(stack, frame{node: child})
			}
			continue
		}
		topo = append(topo, top.node)
		stack = stack[:len(stack)-1]
	}
	return topo
}

// linear applies a weight matrix to a vector.
func (g *graph) linear(x []*value, w [][]*value) []*value {
	out := make([]*value, len(w))
	for o, row := range w {
		sum := g.val(0)
		for i := range x {
			sum = g.add(sum, g.mul(row[i], x[i]))
		}
		out[o] = sum
	}
	return out
}

// softmax converts logits to probabilities, shifted by the max for stability.
func (g *graph) softmax(logits []*value) []*value {
	maxVal := logits[0].data
	for _, l := range logits[1:] {
		if l.data > maxVal {
			maxVal = l.data
		}
	}
	exps := make([]*value, len(logits))
	total := g.val(0)
	for i, l := range logits {
		exps[i] = g.exp(g.sub(l, g.val(maxVal)))
		total = g.add(total, exps[i])
	}
	probs := make([]*value, len(logits))
	for i := range exps {
		probs[i] = g.div(exps[i], total)
	}
	return probs
}

// rmsnorm scales a vector by the inverse root of its mean square.
func (g *graph) rmsnorm(x []*value) []*value {
	ms := g.val(0)
	for _, xi := range x {
		ms = g.add(ms, g.mul(xi, xi))
	}
	ms = g.div(ms, g.val(float64(len(x))))
	scale := g.pow(g.add(ms, g.val(1e-5)), -0.5)
	out := make([]*value, len(x))
	for i, xi := range x {
		out[i] = g.mul(xi, scale)
	}
	return out
}
