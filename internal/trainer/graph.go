package trainer

import "llmlab/internal/event"

// opGraphMaxNodes bounds snapshot size; the tail of the topological order
// keeps the nodes closest to the loss.
const opGraphMaxNodes = 160

// snapshotGraph serializes the computation graph reachable from root into an
// op-graph payload, trimmed to the last opGraphMaxNodes topo-ordered nodes.
// Edges are restricted to pairs where both ends survive the trim.
func snapshotGraph(root *value, step int) *event.OpGraph {
	topo := topoSort(root)
	if len(topo) > opGraphMaxNodes {
		topo = topo[len(topo)-opGraphMaxNodes:]
	}
	kept := make(map[int64]bool, len(topo))
	for _, node := range topo {
		kept[node.id] = true
	}
	nodes := make([]event.GraphNode, 0, len(topo))
	var edges []event.GraphEdge
	for _, node := range topo {
		nodes = append(nodes, event.GraphNode{
			ID:    node.id,
			Value: round6(node.data),
			Grad:  round6(node.grad),
		})
		for _, child := range node.children {
			if kept[child.id] {
				edges = append(edges, event.GraphEdge{Source: child.id, Target: node.id})
			}
		}
	}
	return &event.OpGraph{Step: step, Nodes: nodes, Edges: edges}
}
