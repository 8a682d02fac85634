// Package workflow compiles a campaign workflow into a dependency graph and
// samples per-trial failures over it.
//
// A graph is compiled once per run. Compile computes a stable topological
// order (Kahn's algorithm, ties broken by input position) and rejects cyclic
// input; every trial then walks that order, so a node is always visited after
// all of its dependencies.
package workflow

import (
	"fmt"
	"math"
	"sort"
	"strings"

	apperrors "campaignsim/internal/platform/errors"
	"campaignsim/internal/rng"
	"campaignsim/internal/types"
)

// SlotOffset is the first draw slot used for node failures. Node i in
// topological order reads slot SlotOffset+i.
const SlotOffset = 16

var typeWeights = map[types.NodeType]float64{
	types.NodeValidation: 1.5,
	types.NodeAutomation: 1.2,
	types.NodeAgent:      1.0,
	types.NodeRender:     1.0,
}

func weightOf(t types.NodeType) float64 {
	if w, ok := typeWeights[t]; ok {
		return w
	}
	return 1.0
}

type Graph struct {
	nodes       []types.WorkflowNode // topological order
	deps        [][]int              // positions in nodes
	weights     []float64
	totalWeight float64
	critical    float64
}

// Outcome is the result of one sampled trial over the graph.
type Outcome struct {
	// FailureEstimate is the type-weighted share of nodes that failed,
	// counting nodes blocked by a failed dependency.
	FailureEstimate float64
	// TotalDuration is the critical path in ms, with own failures retried
	// once at full duration.
	TotalDuration float64
	Failed        int
}

func configErr(format string, args ...any) error {
	return apperrors.Newf(apperrors.CodeConfiguration, format, args...)
}

// Compile validates nodes and orders them topologically.
func Compile(nodes []types.WorkflowNode) (*Graph, error) {
	if len(nodes) == 0 {
		return nil, configErr("workflow must contain at least one node")
	}

	position := make(map[string]int, len(nodes))
	for i, n := range nodes {
		if strings.TrimSpace(n.ID) == "" {
			return nil, configErr("workflow node %d has an empty id", i)
		}
		if _, dup := position[n.ID]; dup {
			return nil, configErr("workflow node %q is defined twice", n.ID)
		}
		if math.IsNaN(n.FailureRate) || n.FailureRate < 0 || n.FailureRate > 1 {
			return nil, configErr("workflow node %q failure rate %v outside [0,1]", n.ID, n.FailureRate)
		}
		if math.IsNaN(n.EstimatedDuration) || math.IsInf(n.EstimatedDuration, 0) || n.EstimatedDuration < 0 {
			return nil, configErr("workflow node %q has invalid duration %v", n.ID, n.EstimatedDuration)
		}
		position[n.ID] = i
	}

	indegree := make([]int, len(nodes))
	dependents := make([][]int, len(nodes))
	inputDeps := make([][]int, len(nodes))
	for i, n := range nodes {
		seen := make(map[int]bool, len(n.Dependencies))
		for _, dep := range n.Dependencies {
			j, ok := position[dep]
			if !ok {
				return nil, configErr("workflow node %q depends on unknown node %q", n.ID, dep)
			}
			if j == i {
				return nil, apperrors.WithMetadata(apperrors.CodeConfiguration,
					fmt.Sprintf("workflow node %q depends on itself", n.ID),
					map[string]string{"nodes": n.ID})
			}
			if seen[j] {
				continue
			}
			seen[j] = true
			inputDeps[i] = append(inputDeps[i], j)
			dependents[j] = append(dependents[j], i)
			indegree[i]++
		}
	}
	for j := range dependents {
		sort.Ints(dependents[j])
	}

	queue := make([]int, 0, len(nodes))
	for i := range nodes {
		if indegree[i] == 0 {
			queue = append(queue, i)
		}
	}
	order := make([]int, 0, len(nodes))
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		order = append(order, i)
		for _, d := range dependents[i] {
			indegree[d]--
			if indegree[d] == 0 {
				queue = append(queue, d)
			}
		}
	}
	if len(order) < len(nodes) {
		var stuck []string
		for i, deg := range indegree {
			if deg > 0 {
				stuck = append(stuck, nodes[i].ID)
			}
		}
		return nil, apperrors.WithMetadata(apperrors.CodeConfiguration,
			fmt.Sprintf("workflow has a dependency cycle through %s", strings.Join(stuck, ", ")),
			map[string]string{"nodes": strings.Join(stuck, ",")})
	}

	g := &Graph{
		nodes:   make([]types.WorkflowNode, len(nodes)),
		deps:    make([][]int, len(nodes)),
		weights: make([]float64, len(nodes)),
	}
	topoPos := make([]int, len(nodes))
	for pos, i := range order {
		topoPos[i] = pos
	}
	finish := make([]float64, len(nodes))
	for pos, i := range order {
		g.nodes[pos] = nodes[i]
		g.weights[pos] = weightOf(nodes[i].Type)
		g.totalWeight += g.weights[pos]
		start := 0.0
		for _, j := range inputDeps[i] {
			g.deps[pos] = append(g.deps[pos], topoPos[j])
			start = math.Max(start, finish[topoPos[j]])
		}
		finish[pos] = start + nodes[i].EstimatedDuration
		g.critical = math.Max(g.critical, finish[pos])
	}
	return g, nil
}

func (g *Graph) Len() int { return len(g.nodes) }

// Order returns node ids in topological order.
func (g *Graph) Order() []string {
	ids := make([]string, len(g.nodes))
	for i, n := range g.nodes {
		ids[i] = n.ID
	}
	return ids
}

// CriticalPath is the longest dependency chain in ms with no failures.
func (g *Graph) CriticalPath() float64 { return g.critical }

// StaticFailureProbability is the analytic chance that at least one node
// fails in a trial. Propagation never changes whether some node failed.
func (g *Graph) StaticFailureProbability() float64 {
	ok := 1.0
	for _, n := range g.nodes {
		ok *= 1 - n.FailureRate
	}
	return 1 - ok
}

// AgentShare is the fraction of nodes that are agent steps.
func (g *Graph) AgentShare() float64 {
	agents := 0
	for _, n := range g.nodes {
		if n.Type == types.NodeAgent {
			agents++
		}
	}
	return float64(agents) / float64(len(g.nodes))
}

// Evaluate samples one trial. Each node reads its own slot whether or not an
// upstream node failed, so slot use is fixed per graph.
func (g *Graph) Evaluate(d *rng.Draws) Outcome {
	failed := make([]bool, len(g.nodes))
	finish := make([]float64, len(g.nodes))

	var out Outcome
	failedWeight := 0.0
	for i, n := range g.nodes {
		own := d.At(SlotOffset+uint64(i)) < n.FailureRate

		start := 0.0
		blocked := false
		for _, j := range g.deps[i] {
			if failed[j] {
				blocked = true
			}
			start = math.Max(start, finish[j])
		}

		duration := n.EstimatedDuration
		if own {
			duration *= 2
		}
		finish[i] = start + duration
		out.TotalDuration = math.Max(out.TotalDuration, finish[i])

		if own || blocked {
			failed[i] = true
			failedWeight += g.weights[i]
			out.Failed++
		}
	}
	if g.totalWeight > 0 {
		out.FailureEstimate = failedWeight / g.totalWeight
	}
	return out
}
