package core

import (
	"container/heap"
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrUnknownNode means a route endpoint is not a vertex of the graph,
	// e.g. a satellite that was disabled in this rebuild.
	ErrUnknownNode = errors.New("unknown node")
	// ErrNoPathFound means both endpoints exist but are disconnected.
	ErrNoPathFound = errors.New("no path found")
)

// UnknownNodeError names the endpoints missing from the graph. It
// matches ErrUnknownNode under errors.Is.
type UnknownNodeError struct {
	IDs []string
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("unknown node: %s", strings.Join(e.IDs, ", "))
}

// Is lets errors.Is(err, ErrUnknownNode) match.
func (e *UnknownNodeError) Is(target error) bool {
	return target == ErrUnknownNode
}

// RouteOutcome is the tagged result of a routing query.
type RouteOutcome string

const (
	RouteOK          RouteOutcome = "ok"
	RouteNoPath      RouteOutcome = "no_path"
	RouteUnknownNode RouteOutcome = "unknown_node"
	RouteError       RouteOutcome = "error"
)

// Outcome classifies the error returned by ShortestPath.
func Outcome(err error) RouteOutcome {
	switch {
	case err == nil:
		return RouteOK
	case errors.Is(err, ErrUnknownNode):
		return RouteUnknownNode
	case errors.Is(err, ErrNoPathFound):
		return RouteNoPath
	default:
		return RouteError
	}
}

// Path is a route through a TopologyGraph.
type Path struct {
	Nodes  []string
	Weight float64
	// DistanceKm is the physical length of the route, before any weather
	// penalty.
	DistanceKm float64
}

// Hops returns the number of intermediate relay nodes.
func (p Path) Hops() int {
	if len(p.Nodes) < 2 {
		return 0
	}
	return len(p.Nodes) - 2
}

// LatencyMs estimates one-way propagation delay along the path.
func (p Path) LatencyMs() float64 {
	return p.DistanceKm / SpeedOfLightKmPerSec * 1000
}

// ShortestPath returns the minimum-weight route from src to dst using
// Dijkstra's algorithm, stopping once dst is settled.
//
// Which of several equal-weight routes is returned is unspecified.
// The graph is only read.
func ShortestPath(g *TopologyGraph, src, dst string) (Path, error) {
	var missing []string
	if g == nil || !g.HasNode(src) {
		missing = append(missing, src)
	}
	if (g == nil || !g.HasNode(dst)) && dst != src {
		missing = append(missing, dst)
	}
	if len(missing) > 0 {
		return Path{}, &UnknownNodeError{IDs: missing}
	}
	if src == dst {
		return Path{Nodes: []string{src}}, nil
	}

	dist := make(map[string]float64, g.NodeCount())
	prev := make(map[string]string, g.NodeCount())
	settled := make(map[string]bool, g.NodeCount())

	dist[src] = 0
	pq := &nodeQueue{{id: src, dist: 0}}

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(queueItem)
		if settled[cur.id] {
			continue
		}
		settled[cur.id] = true
		if cur.id == dst {
			break
		}

		for nb, e := range g.adj[cur.id] {
			if settled[nb] {
				continue
			}
			alt := cur.dist + e.Weight
			if d, seen := dist[nb]; seen && alt >= d {
				continue
			}
			dist[nb] = alt
			prev[nb] = cur.id
			heap.Push(pq, queueItem{id: nb, dist: alt})
		}
	}

	if !settled[dst] {
		return Path{}, fmt.Errorf("%w: %s -> %s", ErrNoPathFound, src, dst)
	}

	nodes := []string{dst}
	for at := dst; at != src; {
		at = prev[at]
		nodes = append(nodes, at)
	}
	for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
		nodes[i], nodes[j] = nodes[j], nodes[i]
	}

	p := Path{Nodes: nodes, Weight: dist[dst]}
	for i := 0; i+1 < len(nodes); i++ {
		e, _ := g.Edge(nodes[i], nodes[i+1])
		p.DistanceKm += e.DistanceKm
	}
	return p, nil
}

// PathWeight sums edge weights along nodes, failing if any consecutive
// pair is not linked in g.
func PathWeight(g *TopologyGraph, nodes []string) (float64, error) {
	total := 0.0
	for i := 0; i+1 < len(nodes); i++ {
		e, ok := g.Edge(nodes[i], nodes[i+1])
		if !ok {
			return math.Inf(1), fmt.Errorf("%w: %s -> %s is not a link", ErrNoPathFound, nodes[i], nodes[i+1])
		}
		total += e.Weight
	}
	return total, nil
}

type queueItem struct {
	id   string
	dist float64
}

// nodeQueue is a min-heap on dist.
type nodeQueue []queueItem

func (q nodeQueue) Len() int { return len(q) }
func (q nodeQueue) Less(i, j int) bool {
	if q[i].dist != q[j].dist {
		return q[i].dist < q[j].dist
	}
	return q[i].id < q[j].id
}
func (q nodeQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *nodeQueue) Push(x any)   { *q = append(*q, x.(queueItem)) }
func (q *nodeQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
