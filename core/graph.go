package core

import "sort"

// NodeKind distinguishes orbital and terrestrial nodes.
type NodeKind string

const (
	NodeSatellite     NodeKind = "satellite"
	NodeGroundStation NodeKind = "ground_station"
)

// Label returns a human-readable name for the node kind.
func (k NodeKind) Label() string {
	switch k {
	case NodeSatellite:
		return "LEO Satellite"
	case NodeGroundStation:
		return "Ground Station"
	default:
		return string(k)
	}
}

// LinkKind distinguishes inter-satellite links from ground links.
type LinkKind string

const (
	LinkISL    LinkKind = "isl"
	LinkGround LinkKind = "ground"
)

// Node is a vertex of a TopologyGraph.
type Node struct {
	ID       string   `json:"id"`
	Kind     NodeKind `json:"kind"`
	Position Vec3     `json:"position"`
}

// Edge is an undirected link. A and B are ordered lexically so the same
// pair always yields the same Edge value.
type Edge struct {
	A          string   `json:"a"`
	B          string   `json:"b"`
	Kind       LinkKind `json:"kind"`
	DistanceKm float64  `json:"distance_km"`
	// Weight is the routing cost: the distance, scaled by the weather
	// penalty on ground links.
	Weight float64 `json:"weight"`
}

// Other returns the endpoint of e opposite to id.
func (e Edge) Other(id string) string {
	if e.A == id {
		return e.B
	}
	return e.A
}

// TopologyGraph is an immutable connectivity snapshot produced by
// TopologyBuilder.Build. It is safe for concurrent readers.
type TopologyGraph struct {
	nodes map[string]Node
	adj   map[string]map[string]Edge
	edges int
}

func newTopologyGraph(capacity int) *TopologyGraph {
	return &TopologyGraph{
		nodes: make(map[string]Node, capacity),
		adj:   make(map[string]map[string]Edge, capacity),
	}
}

func (g *TopologyGraph) addNode(n Node) {
	g.nodes[n.ID] = n
	if _, ok := g.adj[n.ID]; !ok {
		g.adj[n.ID] = make(map[string]Edge)
	}
}

// addEdge must only be called with two admitted, distinct nodes.
func (g *TopologyGraph) addEdge(a, b string, kind LinkKind, distanceKm, weight float64) {
	if a > b {
		a, b = b, a
	}
	e := Edge{A: a, B: b, Kind: kind, DistanceKm: distanceKm, Weight: weight}
	if _, exists := g.adj[a][b]; !exists {
		g.edges++
	}
	g.adj[a][b] = e
	g.adj[b][a] = e
}

// HasNode reports whether id is a vertex of the graph.
func (g *TopologyGraph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Node returns the vertex with the given id.
func (g *TopologyGraph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// NodeCount returns the number of vertices.
func (g *TopologyGraph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of undirected edges.
func (g *TopologyGraph) EdgeCount() int { return g.edges }

// NodeIDs returns all vertex identifiers in sorted order.
func (g *TopologyGraph) NodeIDs() []string {
	out := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Edge returns the link between a and b, if any.
func (g *TopologyGraph) Edge(a, b string) (Edge, bool) {
	e, ok := g.adj[a][b]
	return e, ok
}

// Neighbors returns the links incident to id, sorted by neighbour ID.
func (g *TopologyGraph) Neighbors(id string) []Edge {
	m := g.adj[id]
	out := make([]Edge, 0, len(m))
	for _, e := range m {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Other(id) < out[j].Other(id)
	})
	return out
}

// Edges returns every undirected edge once, sorted by (A, B).
func (g *TopologyGraph) Edges() []Edge {
	out := make([]Edge, 0, g.edges)
	for a, m := range g.adj {
		for b, e := range m {
			if a < b {
				out = append(out, e)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

// EdgeCountByKind splits EdgeCount by link kind.
func (g *TopologyGraph) EdgeCountByKind() map[LinkKind]int {
	out := map[LinkKind]int{LinkISL: 0, LinkGround: 0}
	for a, m := range g.adj {
		for b, e := range m {
			if a < b {
				out[e.Kind]++
			}
		}
	}
	return out
}
