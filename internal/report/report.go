// Package report renders routing results for terminal output.
package report

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/signalsfoundry/starlinker/core"
)

// NoPathHint is printed when both endpoints exist but are disconnected.
const NoPathHint = "No path found. Increase satellite density to bridge the gap."

// Row is one hop of a routing table. The first row has no inbound link.
type Row struct {
	Index      int
	Node       string
	Kind       core.NodeKind
	Link       core.LinkKind
	DistanceKm float64
	Weight     float64
}

// Route is a rendered-ready routing result.
type Route struct {
	From    string
	To      string
	Step    float64
	Weather core.Weather
	Path    core.Path
	Rows    []Row
	Err     error
}

// NewRoute assembles the per-hop rows for p as found in g. err is the
// error ShortestPath returned, if any.
func NewRoute(g *core.TopologyGraph, from, to string, step float64, weather core.Weather, p core.Path, err error) Route {
	r := Route{From: from, To: to, Step: step, Weather: weather, Path: p, Err: err}
	if err != nil || g == nil {
		return r
	}
	for i, id := range p.Nodes {
		row := Row{Index: i, Node: id}
		if n, ok := g.Node(id); ok {
			row.Kind = n.Kind
		}
		if i > 0 {
			if e, ok := g.Edge(p.Nodes[i-1], id); ok {
				row.Link = e.Kind
				row.DistanceKm = e.DistanceKm
				row.Weight = e.Weight
			}
		}
		r.Rows = append(r.Rows, row)
	}
	return r
}

// Summary is the one-line verdict for the route.
func (r Route) Summary() string {
	switch {
	case r.Err == nil:
		return fmt.Sprintf("Connection established via %d hops", r.Path.Hops())
	case errors.Is(r.Err, core.ErrUnknownNode):
		return fmt.Sprintf("Unknown endpoint: %v", r.Err)
	case errors.Is(r.Err, core.ErrNoPathFound):
		return NoPathHint
	default:
		return fmt.Sprintf("Routing failed: %v", r.Err)
	}
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	groundStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("229"))
	satStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	okStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#E84A27"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("60"))
)

var columnWidths = [...]int{4, 28, 16, 8, 14}

func cell(s string, col int, style lipgloss.Style) string {
	return style.Width(columnWidths[col]).Render(s)
}

// Render formats the route as a titled table followed by the summary.
func Render(r Route) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("%s → %s", r.From, r.To)))
	b.WriteString(mutedStyle.Render(fmt.Sprintf("  (step %g, weather %s)", r.Step, r.Weather)))
	b.WriteString("\n\n")

	if r.Err != nil {
		b.WriteString(errorStyle.Render(r.Summary()))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		cell("#", 0, headerStyle),
		cell("Node", 1, headerStyle),
		cell("Type", 2, headerStyle),
		cell("Link", 3, headerStyle),
		cell("Distance (km)", 4, headerStyle),
	))
	b.WriteString("\n")

	for _, row := range r.Rows {
		style := satStyle
		if row.Kind == core.NodeGroundStation {
			style = groundStyle
		}
		link, dist := "", ""
		if row.Index > 0 {
			link = string(row.Link)
			dist = fmt.Sprintf("%.1f", row.DistanceKm)
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			cell(fmt.Sprintf("%d", row.Index), 0, style),
			cell(row.Node, 1, style),
			cell(row.Kind.Label(), 2, style),
			cell(link, 3, style),
			cell(dist, 4, style),
		))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(okStyle.Render(r.Summary()))
	b.WriteString(mutedStyle.Render(fmt.Sprintf("  weight %.1f · %.1f km · %.2f ms", r.Path.Weight, r.Path.DistanceKm, r.Path.LatencyMs())))
	b.WriteString("\n")
	return b.String()
}
