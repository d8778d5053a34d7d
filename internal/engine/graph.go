package engine

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dproject-io/dproject/internal/project"
)

// FlowGraph links each command to the commands whose outputs it depends on.
// It is informational: workflows still run in their declared order.
type FlowGraph struct {
	nodes map[string]*flowNode
	names []string
}

type flowNode struct {
	name     string
	edges    []string // commands this command consumes outputs of
	revEdges []string // commands that consume this command's outputs
}

// BuildFlowGraph derives producer/consumer edges from the deps and outputs of
// every command. A dependency matches an output when it names the same path
// or a path inside it.
func BuildFlowGraph(cfg *project.Config) *FlowGraph {
	g := &FlowGraph{nodes: map[string]*flowNode{}}
	for _, name := range cfg.CommandNames() {
		g.nodes[name] = &flowNode{name: name}
		g.names = append(g.names, name)
	}

	for _, consumer := range g.names {
		cmd, _ := cfg.Command(consumer)
		for _, producer := range g.names {
			if producer == consumer {
				continue
			}
			prod, _ := cfg.Command(producer)
			if consumes(cmd.Deps, prod.AllOutputs()) {
				g.nodes[consumer].edges = append(g.nodes[consumer].edges, producer)
				g.nodes[producer].revEdges = append(g.nodes[producer].revEdges, consumer)
			}
		}
	}
	return g
}

func consumes(deps, outputs []string) bool {
	for _, d := range deps {
		d = filepath.Clean(d)
		for _, o := range outputs {
			o = filepath.Clean(o)
			if d == o || strings.HasPrefix(d, o+string(filepath.Separator)) {
				return true
			}
		}
	}
	return false
}

// Names returns the commands in declaration order.
func (g *FlowGraph) Names() []string {
	return g.names
}

// Producers returns the commands whose outputs name depends on.
func (g *FlowGraph) Producers(name string) []string {
	if node, ok := g.nodes[name]; ok {
		return node.edges
	}
	return nil
}

// Order returns the commands sorted so that producers precede consumers,
// keeping declaration order among independent commands.
func (g *FlowGraph) Order() ([]string, error) {
	inDegree := make(map[string]int, len(g.nodes))
	for name, node := range g.nodes {
		inDegree[name] = len(node.edges)
	}

	var queue []string
	for _, name := range g.names {
		if inDegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	var sorted []string
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		sorted = append(sorted, name)

		for _, dependent := range g.nodes[name].revEdges {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(sorted) != len(g.nodes) {
		var stuck []string
		for _, name := range g.names {
			if !slices.Contains(sorted, name) {
				stuck = append(stuck, name)
			}
		}
		return sorted, fmt.Errorf("commands depend on each other's outputs in a cycle: %s", strings.Join(stuck, ", "))
	}
	return sorted, nil
}

// OrderWarnings reports steps of a workflow that run before a step producing
// one of their dependencies.
func (g *FlowGraph) OrderWarnings(workflow string, steps []string) []string {
	position := make(map[string]int, len(steps))
	for i, step := range steps {
		if _, seen := position[step]; !seen {
			position[step] = i
		}
	}

	var warnings []string
	for i, step := range steps {
		for _, producer := range g.Producers(step) {
			if j, ok := position[producer]; ok && j > i {
				warnings = append(warnings, fmt.Sprintf(
					"Workflow '%s' runs '%s' before '%s', which produces one of its dependencies",
					workflow, step, producer))
			}
		}
	}
	return warnings
}

// DOT renders the graph in Graphviz format with one cluster per workflow.
func (g *FlowGraph) DOT(cfg *project.Config) string {
	var b strings.Builder
	b.WriteString("digraph dproject {\n")
	b.WriteString("  rankdir = \"LR\";\n")
	b.WriteString("  node [shape = rect];\n\n")

	for _, name := range g.names {
		fmt.Fprintf(&b, "  %q;\n", name)
	}
	b.WriteString("\n")

	for _, name := range g.names {
		for _, producer := range g.nodes[name].edges {
			fmt.Fprintf(&b, "  %q -> %q;\n", producer, name)
		}
	}

	for i, wf := range cfg.WorkflowNames() {
		fmt.Fprintf(&b, "\n  subgraph \"cluster_%d\" {\n", i)
		fmt.Fprintf(&b, "    label = %q;\n", wf)
		fmt.Fprintf(&b, "    style = dashed;\n")
		steps := cfg.Workflows[wf]
		for j, step := range steps {
			fmt.Fprintf(&b, "    %q;\n", step)
			if j > 0 {
				fmt.Fprintf(&b, "    %q -> %q [style = dotted];\n", steps[j-1], step)
			}
		}
		b.WriteString("  }\n")
	}

	b.WriteString("}\n")
	return b.String()
}
