package engine

import (
	"testing"

	"github.com/dproject-io/dproject/internal/project"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flowConfig() *project.Config {
	return &project.Config{
		Commands: []*project.Command{
			{Name: "train", Deps: []string{"corpus/train.spacy"}, Outputs: []string{"training/model-best"}},
			{Name: "convert", Deps: []string{"assets/raw.jsonl"}, Outputs: []string{"corpus"}},
			{Name: "evaluate", Deps: []string{"training/model-best", "corpus/dev.spacy"}, OutputsNoCache: []string{"metrics.json"}},
			{Name: "lint"},
		},
		Workflows: map[string][]string{
			"all":      {"convert", "train", "evaluate"},
			"backward": {"train", "convert"},
		},
		WorkflowOrder: []string{"all", "backward"},
	}
}

func TestFlowGraph_Producers(t *testing.T) {
	g := BuildFlowGraph(flowConfig())

	assert.Equal(t, []string{"train", "convert", "evaluate", "lint"}, g.Names())
	assert.Equal(t, []string{"convert"}, g.Producers("train"))
	assert.Equal(t, []string{"train", "convert"}, g.Producers("evaluate"))
	assert.Empty(t, g.Producers("convert"))
	assert.Empty(t, g.Producers("unknown"))
}

func TestFlowGraph_Order(t *testing.T) {
	order, err := BuildFlowGraph(flowConfig()).Order()
	require.NoError(t, err)

	require.Len(t, order, 4)
	assert.Less(t, indexOf(order, "convert"), indexOf(order, "train"))
	assert.Less(t, indexOf(order, "train"), indexOf(order, "evaluate"))
}

func TestFlowGraph_OrderCycle(t *testing.T) {
	cfg := &project.Config{
		Commands: []*project.Command{
			{Name: "a", Deps: []string{"b.txt"}, Outputs: []string{"a.txt"}},
			{Name: "b", Deps: []string{"a.txt"}, Outputs: []string{"b.txt"}},
			{Name: "c"},
		},
	}

	order, err := BuildFlowGraph(cfg).Order()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a, b")
	assert.Equal(t, []string{"c"}, order)
}

func TestFlowGraph_OrderWarnings(t *testing.T) {
	cfg := flowConfig()
	g := BuildFlowGraph(cfg)

	assert.Empty(t, g.OrderWarnings("all", cfg.Workflows["all"]))
	warnings := g.OrderWarnings("backward", cfg.Workflows["backward"])
	require.Len(t, warnings, 1)
	assert.Equal(t, "Workflow 'backward' runs 'train' before 'convert', which produces one of its dependencies", warnings[0])
}

func TestFlowGraph_DOT(t *testing.T) {
	cfg := flowConfig()
	dot := BuildFlowGraph(cfg).DOT(cfg)

	assert.Contains(t, dot, "digraph dproject {")
	assert.Contains(t, dot, `"convert" -> "train";`)
	assert.Contains(t, dot, `"train" -> "evaluate";`)
	assert.Contains(t, dot, `label = "all";`)
	assert.Contains(t, dot, `"convert" -> "train" [style = dotted];`)
}

func TestConsumes(t *testing.T) {
	tests := []struct {
		deps, outputs []string
		want          bool
	}{
		{[]string{"a.txt"}, []string{"a.txt"}, true},
		{[]string{"corpus/train.spacy"}, []string{"corpus"}, true},
		{[]string{"corpus/train.spacy"}, []string{"./corpus/"}, true},
		{[]string{"corpus2/x"}, []string{"corpus"}, false},
		{nil, []string{"a"}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, consumes(tt.deps, tt.outputs), "deps=%v outputs=%v", tt.deps, tt.outputs)
	}
}

func indexOf(s []string, target string) int {
	for i, v := range s {
		if v == target {
			return i
		}
	}
	return -1
}
