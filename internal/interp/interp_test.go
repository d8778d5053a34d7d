package interp

import (
	"testing"

	"github.com/dproject-io/dproject/internal/overrides"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func sampleTree() map[string]any {
	return map[string]any{
		"title": "Train ${vars.name}",
		"vars": map[string]any{
			"name":       "ner",
			"batch_size": int64(128),
			"gpu":        false,
			"corpus":     "corpus/${vars.name}",
		},
		"env": map[string]any{
			"token": "HF_TOKEN",
			"gpus":  "GPU_COUNT",
		},
		"directories": []any{"${vars.corpus}", "training"},
		"commands": []any{
			map[string]any{
				"name":   "${vars.name}",
				"script": []any{"python train.py --batch ${vars.batch_size} --gpus ${env.gpus}"},
				"deps":   []any{"${vars.corpus}/train.spacy"},
				"no_skip": "${vars.gpu}",
			},
		},
		"workflows": map[string]any{
			"all": []any{"${vars.name}"},
		},
		"assets": []any{map[string]any{"dest": "${vars.corpus}"}},
	}
}

func TestResolveSubstitutesVarsAndEnv(t *testing.T) {
	tree := sampleTree()
	require.NoError(t, ResolveEnv(tree, lookupFrom(map[string]string{"HF_TOKEN": "abc", "GPU_COUNT": "2"})))
	require.NoError(t, Resolve(tree))

	assert.Equal(t, "Train ner", tree["title"])
	assert.Equal(t, []any{"corpus/ner", "training"}, tree["directories"])

	cmd := tree["commands"].([]any)[0].(map[string]any)
	assert.Equal(t, "${vars.name}", cmd["name"], "command names are never interpolated")
	assert.Equal(t, []any{"python train.py --batch 128 --gpus 2"}, cmd["script"])
	assert.Equal(t, []any{"corpus/ner/train.spacy"}, cmd["deps"])
	assert.Equal(t, false, cmd["no_skip"], "a lone placeholder keeps the native type")

	assert.Equal(t, []any{"ner"}, tree["workflows"].(map[string]any)["all"])

	env := tree["env"].(map[string]any)
	assert.Equal(t, "abc", env["token"])
	assert.Equal(t, int64(2), env["gpus"])

	assets := tree["assets"].([]any)[0].(map[string]any)
	assert.Equal(t, "${vars.corpus}", assets["dest"], "assets are opaque")
}

func TestResolveEnvUnsetIsEmptyString(t *testing.T) {
	tree := map[string]any{"env": map[string]any{"token": "MISSING"}}
	require.NoError(t, ResolveEnv(tree, lookupFrom(nil)))
	assert.Equal(t, "", tree["env"].(map[string]any)["token"])
}

func TestResolveDollarEscape(t *testing.T) {
	tree := map[string]any{
		"vars": map[string]any{"price": "$$5 ${vars.unit}", "unit": "USD"},
		"commands": []any{
			map[string]any{"name": "a", "script": []any{"echo $HOME $${vars.unit} ${vars.price}"}},
		},
	}
	require.NoError(t, Resolve(tree))

	assert.Equal(t, "$5 USD", tree["vars"].(map[string]any)["price"])
	cmd := tree["commands"].([]any)[0].(map[string]any)
	assert.Equal(t, []any{"echo $HOME ${vars.unit} $5 USD"}, cmd["script"])
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name     string
		tree     map[string]any
		wantPath string
		wantMsg  string
	}{
		{
			name: "undefined var",
			tree: map[string]any{
				"commands": []any{map[string]any{"name": "a", "script": []any{"echo ${vars.nope}"}}},
			},
			wantPath: "commands.0.script.0",
			wantMsg:  "not defined",
		},
		{
			name:     "unterminated",
			tree:     map[string]any{"title": "x ${vars.name"},
			wantPath: "title",
			wantMsg:  "unterminated",
		},
		{
			name:     "unknown namespace",
			tree:     map[string]any{"title": "${paths.root}"},
			wantPath: "title",
			wantMsg:  "must refer to vars or env",
		},
		{
			name:     "malformed reference",
			tree:     map[string]any{"title": "${vars}"},
			wantPath: "title",
			wantMsg:  "malformed",
		},
		{
			name: "cycle",
			tree: map[string]any{
				"vars": map[string]any{"a": "${vars.b}", "b": "x${vars.a}"},
			},
			wantPath: "vars.a",
			wantMsg:  "circular",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Resolve(tt.tree)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInterpolation)

			var ierr *Error
			require.ErrorAs(t, err, &ierr)
			assert.Equal(t, tt.wantPath, ierr.Path)
			assert.Contains(t, ierr.Msg, tt.wantMsg)
		})
	}
}

func TestApplyOverridesWinsOverManifest(t *testing.T) {
	tree := sampleTree()
	require.NoError(t, ResolveEnv(tree, lookupFrom(map[string]string{"GPU_COUNT": "1"})))
	require.NoError(t, ApplyOverrides(tree, overrides.Overrides{
		"vars.name":     "parser",
		"env.gpus":      int64(8),
		"vars.new_leaf": true,
	}))
	require.NoError(t, Resolve(tree))

	assert.Equal(t, "Train parser", tree["title"])
	vars := tree["vars"].(map[string]any)
	assert.Equal(t, true, vars["new_leaf"])
	assert.Equal(t, "corpus/parser", vars["corpus"])

	cmd := tree["commands"].([]any)[0].(map[string]any)
	assert.Equal(t, []any{"python train.py --batch 128 --gpus 8"}, cmd["script"])
}

func TestApplyOverridesNested(t *testing.T) {
	tree := map[string]any{
		"vars": map[string]any{"model": map[string]any{"lr": 0.1}},
	}
	require.NoError(t, ApplyOverrides(tree, overrides.Overrides{"vars.model.lr": 0.01}))
	assert.Equal(t, 0.01, tree["vars"].(map[string]any)["model"].(map[string]any)["lr"])
}

func TestApplyOverridesErrors(t *testing.T) {
	tests := []struct {
		name string
		tree map[string]any
		key  string
	}{
		{"unknown section", map[string]any{}, "paths.root"},
		{"section is a list", map[string]any{"commands": []any{}}, "commands.train"},
		{"intermediate is a scalar", map[string]any{"vars": map[string]any{"a": "x"}}, "vars.a.b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ApplyOverrides(tt.tree, overrides.Overrides{tt.key: "v"})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInterpolation)
		})
	}
}

func TestApplyOverridesCreatesVarsSection(t *testing.T) {
	tree := map[string]any{}
	require.NoError(t, ApplyOverrides(tree, overrides.Overrides{"vars.seed": int64(1)}))
	assert.Equal(t, map[string]any{"seed": int64(1)}, tree["vars"])
}

func TestRender(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"x", "x"},
		{true, "true"},
		{int64(42), "42"},
		{uint64(7), "7"},
		{0.5, "0.5"},
		{[]any{"a", int64(1)}, `["a",1]`},
		{map[string]any{"k": "v"}, `{"k":"v"}`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Render(tt.in))
	}
}
