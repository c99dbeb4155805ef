package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
name: minimal
description: one cell
elements:
  - name: e
    cells:
      - name: c
        rule: sum
actions:
  - inject: e.c
    delta: 1
`

func TestParseScenario_Defaults(t *testing.T) {
	sc, err := ParseScenario([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "minimal", sc.Name)
	assert.Equal(t, "scenario-minimal", sc.SessionID)
	assert.Equal(t, 1e-9, sc.Tolerance)
	require.Len(t, sc.Actions, 1)
	verb, err := sc.Actions[0].verb()
	require.NoError(t, err)
	assert.Equal(t, "inject", verb)
}

func TestParseScenario_LinkNames(t *testing.T) {
	sc, err := ParseScenario([]byte(`
name: links
description: generated link names
elements:
  - name: e
    cells:
      - {name: a, rule: sum}
      - {name: b, rule: sum}
links:
  - {from: e.a, to: e.b}
  - {const: 2, to: e.b}
actions:
  - connect: e.a->e.b
  - connect: const->e.b
`))
	require.NoError(t, err)
	assert.Equal(t, "e.a->e.b", sc.Links[0].Name)
	assert.Equal(t, "const->e.b", sc.Links[1].Name)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown field",
			yaml: minimalYAML + "bogus: 1\n",
			want: "failed to parse YAML",
		},
		{
			name: "missing name",
			yaml: "description: d\nactions: [{drain: {}}]\n",
			want: "name is required",
		},
		{
			name: "missing description",
			yaml: "name: n\nactions: [{drain: {}}]\n",
			want: "description is required",
		},
		{
			name: "no actions",
			yaml: "name: n\ndescription: d\n",
			want: "actions list is required",
		},
		{
			name: "unknown rule",
			yaml: "name: n\ndescription: d\nelements: [{name: e, cells: [{name: c, rule: cube}]}]\nactions: [{drain: {}}]\n",
			want: `unknown rule "cube"`,
		},
		{
			name: "bad comparator",
			yaml: "name: n\ndescription: d\nelements: [{name: e, cells: [{name: c, rule: threshold, comparator: near}]}]\nactions: [{drain: {}}]\n",
			want: `unknown comparator "near"`,
		},
		{
			name: "duplicate cell",
			yaml: "name: n\ndescription: d\nelements: [{name: e, cells: [{name: c, rule: sum}, {name: c, rule: max}]}]\nactions: [{drain: {}}]\n",
			want: "duplicate cell",
		},
		{
			name: "link to unknown cell",
			yaml: "name: n\ndescription: d\nelements: [{name: e, cells: [{name: c, rule: sum}]}]\nlinks: [{from: e.c, to: e.x}]\nactions: [{drain: {}}]\n",
			want: `unknown cell "e.x"`,
		},
		{
			name: "link with from and const",
			yaml: "name: n\ndescription: d\nelements: [{name: e, cells: [{name: c, rule: sum}]}]\nlinks: [{from: e.c, const: 1, to: e.c}]\nactions: [{drain: {}}]\n",
			want: "exactly one of from and const",
		},
		{
			name: "two verbs",
			yaml: "name: n\ndescription: d\nelements: [{name: e, cells: [{name: c, rule: sum}]}]\nactions: [{inject: e.c, drain: {}}]\n",
			want: "multiple verbs inject, drain",
		},
		{
			name: "no verb",
			yaml: "name: n\ndescription: d\nactions: [{delta: 1}]\n",
			want: "no verb",
		},
		{
			name: "unknown link",
			yaml: "name: n\ndescription: d\nactions: [{connect: nope}]\n",
			want: `unknown link "nope"`,
		},
		{
			name: "unknown neuron",
			yaml: "name: n\ndescription: d\nactions: [{input: ghost}]\n",
			want: `unknown neuron "ghost"`,
		},
		{
			name: "diverges without guard",
			yaml: "name: n\ndescription: d\nactions: [{drain: {}, expect: {diverges: true}}]\n",
			want: "diverges requires a guarded drain",
		},
		{
			name: "expectation on unknown cell",
			yaml: "name: n\ndescription: d\nactions: [{drain: {}, expect: {values: {e.c: 1}}}]\n",
			want: `unknown cell "e.c"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_ResolvesConfigPath(t *testing.T) {
	sc, err := LoadScenario(filepath.Join("testdata", "scenarios", "divergent-loop.yaml"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("testdata", "config", "tight-guard.cue"), sc.Config)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadScenario_AllTestdata(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		_, err := LoadScenario(f)
		assert.NoError(t, err, f)
	}
}
