package modgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denohooks/denohooks/internal/deno"
)

func TestCollectLocalFiles(t *testing.T) {
	tests := []struct {
		name     string
		entry    string
		graph    Graph
		expected []string
	}{
		{
			name:     "single module",
			entry:    "A",
			graph:    Graph{"A": nil},
			expected: []string{"A"},
		},
		{
			name:  "cycle terminates",
			entry: "A",
			graph: Graph{
				"A": {{Path: "B"}},
				"B": {{Path: "A"}},
			},
			expected: []string{"A", "B"},
		},
		{
			name:  "self import",
			entry: "A",
			graph: Graph{
				"A": {{Path: "A"}},
			},
			expected: []string{"A"},
		},
		{
			name:  "external and remote edges skipped",
			entry: "A",
			graph: Graph{
				"A": {
					{Path: "B", External: false},
					{Path: "https://example.com/x.ts", External: false},
				},
			},
			expected: []string{"A", "B"},
		},
		{
			name:  "external flag wins over local looking path",
			entry: "A",
			graph: Graph{
				"A": {{Path: "C", External: true}, {Path: "npm:zod"}, {Path: "jsr:@std/path"}, {Path: "node:fs"}},
			},
			expected: []string{"A"},
		},
		{
			name:  "diamond visited once",
			entry: "A",
			graph: Graph{
				"A": {{Path: "B"}, {Path: "C"}},
				"B": {{Path: "D"}},
				"C": {{Path: "D"}},
				"D": {{Path: "https://deno.land/x/dep.ts"}},
			},
			expected: []string{"A", "B", "C", "D"},
		},
		{
			name:  "file urls are local",
			entry: "file:///p/a.ts",
			graph: Graph{
				"file:///p/a.ts": {{Path: "file:///p/b.ts"}},
				"file:///p/b.ts": nil,
			},
			expected: []string{"file:///p/a.ts", "file:///p/b.ts"},
		},
		{
			name:  "unreachable modules ignored",
			entry: "A",
			graph: Graph{
				"A": {{Path: "B"}},
				"B": nil,
				"Z": {{Path: "A"}},
			},
			expected: []string{"A", "B"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			files, err := CollectLocalFiles(tc.entry, tc.graph)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, files.Sorted())
		})
	}
}

func TestCollectLocalFiles_MissingEntry(t *testing.T) {
	_, err := CollectLocalFiles("A", Graph{"B": nil})
	require.ErrorIs(t, err, ErrMissingModule)
	assert.Contains(t, err.Error(), "A")
}

func TestSet_Union(t *testing.T) {
	s := Set{}
	s.Add("a", "b")
	other := Set{}
	other.Add("b", "c")
	s.Union(other)

	assert.Equal(t, []string{"a", "b", "c"}, s.Sorted())
	assert.True(t, s.Has("c"))
	assert.False(t, s.Has("d"))
}

func TestIsRemote(t *testing.T) {
	tests := []struct {
		spec     string
		expected bool
	}{
		{"https://deno.land/std/path/mod.ts", true},
		{"http://localhost/x.ts", true},
		{"npm:zod@3", true},
		{"jsr:@std/path", true},
		{"node:fs", true},
		{"data:text/javascript,export default 1", true},
		{"file:///proj/a.ts", false},
		{"FILE:///proj/a.ts", false},
		{"./a.ts", false},
		{"/abs/a.ts", false},
		{`C:\proj\a.ts`, false},
		{"B", false},
	}

	for _, tc := range tests {
		t.Run(tc.spec, func(t *testing.T) {
			assert.Equal(t, tc.expected, IsRemote(tc.spec))
		})
	}
}

func TestLocalPath(t *testing.T) {
	p, err := LocalPath("file:///proj/functions/my%20fn.ts")
	require.NoError(t, err)
	assert.Equal(t, "/proj/functions/my fn.ts", p)

	p, err = LocalPath("/already/a/path.ts")
	require.NoError(t, err)
	assert.Equal(t, "/already/a/path.ts", p)
}

func TestFromDenoInfo(t *testing.T) {
	info := &deno.Info{
		Roots: []string{"file:///p/fn.ts"},
		Modules: []deno.InfoModule{
			{Kind: "esm", Specifier: "file:///p/fn.ts", Dependencies: []deno.InfoDependency{
				{Specifier: "./util.ts", Code: &deno.InfoResolved{Specifier: "file:///p/util.ts"}},
				{Specifier: "./types.d.ts", Type: &deno.InfoResolved{Specifier: "file:///p/types.d.ts"}},
				{Specifier: "npm:zod", Code: &deno.InfoResolved{Specifier: "npm:zod"}, NpmPkg: "zod@3.22.0"},
				{Specifier: "https://deno.land/x/a.ts", Code: &deno.InfoResolved{Specifier: "https://deno.land/x/a.ts"}},
				{Specifier: "./old.ts", Code: &deno.InfoResolved{Specifier: "file:///p/old.ts"}},
			}},
			{Kind: "esm", Specifier: "file:///p/util.ts", Dependencies: []deno.InfoDependency{
				{Specifier: "node:fs", Code: &deno.InfoResolved{Specifier: "node:fs"}},
			}},
			{Kind: "esm", Specifier: "file:///p/new.ts"},
			{Kind: "node", Specifier: "node:fs"},
			{Specifier: "https://deno.land/x/a.ts", Error: "remote specifier requested"},
		},
		Redirects: map[string]string{"file:///p/old.ts": "file:///p/new.ts"},
	}

	graph := FromDenoInfo(info)
	assert.NotContains(t, graph, "node:fs")
	assert.NotContains(t, graph, "https://deno.land/x/a.ts")

	files, err := CollectLocalFiles("file:///p/fn.ts", graph)
	require.NoError(t, err)
	assert.Equal(t, []string{"file:///p/fn.ts", "file:///p/new.ts", "file:///p/util.ts"}, files.Sorted())
}

func TestFromMetafile(t *testing.T) {
	inputs := map[string]MetafileInput{
		"functions/fn.ts": {Imports: []MetafileImport{
			{Path: "lib/util.ts"},
			{Path: "npm:zod", External: true},
			{Path: "remote:https://deno.land/x/a.ts"},
		}},
		"lib/util.ts":                     {},
		"remote:https://deno.land/x/a.ts": {},
	}

	graph := FromMetafile(inputs, "/proj")
	assert.Contains(t, graph, "/proj/functions/fn.ts")
	assert.Contains(t, graph, "remote:https://deno.land/x/a.ts")

	files, err := CollectLocalFiles("/proj/functions/fn.ts", graph)
	require.NoError(t, err)
	assert.Equal(t, []string{"/proj/functions/fn.ts", "/proj/lib/util.ts"}, files.Sorted())
}
