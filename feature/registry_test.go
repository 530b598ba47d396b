package feature

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haowjy/meridian-agent-go/agent"
	"github.com/haowjy/meridian-agent-go/store"
	"github.com/haowjy/meridian-agent-go/tools"
)

func TestLoad_BuiltinProfiles(t *testing.T) {
	reg, err := Load(Sources{})
	require.NoError(t, err)
	assert.Equal(t, []string{"builder", "graph", "voice"}, reg.Names())

	router, err := tools.NewRouter(tools.Deps{})
	require.NoError(t, err)
	for _, name := range reg.Names() {
		p, err := reg.Get(name)
		require.NoError(t, err)
		assert.NotEmpty(t, p.Description())
		assert.Positive(t, p.MaxRounds())
		for _, def := range p.Catalog() {
			_, ok := router.FamilyOf(def.Name())
			assert.True(t, ok, "%s: %s has a family", name, def.Name())
		}
	}

	_, err = reg.Get("missing")
	assert.ErrorIs(t, err, ErrUnknownFeature)
}

func TestLoad_BuiltinCeilings(t *testing.T) {
	reg, err := Load(Sources{})
	require.NoError(t, err)

	want := map[string]int{"graph": 40, "builder": 100, "voice": 12}
	for name, rounds := range want {
		p, err := reg.Get(name)
		require.NoError(t, err)
		assert.Equal(t, rounds, p.MaxRounds(), name)
		assert.Less(t, p.MaxRounds(), agent.DefaultMaxRounds, name)
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", "version: \"1\"\n"},
		{"unknown tool", "features:\n  x:\n    tools: [fly]\n"},
		{"mutating outside catalog", "features:\n  x:\n    tools: [list_ideas]\n    mutating: [delete_idea]\n"},
		{"aux outside catalog", "features:\n  x:\n    tools: [list_ideas]\n    aux:\n      - tool: web_search\n        before: search_started\n"},
		{"unknown aux event", "features:\n  x:\n    tools: [web_search]\n    aux:\n      - tool: web_search\n        after: fireworks\n"},
		{"bad template", "features:\n  x:\n    tools: [list_ideas]\n    preamble: \"{{.Oops\"\n"},
		{"negative rounds", "features:\n  x:\n    max_rounds: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), Sources{})
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	doc := "features:\n  notes:\n    max_rounds: 3\n    tools: [search_notes]\n    preamble: \"Notes for {{.ProjectID}}\"\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	reg, err := LoadFile(path, Sources{})
	require.NoError(t, err)
	p, err := reg.Get("notes")
	require.NoError(t, err)
	assert.Equal(t, 3, p.MaxRounds())

	text, err := p.Preamble(context.Background(), agent.RequestContext{ProjectID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, "Notes for p1", text)

	_, err = LoadFile(filepath.Join(t.TempDir(), "nope.yaml"), Sources{})
	assert.Error(t, err)
}

func TestProfile_PreambleFromStoreState(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	_, err := mem.CreateIdea(ctx, "p", store.Idea{ID: "a", Title: "Outline"})
	require.NoError(t, err)
	_, err = mem.CreateIdea(ctx, "p", store.Idea{ID: "b", Title: "Draft"})
	require.NoError(t, err)
	require.NoError(t, mem.AddDependency(ctx, "p", store.Dependency{From: "b", To: "a"}))
	_, err = mem.WriteFile(ctx, "p", "index.html", "<p>hi</p>")
	require.NoError(t, err)

	reg, err := Load(Sources{Ideas: mem, Files: mem})
	require.NoError(t, err)
	rc := agent.RequestContext{ProjectID: "p"}

	graph, _ := reg.Get("graph")
	text, err := graph.Preamble(ctx, rc)
	require.NoError(t, err)
	assert.Contains(t, text, "- [open] Outline (id a)")
	assert.Contains(t, text, "- b depends on a")
	assert.NotContains(t, text, "The graph is empty.")

	builder, _ := reg.Get("builder")
	text, err = builder.Preamble(ctx, rc)
	require.NoError(t, err)
	assert.Contains(t, text, "- index.html (9 bytes)")

	voice, _ := reg.Get("voice")
	voice.now = func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }
	text, err = voice.Preamble(ctx, rc)
	require.NoError(t, err)
	assert.Contains(t, text, "Today is Monday, March 2, 2026.")

	empty, err := Load(Sources{Ideas: store.NewMemory()})
	require.NoError(t, err)
	graph, _ = empty.Get("graph")
	text, err = graph.Preamble(ctx, rc)
	require.NoError(t, err)
	assert.Contains(t, text, "The graph is empty.")
}

func TestProfile_AuxiliaryEvents(t *testing.T) {
	reg, err := Load(Sources{})
	require.NoError(t, err)
	voice, _ := reg.Get("voice")
	graph, _ := reg.Get("graph")

	search := agent.ToolCall{ID: "c1", Name: tools.SearchNotes, Input: map[string]any{"query": "plans"}}
	before := voice.BeforeTool(search)
	require.Len(t, before, 1)
	assert.Equal(t, agent.EventSearchStarted, before[0].Type)
	assert.Equal(t, "plans", before[0].Query)

	ok := agent.ToolResult{ToolCallID: "c1", Success: true, Data: []string{"x"}}
	after := voice.AfterTool(search, ok)
	require.Len(t, after, 1)
	assert.Equal(t, agent.EventSearchResults, after[0].Type)
	assert.Empty(t, voice.AfterTool(search, agent.Failed("c1", "boom")))

	propose := agent.ToolCall{ID: "c2", Name: tools.ProposeNote}
	assert.Empty(t, voice.BeforeTool(propose))
	after = voice.AfterTool(propose, agent.ToolResult{ToolCallID: "c2", Success: true})
	require.Len(t, after, 1)
	assert.Equal(t, agent.EventProposal, after[0].Type)

	assert.Empty(t, graph.BeforeTool(agent.ToolCall{ID: "c3", Name: tools.CreateIdea}))
}

func TestProfile_MutatingToolsAreCopies(t *testing.T) {
	reg, err := Load(Sources{})
	require.NoError(t, err)
	builder, _ := reg.Get("builder")
	m := builder.MutatingTools()
	assert.Equal(t, []string{tools.WriteFile, tools.EditFile, tools.DeleteFile}, m)
	m[0] = "changed"
	assert.Equal(t, tools.WriteFile, builder.MutatingTools()[0])
}
