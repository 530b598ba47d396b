package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haowjy/meridian-agent-go/agent"
)

func newTestMemory() *Memory {
	m := NewMemory()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	tick := 0
	m.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return m
}

func TestMemory_IdeaLifecycle(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory()

	a, err := m.CreateIdea(ctx, "p", Idea{Title: "Write outline", Tags: []string{"draft"}})
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, StatusOpen, a.Status)

	b, err := m.CreateIdea(ctx, "p", Idea{ID: "b", Title: "Publish"})
	require.NoError(t, err)

	_, err = m.CreateIdea(ctx, "p", Idea{ID: "b", Title: "Dup"})
	assert.ErrorIs(t, err, ErrConflict)
	_, err = m.CreateIdea(ctx, "p", Idea{Title: "  "})
	assert.ErrorIs(t, err, ErrInvalid)

	ideas, err := m.ListIdeas(ctx, "p")
	require.NoError(t, err)
	require.Len(t, ideas, 2)
	assert.Equal(t, a.ID, ideas[0].ID)

	done := StatusDone
	updated, err := m.UpdateIdea(ctx, "p", b.ID, IdeaPatch{Status: &done})
	require.NoError(t, err)
	assert.Equal(t, StatusDone, updated.Status)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))

	bogus := "someday"
	_, err = m.UpdateIdea(ctx, "p", b.ID, IdeaPatch{Status: &bogus})
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = m.UpdateIdea(ctx, "p", "missing", IdeaPatch{})
	assert.ErrorIs(t, err, ErrNotFound)

	ideas[0].Tags[0] = "mutated"
	got, err := m.GetIdea(ctx, "p", a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"draft"}, got.Tags)

	other, err := m.ListIdeas(ctx, "other-project")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestMemory_Dependencies(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory()
	for _, id := range []string{"a", "b", "c"} {
		_, err := m.CreateIdea(ctx, "p", Idea{ID: id, Title: id})
		require.NoError(t, err)
	}

	require.NoError(t, m.AddDependency(ctx, "p", Dependency{From: "a", To: "b"}))
	require.NoError(t, m.AddDependency(ctx, "p", Dependency{From: "b", To: "c"}))

	tests := []struct {
		name string
		dep  Dependency
		want error
	}{
		{"self", Dependency{From: "a", To: "a"}, ErrCycle},
		{"direct cycle", Dependency{From: "b", To: "a"}, ErrCycle},
		{"transitive cycle", Dependency{From: "c", To: "a"}, ErrCycle},
		{"duplicate", Dependency{From: "a", To: "b"}, ErrConflict},
		{"missing idea", Dependency{From: "a", To: "zzz"}, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, m.AddDependency(ctx, "p", tt.dep), tt.want)
		})
	}

	require.NoError(t, m.AddDependency(ctx, "p", Dependency{From: "a", To: "c"}))
	deps, err := m.Dependencies(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, []Dependency{{"a", "b"}, {"a", "c"}, {"b", "c"}}, deps)

	require.NoError(t, m.DeleteIdea(ctx, "p", "b"))
	deps, _ = m.Dependencies(ctx, "p")
	assert.Equal(t, []Dependency{{"a", "c"}}, deps)

	assert.ErrorIs(t, m.RemoveDependency(ctx, "p", Dependency{From: "a", To: "b"}), ErrNotFound)
	require.NoError(t, m.RemoveDependency(ctx, "p", Dependency{From: "a", To: "c"}))
}

func TestMemory_Files(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory()

	_, err := m.WriteFile(ctx, "p", "/src/index.html", "<h1>hi</h1>")
	require.NoError(t, err)
	_, err = m.WriteFile(ctx, "p", "src/app.js", "console.log(1)")
	require.NoError(t, err)
	_, err = m.WriteFile(ctx, "p", "README.md", "# app")
	require.NoError(t, err)
	_, err = m.WriteFile(ctx, "p", " ", "x")
	assert.ErrorIs(t, err, ErrInvalid)

	files, err := m.ListFiles(ctx, "p", "src/")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "src/app.js", files[0].Path)
	assert.Equal(t, len("console.log(1)"), files[0].Size)

	f, err := m.ReadFile(ctx, "p", "src/index.html")
	require.NoError(t, err)
	assert.Equal(t, "<h1>hi</h1>", f.Content)

	require.NoError(t, m.DeleteFile(ctx, "p", "README.md"))
	_, err = m.ReadFile(ctx, "p", "README.md")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.DeleteFile(ctx, "p", "README.md"), ErrNotFound)
}

func TestMemory_SearchNotes(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory()
	for _, n := range []Note{
		{Title: "Graph databases", Body: "nodes and edges", Tags: []string{"db"}},
		{Title: "Cooking", Body: "pasta with graph paper", Tags: []string{"food"}},
		{Title: "Edges of the graph", Body: "dependency edges"},
	} {
		_, err := m.SaveNote(ctx, "p", n)
		require.NoError(t, err)
	}
	_, err := m.SaveNote(ctx, "p", Note{})
	assert.ErrorIs(t, err, ErrInvalid)

	hits, err := m.SearchNotes(ctx, "p", "graph edges", 10)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "Edges of the graph", hits[0].Title)
	assert.Equal(t, "Graph databases", hits[1].Title)

	hits, err = m.SearchNotes(ctx, "p", "graph", 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	hits, err = m.SearchNotes(ctx, "p", "nothing-matches", 0)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = m.SearchNotes(ctx, "p", "", 0)
	require.NoError(t, err)
	assert.Len(t, hits, 3)
}

func TestMemory_SnapshotAndRestore(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory()
	rc := agent.RequestContext{ProjectID: "p", ExchangeID: "ex-1"}

	_, err := m.CreateIdea(ctx, "p", Idea{ID: "a", Title: "Keep me"})
	require.NoError(t, err)
	version, err := m.CreateSnapshot(ctx, rc, "after exchange")
	require.NoError(t, err)
	require.NotEmpty(t, version)

	require.NoError(t, m.DeleteIdea(ctx, "p", "a"))
	_, err = m.CreateIdea(ctx, "p", Idea{ID: "b", Title: "Later"})
	require.NoError(t, err)

	snaps, err := m.Snapshots(ctx, "p")
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "ex-1", snaps[0].ExchangeID)
	assert.Equal(t, 1, snaps[0].Ideas)

	require.NoError(t, m.Restore(ctx, "p", version))
	ideas, _ := m.ListIdeas(ctx, "p")
	require.Len(t, ideas, 1)
	assert.Equal(t, "a", ideas[0].ID)

	// The snapshot stays intact after the restored state changes.
	require.NoError(t, m.DeleteIdea(ctx, "p", "a"))
	require.NoError(t, m.Restore(ctx, "p", version))
	ideas, _ = m.ListIdeas(ctx, "p")
	assert.Len(t, ideas, 1)

	assert.ErrorIs(t, m.Restore(ctx, "p", "nope"), ErrNotFound)
}

func TestMemory_ConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.CreateIdea(ctx, "p", Idea{Title: "idea"})
			_, _ = m.ListIdeas(ctx, "p")
		}()
	}
	wg.Wait()
	ideas, err := m.ListIdeas(ctx, "p")
	require.NoError(t, err)
	assert.Len(t, ideas, 50)
}
