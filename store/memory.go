package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haowjy/meridian-agent-go/agent"
)

// Memory keeps every project in process memory. All methods are safe for
// concurrent use; writes are serialized.
type Memory struct {
	mu        sync.RWMutex
	projects  map[string]*project
	snapshots map[string][]snapshotEntry
	now       func() time.Time
}

type project struct {
	ideas map[string]Idea
	deps  map[Dependency]bool
	files map[string]File
	notes map[string]Note
}

type snapshotEntry struct {
	meta  Snapshot
	state *project
}

var (
	_ IdeaStore         = (*Memory)(nil)
	_ FileStore         = (*Memory)(nil)
	_ NoteStore         = (*Memory)(nil)
	_ agent.Snapshotter = (*Memory)(nil)
)

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		projects:  make(map[string]*project),
		snapshots: make(map[string][]snapshotEntry),
		now:       time.Now,
	}
}

func newProject() *project {
	return &project{
		ideas: make(map[string]Idea),
		deps:  make(map[Dependency]bool),
		files: make(map[string]File),
		notes: make(map[string]Note),
	}
}

func (p *project) clone() *project {
	c := &project{
		ideas: maps.Clone(p.ideas),
		deps:  maps.Clone(p.deps),
		files: maps.Clone(p.files),
		notes: maps.Clone(p.notes),
	}
	for id, idea := range c.ideas {
		idea.Tags = slices.Clone(idea.Tags)
		c.ideas[id] = idea
	}
	for id, n := range c.notes {
		n.Tags = slices.Clone(n.Tags)
		c.notes[id] = n
	}
	return c
}

// read returns the project or an empty one; callers hold at least a read lock.
func (m *Memory) read(projectID string) *project {
	if p, ok := m.projects[projectID]; ok {
		return p
	}
	return newProject()
}

// write returns the project, creating it; callers hold the write lock.
func (m *Memory) write(projectID string) *project {
	p, ok := m.projects[projectID]
	if !ok {
		p = newProject()
		m.projects[projectID] = p
	}
	return p
}

// Ideas

func (m *Memory) ListIdeas(ctx context.Context, projectID string) ([]Idea, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p := m.read(projectID)
	out := make([]Idea, 0, len(p.ideas))
	for _, idea := range p.ideas {
		out = append(out, copyIdea(idea))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) GetIdea(ctx context.Context, projectID, id string) (Idea, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idea, ok := m.read(projectID).ideas[id]
	if !ok {
		return Idea{}, fmt.Errorf("%w: idea %s", ErrNotFound, id)
	}
	return copyIdea(idea), nil
}

func (m *Memory) CreateIdea(ctx context.Context, projectID string, idea Idea) (Idea, error) {
	if strings.TrimSpace(idea.Title) == "" {
		return Idea{}, fmt.Errorf("%w: idea title is required", ErrInvalid)
	}
	if idea.Status == "" {
		idea.Status = StatusOpen
	}
	if !validStatus(idea.Status) {
		return Idea{}, fmt.Errorf("%w: unknown status %q", ErrInvalid, idea.Status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.write(projectID)
	if idea.ID == "" {
		idea.ID = uuid.NewString()
	} else if _, exists := p.ideas[idea.ID]; exists {
		return Idea{}, fmt.Errorf("%w: idea %s already exists", ErrConflict, idea.ID)
	}
	now := m.now()
	idea.CreatedAt, idea.UpdatedAt = now, now
	idea.Tags = slices.Clone(idea.Tags)
	p.ideas[idea.ID] = idea
	return copyIdea(idea), nil
}

func (m *Memory) UpdateIdea(ctx context.Context, projectID, id string, patch IdeaPatch) (Idea, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.write(projectID)
	idea, ok := p.ideas[id]
	if !ok {
		return Idea{}, fmt.Errorf("%w: idea %s", ErrNotFound, id)
	}
	if patch.Title != nil {
		if strings.TrimSpace(*patch.Title) == "" {
			return Idea{}, fmt.Errorf("%w: idea title is required", ErrInvalid)
		}
		idea.Title = *patch.Title
	}
	if patch.Body != nil {
		idea.Body = *patch.Body
	}
	if patch.Status != nil {
		if !validStatus(*patch.Status) {
			return Idea{}, fmt.Errorf("%w: unknown status %q", ErrInvalid, *patch.Status)
		}
		idea.Status = *patch.Status
	}
	if patch.Tags != nil {
		idea.Tags = slices.Clone(patch.Tags)
	}
	idea.UpdatedAt = m.now()
	p.ideas[id] = idea
	return copyIdea(idea), nil
}

// DeleteIdea removes the idea and every dependency touching it.
func (m *Memory) DeleteIdea(ctx context.Context, projectID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.write(projectID)
	if _, ok := p.ideas[id]; !ok {
		return fmt.Errorf("%w: idea %s", ErrNotFound, id)
	}
	delete(p.ideas, id)
	for dep := range p.deps {
		if dep.From == id || dep.To == id {
			delete(p.deps, dep)
		}
	}
	return nil
}

func (m *Memory) Dependencies(ctx context.Context, projectID string) ([]Dependency, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := slices.Collect(maps.Keys(m.read(projectID).deps))
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out, nil
}

// AddDependency links two existing ideas, rejecting duplicates and cycles.
func (m *Memory) AddDependency(ctx context.Context, projectID string, dep Dependency) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.write(projectID)
	for _, id := range []string{dep.From, dep.To} {
		if _, ok := p.ideas[id]; !ok {
			return fmt.Errorf("%w: idea %s", ErrNotFound, id)
		}
	}
	if dep.From == dep.To {
		return fmt.Errorf("%w: %s cannot depend on itself", ErrCycle, dep.From)
	}
	if p.deps[dep] {
		return fmt.Errorf("%w: %s already depends on %s", ErrConflict, dep.From, dep.To)
	}
	if p.reaches(dep.To, dep.From) {
		return fmt.Errorf("%w: %s already depends on %s transitively", ErrCycle, dep.To, dep.From)
	}
	p.deps[dep] = true
	return nil
}

func (m *Memory) RemoveDependency(ctx context.Context, projectID string, dep Dependency) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.write(projectID)
	if !p.deps[dep] {
		return fmt.Errorf("%w: dependency %s -> %s", ErrNotFound, dep.From, dep.To)
	}
	delete(p.deps, dep)
	return nil
}

// reaches reports whether to is reachable from from along dependencies.
func (p *project) reaches(from, to string) bool {
	seen := map[string]bool{from: true}
	stack := []string{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == to {
			return true
		}
		for dep := range p.deps {
			if dep.From == cur && !seen[dep.To] {
				seen[dep.To] = true
				stack = append(stack, dep.To)
			}
		}
	}
	return false
}

// Files

func (m *Memory) ListFiles(ctx context.Context, projectID, prefix string) ([]FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []FileInfo
	for path, f := range m.read(projectID).files {
		if strings.HasPrefix(path, prefix) {
			out = append(out, FileInfo{Path: path, Size: len(f.Content), UpdatedAt: f.UpdatedAt})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (m *Memory) ReadFile(ctx context.Context, projectID, path string) (File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.read(projectID).files[cleanPath(path)]
	if !ok {
		return File{}, fmt.Errorf("%w: file %s", ErrNotFound, path)
	}
	return f, nil
}

func (m *Memory) WriteFile(ctx context.Context, projectID, path, content string) (File, error) {
	path = cleanPath(path)
	if path == "" {
		return File{}, fmt.Errorf("%w: file path is required", ErrInvalid)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	f := File{Path: path, Content: content, UpdatedAt: m.now()}
	m.write(projectID).files[path] = f
	return f, nil
}

func (m *Memory) DeleteFile(ctx context.Context, projectID, path string) error {
	path = cleanPath(path)
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.write(projectID)
	if _, ok := p.files[path]; !ok {
		return fmt.Errorf("%w: file %s", ErrNotFound, path)
	}
	delete(p.files, path)
	return nil
}

func cleanPath(path string) string {
	return strings.TrimPrefix(strings.TrimSpace(path), "/")
}

// Notes

// SearchNotes ranks notes by how many query terms their title, body and tags
// contain. An empty query matches every note.
func (m *Memory) SearchNotes(ctx context.Context, projectID, query string, limit int) ([]Note, error) {
	if limit <= 0 {
		limit = 10
	}
	terms := strings.Fields(strings.ToLower(query))

	m.mu.RLock()
	defer m.mu.RUnlock()
	type hit struct {
		note  Note
		score int
	}
	var hits []hit
	for _, n := range m.read(projectID).notes {
		haystack := strings.ToLower(n.Title + " " + n.Body + " " + strings.Join(n.Tags, " "))
		score := 0
		for _, term := range terms {
			if strings.Contains(haystack, term) {
				score++
			}
		}
		if len(terms) == 0 || score > 0 {
			hits = append(hits, hit{note: n, score: score})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].note.CreatedAt.After(hits[j].note.CreatedAt)
	})

	out := make([]Note, 0, min(limit, len(hits)))
	for _, h := range hits[:min(limit, len(hits))] {
		out = append(out, h.note)
	}
	return out, nil
}

func (m *Memory) SaveNote(ctx context.Context, projectID string, note Note) (Note, error) {
	if strings.TrimSpace(note.Title) == "" && strings.TrimSpace(note.Body) == "" {
		return Note{}, fmt.Errorf("%w: note needs a title or body", ErrInvalid)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = m.now()
	}
	note.Tags = slices.Clone(note.Tags)
	m.write(projectID).notes[note.ID] = note
	return note, nil
}

// Snapshots

// CreateSnapshot records the current state of the request's project.
func (m *Memory) CreateSnapshot(ctx context.Context, rc agent.RequestContext, reason string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.write(rc.ProjectID)
	entry := snapshotEntry{
		meta: Snapshot{
			VersionID:  uuid.NewString(),
			ProjectID:  rc.ProjectID,
			ExchangeID: rc.ExchangeID,
			Reason:     reason,
			CreatedAt:  m.now(),
			Ideas:      len(p.ideas),
			Files:      len(p.files),
			Notes:      len(p.notes),
		},
		state: p.clone(),
	}
	m.snapshots[rc.ProjectID] = append(m.snapshots[rc.ProjectID], entry)
	return entry.meta.VersionID, nil
}

// Snapshots lists a project's snapshots, oldest first.
func (m *Memory) Snapshots(ctx context.Context, projectID string) ([]Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := m.snapshots[projectID]
	out := make([]Snapshot, len(entries))
	for i, e := range entries {
		out[i] = e.meta
	}
	return out, nil
}

// Restore replaces a project's state with a snapshot.
func (m *Memory) Restore(ctx context.Context, projectID, versionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.snapshots[projectID] {
		if e.meta.VersionID == versionID {
			m.projects[projectID] = e.state.clone()
			return nil
		}
	}
	return fmt.Errorf("%w: snapshot %s", ErrNotFound, versionID)
}

func copyIdea(idea Idea) Idea {
	idea.Tags = slices.Clone(idea.Tags)
	return idea
}

func validStatus(s string) bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusDone:
		return true
	}
	return false
}
