// Package store defines the storage collaborators the assistant tools work
// against, and an in-memory implementation of all of them.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates a missing idea, file, note or snapshot.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict indicates a write that collides with existing state.
	ErrConflict = errors.New("store: conflict")

	// ErrCycle indicates a dependency that would close a cycle.
	ErrCycle = errors.New("store: dependency cycle")

	// ErrInvalid indicates malformed input, such as an empty title or path.
	ErrInvalid = errors.New("store: invalid input")
)

// Idea statuses.
const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
)

// Idea is a node of the dependency graph.
type Idea struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	Status    string    `json:"status"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IdeaPatch holds optional idea updates.
type IdeaPatch struct {
	Title  *string
	Body   *string
	Status *string
	Tags   []string
}

// Dependency states that From cannot be done before To.
type Dependency struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// File is a text file of a builder project.
type File struct {
	Path      string    `json:"path"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileInfo describes a file without its content.
type FileInfo struct {
	Path      string    `json:"path"`
	Size      int       `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Note is a free-form note. Proposed notes were drafted by the assistant and
// await user approval.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Tags      []string  `json:"tags,omitempty"`
	Proposed  bool      `json:"proposed,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Snapshot is a recorded version of a project.
type Snapshot struct {
	VersionID  string    `json:"version_id"`
	ProjectID  string    `json:"project_id"`
	ExchangeID string    `json:"exchange_id,omitempty"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
	Ideas      int       `json:"ideas"`
	Files      int       `json:"files"`
	Notes      int       `json:"notes"`
}

// IdeaStore persists the idea graph of a project.
type IdeaStore interface {
	ListIdeas(ctx context.Context, projectID string) ([]Idea, error)
	GetIdea(ctx context.Context, projectID, id string) (Idea, error)
	CreateIdea(ctx context.Context, projectID string, idea Idea) (Idea, error)
	UpdateIdea(ctx context.Context, projectID, id string, patch IdeaPatch) (Idea, error)
	DeleteIdea(ctx context.Context, projectID, id string) error
	Dependencies(ctx context.Context, projectID string) ([]Dependency, error)
	AddDependency(ctx context.Context, projectID string, dep Dependency) error
	RemoveDependency(ctx context.Context, projectID string, dep Dependency) error
}

// FileStore persists the files of a builder project.
type FileStore interface {
	ListFiles(ctx context.Context, projectID, prefix string) ([]FileInfo, error)
	ReadFile(ctx context.Context, projectID, path string) (File, error)
	WriteFile(ctx context.Context, projectID, path, content string) (File, error)
	DeleteFile(ctx context.Context, projectID, path string) error
}

// NoteStore persists notes.
type NoteStore interface {
	SearchNotes(ctx context.Context, projectID, query string, limit int) ([]Note, error)
	SaveNote(ctx context.Context, projectID string, note Note) (Note, error)
}
