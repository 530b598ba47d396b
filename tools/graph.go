package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/haowjy/meridian-agent-go/agent"
	"github.com/haowjy/meridian-agent-go/store"
)

// ErrNotConfigured indicates a tool whose backing collaborator is missing.
var ErrNotConfigured = errors.New("tools: not configured")

// GraphExecutor runs the idea graph tools.
type GraphExecutor struct {
	Ideas store.IdeaStore
}

// GraphView is the result of list_ideas.
type GraphView struct {
	Ideas        []store.Idea       `json:"ideas"`
	Dependencies []store.Dependency `json:"dependencies"`
}

func (g GraphExecutor) Execute(ctx context.Context, call agent.ToolCall, rc agent.RequestContext) (any, error) {
	if g.Ideas == nil {
		return nil, fmt.Errorf("%w: idea store", ErrNotConfigured)
	}
	in := call.Input
	switch call.Name {
	case ListIdeas:
		return g.list(ctx, rc.ProjectID, in)
	case CreateIdea:
		return g.create(ctx, rc.ProjectID, in)
	case UpdateIdea:
		return g.update(ctx, rc.ProjectID, in)
	case DeleteIdea:
		id, err := stringArg(in, "id")
		if err != nil {
			return nil, err
		}
		if err := g.Ideas.DeleteIdea(ctx, rc.ProjectID, id); err != nil {
			return nil, err
		}
		return map[string]any{"deleted": id}, nil
	case AddDependency, RemoveDependency:
		dep, err := dependencyArg(in)
		if err != nil {
			return nil, err
		}
		if call.Name == AddDependency {
			err = g.Ideas.AddDependency(ctx, rc.ProjectID, dep)
		} else {
			err = g.Ideas.RemoveDependency(ctx, rc.ProjectID, dep)
		}
		if err != nil {
			return nil, err
		}
		return dep, nil
	}
	return nil, fmt.Errorf("graph: unsupported tool %q", call.Name)
}

func (g GraphExecutor) list(ctx context.Context, projectID string, in map[string]any) (*GraphView, error) {
	ideas, err := g.Ideas.ListIdeas(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if status, ok := optString(in, "status"); ok {
		filtered := ideas[:0]
		for _, idea := range ideas {
			if idea.Status == status {
				filtered = append(filtered, idea)
			}
		}
		ideas = filtered
	}
	deps, err := g.Ideas.Dependencies(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &GraphView{Ideas: ideas, Dependencies: deps}, nil
}

func (g GraphExecutor) create(ctx context.Context, projectID string, in map[string]any) (store.Idea, error) {
	title, err := stringArg(in, "title")
	if err != nil {
		return store.Idea{}, err
	}
	dependsOn := optStrings(in, "depends_on")
	for _, id := range dependsOn {
		if _, err := g.Ideas.GetIdea(ctx, projectID, id); err != nil {
			return store.Idea{}, fmt.Errorf("depends_on %q: %w", id, err)
		}
	}

	body, _ := optString(in, "body")
	idea, err := g.Ideas.CreateIdea(ctx, projectID, store.Idea{
		Title: title,
		Body:  body,
		Tags:  optStrings(in, "tags"),
	})
	if err != nil {
		return store.Idea{}, err
	}
	for _, id := range dependsOn {
		if err := g.Ideas.AddDependency(ctx, projectID, store.Dependency{From: idea.ID, To: id}); err != nil {
			return idea, fmt.Errorf("idea %s created but dependency on %s failed: %w", idea.ID, id, err)
		}
	}
	return idea, nil
}

func (g GraphExecutor) update(ctx context.Context, projectID string, in map[string]any) (store.Idea, error) {
	id, err := stringArg(in, "id")
	if err != nil {
		return store.Idea{}, err
	}
	var patch store.IdeaPatch
	if v, ok := optString(in, "title"); ok {
		patch.Title = &v
	}
	if v, ok := optString(in, "body"); ok {
		patch.Body = &v
	}
	if v, ok := optString(in, "status"); ok {
		patch.Status = &v
	}
	if _, ok := in["tags"]; ok {
		patch.Tags = optStrings(in, "tags")
		if patch.Tags == nil {
			patch.Tags = []string{}
		}
	}
	return g.Ideas.UpdateIdea(ctx, projectID, id, patch)
}

func dependencyArg(in map[string]any) (store.Dependency, error) {
	from, err := stringArg(in, "from")
	if err != nil {
		return store.Dependency{}, err
	}
	to, err := stringArg(in, "to")
	if err != nil {
		return store.Dependency{}, err
	}
	return store.Dependency{From: from, To: to}, nil
}
