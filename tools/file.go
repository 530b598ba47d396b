package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/haowjy/meridian-agent-go/agent"
	"github.com/haowjy/meridian-agent-go/store"
)

// FileExecutor runs the project file tools.
type FileExecutor struct {
	Files store.FileStore
}

// EditResult is the result of edit_file.
type EditResult struct {
	Path         string `json:"path"`
	Replacements int    `json:"replacements"`
	Size         int    `json:"size"`
}

func (f FileExecutor) Execute(ctx context.Context, call agent.ToolCall, rc agent.RequestContext) (any, error) {
	if f.Files == nil {
		return nil, fmt.Errorf("%w: file store", ErrNotConfigured)
	}
	in := call.Input
	if call.Name == ListFiles {
		prefix, _ := optString(in, "prefix")
		return f.Files.ListFiles(ctx, rc.ProjectID, prefix)
	}

	path, err := stringArg(in, "path")
	if err != nil {
		return nil, err
	}
	switch call.Name {
	case ReadFile:
		return f.Files.ReadFile(ctx, rc.ProjectID, path)
	case WriteFile:
		content, _ := optString(in, "content")
		file, err := f.Files.WriteFile(ctx, rc.ProjectID, path, content)
		if err != nil {
			return nil, err
		}
		return store.FileInfo{Path: file.Path, Size: len(file.Content), UpdatedAt: file.UpdatedAt}, nil
	case EditFile:
		return f.edit(ctx, rc.ProjectID, path, in)
	case DeleteFile:
		if err := f.Files.DeleteFile(ctx, rc.ProjectID, path); err != nil {
			return nil, err
		}
		return map[string]any{"deleted": path}, nil
	}
	return nil, fmt.Errorf("file: unsupported tool %q", call.Name)
}

func (f FileExecutor) edit(ctx context.Context, projectID, path string, in map[string]any) (*EditResult, error) {
	oldText, err := stringArg(in, "old_text")
	if err != nil {
		return nil, err
	}
	newText, _ := optString(in, "new_text")

	file, err := f.Files.ReadFile(ctx, projectID, path)
	if err != nil {
		return nil, err
	}
	n := strings.Count(file.Content, oldText)
	switch {
	case n == 0:
		return nil, fmt.Errorf("old_text not found in %s", path)
	case n > 1 && !optBool(in, "replace_all"):
		return nil, fmt.Errorf("old_text matches %d times in %s; add context or set replace_all", n, path)
	}

	content := strings.ReplaceAll(file.Content, oldText, newText)
	if _, err := f.Files.WriteFile(ctx, projectID, path, content); err != nil {
		return nil, err
	}
	return &EditResult{Path: file.Path, Replacements: n, Size: len(content)}, nil
}
