// Package tools implements the assistant tool families and their definitions.
package tools

import (
	"fmt"
	"sort"

	llmprovider "github.com/haowjy/meridian-agent-go"
	"github.com/haowjy/meridian-agent-go/agent"
)

// Graph tools.
const (
	ListIdeas        = "list_ideas"
	CreateIdea       = "create_idea"
	UpdateIdea       = "update_idea"
	DeleteIdea       = "delete_idea"
	AddDependency    = "add_dependency"
	RemoveDependency = "remove_dependency"
)

// File tools.
const (
	ListFiles  = "list_files"
	ReadFile   = "read_file"
	WriteFile  = "write_file"
	EditFile   = "edit_file"
	DeleteFile = "delete_file"
)

// Search and synthesis tools.
const (
	SearchNotes = "search_notes"
	WebSearch   = "web_search"
	ProposeNote = "propose_note"
)

// Other tools.
const (
	DOMAction     = "dom_action"
	StartPreview  = "start_preview"
	StopPreview   = "stop_preview"
	PreviewStatus = "preview_status"
)

type entry struct {
	family agent.Family
	tool   llmprovider.Tool
}

var catalog = map[string]entry{
	ListIdeas: {agent.FamilyGraph, llmprovider.NewFunctionTool(ListIdeas,
		"List the ideas of the project graph and the dependencies between them.",
		object(props{
			"status": enum("Only return ideas with this status.", "open", "in_progress", "done"),
		}))},
	CreateIdea: {agent.FamilyGraph, llmprovider.NewFunctionTool(CreateIdea,
		"Create a new idea. Optionally make it depend on existing ideas.",
		object(props{
			"title":      str("Short title of the idea."),
			"body":       str("Longer description."),
			"tags":       strList("Tags for the idea."),
			"depends_on": strList("Ids of ideas the new idea depends on."),
		}, "title"))},
	UpdateIdea: {agent.FamilyGraph, llmprovider.NewFunctionTool(UpdateIdea,
		"Update fields of an existing idea. Omitted fields are unchanged.",
		object(props{
			"id":     str("Id of the idea."),
			"title":  str("New title."),
			"body":   str("New description."),
			"status": enum("New status.", "open", "in_progress", "done"),
			"tags":   strList("Replacement tags."),
		}, "id"))},
	DeleteIdea: {agent.FamilyGraph, llmprovider.NewFunctionTool(DeleteIdea,
		"Delete an idea and every dependency touching it.",
		object(props{"id": str("Id of the idea.")}, "id"))},
	AddDependency: {agent.FamilyGraph, llmprovider.NewFunctionTool(AddDependency,
		"Record that one idea depends on another. Cycles are rejected.",
		object(props{
			"from": str("Id of the dependent idea."),
			"to":   str("Id of the idea it depends on."),
		}, "from", "to"))},
	RemoveDependency: {agent.FamilyGraph, llmprovider.NewFunctionTool(RemoveDependency,
		"Remove a dependency between two ideas.",
		object(props{
			"from": str("Id of the dependent idea."),
			"to":   str("Id of the idea it depends on."),
		}, "from", "to"))},

	ListFiles: {agent.FamilyFile, llmprovider.NewFunctionTool(ListFiles,
		"List project files, optionally under a path prefix.",
		object(props{"prefix": str("Path prefix, e.g. \"src/\".")}))},
	ReadFile: {agent.FamilyFile, llmprovider.NewFunctionTool(ReadFile,
		"Read the content of a project file.",
		object(props{"path": str("File path relative to the project root.")}, "path"))},
	WriteFile: {agent.FamilyFile, llmprovider.NewFunctionTool(WriteFile,
		"Create or overwrite a project file.",
		object(props{
			"path":    str("File path relative to the project root."),
			"content": str("Full file content."),
		}, "path", "content"))},
	EditFile: {agent.FamilyFile, llmprovider.NewFunctionTool(EditFile,
		"Replace text in a project file. old_text must match exactly once unless replace_all is set.",
		object(props{
			"path":        str("File path relative to the project root."),
			"old_text":    str("Exact text to replace."),
			"new_text":    str("Replacement text."),
			"replace_all": boolean("Replace every occurrence."),
		}, "path", "old_text", "new_text"))},
	DeleteFile: {agent.FamilyFile, llmprovider.NewFunctionTool(DeleteFile,
		"Delete a project file.",
		object(props{"path": str("File path relative to the project root.")}, "path"))},

	SearchNotes: {agent.FamilySearch, llmprovider.NewFunctionTool(SearchNotes,
		"Search the user's notes.",
		object(props{
			"query": str("Search terms."),
			"limit": integer("Maximum number of results.", 1, 50),
		}, "query"))},
	WebSearch: {agent.FamilySearch, llmprovider.NewFunctionTool(WebSearch,
		"Search the web.",
		object(props{
			"query": str("Search terms."),
			"limit": integer("Maximum number of results.", 1, 20),
		}, "query"))},
	ProposeNote: {agent.FamilySearch, llmprovider.NewFunctionTool(ProposeNote,
		"Propose a new note synthesized from the conversation. The user approves it later.",
		object(props{
			"title": str("Note title."),
			"body":  str("Note body in markdown."),
			"tags":  strList("Tags for the note."),
		}, "title", "body"))},

	DOMAction: {agent.FamilyOther, llmprovider.NewFunctionTool(DOMAction,
		"Perform an action in the user's open page.",
		object(props{
			"action":   enum("What to do.", "click", "type", "scroll", "navigate", "read"),
			"selector": str("CSS selector of the target element."),
			"text":     str("Text to type."),
			"url":      str("URL to navigate to."),
		}, "action"))},
	StartPreview: {agent.FamilyOther, llmprovider.NewFunctionTool(StartPreview,
		"Start the local preview server of the project.",
		object(props{}))},
	StopPreview: {agent.FamilyOther, llmprovider.NewFunctionTool(StopPreview,
		"Stop the local preview server.",
		object(props{}))},
	PreviewStatus: {agent.FamilyOther, llmprovider.NewFunctionTool(PreviewStatus,
		"Report whether the preview server is running and where.",
		object(props{}))},
}

// Definition returns the definition of a tool.
func Definition(name string) (llmprovider.Tool, bool) {
	e, ok := catalog[name]
	return e.tool, ok
}

// Definitions returns the definitions of the named tools, in order.
func Definitions(names ...string) ([]llmprovider.Tool, error) {
	out := make([]llmprovider.Tool, 0, len(names))
	for _, n := range names {
		e, ok := catalog[n]
		if !ok {
			return nil, fmt.Errorf("tools: unknown tool %q", n)
		}
		out = append(out, e.tool)
	}
	return out, nil
}

// Family returns the family a tool belongs to.
func Family(name string) (agent.Family, bool) {
	e, ok := catalog[name]
	return e.family, ok
}

// Names returns every tool name of a family, sorted. An empty family returns
// all names.
func Names(family agent.Family) []string {
	var names []string
	for n, e := range catalog {
		if family == "" || e.family == family {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

type props map[string]any

func object(p props, required ...string) map[string]any {
	schema := map[string]any{
		"type":                 "object",
		"properties":           map[string]any(p),
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func boolean(desc string) map[string]any {
	return map[string]any{"type": "boolean", "description": desc}
}

func integer(desc string, minimum, maximum int) map[string]any {
	return map[string]any{"type": "integer", "description": desc, "minimum": minimum, "maximum": maximum}
}

func strList(desc string) map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": desc}
}

func enum(desc string, values ...string) map[string]any {
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return map[string]any{"type": "string", "description": desc, "enum": vals}
}
