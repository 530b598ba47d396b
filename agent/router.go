package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"goa.design/clue/log"

	llmprovider "github.com/haowjy/meridian-agent-go"
)

// Family partitions tool names into disjoint executor groups.
type Family string

const (
	FamilyGraph  Family = "graph"
	FamilyFile   Family = "file"
	FamilySearch Family = "search"
	FamilyOther  Family = "other"
)

var (
	// ErrDuplicateTool indicates a tool name already bound to a family.
	ErrDuplicateTool = errors.New("agent: tool already registered")

	// ErrUnknownFamily indicates a tool bound to a family without an executor.
	ErrUnknownFamily = errors.New("agent: no executor mounted for family")
)

// RequestContext identifies the caller of an exchange. It is passed unchanged
// to every tool execution.
type RequestContext struct {
	ExchangeID string
	Feature    string
	UserID     string
	ProjectID  string
	Metadata   map[string]string
}

// Executor runs the tools of one family.
type Executor interface {
	Execute(ctx context.Context, call ToolCall, rc RequestContext) (any, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, call ToolCall, rc RequestContext) (any, error)

func (f ExecutorFunc) Execute(ctx context.Context, call ToolCall, rc RequestContext) (any, error) {
	return f(ctx, call, rc)
}

// Router dispatches tool calls to family executors through an explicit
// name → family table.
type Router struct {
	mu       sync.RWMutex
	families map[Family]Executor
	names    map[string]Family
	defs     map[string]llmprovider.Tool
	schemas  map[string]*jsonschema.Schema
}

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{
		families: make(map[Family]Executor),
		names:    make(map[string]Family),
		defs:     make(map[string]llmprovider.Tool),
		schemas:  make(map[string]*jsonschema.Schema),
	}
}

// Mount sets the executor of a family, replacing any previous one.
func (r *Router) Mount(family Family, exec Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.families[family] = exec
}

// Register binds a tool name to a family. When def is non-nil its parameter
// schema is compiled and enforced before dispatch.
func (r *Router) Register(name string, family Family, def *llmprovider.Tool) error {
	if name == "" {
		return fmt.Errorf("agent: empty tool name")
	}

	var schema *jsonschema.Schema
	if def != nil {
		if err := def.Validate(); err != nil {
			return fmt.Errorf("agent: tool %q: %w", name, err)
		}
		var err error
		if schema, err = compileSchema(def.Function.Parameters); err != nil {
			return fmt.Errorf("agent: tool %q schema: %w", name, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.names[name]; ok {
		return fmt.Errorf("%w: %q in family %s", ErrDuplicateTool, name, existing)
	}
	r.names[name] = family
	if def != nil {
		r.defs[name] = *def
		r.schemas[name] = schema
	}
	return nil
}

// RegisterFamily mounts exec and registers every definition under family.
func (r *Router) RegisterFamily(family Family, exec Executor, defs ...llmprovider.Tool) error {
	r.Mount(family, exec)
	for i := range defs {
		if err := r.Register(defs[i].Name(), family, &defs[i]); err != nil {
			return err
		}
	}
	return nil
}

// FamilyOf returns the family a tool name is bound to.
func (r *Router) FamilyOf(name string) (Family, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.names[name]
	return f, ok
}

// Definition returns the registered definition of a tool.
func (r *Router) Definition(name string) (llmprovider.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// Names returns all registered tool names, sorted.
func (r *Router) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.names))
	for n := range r.names {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Execute runs one call and always returns a result for it. Unknown names,
// invalid input, executor errors and panics all become failed results.
func (r *Router) Execute(ctx context.Context, call ToolCall, rc RequestContext) (res ToolResult) {
	r.mu.RLock()
	family, known := r.names[call.Name]
	exec := r.families[family]
	schema := r.schemas[call.Name]
	r.mu.RUnlock()

	if !known {
		return Failed(call.ID, "unknown tool")
	}
	if exec == nil {
		return Failed(call.ID, fmt.Sprintf("%s: %s", ErrUnknownFamily.Error(), family))
	}
	if schema != nil {
		if err := validateInput(schema, call.Input); err != nil {
			return Failed(call.ID, fmt.Sprintf("invalid input for %s: %v", call.Name, err))
		}
	}

	defer func() {
		if p := recover(); p != nil {
			log.Error(ctx, fmt.Errorf("tool panicked: %v", p),
				log.KV{K: "tool", V: call.Name},
				log.KV{K: "tool_call_id", V: call.ID})
			res = Failed(call.ID, fmt.Sprintf("tool panicked: %v", p))
		}
	}()

	data, err := exec.Execute(ctx, call, rc)
	if err != nil {
		log.Debug(ctx, log.KV{K: "msg", V: "tool failed"},
			log.KV{K: "tool", V: call.Name},
			log.KV{K: "err", V: err.Error()})
		return Failed(call.ID, err.Error())
	}
	return ToolResult{ToolCallID: call.ID, Success: true, Data: data}
}

func compileSchema(params map[string]any) (*jsonschema.Schema, error) {
	doc, err := normalizeJSON(params)
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return c.Compile("schema.json")
}

func validateInput(schema *jsonschema.Schema, input map[string]any) error {
	if input == nil {
		input = map[string]any{}
	}
	payload, err := normalizeJSON(input)
	if err != nil {
		return err
	}
	return schema.Validate(payload)
}

// normalizeJSON converts Go values to the generic JSON shapes the validator
// expects.
func normalizeJSON(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(b))
}
