// Package feature defines the assistant profiles the engine runs: their tool
// catalog, system preamble, auxiliary events, mutating tools and round ceiling.
package feature

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"text/template"
	"time"

	llmprovider "github.com/haowjy/meridian-agent-go"
	"github.com/haowjy/meridian-agent-go/agent"
	"github.com/haowjy/meridian-agent-go/store"
)

// Auxiliary event kinds a profile can attach to a tool.
const (
	AuxSearchStarted = "search_started"
	AuxSearchResults = "search_results"
	AuxProposal      = "proposal"
)

// AuxRule attaches auxiliary events to one tool.
type AuxRule struct {
	Tool   string `yaml:"tool"`
	Before string `yaml:"before,omitempty"`
	After  string `yaml:"after,omitempty"`
}

// Settings is the YAML form of a profile.
type Settings struct {
	Description string    `yaml:"description"`
	MaxRounds   int       `yaml:"max_rounds"`
	Tools       []string  `yaml:"tools"`
	Mutating    []string  `yaml:"mutating"`
	Aux         []AuxRule `yaml:"aux"`
	Preamble    string    `yaml:"preamble"`
}

// Sources give the preamble access to the current project state. Nil stores
// are skipped.
type Sources struct {
	Ideas store.IdeaStore
	Files store.FileStore
}

// PreambleData is the data the preamble template executes against.
type PreambleData struct {
	Feature      string
	ProjectID    string
	UserID       string
	Date         string
	Ideas        []store.Idea
	Dependencies []store.Dependency
	Files        []store.FileInfo
}

// Profile is a loaded feature. It implements agent.Feature and every optional
// capability interface.
type Profile struct {
	name     string
	settings Settings
	catalog  []llmprovider.Tool
	preamble *template.Template
	before   map[string]string
	after    map[string]string
	sources  Sources
	now      func() time.Time
}

var (
	_ agent.Feature          = (*Profile)(nil)
	_ agent.PreambleProvider = (*Profile)(nil)
	_ agent.AuxiliaryRules   = (*Profile)(nil)
	_ agent.MutationPolicy   = (*Profile)(nil)
	_ agent.RoundLimiter     = (*Profile)(nil)
)

func newProfile(name string, settings Settings, catalog []llmprovider.Tool, sources Sources) (*Profile, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(settings.Preamble)
	if err != nil {
		return nil, fmt.Errorf("feature %s: preamble: %w", name, err)
	}
	p := &Profile{
		name:     name,
		settings: settings,
		catalog:  catalog,
		preamble: tmpl,
		before:   make(map[string]string),
		after:    make(map[string]string),
		sources:  sources,
		now:      time.Now,
	}
	for _, rule := range settings.Aux {
		if !slices.Contains(settings.Tools, rule.Tool) {
			return nil, fmt.Errorf("feature %s: aux rule for %q which is not in the catalog", name, rule.Tool)
		}
		if rule.Before != "" && rule.Before != AuxSearchStarted {
			return nil, fmt.Errorf("feature %s: unknown before event %q", name, rule.Before)
		}
		switch rule.After {
		case "", AuxSearchResults, AuxProposal:
		default:
			return nil, fmt.Errorf("feature %s: unknown after event %q", name, rule.After)
		}
		p.before[rule.Tool] = rule.Before
		p.after[rule.Tool] = rule.After
	}
	for _, m := range settings.Mutating {
		if !slices.Contains(settings.Tools, m) {
			return nil, fmt.Errorf("feature %s: mutating tool %q is not in the catalog", name, m)
		}
	}
	return p, nil
}

func (p *Profile) Name() string { return p.name }
func (p *Profile) Description() string { return p.settings.Description }

// Catalog returns a copy of the profile's tool definitions.
func (p *Profile) Catalog() []llmprovider.Tool { return slices.Clone(p.catalog) }

func (p *Profile) MutatingTools() []string { return slices.Clone(p.settings.Mutating) }

func (p *Profile) MaxRounds() int { return p.settings.MaxRounds }

// Preamble renders the system prompt from the current project state.
func (p *Profile) Preamble(ctx context.Context, rc agent.RequestContext) (string, error) {
	data := PreambleData{
		Feature:   p.name,
		ProjectID: rc.ProjectID,
		UserID:    rc.UserID,
		Date:      p.now().Format("Monday, January 2, 2006"),
	}
	var err error
	if p.sources.Ideas != nil {
		if data.Ideas, err = p.sources.Ideas.ListIdeas(ctx, rc.ProjectID); err != nil {
			return "", fmt.Errorf("feature %s: list ideas: %w", p.name, err)
		}
		if data.Dependencies, err = p.sources.Ideas.Dependencies(ctx, rc.ProjectID); err != nil {
			return "", fmt.Errorf("feature %s: list dependencies: %w", p.name, err)
		}
	}
	if p.sources.Files != nil {
		if data.Files, err = p.sources.Files.ListFiles(ctx, rc.ProjectID, ""); err != nil {
			return "", fmt.Errorf("feature %s: list files: %w", p.name, err)
		}
	}

	var buf bytes.Buffer
	if err := p.preamble.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("feature %s: render preamble: %w", p.name, err)
	}
	return buf.String(), nil
}

func (p *Profile) BeforeTool(call agent.ToolCall) []agent.Event {
	if p.before[call.Name] != AuxSearchStarted {
		return nil
	}
	query, _ := call.Input["query"].(string)
	return []agent.Event{agent.SearchStarted(call, query)}
}

// AfterTool emits result events for successful calls only.
func (p *Profile) AfterTool(call agent.ToolCall, res agent.ToolResult) []agent.Event {
	if !res.Success {
		return nil
	}
	switch p.after[call.Name] {
	case AuxSearchResults:
		return []agent.Event{agent.SearchResults(call, res.Data)}
	case AuxProposal:
		return []agent.Event{agent.Proposal(call, res.Data)}
	}
	return nil
}
