package feature

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/haowjy/meridian-agent-go/tools"
)

//go:embed profiles.yaml
var profilesYAML []byte

// ErrUnknownFeature indicates a feature name with no profile.
var ErrUnknownFeature = errors.New("feature: unknown feature")

// File is the on-disk layout of a profiles document.
type File struct {
	Version  string              `yaml:"version"`
	Features map[string]Settings `yaml:"features"`
}

// Registry holds the loaded profiles by name.
type Registry struct {
	profiles map[string]*Profile
}

// Load returns the built-in profiles bound to sources.
func Load(sources Sources) (*Registry, error) {
	return Parse(profilesYAML, sources)
}

// LoadFile reads profiles from a YAML file instead of the built-in ones.
func LoadFile(path string, sources Sources) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("feature: read %s: %w", path, err)
	}
	return Parse(data, sources)
}

// Parse builds a registry from a YAML profiles document. Every tool named by
// a profile must be a known tool.
func Parse(data []byte, sources Sources) (*Registry, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("feature: unmarshal profiles: %w", err)
	}
	if len(file.Features) == 0 {
		return nil, fmt.Errorf("feature: profiles document declares no features")
	}

	r := &Registry{profiles: make(map[string]*Profile, len(file.Features))}
	for name, settings := range file.Features {
		if settings.MaxRounds < 0 {
			return nil, fmt.Errorf("feature %s: max_rounds must not be negative", name)
		}
		catalog, err := tools.Definitions(settings.Tools...)
		if err != nil {
			return nil, fmt.Errorf("feature %s: %w", name, err)
		}
		p, err := newProfile(name, settings, catalog, sources)
		if err != nil {
			return nil, err
		}
		r.profiles[name] = p
	}
	return r, nil
}

// Get returns the profile with the given name.
func (r *Registry) Get(name string) (*Profile, error) {
	p, ok := r.profiles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFeature, name)
	}
	return p, nil
}

// Names returns the profile names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.profiles))
	for n := range r.profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
