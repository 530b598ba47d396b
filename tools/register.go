package tools

import (
	"github.com/haowjy/meridian-agent-go/agent"
	"github.com/haowjy/meridian-agent-go/store"
)

// Deps are the collaborators behind the tool families. Nil fields leave the
// matching tools registered but failing with ErrNotConfigured.
type Deps struct {
	Ideas   store.IdeaStore
	Files   store.FileStore
	Notes   store.NoteStore
	Web     WebSearcher
	DOM     DOMBridge
	Preview PreviewController
}

// Register mounts every family executor on router together with the
// definitions of its tools.
func Register(router *agent.Router, deps Deps) error {
	families := []struct {
		family agent.Family
		exec   agent.Executor
	}{
		{agent.FamilyGraph, GraphExecutor{Ideas: deps.Ideas}},
		{agent.FamilyFile, FileExecutor{Files: deps.Files}},
		{agent.FamilySearch, SearchExecutor{Notes: deps.Notes, Web: deps.Web}},
		{agent.FamilyOther, OtherExecutor{DOM: deps.DOM, Preview: deps.Preview}},
	}
	for _, f := range families {
		defs, err := Definitions(Names(f.family)...)
		if err != nil {
			return err
		}
		if err := router.RegisterFamily(f.family, f.exec, defs...); err != nil {
			return err
		}
	}
	return nil
}

// NewRouter returns a router with every tool family registered.
func NewRouter(deps Deps) (*agent.Router, error) {
	router := agent.NewRouter()
	if err := Register(router, deps); err != nil {
		return nil, err
	}
	return router, nil
}
