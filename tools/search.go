package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"

	loremgen "github.com/bozaro/golorem"

	"github.com/haowjy/meridian-agent-go/agent"
	"github.com/haowjy/meridian-agent-go/store"
)

// WebResult is one web search hit.
type WebResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// WebSearcher searches the web.
type WebSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]WebResult, error)
}

// SearchResult is the result of search_notes and web_search.
type SearchResult struct {
	Query   string `json:"query"`
	Count   int    `json:"count"`
	Results any    `json:"results"`
}

// SearchExecutor runs the search and synthesis tools.
type SearchExecutor struct {
	Notes store.NoteStore
	Web   WebSearcher
}

func (s SearchExecutor) Execute(ctx context.Context, call agent.ToolCall, rc agent.RequestContext) (any, error) {
	in := call.Input
	switch call.Name {
	case SearchNotes:
		if s.Notes == nil {
			return nil, fmt.Errorf("%w: note store", ErrNotConfigured)
		}
		query, _ := optString(in, "query")
		notes, err := s.Notes.SearchNotes(ctx, rc.ProjectID, query, optInt(in, "limit", 10))
		if err != nil {
			return nil, err
		}
		return &SearchResult{Query: query, Count: len(notes), Results: notes}, nil
	case WebSearch:
		if s.Web == nil {
			return nil, fmt.Errorf("%w: web search", ErrNotConfigured)
		}
		query, err := stringArg(in, "query")
		if err != nil {
			return nil, err
		}
		hits, err := s.Web.Search(ctx, query, optInt(in, "limit", 5))
		if err != nil {
			return nil, err
		}
		return &SearchResult{Query: query, Count: len(hits), Results: hits}, nil
	case ProposeNote:
		if s.Notes == nil {
			return nil, fmt.Errorf("%w: note store", ErrNotConfigured)
		}
		title, err := stringArg(in, "title")
		if err != nil {
			return nil, err
		}
		body, _ := optString(in, "body")
		return s.Notes.SaveNote(ctx, rc.ProjectID, store.Note{
			Title:    title,
			Body:     body,
			Tags:     optStrings(in, "tags"),
			Proposed: true,
		})
	}
	return nil, fmt.Errorf("search: unsupported tool %q", call.Name)
}

// LoremSearcher is an offline WebSearcher that returns placeholder results.
type LoremSearcher struct {
	mu        sync.Mutex
	generator *loremgen.Lorem
}

// NewLoremSearcher returns a placeholder web searcher.
func NewLoremSearcher() *LoremSearcher {
	return &LoremSearcher{generator: loremgen.New()}
}

func (l *LoremSearcher) Search(ctx context.Context, query string, limit int) ([]WebResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}
	slug := strings.Join(strings.Fields(strings.ToLower(query)), "-")

	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]WebResult, limit)
	for i := range out {
		host := l.generator.Word(4, 10)
		out[i] = WebResult{
			Title:   fmt.Sprintf("%s: %s", query, l.generator.Sentence(3, 6)),
			URL:     fmt.Sprintf("https://%s.example/%s/%d", host, slug, i+1),
			Snippet: l.generator.Sentence(8, 20),
		}
	}
	return out, nil
}
