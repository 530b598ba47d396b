package agent

import (
	"context"
	"encoding/json"
	"sync"

	llmprovider "github.com/haowjy/meridian-agent-go"
)

// scriptedProvider replays one event script per round. When the scripts run
// out, the last one is repeated.
type scriptedProvider struct {
	mu       sync.Mutex
	scripts  [][]llmprovider.StreamEvent
	requests []*llmprovider.GenerateRequest
	hold     bool // keep the channel open after the script until ctx ends
	released chan struct{}
}

func newScriptedProvider(scripts ...[]llmprovider.StreamEvent) *scriptedProvider {
	return &scriptedProvider{scripts: scripts, released: make(chan struct{}, 16)}
}

func (p *scriptedProvider) StreamResponse(ctx context.Context, req *llmprovider.GenerateRequest) (<-chan llmprovider.StreamEvent, error) {
	p.mu.Lock()
	i := len(p.requests)
	p.requests = append(p.requests, req)
	var events []llmprovider.StreamEvent
	if len(p.scripts) > 0 {
		events = p.scripts[min(i, len(p.scripts)-1)]
	}
	hold := p.hold
	p.mu.Unlock()

	ch := make(chan llmprovider.StreamEvent)
	go func() {
		defer close(ch)
		defer func() {
			select {
			case p.released <- struct{}{}:
			default:
			}
		}()
		for _, ev := range events {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
		if hold {
			<-ctx.Done()
		}
	}()
	return ch, nil
}

func (p *scriptedProvider) GenerateResponse(ctx context.Context, req *llmprovider.GenerateRequest) (*llmprovider.GenerateResponse, error) {
	return nil, llmprovider.ErrProviderUnavailable
}

func (p *scriptedProvider) Name() llmprovider.ProviderID { return "scripted" }

func (p *scriptedProvider) SupportsModel(model string) bool { return model != "unsupported" }

func (p *scriptedProvider) request(i int) *llmprovider.GenerateRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests[i]
}

func (p *scriptedProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// script builds the provider events of one round.
type script struct {
	idx    int
	events []llmprovider.StreamEvent
}

func newScript() *script { return &script{} }

func strPtr(s string) *string { return &s }

func (s *script) delta(d *llmprovider.BlockDelta) {
	s.events = append(s.events, llmprovider.StreamEvent{Delta: d})
}

func (s *script) block(b *llmprovider.Block) {
	b.Sequence = s.idx
	s.events = append(s.events, llmprovider.StreamEvent{Block: b})
	s.idx++
}

func (s *script) thinking(text, signature string) *script {
	s.delta(&llmprovider.BlockDelta{BlockIndex: s.idx, BlockType: strPtr(llmprovider.BlockTypeThinking), DeltaType: llmprovider.DeltaTypeThinking, TextDelta: strPtr(text)})
	if signature != "" {
		s.delta(&llmprovider.BlockDelta{BlockIndex: s.idx, DeltaType: llmprovider.DeltaTypeSignature, SignatureDelta: strPtr(signature)})
	}
	s.block(llmprovider.NewThinkingBlock(text, signature))
	return s
}

func (s *script) text(text string) *script {
	s.delta(&llmprovider.BlockDelta{BlockIndex: s.idx, BlockType: strPtr(llmprovider.BlockTypeText), DeltaType: llmprovider.DeltaTypeText, TextDelta: strPtr(text)})
	s.block(llmprovider.NewTextBlock(text))
	return s
}

func (s *script) tool(id, name string, input map[string]any) *script {
	s.delta(&llmprovider.BlockDelta{
		BlockIndex:   s.idx,
		BlockType:    strPtr(llmprovider.BlockTypeToolUse),
		DeltaType:    llmprovider.DeltaTypeToolCallStart,
		ToolCallID:   strPtr(id),
		ToolCallName: strPtr(name),
	})
	raw, _ := json.Marshal(input)
	s.delta(&llmprovider.BlockDelta{BlockIndex: s.idx, DeltaType: llmprovider.DeltaTypeJSON, JSONDelta: strPtr(string(raw))})
	s.block(llmprovider.NewToolUseBlock(id, name, input))
	return s
}

func (s *script) done(stopReason string) []llmprovider.StreamEvent {
	return append(s.events, llmprovider.StreamEvent{Metadata: &llmprovider.StreamMetadata{
		Model:        "scripted-model",
		InputTokens:  10,
		OutputTokens: 5,
		StopReason:   stopReason,
	}})
}

func (s *script) fail(err error) []llmprovider.StreamEvent {
	return append(s.events, llmprovider.StreamEvent{Error: err})
}

func (s *script) cut() []llmprovider.StreamEvent {
	return s.events
}

// recorder is an Observer collecting every event. After goneAfter returns
// true for a recorded event, it disconnects.
type recorder struct {
	mu        sync.Mutex
	events    []Event
	goneAfter func(Event) bool
	gone      bool
}

func (r *recorder) Send(ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gone {
		return ErrObserverGone
	}
	r.events = append(r.events, ev)
	if r.goneAfter != nil && r.goneAfter(ev) {
		r.gone = true
	}
	return nil
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) ofType(t EventType) []Event {
	var out []Event
	for _, ev := range r.all() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func eventTypes(events []Event) []EventType {
	out := make([]EventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}
