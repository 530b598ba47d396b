package agent

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"goa.design/clue/log"

	llmprovider "github.com/haowjy/meridian-agent-go"
)

// StreamConsumer opens one streamed round at a time against a provider.
type StreamConsumer struct {
	provider    llmprovider.Provider
	model       string
	params      *llmprovider.RequestParams
	idleTimeout time.Duration
}

// NewStreamConsumer returns a consumer for the given provider and model.
// A zero idleTimeout disables the idle bound.
func NewStreamConsumer(provider llmprovider.Provider, model string, params *llmprovider.RequestParams, idleTimeout time.Duration) *StreamConsumer {
	return &StreamConsumer{
		provider:    provider,
		model:       model,
		params:      params,
		idleTimeout: idleTimeout,
	}
}

// Open starts a round with the given history and tool catalog.
func (c *StreamConsumer) Open(ctx context.Context, round int, messages []llmprovider.Message, catalog []llmprovider.Tool) (*RoundStream, error) {
	params := c.params.Clone()
	params.Tools = catalog

	roundCtx, cancel := context.WithCancel(ctx)
	events, err := c.provider.StreamResponse(roundCtx, &llmprovider.GenerateRequest{
		Messages: messages,
		Model:    c.model,
		Params:   params,
	})
	if err != nil {
		cancel()
		return nil, err
	}

	return &RoundStream{
		ctx:       roundCtx,
		cancel:    cancel,
		events:    events,
		idle:      c.idleTimeout,
		result:    RoundResult{Round: round},
		toolIDs:   make(map[int]string),
		streamed:  make(map[int]bool),
		signature: make(map[int]string),
		thoughts:  make(map[int]string),
	}, nil
}

// RoundStream is the event sequence of exactly one round. It can be iterated
// once; Result is complete after the iteration ends.
type RoundStream struct {
	ctx    context.Context
	cancel context.CancelFunc
	events <-chan llmprovider.StreamEvent
	idle   time.Duration

	started  bool
	finished bool
	closed   bool

	result    RoundResult
	thinking  strings.Builder
	text      strings.Builder
	toolIDs   map[int]string // block index → tool call id
	streamed  map[int]bool   // block index → text deltas seen
	signature map[int]string // block index → signature deltas
	thoughts  map[int]string // block index → thinking deltas
}

// Events returns the round's lazy, finite event sequence. Iterating a second
// time yields nothing. Stopping early releases the transport.
func (s *RoundStream) Events() iter.Seq[Event] {
	return func(yield func(Event) bool) {
		if s.started {
			return
		}
		s.started = true
		defer s.Close()

		var timer *time.Timer
		var timeout <-chan time.Time
		if s.idle > 0 {
			timer = time.NewTimer(s.idle)
			defer timer.Stop()
			timeout = timer.C
		}

		for !s.finished {
			var (
				ev llmprovider.StreamEvent
				ok bool
			)
			if timer != nil {
				timer.Reset(s.idle)
			}
			select {
			case ev, ok = <-s.events:
			case <-timeout:
				for _, out := range s.fail(fmt.Sprintf("stream idle for %s", s.idle)) {
					if !yield(out) {
						return
					}
				}
				return
			}

			if !ok {
				msg := "stream ended without completion"
				if err := s.ctx.Err(); err != nil {
					msg = err.Error()
				}
				for _, out := range s.fail(msg) {
					if !yield(out) {
						return
					}
				}
				return
			}

			// Time spent in yield belongs to the observer, not the provider.
			if timer != nil {
				timer.Stop()
			}

			for _, out := range s.translate(ev) {
				if !yield(out) {
					return
				}
			}
		}
	}
}

// Result returns the accumulated round. A round abandoned before completion
// reports StopError.
func (s *RoundStream) Result() RoundResult {
	r := s.result
	r.Thinking = s.thinking.String()
	r.Text = s.text.String()
	if !s.finished {
		r.StopReason = StopError
		if r.ErrorMessage == "" {
			r.ErrorMessage = "round abandoned before completion"
		}
	}
	return r
}

// Close cancels the round and drains the provider channel in the background.
// Safe to call more than once.
func (s *RoundStream) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
	go func(events <-chan llmprovider.StreamEvent) {
		for range events {
		}
	}(s.events)
}

// fail ends the round with an error.
func (s *RoundStream) fail(message string) []Event {
	s.finished = true
	s.result.StopReason = StopError
	s.result.ErrorMessage = message
	return []Event{ErrorEvent(message), RoundDone(StopError)}
}

// translate maps one provider event onto zero or more round events.
func (s *RoundStream) translate(ev llmprovider.StreamEvent) []Event {
	switch {
	case ev.Error != nil:
		return s.fail(errorMessage(ev.Error))

	case ev.Delta != nil:
		return s.translateDelta(ev.Delta)

	case ev.Block != nil:
		return s.translateBlock(ev.Block)

	case ev.Metadata != nil:
		if ev.Metadata.StopReason == "" {
			return s.fail("stream ended without a stop reason")
		}
		s.finished = true
		s.result.Usage = Usage{InputTokens: ev.Metadata.InputTokens, OutputTokens: ev.Metadata.OutputTokens}
		s.result.StopReason = normalizeStopReason(ev.Metadata.StopReason, len(s.result.ToolCalls))
		return []Event{RoundDone(s.result.StopReason)}
	}
	return nil
}

func (s *RoundStream) translateDelta(d *llmprovider.BlockDelta) []Event {
	var out []Event

	if d.IsBlockStart() && *d.BlockType == llmprovider.BlockTypeToolUse && d.ToolCallID != nil {
		name := ""
		if d.ToolCallName != nil {
			name = *d.ToolCallName
		}
		s.toolIDs[d.BlockIndex] = *d.ToolCallID
		out = append(out, ToolCallStarted(*d.ToolCallID, name))
	}

	switch {
	case d.IsThinkingDelta():
		if *d.TextDelta != "" {
			s.streamed[d.BlockIndex] = true
			s.thinking.WriteString(*d.TextDelta)
			s.thoughts[d.BlockIndex] += *d.TextDelta
			out = append(out, ThinkingDelta(*d.TextDelta))
		}
	case d.IsTextDelta():
		if *d.TextDelta != "" {
			s.streamed[d.BlockIndex] = true
			s.text.WriteString(*d.TextDelta)
			out = append(out, TextDelta(*d.TextDelta))
		}
	case d.IsSignatureDelta():
		s.signature[d.BlockIndex] += *d.SignatureDelta
	case d.IsJSONDelta():
		if id, ok := s.toolIDs[d.BlockIndex]; ok {
			out = append(out, ToolCallInputDelta(id, *d.JSONDelta))
		}
	}
	return out
}

func (s *RoundStream) translateBlock(b *llmprovider.Block) []Event {
	idx := b.Sequence
	switch b.BlockType {
	case llmprovider.BlockTypeThinking:
		var out []Event
		if !s.streamed[idx] && b.Text() != "" {
			s.thinking.WriteString(b.Text())
			out = append(out, ThinkingDelta(b.Text()))
		}
		text := b.Text()
		if text == "" {
			text = s.thoughts[idx]
		}
		sig := b.Signature()
		if sig == "" {
			sig = s.signature[idx]
		}
		s.result.Reasoning = append(s.result.Reasoning, Reasoning{Text: text, Signature: sig})
		return append(out, ThinkingDone(sig))

	case llmprovider.BlockTypeText:
		if !s.streamed[idx] && b.Text() != "" {
			s.text.WriteString(b.Text())
			return []Event{TextDelta(b.Text())}
		}

	case llmprovider.BlockTypeToolUse:
		id, _ := b.GetToolUseID()
		name, _ := b.GetToolName()
		input, _ := b.GetToolInput()
		if input == nil {
			input = map[string]any{}
		}
		call := ToolCall{ID: id, Name: name, Input: input}
		s.result.ToolCalls = append(s.result.ToolCalls, call)

		var out []Event
		if _, announced := s.toolIDs[idx]; !announced {
			s.toolIDs[idx] = id
			out = append(out, ToolCallStarted(id, name))
		}
		return append(out, ToolCallReady(call))
	}
	return nil
}

// normalizeStopReason maps provider stop reasons onto round stop reasons.
// A tool_use stop without ready calls is a plain end of turn; ready calls after
// any other natural stop are still pending.
func normalizeStopReason(reason string, calls int) StopReason {
	if reason == llmprovider.StopReasonMaxTokens {
		return StopMaxTokens
	}
	if calls > 0 {
		return StopToolUse
	}
	return StopEndTurn
}

func errorMessage(err error) string {
	var pe *llmprovider.ProviderError
	if errors.As(err, &pe) && pe.Message != "" {
		return pe.Message
	}
	return err.Error()
}

// drainRound consumes a round fully, forwarding each event. It stops early
// when forward returns false.
func drainRound(ctx context.Context, rs *RoundStream, forward func(Event) bool) RoundResult {
	for ev := range rs.Events() {
		if !forward(ev) {
			log.Debug(ctx, log.KV{K: "msg", V: "round stream abandoned"}, log.KV{K: "round", V: rs.result.Round})
			break
		}
	}
	return rs.Result()
}
