package agent

import (
	llmprovider "github.com/haowjy/meridian-agent-go"
)

// EventType identifies the kind of an Event.
type EventType string

// Round events, produced by the stream consumer.
const (
	EventThinkingDelta      EventType = "thinking_delta"
	EventThinkingDone       EventType = "thinking_done"
	EventTextDelta          EventType = "text_delta"
	EventToolCallStarted    EventType = "tool_call_started"
	EventToolCallInputDelta EventType = "tool_call_input_delta"
	EventToolCallReady      EventType = "tool_call_ready"
	EventRoundDone          EventType = "round_done"
	EventError              EventType = "error"
)

// Auxiliary and terminal events, produced by the controller.
const (
	EventSearchStarted   EventType = "search_started"
	EventSearchResults   EventType = "search_results"
	EventToolResult      EventType = "tool_result"
	EventProposal        EventType = "proposal"
	EventSnapshotCreated EventType = "snapshot_created"
	EventStreamEnd       EventType = "stream_end"
	EventStreamError     EventType = "stream_error"
)

// StopReason explains why a round ended.
type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopToolUse   StopReason = "tool_use"
	StopMaxTokens StopReason = "max_tokens"
	StopError     StopReason = "error"
)

// Event is one item of the live feed forwarded to an observer. Only the fields
// relevant to Type are set. ExchangeID, Round and Seq are stamped by the
// broadcaster.
type Event struct {
	Type       EventType `json:"type"`
	ExchangeID string    `json:"exchange_id,omitempty"`
	Round      int       `json:"round,omitempty"`
	Seq        uint64    `json:"seq"`

	Text       string         `json:"text,omitempty"`
	Signature  string         `json:"signature,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolName   string         `json:"tool_name,omitempty"`
	Partial    string         `json:"partial,omitempty"`
	Input      map[string]any `json:"input,omitempty"`
	StopReason StopReason     `json:"stop_reason,omitempty"`
	Message    string         `json:"message,omitempty"`
	Query      string         `json:"query,omitempty"`
	Success    *bool          `json:"success,omitempty"`
	Data       any            `json:"data,omitempty"`
	VersionID  string         `json:"version_id,omitempty"`
}

// IsTerminal reports whether the event closes the feed.
func (e Event) IsTerminal() bool {
	return e.Type == EventStreamEnd || e.Type == EventStreamError
}

func ThinkingDelta(text string) Event { return Event{Type: EventThinkingDelta, Text: text} }

// ThinkingDone closes a reasoning block. An empty signature marks it unverifiable.
func ThinkingDone(signature string) Event { return Event{Type: EventThinkingDone, Signature: signature} }

func TextDelta(text string) Event { return Event{Type: EventTextDelta, Text: text} }

func ToolCallStarted(id, name string) Event {
	return Event{Type: EventToolCallStarted, ToolCallID: id, ToolName: name}
}

func ToolCallInputDelta(id, partial string) Event {
	return Event{Type: EventToolCallInputDelta, ToolCallID: id, Partial: partial}
}

func ToolCallReady(call ToolCall) Event {
	return Event{Type: EventToolCallReady, ToolCallID: call.ID, ToolName: call.Name, Input: call.Input}
}

func RoundDone(reason StopReason) Event { return Event{Type: EventRoundDone, StopReason: reason} }

func ErrorEvent(message string) Event { return Event{Type: EventError, Message: message} }

func SearchStarted(call ToolCall, query string) Event {
	return Event{Type: EventSearchStarted, ToolCallID: call.ID, ToolName: call.Name, Query: query}
}

func SearchResults(call ToolCall, data any) Event {
	return Event{Type: EventSearchResults, ToolCallID: call.ID, ToolName: call.Name, Data: data}
}

func Proposal(call ToolCall, data any) Event {
	return Event{Type: EventProposal, ToolCallID: call.ID, ToolName: call.Name, Data: data}
}

// ToolResultEvent reports the outcome of one tool execution.
func ToolResultEvent(call ToolCall, res ToolResult) Event {
	success := res.Success
	return Event{
		Type:       EventToolResult,
		ToolCallID: call.ID,
		ToolName:   call.Name,
		Success:    &success,
		Data:       res.Data,
		Message:    res.Error,
	}
}

func SnapshotCreated(versionID string) Event {
	return Event{Type: EventSnapshotCreated, VersionID: versionID}
}

func StreamEnd() Event { return Event{Type: EventStreamEnd} }

func StreamError(message string) Event { return Event{Type: EventStreamError, Message: message} }

// ToolCall is a model request to invoke a named tool. ID is echoed back
// unchanged in the matching ToolResult.
type ToolCall struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// ToolResult is the outcome of executing one ToolCall.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Success    bool   `json:"success"`
	Data       any    `json:"data,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Failed builds an unsuccessful result for the call.
func Failed(callID, message string) ToolResult {
	return ToolResult{ToolCallID: callID, Success: false, Error: message}
}

// Reasoning is one completed thinking block. Signature is empty when the
// provider did not sign it.
type Reasoning struct {
	Text      string
	Signature string
}

// RoundResult is the accumulated outcome of one streamed round. Thinking joins
// the text of every reasoning block for display; Reasoning keeps them apart.
type RoundResult struct {
	Round        int
	Thinking     string
	Reasoning    []Reasoning
	Text         string
	ToolCalls    []ToolCall
	StopReason   StopReason
	ErrorMessage string
	Usage        Usage
}

// HasPendingCalls reports whether the round asks for tool execution.
func (r RoundResult) HasPendingCalls() bool {
	return r.StopReason == StopToolUse && len(r.ToolCalls) > 0
}

// Usage carries token counts reported by the provider.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// ConversationTurn is one assistant message plus the tool results answering it.
// Turns are appended to a log private to a single exchange.
type ConversationTurn struct {
	AssistantBlocks []*llmprovider.Block
	ToolCalls       []ToolCall
	ToolResults     []ToolResult
}
