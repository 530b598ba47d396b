package lorem

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	loremgen "github.com/bozaro/golorem"
	"goa.design/clue/log"

	llmprovider "github.com/haowjy/meridian-agent-go"
)

// Provider is a mock LLM provider that generates lorem ipsum text.
// Used for testing and development without requiring real API keys.
//
// Behavior is driven by the request and the model name:
//   - While fewer than ToolRounds tool-result messages are in the history and
//     tools are offered, each response ends with ToolCallsPerRound tool calls
//     (stop reason "tool_use"), rotating through the offered tools.
//   - Otherwise the response is text only and ends with "end_turn".
//   - Thinking blocks are produced when thinking is enabled. Models containing
//     "nosig" produce thinking without a signature.
//   - Models containing "cutoff" stop with "max_tokens" after the first text block.
//   - Models containing "broken" fail mid-stream with an error event.
type Provider struct {
	mu        sync.Mutex
	generator *loremgen.Lorem
	opts      Options
}

// Options tunes the mock conversation shape.
type Options struct {
	// ToolRounds is the number of tool-calling responses before a final answer.
	ToolRounds int
	// ToolCallsPerRound is the number of tool calls in each tool-calling response.
	ToolCallsPerRound int
	// WordsPerBlock is the length of each text and thinking block.
	WordsPerBlock int
}

// DefaultOptions returns one round of one tool call with 20-word blocks.
func DefaultOptions() Options {
	return Options{ToolRounds: 1, ToolCallsPerRound: 1, WordsPerBlock: 20}
}

// NewProvider creates a new lorem ipsum provider with default options.
func NewProvider() *Provider {
	return NewProviderWithOptions(DefaultOptions())
}

// NewProviderWithOptions creates a lorem provider with the given conversation shape.
func NewProviderWithOptions(opts Options) *Provider {
	if opts.ToolCallsPerRound < 1 {
		opts.ToolCallsPerRound = 1
	}
	if opts.WordsPerBlock < 1 {
		opts.WordsPerBlock = 20
	}
	return &Provider{
		generator: loremgen.New(),
		opts:      opts,
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() llmprovider.ProviderID {
	return llmprovider.ProviderLorem
}

// SupportsModel returns true if the model name starts with "lorem-".
// Example models: "lorem-fast", "lorem-slow", "lorem-instant", "lorem-nosig"
func (p *Provider) SupportsModel(model string) bool {
	return strings.HasPrefix(model, "lorem-")
}

func (p *Provider) checkModel(model string) error {
	if p.SupportsModel(model) {
		return nil
	}
	return &llmprovider.ModelError{
		Model:    model,
		Provider: p.Name().String(),
		Reason:   "model not supported by Lorem provider (must start with 'lorem-')",
		Err:      llmprovider.ErrInvalidModel,
	}
}

// GenerateResponse collects a full streamed response into blocks.
func (p *Provider) GenerateResponse(ctx context.Context, req *llmprovider.GenerateRequest) (*llmprovider.GenerateResponse, error) {
	events, err := p.StreamResponse(ctx, req)
	if err != nil {
		return nil, err
	}

	resp := &llmprovider.GenerateResponse{}
	for ev := range events {
		switch {
		case ev.Error != nil:
			return nil, ev.Error
		case ev.Block != nil:
			resp.Blocks = append(resp.Blocks, ev.Block)
		case ev.Metadata != nil:
			resp.Model = ev.Metadata.Model
			resp.InputTokens = ev.Metadata.InputTokens
			resp.OutputTokens = ev.Metadata.OutputTokens
			resp.StopReason = ev.Metadata.StopReason
			resp.ResponseMetadata = ev.Metadata.ResponseMetadata
		}
	}
	if resp.StopReason == "" {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, llmprovider.ErrStreamInterrupted
	}
	return resp, nil
}

// getStreamDelay returns the delay between words based on the model name.
//   - lorem-instant: no delay
//   - lorem-slow: 2 words/second
//   - lorem-fast: 30 words/second
//   - default: 10 words/second
func getStreamDelay(model string) time.Duration {
	switch {
	case strings.Contains(model, "instant"):
		return 0
	case strings.Contains(model, "slow"):
		return 500 * time.Millisecond
	case strings.Contains(model, "fast"):
		return 33 * time.Millisecond
	default:
		return 100 * time.Millisecond
	}
}

// isCutoffModel returns true if the model should simulate max_tokens cutoff.
func isCutoffModel(model string) bool {
	return strings.Contains(model, "cutoff")
}

// StreamResponse generates a streaming lorem ipsum response:
// [thinking] → text → [tool_use × ToolCallsPerRound].
func (p *Provider) StreamResponse(ctx context.Context, req *llmprovider.GenerateRequest) (<-chan llmprovider.StreamEvent, error) {
	if err := p.checkModel(req.Model); err != nil {
		return nil, err
	}

	params := req.Params
	if params == nil {
		params = &llmprovider.RequestParams{}
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	s := &stream{
		p:     p,
		ctx:   ctx,
		model: req.Model,
		out:   make(chan llmprovider.StreamEvent, 10),
		delay: getStreamDelay(req.Model),
	}

	thinkingEnabled := params.IsThinkingEnabled()
	toolRoundsDone := countToolRounds(req.Messages)
	callTools := len(params.Tools) > 0 && toolRoundsDone < p.opts.ToolRounds &&
		(params.ToolChoice == nil || params.ToolChoice.Mode != llmprovider.ToolChoiceModeNone)

	go func() {
		defer close(s.out)

		log.Debug(ctx,
			log.KV{K: "msg", V: "lorem stream started"},
			log.KV{K: "model", V: req.Model},
			log.KV{K: "thinking", V: thinkingEnabled},
			log.KV{K: "tools", V: len(params.Tools)},
			log.KV{K: "tool_rounds_done", V: toolRoundsDone})

		stopReason := llmprovider.StopReasonEndTurn
		words := p.opts.WordsPerBlock

		if thinkingEnabled {
			signature := "4k_a" // Mock Anthropic signature
			if strings.Contains(req.Model, "nosig") {
				signature = ""
			}
			if !s.thinkingBlock(words, signature) {
				return
			}
		}

		if !s.textBlock(words) {
			return
		}

		if strings.Contains(req.Model, "broken") {
			s.send(llmprovider.StreamEvent{Error: llmprovider.NewProviderError(llmprovider.ProviderLorem, 529, "lorem overloaded")})
			return
		}

		switch {
		case isCutoffModel(req.Model):
			stopReason = llmprovider.StopReasonMaxTokens
		case callTools:
			first := toolRoundsDone * p.opts.ToolCallsPerRound
			for i := 0; i < p.opts.ToolCallsPerRound; i++ {
				tool := &params.Tools[(first+i)%len(params.Tools)]
				if !s.toolUseBlock(tool, fmt.Sprintf("toolu_lorem_%d_%d", toolRoundsDone, i)) {
					return
				}
			}
			stopReason = llmprovider.StopReasonToolUse
		}

		s.send(llmprovider.StreamEvent{
			Metadata: &llmprovider.StreamMetadata{
				Model:        req.Model,
				InputTokens:  estimateTokens(req.Messages),
				OutputTokens: s.outputTokens,
				StopReason:   stopReason,
				ResponseMetadata: map[string]interface{}{
					"mock":     true,
					"provider": "lorem",
				},
			},
		})

		log.Debug(ctx,
			log.KV{K: "msg", V: "lorem stream finished"},
			log.KV{K: "stop_reason", V: stopReason},
			log.KV{K: "blocks", V: s.blockIndex})
	}()

	return s.out, nil
}

// countToolRounds counts user messages carrying tool results.
func countToolRounds(messages []llmprovider.Message) int {
	n := 0
	for i := range messages {
		if llmprovider.LastUserHasToolResults(messages[i : i+1]) {
			n++
		}
	}
	return n
}

// stream holds the state of a single mock response.
type stream struct {
	p            *Provider
	ctx          context.Context
	model        string
	out          chan llmprovider.StreamEvent
	delay        time.Duration
	blockIndex   int
	outputTokens int
}

// send delivers an event unless the consumer has gone away.
func (s *stream) send(ev llmprovider.StreamEvent) bool {
	select {
	case <-s.ctx.Done():
		return false
	case s.out <- ev:
		return true
	}
}

func (s *stream) pause(d time.Duration) bool {
	if d <= 0 {
		return s.ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-s.ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (s *stream) startBlock(blockType, deltaType string) bool {
	return s.send(llmprovider.StreamEvent{
		Delta: &llmprovider.BlockDelta{
			BlockIndex: s.blockIndex,
			BlockType:  &blockType,
			DeltaType:  deltaType,
		},
	})
}

func (s *stream) finishBlock(block *llmprovider.Block) bool {
	provider := llmprovider.ProviderLorem.String()
	block.Sequence = s.blockIndex
	block.Provider = &provider
	s.blockIndex++
	return s.send(llmprovider.StreamEvent{Block: block})
}

// streamWords sends text word by word and returns the accumulated text.
func (s *stream) streamWords(text, deltaType string) (string, bool) {
	var sb strings.Builder
	for _, word := range strings.Fields(text) {
		delta := word + " "
		sb.WriteString(delta)
		if !s.send(llmprovider.StreamEvent{
			Delta: &llmprovider.BlockDelta{
				BlockIndex: s.blockIndex,
				DeltaType:  deltaType,
				TextDelta:  &delta,
			},
		}) {
			return "", false
		}
		s.outputTokens++
		if !s.pause(s.delay) {
			return "", false
		}
	}
	return strings.TrimSpace(sb.String()), true
}

// thinkingBlock streams a thinking block. A non-empty signature is sent as the
// LAST delta, matching Anthropic behavior.
func (s *stream) thinkingBlock(words int, signature string) bool {
	if !s.startBlock(llmprovider.BlockTypeThinking, llmprovider.DeltaTypeThinking) {
		return false
	}
	text, ok := s.streamWords(s.p.generateTextWords(words), llmprovider.DeltaTypeThinking)
	if !ok {
		return false
	}
	if signature != "" {
		if !s.send(llmprovider.StreamEvent{
			Delta: &llmprovider.BlockDelta{
				BlockIndex:     s.blockIndex,
				DeltaType:      llmprovider.DeltaTypeSignature,
				SignatureDelta: &signature,
			},
		}) {
			return false
		}
	}
	return s.finishBlock(llmprovider.NewThinkingBlock(text, signature))
}

func (s *stream) textBlock(words int) bool {
	if !s.startBlock(llmprovider.BlockTypeText, llmprovider.DeltaTypeText) {
		return false
	}
	text, ok := s.streamWords(s.p.generateTextWords(words), llmprovider.DeltaTypeText)
	if !ok {
		return false
	}
	return s.finishBlock(llmprovider.NewTextBlock(text))
}

// toolUseBlock streams a tool_use block whose input satisfies the tool's schema.
func (s *stream) toolUseBlock(tool *llmprovider.Tool, id string) bool {
	name := tool.Function.Name
	blockType := llmprovider.BlockTypeToolUse
	if !s.send(llmprovider.StreamEvent{
		Delta: &llmprovider.BlockDelta{
			BlockIndex:   s.blockIndex,
			BlockType:    &blockType,
			DeltaType:    llmprovider.DeltaTypeToolCallStart,
			ToolCallID:   &id,
			ToolCallName: &name,
		},
	}) {
		return false
	}

	input := s.p.mockInput(tool.Function.Parameters)
	jsonBytes, err := json.Marshal(input)
	if err != nil {
		s.send(llmprovider.StreamEvent{Error: fmt.Errorf("failed to marshal tool input: %w", err)})
		return false
	}

	// Stream JSON in small chunks (simulating incremental JSON building)
	const chunk = 8
	js := string(jsonBytes)
	for i := 0; i < len(js); i += chunk {
		part := js[i:min(i+chunk, len(js))]
		if !s.send(llmprovider.StreamEvent{
			Delta: &llmprovider.BlockDelta{
				BlockIndex: s.blockIndex,
				DeltaType:  llmprovider.DeltaTypeJSON,
				JSONDelta:  &part,
			},
		}) {
			return false
		}
		if !s.pause(s.delay / 10) { // JSON streams faster than words
			return false
		}
	}
	s.outputTokens += len(js) / 4

	return s.finishBlock(llmprovider.NewToolUseBlock(id, name, input))
}

// mockInput builds an input object satisfying the required properties of a
// JSON schema: strings get lorem words, numbers get 1, enums their first value.
func (p *Provider) mockInput(schema map[string]interface{}) map[string]interface{} {
	input := map[string]interface{}{}
	props, _ := schema["properties"].(map[string]interface{})

	var required []string
	switch r := schema["required"].(type) {
	case []string:
		required = r
	case []interface{}:
		for _, v := range r {
			if s, ok := v.(string); ok {
				required = append(required, s)
			}
		}
	}
	sort.Strings(required)

	for _, name := range required {
		prop, _ := props[name].(map[string]interface{})
		input[name] = p.mockValue(prop)
	}
	return input
}

func (p *Provider) mockValue(prop map[string]interface{}) interface{} {
	if enum, ok := prop["enum"].([]interface{}); ok && len(enum) > 0 {
		return enum[0]
	}
	if enum, ok := prop["enum"].([]string); ok && len(enum) > 0 {
		return enum[0]
	}
	switch prop["type"] {
	case "integer", "number":
		return 1
	case "boolean":
		return true
	case "array":
		return []interface{}{}
	case "object":
		return p.mockInput(prop)
	default:
		return p.word()
	}
}

func (p *Provider) word() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generator.Word(4, 10)
}

// generateTextWords generates lorem ipsum text with approximately targetWords words.
func (p *Provider) generateTextWords(targetWords int) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var sb strings.Builder
	wordCount := 0
	for wordCount < targetWords {
		sentence := p.generator.Sentence(5, 15)
		sb.WriteString(sentence)
		sb.WriteString(" ")
		wordCount += len(strings.Fields(sentence))
	}

	words := strings.Fields(sb.String())
	if len(words) > targetWords {
		words = words[:targetWords]
	}
	return strings.Join(words, " ")
}

// estimateTokens estimates the token count for a list of messages.
// Uses word count as a rough approximation.
func estimateTokens(messages []llmprovider.Message) int {
	totalWords := 0
	for _, msg := range messages {
		for _, block := range msg.Blocks {
			totalWords += len(strings.Fields(block.Text()))
		}
	}
	return totalWords
}
