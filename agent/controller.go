package agent

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"goa.design/clue/log"

	llmprovider "github.com/haowjy/meridian-agent-go"
)

const (
	// DefaultMaxRounds bounds the rounds of one exchange.
	DefaultMaxRounds = 1000

	// DefaultStreamIdleTimeout bounds the wait for each provider event.
	DefaultStreamIdleTimeout = 2 * time.Minute

	tracerName = "github.com/haowjy/meridian-agent-go/agent"
)

var (
	// ErrStreamFailed indicates an exchange ended by a transport failure.
	ErrStreamFailed = errors.New("agent: stream failed")

	// ErrEmptyRequest indicates an exchange with neither message nor history.
	ErrEmptyRequest = errors.New("agent: empty exchange request")

	// ErrNoFeature indicates an exchange without a feature.
	ErrNoFeature = errors.New("agent: exchange has no feature")
)

// Options configures an Engine.
type Options struct {
	Model             string
	MaxRounds         int
	StreamIdleTimeout time.Duration
	ParallelTools     bool
	Params            *llmprovider.RequestParams
}

// DefaultOptions returns the engine defaults. Model must still be set.
func DefaultOptions() Options {
	return Options{
		MaxRounds:         DefaultMaxRounds,
		StreamIdleTimeout: DefaultStreamIdleTimeout,
		ParallelTools:     true,
	}
}

// Overrides adjusts Options for a single exchange. Zero fields keep the
// engine or feature value.
type Overrides struct {
	Model             string
	MaxRounds         int
	StreamIdleTimeout time.Duration
	ParallelTools     *bool
	Params            *llmprovider.RequestParams
}

// ExchangeRequest is one user request to an assistant feature. Message is
// appended to History as a user text message when non-empty.
type ExchangeRequest struct {
	Context   RequestContext
	Message   string
	History   []llmprovider.Message
	Feature   Feature
	Overrides *Overrides
}

// Outcome is how an exchange ended.
type Outcome string

const (
	OutcomeCompleted         Outcome = "completed"
	OutcomeMaxRounds         Outcome = "max_rounds"
	OutcomeObserverGone      Outcome = "observer_gone"
	OutcomeProtocolViolation Outcome = "protocol_violation"
	OutcomeCancelled         Outcome = "cancelled"
	OutcomeError             Outcome = "error"
)

// ExchangeResult summarizes a finished exchange.
type ExchangeResult struct {
	ExchangeID        string
	Rounds            int
	Turns             []ConversationTurn
	FinalText         string
	StopReason        StopReason
	Outcome           Outcome
	ExecutedTools     []string // distinct names of tools that succeeded, first-run order
	SnapshotVersionID string
	Usage             Usage
}

// ExchangeError reports an exchange ended by an unrecoverable failure. It
// matches ErrStreamFailed and the underlying cause with errors.Is.
type ExchangeError struct {
	ExchangeID string
	Round      int
	Message    string
	Err        error
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("exchange %s failed in round %d: %s", e.ExchangeID, e.Round, e.Message)
}

func (e *ExchangeError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrStreamFailed}
	}
	return []error{ErrStreamFailed, e.Err}
}

// Engine runs exchanges against one provider and tool router.
type Engine struct {
	provider    llmprovider.Provider
	router      *Router
	opts        Options
	snapshotter Snapshotter
	tracer      trace.Tracer
	validator   *Validator
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithSnapshotter sets the collaborator used after mutating exchanges.
func WithSnapshotter(s Snapshotter) EngineOption {
	return func(e *Engine) { e.snapshotter = s }
}

// WithTracer sets the tracer used for exchange and round spans.
func WithTracer(t trace.Tracer) EngineOption {
	return func(e *Engine) { e.tracer = t }
}

// WithValidator replaces the default catalog validator.
func WithValidator(v *Validator) EngineOption {
	return func(e *Engine) { e.validator = v }
}

// NewEngine returns an engine. Zero MaxRounds falls back to DefaultMaxRounds.
func NewEngine(provider llmprovider.Provider, router *Router, opts Options, options ...EngineOption) *Engine {
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = DefaultMaxRounds
	}
	e := &Engine{
		provider: provider,
		router:   router,
		opts:     opts,
		tracer:   otel.Tracer(tracerName),
	}
	for _, o := range options {
		o(e)
	}
	if e.validator == nil {
		e.validator = NewValidator(llmprovider.GetCapabilityRegistry(), router)
	}
	return e
}

// resolve applies feature and per-call settings over the engine options.
// Per-call values win over the feature's round limit.
func (e *Engine) resolve(req ExchangeRequest) Options {
	opts := e.opts
	if rl, ok := req.Feature.(RoundLimiter); ok && rl.MaxRounds() > 0 {
		opts.MaxRounds = rl.MaxRounds()
	}
	if o := req.Overrides; o != nil {
		if o.Model != "" {
			opts.Model = o.Model
		}
		if o.MaxRounds > 0 {
			opts.MaxRounds = o.MaxRounds
		}
		if o.StreamIdleTimeout > 0 {
			opts.StreamIdleTimeout = o.StreamIdleTimeout
		}
		if o.ParallelTools != nil {
			opts.ParallelTools = *o.ParallelTools
		}
		if o.Params != nil {
			opts.Params = o.Params
		}
	}
	return opts
}

// RunExchange drives one exchange to completion and forwards its events to
// observer, which may be nil. Exactly one stream_end or stream_error is sent
// unless the observer disconnects first.
//
// A transport failure returns an *ExchangeError. Cancellation of ctx returns
// the partial result together with the context error. Reaching the round
// ceiling, a disconnected observer or a malformed turn end the exchange
// without error.
func (e *Engine) RunExchange(ctx context.Context, req ExchangeRequest, observer Observer) (*ExchangeResult, error) {
	if req.Feature == nil {
		return nil, ErrNoFeature
	}
	if req.Message == "" && len(req.History) == 0 {
		return nil, ErrEmptyRequest
	}
	opts := e.resolve(req)
	if !e.provider.SupportsModel(opts.Model) {
		return nil, &llmprovider.ModelError{
			Model:    opts.Model,
			Provider: e.provider.Name().String(),
			Reason:   "model not supported",
			Err:      llmprovider.ErrInvalidModel,
		}
	}
	if err := opts.Params.Validate(); err != nil {
		return nil, err
	}

	rc := req.Context
	if rc.ExchangeID == "" {
		rc.ExchangeID = uuid.NewString()
	}
	rc.Feature = req.Feature.Name()

	ctx, span := e.tracer.Start(ctx, "agent.exchange", trace.WithAttributes(
		attribute.String("agent.exchange_id", rc.ExchangeID),
		attribute.String("agent.feature", rc.Feature),
		attribute.String("agent.model", opts.Model),
	))
	defer span.End()

	params := opts.Params.Clone()
	if pp, ok := req.Feature.(PreambleProvider); ok {
		preamble, err := pp.Preamble(ctx, rc)
		if err != nil {
			log.Warn(ctx, log.KV{K: "msg", V: "preamble failed"},
				log.KV{K: "feature", V: rc.Feature},
				log.KV{K: "err", V: err.Error()})
		} else if preamble != "" {
			params.System = &preamble
		}
	}

	var mutating []string
	if mp, ok := req.Feature.(MutationPolicy); ok {
		mutating = mp.MutatingTools()
	}
	aux, _ := req.Feature.(AuxiliaryRules)
	catalog := req.Feature.Catalog()

	for _, w := range e.validator.Check(Setup{
		Provider: e.provider.Name(),
		Model:    opts.Model,
		Params:   params,
		Catalog:  catalog,
		Mutating: mutating,
	}) {
		log.Warn(ctx, log.KV{K: "msg", V: w.Message},
			log.KV{K: "code", V: string(w.Code)},
			log.KV{K: "severity", V: string(w.Severity)})
	}

	base := append([]llmprovider.Message(nil), req.History...)
	if req.Message != "" {
		base = append(base, llmprovider.NewUserTextMessage(req.Message))
	}

	log.Info(ctx, log.KV{K: "msg", V: "exchange started"},
		log.KV{K: "exchange_id", V: rc.ExchangeID},
		log.KV{K: "feature", V: rc.Feature},
		log.KV{K: "model", V: opts.Model},
		log.KV{K: "max_rounds", V: opts.MaxRounds})

	x := &exchange{
		engine:   e,
		opts:     opts,
		rc:       rc,
		aux:      aux,
		catalog:  catalog,
		base:     base,
		consumer: NewStreamConsumer(e.provider, opts.Model, params, opts.StreamIdleTimeout),
		b:        NewBroadcaster(rc.ExchangeID, observer),
		trigger:  NewSideEffectTrigger(e.snapshotter, mutating),
		result:   &ExchangeResult{ExchangeID: rc.ExchangeID},
	}
	err := x.run(ctx)

	if n, last := x.b.Dropped(); n > 0 {
		log.Warn(ctx, log.KV{K: "msg", V: "observer dropped events"},
			log.KV{K: "exchange_id", V: rc.ExchangeID},
			log.KV{K: "dropped", V: n},
			log.KV{K: "err", V: last.Error()})
	}

	res := x.result
	span.SetAttributes(
		attribute.Int("agent.rounds", res.Rounds),
		attribute.String("agent.outcome", string(res.Outcome)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	log.Info(ctx, log.KV{K: "msg", V: "exchange finished"},
		log.KV{K: "exchange_id", V: rc.ExchangeID},
		log.KV{K: "outcome", V: string(res.Outcome)},
		log.KV{K: "rounds", V: res.Rounds},
		log.KV{K: "tools", V: len(res.ExecutedTools)})
	return res, err
}

// exchange is the state of one RunExchange call. The turn log never leaves it
// except through the returned result.
type exchange struct {
	engine   *Engine
	opts     Options
	rc       RequestContext
	aux      AuxiliaryRules
	catalog  []llmprovider.Tool
	base     []llmprovider.Message
	consumer *StreamConsumer
	b        *Broadcaster
	trigger  *SideEffectTrigger
	result   *ExchangeResult
}

func (x *exchange) run(ctx context.Context) error {
	res := x.result
	round := 0
	for {
		if err := ctx.Err(); err != nil {
			return x.cancelled(ctx, round, err)
		}
		if x.b.Disconnected() {
			return x.finish(ctx, round, OutcomeObserverGone)
		}

		round++
		res.Rounds = round
		rr, err := x.streamRound(ctx, round)
		if err != nil {
			return x.fail(ctx, round, err.Error(), err)
		}
		res.Usage.InputTokens += rr.Usage.InputTokens
		res.Usage.OutputTokens += rr.Usage.OutputTokens

		if rr.StopReason == StopError {
			if err := ctx.Err(); err != nil {
				return x.cancelled(ctx, round, err)
			}
			if x.b.Disconnected() {
				return x.finish(ctx, round, OutcomeObserverGone)
			}
			return x.fail(ctx, round, rr.ErrorMessage, nil)
		}

		res.FinalText = rr.Text
		res.StopReason = rr.StopReason

		if x.b.Disconnected() {
			return x.finish(ctx, round, OutcomeObserverGone)
		}
		if !rr.HasPendingCalls() {
			return x.finish(ctx, round, OutcomeCompleted)
		}

		results := x.executeTools(ctx, round, rr.ToolCalls)
		for i, r := range results {
			if name := rr.ToolCalls[i].Name; r.Success && !slices.Contains(res.ExecutedTools, name) {
				res.ExecutedTools = append(res.ExecutedTools, name)
			}
		}

		turn, err := NewConversationTurn(rr, results)
		if err != nil {
			log.Error(ctx, err, log.KV{K: "exchange_id", V: x.rc.ExchangeID}, log.KV{K: "round", V: round})
			return x.finish(ctx, round, OutcomeProtocolViolation)
		}
		res.Turns = append(res.Turns, turn)

		if round >= x.opts.MaxRounds {
			log.Warn(ctx, log.KV{K: "msg", V: "round ceiling reached"},
				log.KV{K: "exchange_id", V: x.rc.ExchangeID},
				log.KV{K: "max_rounds", V: x.opts.MaxRounds})
			return x.finish(ctx, round, OutcomeMaxRounds)
		}
	}
}

func (x *exchange) streamRound(ctx context.Context, round int) (RoundResult, error) {
	ctx, span := x.engine.tracer.Start(ctx, "agent.round", trace.WithAttributes(
		attribute.String("agent.exchange_id", x.rc.ExchangeID),
		attribute.Int("agent.round", round),
	))
	defer span.End()

	messages := ToMessages(x.base, x.result.Turns)
	rs, err := x.consumer.Open(ctx, round, messages, x.catalog)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return RoundResult{}, err
	}
	rr := drainRound(ctx, rs, func(ev Event) bool { return x.b.Forward(round, ev) })

	span.SetAttributes(
		attribute.String("agent.stop_reason", string(rr.StopReason)),
		attribute.Int("agent.tool_calls", len(rr.ToolCalls)),
	)
	if rr.StopReason == StopError {
		span.SetStatus(codes.Error, rr.ErrorMessage)
	}
	log.Debug(ctx, log.KV{K: "msg", V: "round done"},
		log.KV{K: "round", V: round},
		log.KV{K: "stop_reason", V: string(rr.StopReason)},
		log.KV{K: "tool_calls", V: len(rr.ToolCalls)})
	return rr, nil
}

// executeTools runs the calls of one round and returns their results in call
// order. Executions are detached from ctx cancellation.
func (x *exchange) executeTools(ctx context.Context, round int, calls []ToolCall) []ToolResult {
	execCtx := context.WithoutCancel(ctx)
	results := make([]ToolResult, len(calls))

	if !x.opts.ParallelTools || len(calls) == 1 {
		for i, call := range calls {
			x.before(round, call)
			results[i] = x.engine.router.Execute(execCtx, call, x.rc)
			x.after(round, call, results[i])
		}
		return results
	}

	for _, call := range calls {
		x.before(round, call)
	}
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = x.engine.router.Execute(execCtx, call, x.rc)
		}()
	}
	wg.Wait()
	for i, call := range calls {
		x.after(round, call, results[i])
	}
	return results
}

func (x *exchange) before(round int, call ToolCall) {
	if x.aux == nil {
		return
	}
	for _, ev := range x.aux.BeforeTool(call) {
		x.b.Forward(round, ev)
	}
}

func (x *exchange) after(round int, call ToolCall, res ToolResult) {
	x.b.Forward(round, ToolResultEvent(call, res))
	if x.aux == nil {
		return
	}
	for _, ev := range x.aux.AfterTool(call, res) {
		x.b.Forward(round, ev)
	}
}

// finish is the graceful Done path: side effects, then stream_end.
func (x *exchange) finish(ctx context.Context, round int, outcome Outcome) error {
	x.result.Outcome = outcome
	x.result.SnapshotVersionID = x.trigger.Fire(ctx, x.rc, x.result.ExecutedTools, x.b, round)
	x.b.End(round)
	return nil
}

func (x *exchange) fail(ctx context.Context, round int, message string, cause error) error {
	x.result.Outcome = OutcomeError
	x.result.StopReason = StopError
	log.Error(ctx, errors.New(message),
		log.KV{K: "exchange_id", V: x.rc.ExchangeID},
		log.KV{K: "round", V: round})
	x.b.Fail(round, message)
	return &ExchangeError{ExchangeID: x.rc.ExchangeID, Round: round, Message: message, Err: cause}
}

func (x *exchange) cancelled(ctx context.Context, round int, err error) error {
	x.result.Outcome = OutcomeCancelled
	log.Info(ctx, log.KV{K: "msg", V: "exchange cancelled"},
		log.KV{K: "exchange_id", V: x.rc.ExchangeID},
		log.KV{K: "round", V: round})
	x.b.Fail(round, "exchange cancelled")
	return err
}
