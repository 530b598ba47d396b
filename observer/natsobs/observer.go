// Package natsobs carries exchange events and page actions between the engine
// and the UI process over NATS.
//
// Subjects, for a prefix P and exchange E:
//
//	P.E.events   engine → UI, one JSON agent.Event per message
//	P.E.detach   UI → engine, the UI stopped listening
//	P.E.dom      engine → UI request/reply for dom_action
package natsobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"goa.design/clue/log"

	"github.com/haowjy/meridian-agent-go/agent"
)

// DefaultPrefix is the subject prefix used when none is configured.
const DefaultPrefix = "meridian"

// EventsSubject returns the subject events of an exchange are published on.
func EventsSubject(prefix, exchangeID string) string {
	return fmt.Sprintf("%s.%s.events", prefix, exchangeID)
}

// DetachSubject returns the subject the UI publishes on when it goes away.
func DetachSubject(prefix, exchangeID string) string {
	return fmt.Sprintf("%s.%s.detach", prefix, exchangeID)
}

// DOMSubject returns the request subject for page actions.
func DOMSubject(prefix, exchangeID string) string {
	return fmt.Sprintf("%s.%s.dom", prefix, exchangeID)
}

// Option configures an Observer.
type Option func(*Observer)

// WithPrefix sets the subject prefix.
func WithPrefix(prefix string) Option {
	return func(o *Observer) { o.prefix = prefix }
}

// WithJetStream publishes through JetStream so events are persisted by a
// stream created with SetupStream and acknowledged before Send returns.
func WithJetStream(js jetstream.JetStream) Option {
	return func(o *Observer) { o.js = js }
}

// Observer publishes the events of one exchange. It reports
// agent.ErrObserverGone once the connection is closed or the UI detached.
type Observer struct {
	nc         *nats.Conn
	js         jetstream.JetStream
	prefix     string
	exchangeID string
	detached   atomic.Bool
	sub        *nats.Subscription
}

var _ agent.Observer = (*Observer)(nil)

// New returns an observer for the exchange and starts listening for detach.
func New(nc *nats.Conn, exchangeID string, opts ...Option) (*Observer, error) {
	if exchangeID == "" {
		return nil, fmt.Errorf("natsobs: exchange id is required")
	}
	o := &Observer{nc: nc, prefix: DefaultPrefix, exchangeID: exchangeID}
	for _, opt := range opts {
		opt(o)
	}
	sub, err := nc.Subscribe(DetachSubject(o.prefix, exchangeID), func(*nats.Msg) {
		o.detached.Store(true)
	})
	if err != nil {
		return nil, fmt.Errorf("natsobs: subscribe detach: %w", err)
	}
	o.sub = sub
	return o, nil
}

// Send publishes ev as JSON.
func (o *Observer) Send(ev agent.Event) error {
	if o.detached.Load() || o.nc.IsClosed() || o.nc.IsDraining() {
		return agent.ErrObserverGone
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("natsobs: marshal %s: %w", ev.Type, err)
	}
	subject := EventsSubject(o.prefix, o.exchangeID)
	if o.js != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := o.js.Publish(ctx, subject, data); err != nil {
			return fmt.Errorf("natsobs: publish %s: %w", ev.Type, err)
		}
		return nil
	}
	if err := o.nc.Publish(subject, data); err != nil {
		if o.nc.IsClosed() {
			return agent.ErrObserverGone
		}
		return fmt.Errorf("natsobs: publish %s: %w", ev.Type, err)
	}
	return nil
}

// Close stops listening for detach. The connection is left open.
func (o *Observer) Close() error {
	if o.sub == nil {
		return nil
	}
	return o.sub.Unsubscribe()
}

// Subscribe delivers the decoded events of an exchange to handler, in order.
func Subscribe(ctx context.Context, nc *nats.Conn, prefix, exchangeID string, handler func(agent.Event)) (*nats.Subscription, error) {
	return nc.Subscribe(EventsSubject(prefix, exchangeID), func(msg *nats.Msg) {
		var ev agent.Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			log.Warn(ctx, log.KV{K: "msg", V: "dropping undecodable event"},
				log.KV{K: "subject", V: msg.Subject},
				log.KV{K: "err", V: err.Error()})
			return
		}
		handler(ev)
	})
}

// Detach tells the engine the UI stopped listening to an exchange.
func Detach(nc *nats.Conn, prefix, exchangeID string) error {
	if err := nc.Publish(DetachSubject(prefix, exchangeID), nil); err != nil {
		return err
	}
	return nc.Flush()
}

// SetupStream creates or updates a stream retaining the events of every
// exchange under prefix.
func SetupStream(ctx context.Context, js jetstream.JetStream, prefix string, maxAge time.Duration) (jetstream.Stream, error) {
	return js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName(prefix),
		Subjects: []string{prefix + ".*.events"},
		Storage:  jetstream.FileStorage,
		MaxAge:   maxAge,
	})
}

// Replay returns the persisted events of one exchange, oldest first.
func Replay(ctx context.Context, js jetstream.JetStream, prefix, exchangeID string) ([]agent.Event, error) {
	stream, err := js.Stream(ctx, streamName(prefix))
	if err != nil {
		return nil, fmt.Errorf("natsobs: stream: %w", err)
	}
	cons, err := stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{EventsSubject(prefix, exchangeID)},
	})
	if err != nil {
		return nil, fmt.Errorf("natsobs: consumer: %w", err)
	}
	var events []agent.Event
	for {
		batch, err := cons.FetchNoWait(100)
		if err != nil {
			return nil, fmt.Errorf("natsobs: fetch: %w", err)
		}
		n := 0
		for msg := range batch.Messages() {
			n++
			var ev agent.Event
			if err := json.Unmarshal(msg.Data(), &ev); err != nil {
				return nil, fmt.Errorf("natsobs: decode: %w", err)
			}
			events = append(events, ev)
		}
		if err := batch.Error(); err != nil {
			return nil, fmt.Errorf("natsobs: fetch: %w", err)
		}
		if n == 0 {
			return events, nil
		}
	}
}

func streamName(prefix string) string {
	return prefix + "_events"
}
