package natsobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/haowjy/meridian-agent-go/tools"
)

// DefaultDOMTimeout bounds a page action round trip.
const DefaultDOMTimeout = 15 * time.Second

// DOMReply is the UI's answer to a page action.
type DOMReply struct {
	OK    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// DOMBridge performs page actions by request/reply to the UI process.
type DOMBridge struct {
	nc      *nats.Conn
	prefix  string
	timeout time.Duration
}

var _ tools.DOMBridge = (*DOMBridge)(nil)

// NewDOMBridge returns a bridge publishing under prefix. A zero timeout uses
// DefaultDOMTimeout.
func NewDOMBridge(nc *nats.Conn, prefix string, timeout time.Duration) *DOMBridge {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if timeout <= 0 {
		timeout = DefaultDOMTimeout
	}
	return &DOMBridge{nc: nc, prefix: prefix, timeout: timeout}
}

func (b *DOMBridge) Perform(ctx context.Context, req tools.DOMRequest) (any, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	msg, err := b.nc.RequestWithContext(ctx, DOMSubject(b.prefix, req.ExchangeID), data)
	switch {
	case errors.Is(err, nats.ErrNoResponders):
		return nil, fmt.Errorf("no page is attached to this exchange")
	case err != nil:
		return nil, fmt.Errorf("dom %s: %w", req.Action, err)
	}

	var reply DOMReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return nil, fmt.Errorf("dom %s: bad reply: %w", req.Action, err)
	}
	if !reply.OK {
		return nil, errors.New(reply.Error)
	}
	return reply.Data, nil
}

// ServeDOM answers page actions for an exchange with handler. It is the UI
// side of DOMBridge.
func ServeDOM(nc *nats.Conn, prefix, exchangeID string, handler func(tools.DOMRequest) (any, error)) (*nats.Subscription, error) {
	return nc.Subscribe(DOMSubject(prefix, exchangeID), func(msg *nats.Msg) {
		var req tools.DOMRequest
		reply := DOMReply{OK: true}
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			reply = DOMReply{Error: err.Error()}
		} else if data, err := handler(req); err != nil {
			reply = DOMReply{Error: err.Error()}
		} else {
			reply.Data = data
		}
		out, _ := json.Marshal(reply)
		_ = msg.Respond(out)
	})
}
