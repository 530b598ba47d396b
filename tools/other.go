package tools

import (
	"context"
	"fmt"

	"github.com/haowjy/meridian-agent-go/agent"
	"github.com/haowjy/meridian-agent-go/preview"
)

// DOMRequest is an action to perform in the user's open page.
type DOMRequest struct {
	ExchangeID string `json:"exchange_id"`
	Action     string `json:"action"`
	Selector   string `json:"selector,omitempty"`
	Text       string `json:"text,omitempty"`
	URL        string `json:"url,omitempty"`
}

// DOMBridge forwards page actions to the UI process and returns its answer.
type DOMBridge interface {
	Perform(ctx context.Context, req DOMRequest) (any, error)
}

// PreviewController is the part of preview.Manager the tools need.
type PreviewController interface {
	Start(ctx context.Context) (preview.Status, error)
	Stop(ctx context.Context) (preview.Status, error)
	Status() preview.Status
}

var _ PreviewController = (*preview.Manager)(nil)

// OtherExecutor runs the DOM and preview tools.
type OtherExecutor struct {
	DOM     DOMBridge
	Preview PreviewController
}

func (o OtherExecutor) Execute(ctx context.Context, call agent.ToolCall, rc agent.RequestContext) (any, error) {
	switch call.Name {
	case DOMAction:
		if o.DOM == nil {
			return nil, fmt.Errorf("%w: dom bridge", ErrNotConfigured)
		}
		req, err := domRequest(call.Input)
		if err != nil {
			return nil, err
		}
		req.ExchangeID = rc.ExchangeID
		return o.DOM.Perform(ctx, req)
	case StartPreview, StopPreview, PreviewStatus:
		if o.Preview == nil {
			return nil, fmt.Errorf("%w: preview", ErrNotConfigured)
		}
		switch call.Name {
		case StartPreview:
			return o.Preview.Start(ctx)
		case StopPreview:
			return o.Preview.Stop(ctx)
		default:
			return o.Preview.Status(), nil
		}
	}
	return nil, fmt.Errorf("other: unsupported tool %q", call.Name)
}

func domRequest(in map[string]any) (DOMRequest, error) {
	action, err := stringArg(in, "action")
	if err != nil {
		return DOMRequest{}, err
	}
	req := DOMRequest{Action: action}
	req.Selector, _ = optString(in, "selector")
	req.Text, _ = optString(in, "text")
	req.URL, _ = optString(in, "url")

	switch action {
	case "click", "read":
		if req.Selector == "" {
			return DOMRequest{}, fmt.Errorf("%s requires selector", action)
		}
	case "type":
		if req.Selector == "" || req.Text == "" {
			return DOMRequest{}, fmt.Errorf("type requires selector and text")
		}
	case "navigate":
		if req.URL == "" {
			return DOMRequest{}, fmt.Errorf("navigate requires url")
		}
	}
	return req, nil
}
