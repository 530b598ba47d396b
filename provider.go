package llmprovider

import (
	"context"
)

// Provider defines the interface that all LLM providers must implement.
//
// Types used by this interface:
//   - GenerateRequest, Message: defined in request.go
//   - GenerateResponse: defined in response.go
//   - StreamEvent: defined in streaming.go
type Provider interface {
	// GenerateResponse generates a complete response from the LLM provider (blocking).
	GenerateResponse(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)

	// StreamResponse generates a streaming response from the LLM provider (non-blocking).
	// Returns a channel that emits StreamEvent as they arrive. The channel is
	// closed when streaming completes, fails, or ctx is cancelled. A successful
	// stream ends with a StreamMetadata event; a stream that closes without one
	// ended abnormally.
	//
	// Usage:
	//   eventChan, err := provider.StreamResponse(ctx, req)
	//   if err != nil { return err }
	//   for event := range eventChan {
	//     if event.Error != nil { handle error }
	//     if event.Delta != nil { display delta }
	//     if event.Block != nil { block complete }
	//     if event.Metadata != nil { streaming complete }
	//   }
	StreamResponse(ctx context.Context, req *GenerateRequest) (<-chan StreamEvent, error)

	// Name returns the provider identifier
	Name() ProviderID

	// SupportsModel returns true if the provider supports the given model.
	SupportsModel(model string) bool
}
