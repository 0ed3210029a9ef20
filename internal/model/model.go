// Package model provides the reasoning service interface.
package model

import "context"

// Model represents a reasoning service used for planning and synthesis.
type Model interface {
	// Complete runs a one-shot completion and returns the full response.
	Complete(ctx context.Context, req *Request) (*Response, error)

	// Stream runs a completion with incremental output. The returned
	// channel delivers text fragments in arrival order and is closed
	// after the chunk with Done or Err set.
	Stream(ctx context.Context, req *Request) (<-chan StreamChunk, error)

	// IsAvailable checks if the model is configured.
	IsAvailable() bool

	// Name returns the model identifier.
	Name() string
}
