package video

import (
	"context"
	"errors"
	"fmt"
)

// Failover is an ordered-retry policy over video providers. It tries each
// provider in turn with the same inputs and returns the first success, so
// the recorded cost and provider name are those of whichever implementation
// actually produced the clip. Adding a third provider is a wiring change
// only; the pipeline keeps talking to a single Generator.
type Failover struct {
	providers []Generator
}

// NewFailover builds the policy. Order matters: the first provider is the
// primary.
func NewFailover(providers ...Generator) (*Failover, error) {
	if len(providers) == 0 {
		return nil, errors.New("at least one video provider is required")
	}
	return &Failover{providers: providers}, nil
}

// Generate tries each provider in order, returning the first success.
func (f *Failover) Generate(ctx context.Context, req GenerateRequest) (*Asset, error) {
	var lastErr error
	for _, p := range f.providers {
		asset, err := p.Generate(ctx, req)
		if err == nil {
			return asset, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("all video providers failed: %w", lastErr)
}

var _ Generator = (*Failover)(nil)
