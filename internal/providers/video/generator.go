package video

import "context"

// GenerateRequest describes a normalized image-to-video request.
type GenerateRequest struct {
	ImageURL  string
	Prompt    string
	RequestID string
}

// Asset represents a generated video plus the cost the producing provider
// incurred. Provider records which implementation actually succeeded; with
// failover in play the two differ in both cost and name.
type Asset struct {
	URL       string
	Format    string
	Seconds   int
	CostCents int64
	Provider  string
}

// Generator is the contract implemented by all video providers.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*Asset, error)
}
