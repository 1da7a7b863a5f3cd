package image

import "context"

// GenerateRequest describes a normalized request passed to any image provider.
type GenerateRequest struct {
	Description     string
	ProductImageURL string
	SceneImageURL   string
	RequestID       string
}

// Asset represents a generated composite image plus its incurred cost.
type Asset struct {
	URL       string
	Format    string
	CostCents int64
	Provider  string
}

// Generator is the contract implemented by all image providers.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*Asset, error)
}
