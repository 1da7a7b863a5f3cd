package image

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cgigen/internal/domain"
)

const (
	falDefaultTimeout = 60 * time.Second
	falProviderName   = "fal-flux"
	falModelPath      = "fal-ai/flux/dev/image-to-image"

	// Flat per-image generation cost, USD cents.
	falImageCostCents = 8
)

// FalOptions controls how the FAL image adapter is configured.
type FalOptions struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// FalGenerator composites the product into the scene through FAL's flux
// image-to-image endpoint.
type FalGenerator struct {
	apiKey  string
	baseURL string
	client  *http.Client
	timeout time.Duration
}

// NewFalGenerator validates options and builds the adapter.
func NewFalGenerator(opts FalOptions) (*FalGenerator, error) {
	if opts.APIKey == "" {
		return nil, errors.New("fal api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://fal.run"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = falDefaultTimeout
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &FalGenerator{apiKey: opts.APIKey, baseURL: baseURL, client: client, timeout: timeout}, nil
}

type falImageRequest struct {
	Prompt   string  `json:"prompt"`
	ImageURL string  `json:"image_url"`
	Strength float64 `json:"strength"`
}

type falImageResponse struct {
	Images []struct {
		URL         string `json:"url"`
		ContentType string `json:"content_type"`
	} `json:"images"`
}

// Generate runs one bounded image generation call.
func (f *FalGenerator) Generate(ctx context.Context, req GenerateRequest) (*Asset, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	payload := falImageRequest{
		Prompt:   req.Description,
		ImageURL: req.SceneImageURL,
		Strength: 0.85,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/%s", f.baseURL, falModelPath)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Key "+f.apiKey)

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fal image: %w: %v", domain.ErrProviderFailure, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fal image: %w: unexpected status %d: %s", domain.ErrProviderFailure, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded falImageResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("fal image: decode response: %w", err)
	}
	if len(decoded.Images) == 0 || decoded.Images[0].URL == "" {
		return nil, errors.New("fal image: no image in response")
	}

	format := decoded.Images[0].ContentType
	if format == "" {
		format = "image/png"
	}
	return &Asset{
		URL:       decoded.Images[0].URL,
		Format:    format,
		CostCents: falImageCostCents,
		Provider:  falProviderName,
	}, nil
}

var _ Generator = (*FalGenerator)(nil)
