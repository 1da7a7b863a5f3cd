package video

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
	falDefaultTimeout = 180 * time.Second

	klingProviderName = "fal-kling"
	klingModelPath    = "fal-ai/kling-video/v1/standard/image-to-video"
	// Per-clip cost of the primary provider, USD cents.
	klingCostCents = 120

	minimaxProviderName = "fal-minimax"
	minimaxModelPath    = "fal-ai/minimax-video/image-to-video"
	// Per-clip cost of the fallback provider, USD cents.
	minimaxCostCents = 90
)

// FalOptions controls how a FAL video adapter is configured.
type FalOptions struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// FalGenerator drives one FAL image-to-video model. Kling and MiniMax share
// the request shape, so the primary and fallback adapters differ only in
// model path, name and cost.
type FalGenerator struct {
	apiKey    string
	baseURL   string
	client    *http.Client
	timeout   time.Duration
	modelPath string
	name      string
	costCents int64
}

// NewKlingGenerator builds the primary video adapter.
func NewKlingGenerator(opts FalOptions) (*FalGenerator, error) {
	return newFalGenerator(opts, klingModelPath, klingProviderName, klingCostCents)
}

// NewMinimaxGenerator builds the fallback video adapter.
func NewMinimaxGenerator(opts FalOptions) (*FalGenerator, error) {
	return newFalGenerator(opts, minimaxModelPath, minimaxProviderName, minimaxCostCents)
}

func newFalGenerator(opts FalOptions, modelPath, name string, costCents int64) (*FalGenerator, error) {
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
	return &FalGenerator{
		apiKey:    opts.APIKey,
		baseURL:   baseURL,
		client:    client,
		timeout:   timeout,
		modelPath: modelPath,
		name:      name,
		costCents: costCents,
	}, nil
}

type falVideoRequest struct {
	Prompt   string `json:"prompt"`
	ImageURL string `json:"image_url"`
	Duration string `json:"duration"`
}

type falVideoResponse struct {
	Video struct {
		URL         string `json:"url"`
		ContentType string `json:"content_type"`
	} `json:"video"`
}

// Generate runs one bounded video generation call.
func (f *FalGenerator) Generate(ctx context.Context, req GenerateRequest) (*Asset, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	payload := falVideoRequest{
		Prompt:   req.Prompt,
		ImageURL: req.ImageURL,
		Duration: "5",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/%s", f.baseURL, f.modelPath)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Key "+f.apiKey)

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", f.name, domain.ErrProviderFailure, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: %w: unexpected status %d: %s", f.name, domain.ErrProviderFailure, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded falVideoResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", f.name, err)
	}
	if decoded.Video.URL == "" {
		return nil, fmt.Errorf("%s: no video in response", f.name)
	}

	format := decoded.Video.ContentType
	if format == "" {
		format = "video/mp4"
	}
	return &Asset{
		URL:       decoded.Video.URL,
		Format:    format,
		Seconds:   5,
		CostCents: f.costCents,
		Provider:  f.name,
	}, nil
}

var _ Generator = (*FalGenerator)(nil)
