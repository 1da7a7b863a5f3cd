package prompt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cgigen/internal/domain"
)

const (
	geminiDefaultTimeout = 15 * time.Second
	geminiProviderName   = "gemini"

	// Flat per-call text generation cost, USD cents.
	geminiCallCostCents = 1
)

// GeminiOptions controls how the Gemini text adapters are configured.
type GeminiOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// GeminiWriter calls Gemini's generateContent endpoint for both text
// adapters: description enhancement and video-prompt composition. Each call
// is bounded by the configured timeout; exceeding it surfaces as an
// ordinary provider error.
type GeminiWriter struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	timeout time.Duration
}

// NewGeminiWriter validates options and builds the adapter.
func NewGeminiWriter(opts GeminiOptions) (*GeminiWriter, error) {
	if opts.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gemini-1.5-flash"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = geminiDefaultTimeout
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &GeminiWriter{
		apiKey:  opts.APIKey,
		model:   model,
		baseURL: baseURL,
		client:  client,
		timeout: timeout,
	}, nil
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Enhance asks Gemini for a photorealistic scene description combining the
// product and scene references.
func (g *GeminiWriter) Enhance(ctx context.Context, req EnhanceRequest) (*Enhancement, error) {
	text, err := g.generate(ctx, buildEnhancePrompt(req))
	if err != nil {
		return nil, fmt.Errorf("gemini enhance: %w", err)
	}
	return &Enhancement{Text: text, CostCents: geminiCallCostCents, Provider: geminiProviderName}, nil
}

// Compose asks Gemini for a short camera-motion prompt animating the
// generated image.
func (g *GeminiWriter) Compose(ctx context.Context, req ComposeRequest) (*Enhancement, error) {
	text, err := g.generate(ctx, buildComposePrompt(req))
	if err != nil {
		return nil, fmt.Errorf("gemini compose: %w", err)
	}
	return &Enhancement{Text: text, CostCents: geminiCallCostCents, Provider: geminiProviderName}, nil
}

func (g *GeminiWriter) generate(ctx context.Context, promptText string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	payload := geminiRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: promptText}},
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, url.QueryEscape(g.apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrProviderFailure, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: unexpected status %d: %s", domain.ErrProviderFailure, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded geminiResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("empty candidate response")
	}
	text := strings.TrimSpace(decoded.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return "", errors.New("blank candidate text")
	}
	return text, nil
}

func buildEnhancePrompt(req EnhanceRequest) string {
	sb := &strings.Builder{}
	sb.WriteString("You are a commercial CGI art director. Write one vivid, photorealistic scene description ")
	sb.WriteString("for an advertisement that places the product into the scene. ")
	fmt.Fprintf(sb, "Product reference: %s. Scene reference: %s. ", req.ProductImageURL, req.SceneImageURL)
	if req.Intent != "" {
		fmt.Fprintf(sb, "Client brief: %s. ", req.Intent)
	}
	sb.WriteString("Respond with the description only, no preamble, under 120 words.")
	return sb.String()
}

func buildComposePrompt(req ComposeRequest) string {
	sb := &strings.Builder{}
	sb.WriteString("You are a film director. Write one concise image-to-video motion prompt for the following still: ")
	sb.WriteString(req.ImageURL)
	sb.WriteString(". Describe camera movement, subtle ambient motion and mood in under 60 words. ")
	if req.Intent != "" {
		fmt.Fprintf(sb, "The advertisement brief is: %s. ", req.Intent)
	}
	sb.WriteString("Respond with the prompt only.")
	return sb.String()
}

var (
	_ Enhancer      = (*GeminiWriter)(nil)
	_ VideoPrompter = (*GeminiWriter)(nil)
)
