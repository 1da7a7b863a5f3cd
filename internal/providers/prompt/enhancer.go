package prompt

import "context"

// Enhancement is the artifact returned by a text adapter: the generated
// text plus the provider cost it incurred, in USD cents.
type Enhancement struct {
	Text      string
	CostCents int64
	Provider  string
}

// EnhanceRequest carries the inputs for description enhancement: the two
// reference images and the user's free-text intent.
type EnhanceRequest struct {
	ProductImageURL string
	SceneImageURL   string
	Intent          string
}

// Enhancer turns a raw user intent into a production-quality scene
// description for the image generator.
type Enhancer interface {
	Enhance(ctx context.Context, req EnhanceRequest) (*Enhancement, error)
}

// ComposeRequest carries the inputs for video-prompt composition: the
// generated image and the original intent.
type ComposeRequest struct {
	ImageURL string
	Intent   string
}

// VideoPrompter writes the animation prompt fed to the video generator.
type VideoPrompter interface {
	Compose(ctx context.Context, req ComposeRequest) (*Enhancement, error)
}
