package generation

import (
	"context"
	"fmt"
	"time"

	"photo-generator/internal/config"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// InputImage is one photo handed to the model.
type InputImage struct {
	Data     []byte
	MIMEType string
}

// OutputConfig fixes the shape of the generated image.
type OutputConfig struct {
	AspectRatio string
	ImageSize   string
}

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Invoker calls the image model and extracts its single output image.
// It never retries.
type Invoker struct {
	models  contentGenerator
	output  OutputConfig
	limiter *rate.Limiter
}

func NewInvoker(models contentGenerator, output OutputConfig, minInterval time.Duration) *Invoker {
	inv := &Invoker{models: models, output: output}
	if minInterval > 0 {
		inv.limiter = rate.NewLimiter(rate.Every(minInterval), 1)
	}
	return inv
}

// NewGeminiInvoker builds an Invoker backed by the Gemini API.
func NewGeminiInvoker(ctx context.Context, cfg config.GeminiConfig) (*Invoker, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is not configured")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return NewInvoker(client.Models, OutputConfig{
		AspectRatio: cfg.AspectRatio,
		ImageSize:   cfg.ImageSize,
	}, cfg.MinInterval), nil
}

func (i *Invoker) Invoke(ctx context.Context, model string, images []InputImage, instruction string) ([]byte, error) {
	if i.limiter != nil {
		if err := i.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrGenerationCall, err)
		}
	}

	parts := make([]*genai.Part, 0, len(images)+1)
	for _, img := range images {
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
	}
	parts = append(parts, genai.NewPartFromText(instruction))

	resp, err := i.models.GenerateContent(ctx, model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		&genai.GenerateContentConfig{
			ImageConfig: &genai.ImageConfig{
				AspectRatio: i.output.AspectRatio,
				ImageSize:   i.output.ImageSize,
			},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerationCall, err)
	}

	return extractImage(resp)
}

// extractImage returns the first inline image of the first candidate.
func extractImage(resp *genai.GenerateContentResponse) ([]byte, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil, ErrNoCandidate
	}
	content := resp.Candidates[0].Content
	if content == nil {
		return nil, ErrEmptyImagePayload
	}
	for _, part := range content.Parts {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return part.InlineData.Data, nil
		}
	}
	return nil, ErrEmptyImagePayload
}
