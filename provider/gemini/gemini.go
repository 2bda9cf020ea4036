package gemini_provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/mohammad-safakhou/stackpilot/config"
	"github.com/mohammad-safakhou/stackpilot/models"
)

// Options configures the Gemini client.
type Options struct {
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// contentGenerator is the subset of genai.Models used by Client.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client implements provider.Provider on top of the Gemini API.
type Client struct {
	models contentGenerator
	opts   Options
	logger *zap.Logger
}

// NewClient creates a Gemini client backed by the public Gemini API.
func NewClient(ctx context.Context, opts Options, logger *zap.Logger) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if opts.Model == "" {
		opts.Model = config.DefaultGeminiModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Client{models: gc.Models, opts: opts, logger: logger}, nil
}

// Generate runs one content generation and returns the concatenated text parts.
func (c *Client) Generate(ctx context.Context, prompt string, opts models.GenerateOptions) (string, error) {
	model := c.opts.Model
	if opts.Model != "" {
		model = opts.Model
	}

	started := time.Now()
	resp, err := c.models.GenerateContent(ctx, model, buildContents(prompt, opts.Images), buildConfig(c.opts, opts))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := resp.Text()
	c.logger.Debug("gemini response",
		zap.String("model", model),
		zap.Bool("grounding", opts.Grounding),
		zap.Duration("latency", time.Since(started)),
		zap.Int("bytes", len(text)),
	)
	if strings.TrimSpace(text) == "" {
		return "", models.ErrEmptyResponse
	}
	return text, nil
}

func buildContents(prompt string, images []models.Image) []*genai.Content {
	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	for _, img := range images {
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

// buildConfig maps call options onto a GenerateContentConfig. The API rejects
// a JSON response MIME type combined with the search tool, so grounding wins.
func buildConfig(o Options, opts models.GenerateOptions) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(o.Temperature)),
	}
	if o.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(o.MaxTokens)
	}
	if opts.Grounding {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	} else if opts.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	return cfg
}
