package gemini_provider

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/mohammad-safakhou/stackpilot/config"
	"github.com/mohammad-safakhou/stackpilot/models"
)

type fakeModels struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	resp     *genai.GenerateContentResponse
	err      error
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model, f.contents, f.config = model, contents, cfg
	return f.resp, f.err
}

func textResponse(s string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(s, genai.RoleModel)}},
	}
}

func TestBuildConfigGroundingDisablesJSONMime(t *testing.T) {
	cfg := buildConfig(Options{Temperature: 0.3, MaxTokens: 100}, models.GenerateOptions{Grounding: true, JSON: true})
	if len(cfg.Tools) != 1 || cfg.Tools[0].GoogleSearch == nil {
		t.Fatalf("expected google search tool, got %+v", cfg.Tools)
	}
	if cfg.ResponseMIMEType != "" {
		t.Fatalf("expected no response mime with grounding, got %q", cfg.ResponseMIMEType)
	}
	if cfg.MaxOutputTokens != 100 || cfg.Temperature == nil || *cfg.Temperature != float32(0.3) {
		t.Fatalf("unexpected sampling config %+v", cfg)
	}
}

func TestBuildConfigJSONMime(t *testing.T) {
	cfg := buildConfig(Options{}, models.GenerateOptions{JSON: true})
	if cfg.ResponseMIMEType != "application/json" || len(cfg.Tools) != 0 {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestGenerateUsesOverrideModelAndImages(t *testing.T) {
	f := &fakeModels{resp: textResponse(`{"ok":true}`)}
	c := &Client{models: f, opts: Options{Model: "gemini-2.5-flash"}, logger: zap.NewNop()}

	out, err := c.Generate(context.Background(), "look", models.GenerateOptions{
		Model:  "gemini-2.5-pro",
		Images: []models.Image{{MIMEType: "image/jpeg", Data: []byte{1, 2, 3}}},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != `{"ok":true}` {
		t.Fatalf("unexpected output %q", out)
	}
	if f.model != "gemini-2.5-pro" {
		t.Fatalf("expected override model, got %s", f.model)
	}
	if len(f.contents) != 1 || len(f.contents[0].Parts) != 2 || f.contents[0].Parts[1].InlineData == nil {
		t.Fatalf("expected text and inline image parts, got %+v", f.contents)
	}
}

func TestGenerateEmptyText(t *testing.T) {
	c := &Client{models: &fakeModels{resp: &genai.GenerateContentResponse{}}, opts: Options{Model: "m"}, logger: zap.NewNop()}
	if _, err := c.Generate(context.Background(), "p", models.GenerateOptions{}); !errors.Is(err, models.ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestGenerateWrapsBackendError(t *testing.T) {
	boom := errors.New("quota exceeded")
	c := &Client{models: &fakeModels{err: boom}, opts: Options{Model: "m"}, logger: zap.NewNop()}
	if _, err := c.Generate(context.Background(), "p", models.GenerateOptions{}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped backend error, got %v", err)
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(context.Background(), Options{}, nil); err == nil {
		t.Fatalf("expected error without api key")
	}
}

func TestNewClientDefaultsToConfiguredModel(t *testing.T) {
	c, err := NewClient(context.Background(), Options{APIKey: "k"}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.opts.Model != config.DefaultGeminiModel {
		t.Fatalf("expected default model %q, got %q", config.DefaultGeminiModel, c.opts.Model)
	}
}
