package openai_provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/stackpilot/models"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	maxErrorBody   = 512
)

// client implements provider.Provider using OpenAI's chat completions API.
type client struct {
	apiKey          string
	baseURL         string
	completionModel string
	temperature     float64
	maxTokens       int
	httpClient      *http.Client
	logger          *zap.Logger
}

// Message represents a message in a conversation. Content is either a plain
// string or a list of contentPart values for multimodal requests.
type Message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// request represents a request to the OpenAI API
type request struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

// response represents a response from the OpenAI API
type response struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewOpenAIClient creates a new OpenAI client. An empty baseURL targets api.openai.com.
func NewOpenAIClient(apiKey, baseURL, completionModel string, temperature float64, maxTokens int, timeout time.Duration, logger *zap.Logger) *client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &client{
		apiKey:          apiKey,
		baseURL:         strings.TrimRight(baseURL, "/"),
		completionModel: completionModel,
		temperature:     temperature,
		maxTokens:       maxTokens,
		httpClient:      &http.Client{Timeout: timeout},
		logger:          logger,
	}
}

// Generate sends prompt as a single user message and returns the first choice.
func (c *client) Generate(ctx context.Context, prompt string, opts models.GenerateOptions) (string, error) {
	if opts.Grounding {
		c.logger.Debug("grounding requested but not supported by openai; ignoring")
	}
	model := c.completionModel
	if opts.Model != "" {
		model = opts.Model
	}

	var content interface{} = prompt
	if len(opts.Images) > 0 {
		parts := []contentPart{{Type: "text", Text: prompt}}
		for _, img := range opts.Images {
			dataURL := fmt.Sprintf("data:%s;base64,%s", img.MIMEType, base64.StdEncoding.EncodeToString(img.Data))
			parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: dataURL}})
		}
		content = parts
	}

	body := request{
		Model:       model,
		Messages:    []Message{{Role: "user", Content: content}},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	if opts.JSON {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	return c.sendRequest(ctx, body)
}

// sendRequest sends a request to the OpenAI API
func (c *client) sendRequest(ctx context.Context, body request) (string, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	c.logger.Debug("openai response",
		zap.String("model", body.Model),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(started)),
		zap.Int("bytes", len(raw)),
	)

	if resp.StatusCode != http.StatusOK {
		snippet := string(raw)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return "", models.StatusError{Provider: "openai", Code: resp.StatusCode, Body: strings.TrimSpace(snippet)}
	}

	var openaiResp response
	if err := json.Unmarshal(raw, &openaiResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(openaiResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	out := openaiResp.Choices[0].Message.Content
	if strings.TrimSpace(out) == "" {
		return "", models.ErrEmptyResponse
	}
	return out, nil
}
