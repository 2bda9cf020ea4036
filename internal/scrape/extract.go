package scrape

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/stackpilot/config"
	"github.com/mohammad-safakhou/stackpilot/internal/helpers"
	"github.com/mohammad-safakhou/stackpilot/internal/workflow"
	"github.com/mohammad-safakhou/stackpilot/models"
	"github.com/mohammad-safakhou/stackpilot/provider"
)

var (
	// ErrInvalidDraft is returned when the model output does not describe a tool.
	ErrInvalidDraft = errors.New("scraped draft is invalid")
	// ErrHostNotAllowed is returned for URLs outside the configured host policy.
	ErrHostNotAllowed = errors.New("host not allowed")
)

//go:embed draft.schema.json
var draftSchemaBytes []byte

var (
	draftSchemaOnce sync.Once
	draftSchema     *jsonschema.Schema
	draftSchemaErr  error
)

var pricingAliases = map[string]string{
	"free":         "free",
	"freemium":     "freemium",
	"free trial":   "freemium",
	"free tier":    "freemium",
	"paid":         "paid",
	"subscription": "paid",
	"contact":      "contact",
	"enterprise":   "contact",
}

// ToolDraft prefills the admin tool form.
type ToolDraft struct {
	Name        string `json:"name"`
	Tagline     string `json:"tagline"`
	Description string `json:"description"`
	Pricing     string `json:"pricing"`
	Category    string `json:"category"`
	WebsiteURL  string `json:"websiteUrl"`
	LogoURL     string `json:"logoUrl,omitempty"`
}

// Extractor scrapes a landing page and asks the model to describe the tool on it.
type Extractor struct {
	fetcher  Fetcher
	llm      provider.Provider
	model    string
	maxChars int
	timeout  time.Duration
	hosts    config.HostPolicy
	scrapes  *prometheus.CounterVec
	logger   *zap.Logger
}

type ExtractorOptions struct {
	// Model overrides the provider default, typically with a vision model.
	Model    string
	MaxChars int
	// Timeout bounds the model call; zero means one minute.
	Timeout time.Duration
	Hosts   config.HostPolicy
}

func NewExtractor(fetcher Fetcher, llm provider.Provider, opts ExtractorOptions, reg prometheus.Registerer, logger *zap.Logger) (*Extractor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = 6000
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Minute
	}
	e := &Extractor{
		fetcher:  fetcher,
		llm:      llm,
		model:    opts.Model,
		maxChars: opts.MaxChars,
		timeout:  opts.Timeout,
		hosts:    opts.Hosts.Normalize(),
		scrapes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stackpilot",
			Subsystem: "scrape",
			Name:      "extractions_total",
			Help:      "Landing page extractions by outcome.",
		}, []string{"outcome"}),
		logger: logger,
	}
	if reg != nil {
		if err := reg.Register(e.scrapes); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Extract renders rawURL and returns a draft catalog entry for it.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (ToolDraft, error) {
	canonical, err := helpers.CanonicalURL(rawURL)
	if err != nil {
		e.scrapes.WithLabelValues("invalid_url").Inc()
		return ToolDraft{}, fmt.Errorf("invalid url: %w", err)
	}
	if u, _ := url.Parse(canonical); u == nil || !e.hosts.Permits(u.Hostname()) {
		e.scrapes.WithLabelValues("host_denied").Inc()
		return ToolDraft{}, fmt.Errorf("%w: %s", ErrHostNotAllowed, canonical)
	}

	page, err := e.fetcher.Fetch(ctx, canonical)
	if err != nil {
		e.scrapes.WithLabelValues("fetch_error").Inc()
		return ToolDraft{}, fmt.Errorf("fetch %s: %w", canonical, err)
	}
	art, err := readArticle(page.HTML, canonical, e.maxChars)
	if err != nil {
		e.logger.Warn("readability failed", zap.String("url", canonical), zap.Error(err))
	}

	opts := models.GenerateOptions{JSON: true, Model: e.model}
	if len(page.Screenshot) > 0 {
		opts.Images = []models.Image{{MIMEType: http.DetectContentType(page.Screenshot), Data: page.Screenshot}}
	}
	raw, err := e.generate(ctx, buildExtractionPrompt(canonical, art), opts)
	if err != nil {
		e.scrapes.WithLabelValues("generation_error").Inc()
		return ToolDraft{}, fmt.Errorf("extract %s: %w", canonical, err)
	}

	draft, err := parseDraft(raw)
	if err != nil {
		e.scrapes.WithLabelValues("invalid_draft").Inc()
		e.logger.Warn("unusable extraction", zap.String("url", canonical), zap.Error(err))
		return ToolDraft{}, err
	}
	fillFromArticle(&draft, art, canonical)
	e.scrapes.WithLabelValues("ok").Inc()
	e.logger.Info("tool extracted",
		zap.String("url", canonical),
		zap.String("name", draft.Name),
		zap.Int("render_ms", page.RenderMS),
	)
	return draft, nil
}

func (e *Extractor) generate(ctx context.Context, prompt string, opts models.GenerateOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.llm.Generate(ctx, prompt, opts)
}

func buildExtractionPrompt(pageURL string, art article) string {
	var b strings.Builder
	b.WriteString("You are cataloguing AI tools. The attached screenshot and the text below come from a product landing page.\n")
	fmt.Fprintf(&b, "URL: %s\n", pageURL)
	if art.Title != "" {
		fmt.Fprintf(&b, "Page title: %s\n", art.Title)
	}
	if art.Excerpt != "" {
		fmt.Fprintf(&b, "Meta description: %s\n", art.Excerpt)
	}
	if art.Text != "" {
		b.WriteString("\nPAGE TEXT:\n")
		b.WriteString(art.Text)
		b.WriteString("\n")
	}
	b.WriteString("\nRespond with one JSON object and nothing else:\n")
	b.WriteString(`{"name": "product name", "tagline": "one sentence, under 120 characters", "description": "2-4 sentences on what it does and who it is for", "pricing": "free | freemium | paid | contact", "category": "short category such as Writing, Video, Coding", "websiteUrl": "canonical product URL"}`)
	b.WriteString("\nUse only information visible on the page. Leave a field empty when the page does not say.\n")
	return b.String()
}

// parseDraft sanitizes raw model output and validates it against the draft schema.
func parseDraft(raw string) (ToolDraft, error) {
	doc, err := workflow.Sanitize(raw)
	if err != nil {
		return ToolDraft{}, fmt.Errorf("%w: %v", ErrInvalidDraft, err)
	}
	if err := validateDraft(doc); err != nil {
		return ToolDraft{}, fmt.Errorf("%w: %v", ErrInvalidDraft, err)
	}
	var fields map[string]*string
	dec := json.NewDecoder(bytes.NewReader(doc))
	if err := dec.Decode(&fields); err != nil {
		return ToolDraft{}, fmt.Errorf("%w: %v", ErrInvalidDraft, err)
	}
	get := func(k string) string {
		if v := fields[k]; v != nil {
			return strings.TrimSpace(*v)
		}
		return ""
	}
	draft := ToolDraft{
		Name:        get("name"),
		Tagline:     get("tagline"),
		Description: get("description"),
		Pricing:     normalizePricing(get("pricing")),
		Category:    get("category"),
		WebsiteURL:  get("websiteUrl"),
		LogoURL:     get("logoUrl"),
	}
	if draft.Name == "" {
		return ToolDraft{}, fmt.Errorf("%w: name is blank", ErrInvalidDraft)
	}
	return draft, nil
}

func validateDraft(doc []byte) error {
	draftSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("tool_draft.json", bytes.NewReader(draftSchemaBytes)); err != nil {
			draftSchemaErr = fmt.Errorf("add draft schema: %w", err)
			return
		}
		draftSchema, draftSchemaErr = compiler.Compile("tool_draft.json")
	})
	if draftSchemaErr != nil {
		return draftSchemaErr
	}
	var payload interface{}
	if err := json.Unmarshal(doc, &payload); err != nil {
		return fmt.Errorf("unmarshal draft json: %w", err)
	}
	return draftSchema.Validate(payload)
}

func normalizePricing(p string) string {
	key := strings.ToLower(strings.TrimSpace(p))
	if v, ok := pricingAliases[key]; ok {
		return v
	}
	return key
}

// fillFromArticle completes optional fields the model left empty.
func fillFromArticle(d *ToolDraft, art article, pageURL string) {
	if d.Tagline == "" {
		d.Tagline = helpers.StripHTML(art.Excerpt)
	}
	if d.Description == "" {
		if art.Excerpt != "" {
			d.Description = helpers.StripHTML(art.Excerpt)
		} else if art.Text != "" {
			r := []rune(art.Text)
			if len(r) > 400 {
				r = r[:400]
			}
			d.Description = strings.TrimSpace(string(r))
		}
	}
	if d.WebsiteURL == "" {
		d.WebsiteURL = pageURL
	} else if canonical, err := helpers.CanonicalURL(d.WebsiteURL); err == nil {
		d.WebsiteURL = canonical
	}
	if d.LogoURL == "" {
		if art.Favicon != "" {
			d.LogoURL = art.Favicon
		} else {
			d.LogoURL = art.Image
		}
	}
}
