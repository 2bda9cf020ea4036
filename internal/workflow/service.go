package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/stackpilot/internal/catalog"
	"github.com/mohammad-safakhou/stackpilot/models"
	"github.com/mohammad-safakhou/stackpilot/provider"
)

// FailedMessage is reported when the model answered but its output was unusable.
const FailedMessage = "Failed to generate workflow"

const (
	defaultMaxQueryRunes = 2000
	logSnippetRunes      = 300
)

// Options tunes the pipeline.
type Options struct {
	// Grounding lets the model consult web search while answering.
	Grounding bool
	// Timeout bounds the generation call only. Zero disables it.
	Timeout       time.Duration
	MaxQueryRunes int
}

// Service runs the recommendation pipeline: catalog, prompt, generation,
// sanitize, enrich, persist.
type Service struct {
	catalog   catalog.Accessor
	llm       provider.Provider
	persister Persister
	opts      Options
	metrics   *Metrics
	logger    *zap.Logger
}

func NewService(acc catalog.Accessor, llm provider.Provider, persister Persister, opts Options, metrics *Metrics, logger *zap.Logger) *Service {
	if opts.MaxQueryRunes <= 0 {
		opts.MaxQueryRunes = defaultMaxQueryRunes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		catalog:   acc,
		llm:       llm,
		persister: persister,
		opts:      opts,
		metrics:   metrics,
		logger:    logger,
	}
}

// Generate runs one query through the pipeline. Catalog and generation
// failures are returned as errors. Unusable model output is reported through
// Outcome.Failed, and a persistence failure still returns the workflow with
// Saved=false.
func (s *Service) Generate(ctx context.Context, query string) (Outcome, error) {
	started := time.Now()
	query = strings.TrimSpace(query)
	if query == "" {
		s.metrics.observe(outcomeInvalid, started)
		return Outcome{}, InvalidRequestError{Reason: "query is required"}
	}
	if utf8.RuneCountInString(query) > s.opts.MaxQueryRunes {
		s.metrics.observe(outcomeInvalid, started)
		return Outcome{}, InvalidRequestError{Reason: fmt.Sprintf("query must be at most %d characters", s.opts.MaxQueryRunes)}
	}

	tools, err := s.catalog.ListTools(ctx)
	if err != nil {
		s.metrics.observe(outcomeCatalogError, started)
		return Outcome{}, fmt.Errorf("load catalog: %w", err)
	}

	raw, err := s.generate(ctx, BuildPrompt(query, tools))
	if err != nil {
		s.metrics.observe(outcomeGenerationError, started)
		return Outcome{}, GenerationError{Err: err}
	}

	doc, err := Sanitize(raw)
	if err != nil {
		s.logger.Warn("unusable model output",
			zap.Error(err),
			zap.String("output", truncateRunes(raw, logSnippetRunes)),
		)
		s.metrics.observe(outcomeMalformed, started)
		return Outcome{Failed: true, Error: FailedMessage}, nil
	}

	res := Enrich(doc, tools)
	s.metrics.dropped(res.Dropped)
	s.logger.Debug("workflow enriched",
		zap.Int("catalog_size", len(tools)),
		zap.Int("steps", len(res.Workflow.Steps)),
		zap.Int("tools", len(res.Tools)),
		zap.Int("dropped_refs", res.Dropped),
	)

	out := Outcome{Workflow: &res.Workflow, Tools: res.Tools}
	id, err := s.persist(ctx, query, res)
	if err != nil {
		s.logger.Error("workflow not saved", zap.Error(PersistenceError{Err: err}))
		s.metrics.observe(outcomeUnsaved, started)
		return out, nil
	}
	out.WorkflowID = &id
	out.Saved = true
	s.metrics.observe(outcomeSaved, started)
	return out, nil
}

func (s *Service) generate(ctx context.Context, prompt string) (string, error) {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}
	raw, err := s.llm.Generate(ctx, prompt, models.GenerateOptions{Grounding: s.opts.Grounding, JSON: true})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(raw) == "" {
		return "", models.ErrEmptyResponse
	}
	return raw, nil
}

func (s *Service) persist(ctx context.Context, query string, res Result) (string, error) {
	if s.persister == nil {
		return "", fmt.Errorf("no persister configured")
	}
	payload, err := EncodeResult(res)
	if err != nil {
		return "", err
	}
	return s.persister.InsertWorkflow(ctx, query, payload)
}
