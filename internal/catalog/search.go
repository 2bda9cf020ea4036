package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve"
	"github.com/blevesearch/bleve/search/query"
	"go.uber.org/zap"
)

// SearchHit is a ranked catalog match.
type SearchHit struct {
	Tool  Tool    `json:"tool"`
	Score float64 `json:"score"`
}

type searchDoc struct {
	Name        string `json:"name"`
	Tagline     string `json:"tagline"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// Searcher keeps an in-memory full-text index of the catalog. The index is
// rebuilt when the catalog version changes, or after refresh elapses when
// the accessor cannot report a version.
type Searcher struct {
	accessor Accessor
	refresh  time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	index   bleve.Index
	tools   map[string]Tool
	version string
	builtAt time.Time
}

func NewSearcher(accessor Accessor, refresh time.Duration, logger *zap.Logger) *Searcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if refresh <= 0 {
		refresh = 5 * time.Minute
	}
	return &Searcher{accessor: accessor, refresh: refresh, logger: logger.Named("catalog-search")}
}

// Search returns up to limit tools matching q, best first.
func (s *Searcher) Search(ctx context.Context, q string, limit int) ([]SearchHit, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, nil
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureIndex(ctx); err != nil {
		return nil, err
	}

	req := bleve.NewSearchRequestOptions(buildQuery(q), limit, 0, false)
	res, err := s.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("catalog search: %w", err)
	}
	hits := make([]SearchHit, 0, len(res.Hits))
	for _, h := range res.Hits {
		tool, ok := s.tools[h.ID]
		if !ok {
			continue
		}
		hits = append(hits, SearchHit{Tool: tool, Score: h.Score})
	}
	return hits, nil
}

// Close releases the index.
func (s *Searcher) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return nil
	}
	err := s.index.Close()
	s.index = nil
	return err
}

func (s *Searcher) ensureIndex(ctx context.Context) error {
	version := ""
	if v, ok := s.accessor.(Versioner); ok {
		current, err := v.CatalogVersion(ctx)
		if err != nil {
			s.logger.Warn("catalog version unavailable", zap.Error(err))
		} else {
			version = current
		}
	}
	if s.index != nil {
		if version != "" && version == s.version {
			return nil
		}
		if version == "" && time.Since(s.builtAt) < s.refresh {
			return nil
		}
	}

	tools, err := s.accessor.ListTools(ctx)
	if err != nil {
		return err
	}
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return fmt.Errorf("catalog index: %w", err)
	}
	batch := index.NewBatch()
	byID := make(map[string]Tool, len(tools))
	for _, t := range tools {
		id := strconv.FormatInt(t.ID, 10)
		byID[id] = t
		if err := batch.Index(id, searchDoc{Name: t.Name, Tagline: t.Tagline, Description: t.Description, Category: t.Category}); err != nil {
			_ = index.Close()
			return fmt.Errorf("catalog index %s: %w", id, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		_ = index.Close()
		return fmt.Errorf("catalog index batch: %w", err)
	}

	if s.index != nil {
		_ = s.index.Close()
	}
	s.index = index
	s.tools = byID
	s.version = version
	s.builtAt = time.Now()
	s.logger.Debug("catalog index rebuilt", zap.Int("tools", len(tools)), zap.String("version", version))
	return nil
}

func buildQuery(q string) query.Query {
	name := bleve.NewMatchQuery(q)
	name.SetField("name")
	name.SetBoost(3)
	namePrefix := bleve.NewPrefixQuery(strings.ToLower(q))
	namePrefix.SetField("name")
	namePrefix.SetBoost(2)
	tagline := bleve.NewMatchQuery(q)
	tagline.SetField("tagline")
	tagline.SetBoost(2)
	desc := bleve.NewMatchQuery(q)
	desc.SetField("description")
	category := bleve.NewMatchQuery(q)
	category.SetField("category")
	return bleve.NewDisjunctionQuery(name, namePrefix, tagline, desc, category)
}
