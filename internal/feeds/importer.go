// Package feeds imports blog posts from RSS and Atom feeds.
package feeds

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/stackpilot/internal/helpers"
	"github.com/mohammad-safakhou/stackpilot/internal/store"
)

const (
	summaryRunes = 500
	slugBytes    = 80
)

// PostSink stores imported posts, ignoring links it already has.
type PostSink interface {
	InsertPostIfNew(ctx context.Context, rec store.PostRecord) (bool, error)
}

// RunStats summarises one import pass.
type RunStats struct {
	Feeds    int `json:"feeds"`
	Failed   int `json:"failed"`
	Items    int `json:"items"`
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
}

// Importer fetches every configured feed and stores new items as posts.
type Importer struct {
	urls     []string
	maxItems int
	timeout  time.Duration
	parser   *gofeed.Parser
	sink     PostSink
	items    *prometheus.CounterVec
	logger   *zap.Logger
	now      func() time.Time
}

type ImporterOptions struct {
	URLs     []string
	MaxItems int
	// Timeout bounds each feed fetch.
	Timeout   time.Duration
	UserAgent string
}

func NewImporter(sink PostSink, opts ImporterOptions, reg prometheus.Registerer, logger *zap.Logger) (*Importer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: opts.Timeout}
	if opts.UserAgent != "" {
		parser.UserAgent = opts.UserAgent
	}
	imp := &Importer{
		urls:     opts.URLs,
		maxItems: opts.MaxItems,
		timeout:  opts.Timeout,
		parser:   parser,
		sink:     sink,
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stackpilot",
			Subsystem: "feeds",
			Name:      "items_total",
			Help:      "Feed items seen by the importer, by result.",
		}, []string{"result"}),
		logger: logger,
		now:    time.Now,
	}
	if reg != nil {
		if err := reg.Register(imp.items); err != nil {
			return nil, err
		}
	}
	return imp, nil
}

// Run imports every feed once. A failing feed is logged and counted but
// never stops the others; only cancellation of ctx is returned as an error.
func (i *Importer) Run(ctx context.Context) (RunStats, error) {
	var stats RunStats
	for _, feedURL := range i.urls {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Feeds++
		if err := i.importFeed(ctx, feedURL, &stats); err != nil {
			stats.Failed++
			i.items.WithLabelValues("feed_error").Inc()
			i.logger.Warn("feed import failed", zap.String("feed", feedURL), zap.Error(err))
		}
	}
	i.logger.Info("feed import finished",
		zap.Int("feeds", stats.Feeds),
		zap.Int("failed", stats.Failed),
		zap.Int("items", stats.Items),
		zap.Int("inserted", stats.Inserted),
	)
	return stats, nil
}

func (i *Importer) importFeed(ctx context.Context, feedURL string, stats *RunStats) error {
	fctx := ctx
	if i.timeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}
	feed, err := i.parser.ParseURLWithContext(feedURL, fctx)
	if err != nil {
		return err
	}

	items := feed.Items
	if i.maxItems > 0 && len(items) > i.maxItems {
		items = items[:i.maxItems]
	}
	source := strings.TrimSpace(feed.Title)
	if source == "" {
		source = feedURL
	}
	for _, item := range items {
		stats.Items++
		rec, ok := i.toPost(item, source)
		if !ok {
			stats.Skipped++
			i.items.WithLabelValues("skipped").Inc()
			continue
		}
		inserted, err := i.sink.InsertPostIfNew(ctx, rec)
		if err != nil {
			i.items.WithLabelValues("error").Inc()
			i.logger.Warn("store post", zap.String("link", rec.Link), zap.Error(err))
			continue
		}
		if inserted {
			stats.Inserted++
			i.items.WithLabelValues("inserted").Inc()
		} else {
			i.items.WithLabelValues("duplicate").Inc()
		}
	}
	return nil
}

// toPost maps a feed item to a post. Items without a usable link or title are skipped.
func (i *Importer) toPost(item *gofeed.Item, source string) (store.PostRecord, bool) {
	if item == nil {
		return store.PostRecord{}, false
	}
	link, err := helpers.CanonicalURL(item.Link)
	if err != nil {
		return store.PostRecord{}, false
	}
	title := helpers.StripHTML(item.Title)
	if title == "" {
		return store.PostRecord{}, false
	}

	summary := helpers.StripHTML(item.Description)
	if summary == "" {
		summary = helpers.StripHTML(item.Content)
	}
	if r := []rune(summary); len(r) > summaryRunes {
		summary = strings.TrimSpace(string(r[:summaryRunes])) + "…"
	}

	var author string
	if item.Author != nil {
		author = item.Author.Name
	} else if len(item.Authors) > 0 && item.Authors[0] != nil {
		author = item.Authors[0].Name
	}

	published := i.now().UTC()
	switch {
	case item.PublishedParsed != nil:
		published = item.PublishedParsed.UTC()
	case item.UpdatedParsed != nil:
		published = item.UpdatedParsed.UTC()
	}

	return store.PostRecord{
		Slug:        postSlug(title, link),
		Title:       title,
		Link:        link,
		Summary:     summary,
		Author:      strings.TrimSpace(author),
		Source:      source,
		PublishedAt: published,
	}, true
}

// postSlug suffixes the title slug with a short link hash so two posts with
// the same title still get distinct slugs.
func postSlug(title, link string) string {
	sum := sha1.Sum([]byte(link))
	suffix := hex.EncodeToString(sum[:4])
	base := helpers.Slugify(title, slugBytes)
	if base == "" {
		return suffix
	}
	return base + "-" + suffix
}
