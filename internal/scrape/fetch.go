// Package scrape turns a tool's landing page into a catalog draft using a
// headless browser and a vision-capable model.
package scrape

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-shiori/go-readability"
)

const defaultUserAgent = "stackpilot-scraper/1.0"

// Page is a rendered landing page.
type Page struct {
	URL        string
	HTML       string
	Screenshot []byte
	RenderMS   int
}

// Fetcher renders a page.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// ChromeFetcher renders pages in headless Chrome and captures a full-page
// JPEG screenshot alongside the outer HTML.
type ChromeFetcher struct {
	Timeout   time.Duration
	UserAgent string
	// Quality is the JPEG quality of the screenshot; 100 produces PNG.
	Quality int
}

func (f ChromeFetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	if strings.TrimSpace(rawURL) == "" {
		return Page{}, errors.New("invalid url")
	}
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}
	ua := f.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	quality := f.Quality
	if quality <= 0 || quality > 100 {
		quality = 80
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent(ua),
		chromedp.WindowSize(1366, 900),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	t0 := time.Now()
	var (
		html string
		shot []byte
	)
	err := chromedp.Run(bctx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.FullScreenshot(&shot, quality),
	)
	if err != nil {
		return Page{}, err
	}
	return Page{
		URL:        rawURL,
		HTML:       html,
		Screenshot: shot,
		RenderMS:   int(time.Since(t0) / time.Millisecond),
	}, nil
}

// article is the readable part of a page.
type article struct {
	Title    string
	Excerpt  string
	SiteName string
	Image    string
	Favicon  string
	Text     string
}

func readArticle(html, pageURL string, maxChars int) (article, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		u = &url.URL{}
	}
	a, err := readability.FromReader(strings.NewReader(html), u)
	if err != nil {
		return article{}, err
	}
	text := strings.Join(strings.Fields(a.TextContent), " ")
	if maxChars > 0 {
		if r := []rune(text); len(r) > maxChars {
			text = string(r[:maxChars])
		}
	}
	return article{
		Title:    strings.TrimSpace(a.Title),
		Excerpt:  strings.TrimSpace(a.Excerpt),
		SiteName: strings.TrimSpace(a.SiteName),
		Image:    a.Image,
		Favicon:  a.Favicon,
		Text:     text,
	}, nil
}
