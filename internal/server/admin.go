package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/stackpilot/internal/feeds"
	"github.com/mohammad-safakhou/stackpilot/internal/helpers"
	"github.com/mohammad-safakhou/stackpilot/internal/scrape"
)

type draftExtractor interface {
	Extract(ctx context.Context, rawURL string) (scrape.ToolDraft, error)
}

type feedImport interface {
	RunOnce(ctx context.Context) (feeds.RunStats, bool, error)
}

// AdminHandler exposes the AI-assisted ingestion jobs to signed-in admins.
type AdminHandler struct {
	Scraper draftExtractor
	Feeds   feedImport
}

func (h *AdminHandler) Register(g *echo.Group) {
	g.POST("/scrape", h.scrape)
	g.POST("/feeds/ingest", h.ingest)
}

// Scrape tool page
//
//	@Summary	Draft a catalog entry from a landing page
//	@Tags		admin
//	@Accept		json
//	@Produce	json
//	@Param		payload	body		ScrapeRequest	true	"Page URL"
//	@Success	200		{object}	scrape.ToolDraft
//	@Failure	400		{object}	HTTPError
//	@Failure	403		{object}	HTTPError
//	@Failure	422		{object}	HTTPError
//	@Failure	502		{object}	HTTPError
//	@Router		/api/admin/scrape [post]
func (h *AdminHandler) scrape(c echo.Context) error {
	if h.Scraper == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "scraper disabled")
	}
	var req ScrapeRequest
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "url is required")
	}
	if _, err := helpers.CanonicalURL(req.URL); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid url")
	}
	draft, err := h.Scraper.Extract(c.Request().Context(), req.URL)
	if err != nil {
		if errors.Is(err, scrape.ErrHostNotAllowed) {
			return echo.NewHTTPError(http.StatusForbidden, "host not allowed")
		}
		if errors.Is(err, scrape.ErrInvalidDraft) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "could not extract a tool from the page").SetInternal(err)
		}
		return echo.NewHTTPError(http.StatusBadGateway, "scrape failed").SetInternal(err)
	}
	return c.JSON(http.StatusOK, draft)
}

// Ingest feeds
//
//	@Summary	Run the RSS import once
//	@Tags		admin
//	@Produce	json
//	@Success	200	{object}	feeds.RunStats
//	@Failure	409	{object}	HTTPError
//	@Router		/api/admin/feeds/ingest [post]
func (h *AdminHandler) ingest(c echo.Context) error {
	if h.Feeds == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "feed import disabled")
	}
	stats, ran, err := h.Feeds.RunOnce(c.Request().Context())
	if err != nil {
		return err
	}
	if !ran {
		return echo.NewHTTPError(http.StatusConflict, "feed import already running")
	}
	return c.JSON(http.StatusOK, stats)
}
