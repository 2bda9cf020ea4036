package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/stackpilot/internal/catalog"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

type toolSearcher interface {
	Search(ctx context.Context, q string, limit int) ([]catalog.SearchHit, error)
}

type ToolsHandler struct {
	Catalog  catalog.Accessor
	Searcher toolSearcher
}

func (h *ToolsHandler) Register(g *echo.Group) {
	g.GET("", h.list)
	g.GET("/search", h.search)
}

// List tools
//
//	@Summary	Tool catalog
//	@Tags		tools
//	@Produce	json
//	@Success	200	{array}	catalog.Tool
//	@Router		/api/tools [get]
func (h *ToolsHandler) list(c echo.Context) error {
	tools, err := h.Catalog.ListTools(c.Request().Context())
	if err != nil {
		return err
	}
	if tools == nil {
		tools = []catalog.Tool{}
	}
	return c.JSON(http.StatusOK, tools)
}

// Search tools
//
//	@Summary	Full-text search over the catalog
//	@Tags		tools
//	@Produce	json
//	@Param		q		query	string	true	"Search text"
//	@Param		limit	query	int		false	"Max results (default 10, max 50)"
//	@Success	200		{array}	catalog.SearchHit
//	@Failure	400		{object}	HTTPError
//	@Router		/api/tools/search [get]
func (h *ToolsHandler) search(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}
	limit := queryInt(c, "limit")
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	hits, err := h.Searcher.Search(c.Request().Context(), q, limit)
	if err != nil {
		return err
	}
	if hits == nil {
		hits = []catalog.SearchHit{}
	}
	return c.JSON(http.StatusOK, hits)
}
