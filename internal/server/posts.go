package server

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/stackpilot/internal/store"
)

type postLister interface {
	ListPosts(ctx context.Context, limit int) ([]store.PostRecord, error)
}

type PostsHandler struct {
	Store postLister
}

func (h *PostsHandler) Register(g *echo.Group) {
	g.GET("", h.list)
}

// List posts
//
//	@Summary	Imported blog posts, newest first
//	@Tags		posts
//	@Produce	json
//	@Param		limit	query	int	false	"Max results (default 20, max 100)"
//	@Success	200		{array}	PostResponse
//	@Router		/api/posts [get]
func (h *PostsHandler) list(c echo.Context) error {
	recs, err := h.Store.ListPosts(c.Request().Context(), queryInt(c, "limit"))
	if err != nil {
		return err
	}
	out := make([]PostResponse, 0, len(recs))
	for _, r := range recs {
		out = append(out, PostResponse{
			ID:          r.ID,
			Slug:        r.Slug,
			Title:       r.Title,
			Link:        r.Link,
			Summary:     r.Summary,
			Author:      r.Author,
			Source:      r.Source,
			PublishedAt: r.PublishedAt,
		})
	}
	return c.JSON(http.StatusOK, out)
}
