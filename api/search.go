package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nrtkbb/disktree/models"
	"github.com/nrtkbb/disktree/search"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// FindFiles fuzzy-matches file names in a root's index, best match first
func (h *Handler) FindFiles(c echo.Context) error {
	ctx := c.Request().Context()
	tracer := otel.Tracer("api/handlers")
	ctx, span := tracer.Start(ctx, "FindFiles")
	defer span.End()

	c.SetRequest(c.Request().WithContext(ctx))

	root, err := getRootFromQuery(c, "root")
	if err != nil {
		span.RecordError(err)
		return err
	}

	limit, err := getCountFromQuery(c, "limit")
	if err != nil {
		span.RecordError(err)
		return err
	}

	q := models.SearchQuery{
		Root:         root,
		NameFragment: c.QueryParam("query"),
		Extensions:   search.ParseExtensions(c.QueryParam("extensions")),
		Limit:        limit,
	}
	span.SetAttributes(
		attribute.String("query", q.NameFragment),
		attribute.StringSlice("extensions", q.Extensions),
	)

	files, err := h.engine.Search(ctx, q)
	if err != nil {
		span.RecordError(err)
		return httpError(err)
	}
	span.SetAttributes(attribute.Int("response_items", len(files)))

	return c.JSON(http.StatusOK, files)
}
