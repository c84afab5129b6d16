package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// GetSummary returns totals, the largest folders and the largest files of a root
func (h *Handler) GetSummary(c echo.Context) error {
	ctx := c.Request().Context()
	tracer := otel.Tracer("api/handlers")
	ctx, span := tracer.Start(ctx, "GetSummary")
	defer span.End()

	c.SetRequest(c.Request().WithContext(ctx))

	root, err := getRootFromQuery(c, "root")
	if err != nil {
		span.RecordError(err)
		return err
	}

	top, err := getCountFromQuery(c, "top")
	if err != nil {
		span.RecordError(err)
		return err
	}

	summary, err := h.engine.Summary(ctx, root, top)
	if err != nil {
		span.RecordError(err)
		return httpError(err)
	}
	span.SetAttributes(
		attribute.Int64("total_size", summary.TotalSize),
		attribute.Int64("unique_size", summary.UniqueSize),
	)

	return c.JSON(http.StatusOK, summary)
}

// GetDuplicates returns the hardlinked files of a root
func (h *Handler) GetDuplicates(c echo.Context) error {
	ctx := c.Request().Context()
	tracer := otel.Tracer("api/handlers")
	ctx, span := tracer.Start(ctx, "GetDuplicates")
	defer span.End()

	c.SetRequest(c.Request().WithContext(ctx))

	root, err := getRootFromQuery(c, "root")
	if err != nil {
		span.RecordError(err)
		return err
	}

	report, err := h.engine.Duplicates(ctx, root)
	if err != nil {
		span.RecordError(err)
		return httpError(err)
	}
	span.SetAttributes(attribute.Int("hardlink_sets", len(report.Hardlinks)))

	return c.JSON(http.StatusOK, report)
}
