package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// ListRoots returns every root with a cached scan, most recent first
func (h *Handler) ListRoots(c echo.Context) error {
	ctx := c.Request().Context()
	tracer := otel.Tracer("api/handlers")
	ctx, span := tracer.Start(ctx, "ListRoots")
	defer span.End()

	c.SetRequest(c.Request().WithContext(ctx))

	roots, err := h.engine.ListCachedRoots(ctx)
	if err != nil {
		span.RecordError(err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list cached roots")
	}
	span.SetAttributes(attribute.Int("response_items", len(roots)))

	return c.JSON(http.StatusOK, roots)
}

// GetScan returns the cached scan of a root, or null when there is none
func (h *Handler) GetScan(c echo.Context) error {
	ctx := c.Request().Context()
	tracer := otel.Tracer("api/handlers")
	ctx, span := tracer.Start(ctx, "GetScan")
	defer span.End()

	c.SetRequest(c.Request().WithContext(ctx))

	root, err := getRootFromQuery(c, "root")
	if err != nil {
		span.RecordError(err)
		return err
	}

	result, ok := h.engine.LoadCachedScan(ctx, root)
	span.SetAttributes(attribute.Bool("hit", ok))
	if !ok {
		return c.JSON(http.StatusOK, nil)
	}
	return c.JSON(http.StatusOK, result)
}

// ForgetScan deletes the cached scan and index of a root
func (h *Handler) ForgetScan(c echo.Context) error {
	ctx := c.Request().Context()
	tracer := otel.Tracer("api/handlers")
	ctx, span := tracer.Start(ctx, "ForgetScan")
	defer span.End()

	c.SetRequest(c.Request().WithContext(ctx))

	root, err := getRootFromQuery(c, "root")
	if err != nil {
		span.RecordError(err)
		return err
	}

	if err := h.engine.Forget(ctx, root); err != nil {
		span.RecordError(err)
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
