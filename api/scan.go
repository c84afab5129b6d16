package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nrtkbb/disktree/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// ScanDirectory scans a root and streams its progress as server-sent
// events, ending with exactly one of scan-result, scan-error or
// scan-cancelled. The scan is cancelled when the client goes away.
func (h *Handler) ScanDirectory(c echo.Context) error {
	ctx := c.Request().Context()
	tracer := otel.Tracer("api/handlers")
	ctx, span := tracer.Start(ctx, "ScanDirectory")
	defer span.End()

	c.SetRequest(c.Request().WithContext(ctx))

	path, err := getRootFromQuery(c, "path")
	if err != nil {
		span.RecordError(err)
		return err
	}

	scan, err := h.engine.StartScan(ctx, path)
	if err != nil {
		span.RecordError(err)
		return httpError(err)
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.WriteHeader(http.StatusOK)

	events := 0
	for p := range scan.Progress() {
		if err := writeEvent(w, EventProgress, p); err != nil {
			// The client is gone; stop the scan and drain.
			scan.Cancel()
			continue
		}
		events++
	}
	span.SetAttributes(attribute.Int("progress_events", events))

	result, err := scan.Wait()
	switch {
	case err == nil:
		span.SetAttributes(attribute.Int("files", len(result.Files)))
		return writeEvent(w, EventResult, result)
	case errors.Is(err, models.ErrCancelled):
		return writeEvent(w, EventCancelled, ScanCancelledEvent{Root: scan.Root(), FilesCount: scan.FilesCount()})
	default:
		span.RecordError(err)
		h.logger.Error("scan failed", "root", scan.Root(), "error", err)
		return writeEvent(w, EventError, ScanErrorEvent{Root: scan.Root(), Error: err.Error()})
	}
}

func writeEvent(w *echo.Response, name string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", name, err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	w.Flush()
	return nil
}
