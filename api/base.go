package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/nrtkbb/disktree/app"
	"github.com/nrtkbb/disktree/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Handler struct {
	engine *app.Engine
	logger *slog.Logger
}

func NewHandler(engine *app.Engine, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{engine: engine, logger: logger}
}

// Register mounts every route on e.
func (h *Handler) Register(e *echo.Echo) {
	e.POST("/api/scan", h.ScanDirectory)
	e.GET("/api/roots", h.ListRoots)
	e.GET("/api/scans", h.GetScan)
	e.DELETE("/api/scans", h.ForgetScan)
	e.GET("/api/files", h.FindFiles)
	e.GET("/api/summary", h.GetSummary)
	e.GET("/api/duplicates", h.GetDuplicates)
}

// getRootFromQuery gets and validates a root path from query parameters
func getRootFromQuery(c echo.Context, name string) (string, error) {
	root := c.QueryParam(name)
	if root == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, name+" parameter is required")
	}

	span := trace.SpanFromContext(c.Request().Context())
	span.SetAttributes(attribute.String("root", root))
	return root, nil
}

// getCountFromQuery parses an optional non-negative count parameter.
func getCountFromQuery(c echo.Context, name string) (int, error) {
	s := c.QueryParam(name)
	if s == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid "+name)
	}

	span := trace.SpanFromContext(c.Request().Context())
	span.SetAttributes(attribute.Int(name, n))
	return n, nil
}

// httpError maps engine errors onto status codes.
func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, models.ErrIndexUnavailable):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrRootUnreadable):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrEngineClosed):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal error").SetInternal(err)
	}
}
