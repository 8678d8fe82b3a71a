// Package api exposes health, metrics and a manual check over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"PriceSentinel/internal/model"
	"PriceSentinel/internal/monitor"
)

const requestIDHeader = "X-Request-ID"

// Checker runs a manual cycle.
type Checker interface {
	RunManual(ctx context.Context) (*model.CycleResult, error)
	Busy() bool
}

// Handler serves the HTTP endpoints.
type Handler struct {
	checker Checker
}

// NewHandler creates a new Handler.
func NewHandler(c Checker) *Handler {
	return &Handler{checker: c}
}

// Healthz reports liveness and whether a cycle is running.
func (h *Handler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"busy":   h.checker.Busy(),
	})
}

// Check runs a manual cycle and returns its result. A running cycle yields
// 409 Conflict.
func (h *Handler) Check(c echo.Context) error {
	res, err := h.checker.RunManual(c.Request().Context())
	switch {
	case errors.Is(err, monitor.ErrCycleInProgress):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, res)
}

// NewServer wires the routes and middleware onto a fresh echo instance.
func NewServer(c Checker, log *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(recovery(log), requestLog(log))

	h := NewHandler(c)
	e.GET("/healthz", h.Healthz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.POST("/api/v1/check", h.Check)
	return e
}

func requestLog(log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			reqID := c.Request().Header.Get(requestIDHeader)
			if reqID == "" {
				reqID = uuid.NewString()
			}
			c.Response().Header().Set(requestIDHeader, reqID)

			err := next(c)

			log.Info("request",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", reqID,
			)
			return err
		}
	}
}

func recovery(log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					buf := make([]byte, 4096)
					n := runtime.Stack(buf, false)
					log.Error("panic recovered",
						"error", fmt.Sprint(r),
						"path", c.Request().URL.Path,
						"stack", string(buf[:n]),
					)
					err = c.JSON(http.StatusInternalServerError, map[string]string{
						"error": "internal server error",
					})
				}
			}()
			return next(c)
		}
	}
}
