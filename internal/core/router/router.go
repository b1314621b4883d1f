// Package router maps the tile HTTP API onto the tile service.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/vtile-mapcss/internal/core/health"
	"github.com/mohammed-shakir/vtile-mapcss/internal/core/middleware"
	"github.com/mohammed-shakir/vtile-mapcss/internal/invalidation"
	"github.com/mohammed-shakir/vtile-mapcss/internal/mapcss"
	"github.com/mohammed-shakir/vtile-mapcss/internal/mvt"
	"github.com/mohammed-shakir/vtile-mapcss/internal/source"
	"github.com/mohammed-shakir/vtile-mapcss/internal/tileservice"
)

// TileService is what the handlers need from the rendering service.
type TileService interface {
	Render(ctx context.Context, req tileservice.Request) (tileservice.Result, error)
	Info(ctx context.Context, z, x, y int) (string, error)
	Reload(ctx context.Context) (int, error)
}

// EventProcessor applies a JSON invalidation event.
type EventProcessor interface {
	ProcessJSON(ctx context.Context, source string, body []byte) (int, error)
}

type Deps struct {
	Logger  *slog.Logger
	Tiles   TileService
	Metrics http.Handler
	Ready   map[string]health.ReadinessReporter
	// MaxAge is advertised in Cache-Control for rendered tiles.
	MaxAge time.Duration
	// Invalidator serves POST /admin/invalidate when set.
	Invalidator EventProcessor
	// AdminToken guards the admin routes when set.
	AdminToken string
}

func New(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.New(slog.DiscardHandler)
	}
	r := chi.NewRouter()
	r.Use(middleware.Recover(d.Logger))
	r.Use(middleware.Logging(d.Logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(d.Ready))
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}
	r.Get("/tiles/{z}/{x}/{y}.png", HandleTile(d.Logger, d.Tiles, d.MaxAge))
	r.Get("/tiles/{z}/{x}/{y}/info", HandleInfo(d.Logger, d.Tiles))
	r.Post("/admin/reload", HandleReload(d.Logger, d.Tiles, d.AdminToken))
	if d.Invalidator != nil {
		r.Post("/admin/invalidate", HandleInvalidate(d.Logger, d.Invalidator, d.AdminToken))
	}
	return r
}

func parseZXY(r *http.Request) (z, x, y int, err error) {
	vals := [3]int{}
	for i, name := range []string{"z", "x", "y"} {
		v, perr := strconv.Atoi(chi.URLParam(r, name))
		if perr != nil {
			return 0, 0, 0, fmt.Errorf("%w: %s=%q", source.ErrInvalidTile, name, chi.URLParam(r, name))
		}
		vals[i] = v
	}
	return vals[0], vals[1], vals[2], nil
}

func parseSize(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("size"))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: size=%q", tileservice.ErrBadSize, raw)
	}
	return n, nil
}

// statusFor maps service errors onto HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, source.ErrInvalidTile), errors.Is(err, tileservice.ErrBadSize):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, tileservice.ErrClosed), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	case errors.Is(err, mvt.ErrTileDecode), errors.Is(err, tileservice.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func etag(res tileservice.Result, req tileservice.Request) string {
	return fmt.Sprintf(`"%016x-%d-%d-%d-%d"`, res.StyleHash, req.Z, req.X, req.Y, req.Size)
}

func HandleTile(logger *slog.Logger, svc TileService, maxAge time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		z, x, y, err := parseZXY(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		size, err := parseSize(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		req := tileservice.Request{Z: z, X: x, Y: y, Size: size}
		res, err := svc.Render(r.Context(), req)
		if err != nil {
			code := statusFor(err)
			if code >= 500 {
				logger.ErrorContext(r.Context(), "tile request failed", "z", z, "x", x, "y", y, "err", err)
			}
			http.Error(w, err.Error(), code)
			return
		}

		tag := etag(res, req)
		w.Header().Set("ETag", tag)
		w.Header().Set("X-Cache", res.Served)
		if maxAge > 0 {
			w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(maxAge.Seconds())))
		}
		if match := r.Header.Get("If-None-Match"); match != "" && match == tag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", strconv.Itoa(len(res.PNG)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(res.PNG)
	}
}

func HandleInfo(logger *slog.Logger, svc TileService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		z, x, y, err := parseZXY(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		out, err := svc.Info(r.Context(), z, x, y)
		if err != nil {
			code := statusFor(err)
			if code >= 500 {
				logger.WarnContext(r.Context(), "tile info failed", "z", z, "x", x, "y", y, "err", err)
			}
			http.Error(w, err.Error(), code)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(out))
	}
}

type reloadResponse struct {
	Status    string `json:"status"`
	Selectors int    `json:"selectors,omitempty"`
	Error     string `json:"error,omitempty"`
	Line      int    `json:"line,omitempty"`
	Column    int    `json:"column,omitempty"`
}

func HandleReload(logger *slog.Logger, svc TileService, token string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r, token) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		n, err := svc.Reload(r.Context())
		out := reloadResponse{Status: "ok", Selectors: n}
		code := http.StatusOK
		if err != nil {
			out = reloadResponse{Status: "error", Error: err.Error()}
			code = http.StatusInternalServerError
			var pe *mapcss.ParseError
			if errors.As(err, &pe) {
				out.Line, out.Column = pe.Line, pe.Column
				code = http.StatusUnprocessableEntity
			}
			logger.WarnContext(r.Context(), "reload rejected", "err", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(out)
	}
}

func authorized(r *http.Request, token string) bool {
	return token == "" || r.Header.Get("Authorization") == "Bearer "+token
}

// max accepted invalidation body
const maxEventBytes = 1 << 20

type invalidateResponse struct {
	Status string `json:"status"`
	Keys   int    `json:"keys"`
	Error  string `json:"error,omitempty"`
}

func HandleInvalidate(logger *slog.Logger, proc EventProcessor, token string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r, token) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBytes+1))
		if err != nil {
			http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
			return
		}
		if len(body) > maxEventBytes {
			http.Error(w, "event too large", http.StatusRequestEntityTooLarge)
			return
		}
		n, err := proc.ProcessJSON(r.Context(), "http", body)
		out := invalidateResponse{Status: "ok", Keys: n}
		code := http.StatusOK
		if err != nil {
			out = invalidateResponse{Status: "error", Error: err.Error()}
			switch {
			case errors.Is(err, invalidation.ErrInvalidEvent):
				code = http.StatusBadRequest
			case errors.Is(err, invalidation.ErrTooManyTiles):
				code = http.StatusUnprocessableEntity
			default:
				code = http.StatusInternalServerError
				logger.ErrorContext(r.Context(), "invalidation failed", "err", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(out)
	}
}
