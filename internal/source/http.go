package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb/maptile"

	"github.com/mohammed-shakir/vtile-mapcss/internal/core/observability"
)

// MaxTileBytes caps how much of an upstream body is read.
const MaxTileBytes = 8 << 20

type HTTP struct {
	client   *http.Client
	template string
	logger   *slog.Logger
	headers  http.Header
	startNow func() time.Time // for tests
}

type HTTPOption func(*HTTP)

func WithLogger(l *slog.Logger) HTTPOption {
	return func(h *HTTP) { h.logger = l }
}

func WithHeader(k, v string) HTTPOption {
	return func(h *HTTP) { h.headers.Set(k, v) }
}

// NewHTTP takes a URL template with {z}, {x} and {y} placeholders.
func NewHTTP(client *http.Client, template string, opts ...HTTPOption) (*HTTP, error) {
	for _, p := range []string{"{z}", "{x}", "{y}"} {
		if !strings.Contains(template, p) {
			return nil, fmt.Errorf("tile url template %q lacks %s", template, p)
		}
	}
	if client == nil {
		client = http.DefaultClient
	}
	h := &HTTP{
		client:   client,
		template: template,
		logger:   slog.New(slog.DiscardHandler),
		headers:  http.Header{},
		startNow: time.Now,
	}
	for _, o := range opts {
		o(h)
	}
	return h, nil
}

func (h *HTTP) URL(t maptile.Tile) string {
	return strings.NewReplacer(
		"{z}", strconv.Itoa(int(t.Z)),
		"{x}", strconv.FormatUint(uint64(t.X), 10),
		"{y}", strconv.FormatUint(uint64(t.Y), 10),
	).Replace(h.template)
}

func (h *HTTP) Fetch(ctx context.Context, t maptile.Tile) ([]byte, error) {
	u := h.URL(t)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range h.headers {
		req.Header[k] = vs
	}
	req.Header.Set("Accept", "application/vnd.mapbox-vector-tile, application/x-protobuf, */*")

	start := h.startNow()
	resp, err := h.client.Do(req)
	if err != nil {
		observability.ObserveUpstreamLatency("http", "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("fetch %s: %w", u, err)
	}
	defer func() { _ = resp.Body.Close() }()

	dur := time.Since(start)
	h.logger.DebugContext(ctx, "upstream tile fetched",
		"url", u,
		"status", resp.StatusCode,
		"duration", dur.String())

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent:
		observability.ObserveUpstreamLatency("http", "not_found", dur.Seconds())
		return nil, fmt.Errorf("%w: %s", ErrNotFound, u)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		observability.ObserveUpstreamLatency("http", "error", dur.Seconds())
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, fmt.Errorf("upstream status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, MaxTileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(b) > MaxTileBytes {
		return nil, errors.New("upstream tile exceeds size limit")
	}
	observability.ObserveUpstreamLatency("http", "ok", dur.Seconds())
	return b, nil
}
