package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	cli "github.com/urfave/cli/v3"
)

func benchFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "target", Value: "http://localhost:8090", Usage: "tile server base `URL`"},
		&cli.IntFlag{Name: "concurrency", Value: 32, Usage: "concurrent workers"},
		&cli.DurationFlag{Name: "duration", Value: 60 * time.Second, Usage: "test duration"},
		&cli.Float64Flag{Name: "zipf-s", Value: 1.3, Usage: "zipf parameter s (>1)"},
		&cli.Float64Flag{Name: "zipf-v", Value: 1.0, Usage: "zipf parameter v (>=1)"},
		&cli.IntFlag{Name: "tiles", Value: 512, Usage: "distinct tiles in the pool"},
		&cli.IntFlag{Name: "min-zoom", Value: 10},
		&cli.IntFlag{Name: "max-zoom", Value: 15},
		&cli.IntFlag{Name: "size", Usage: "tile size query parameter; server default when 0"},
		&cli.StringFlag{Name: "out", Value: "results/bench", Usage: "output file `PREFIX` (JSON/CSV)"},
		&cli.DurationFlag{Name: "timeout", Value: 10 * time.Second, Usage: "per-request timeout"},
	}
}

// hot spots the pool concentrates on
var hotCenters = []orb.Point{
	{18.0686, 59.3293}, // Stockholm
	{11.9746, 57.7089}, // Göteborg
	{13.0038, 55.6050}, // Malmö
	{22.1547, 65.5848}, // Luleå
}

// makeTilePool mixes tiles around the hot centers with random tiles over
// Sweden. Hot tiles come first so low zipf ranks hit them.
func makeTilePool(count, minZoom, maxZoom int, r *rand.Rand) []maptile.Tile {
	if maxZoom < minZoom {
		minZoom, maxZoom = maxZoom, minZoom
	}
	zoom := func() maptile.Zoom { return maptile.Zoom(minZoom + r.Intn(maxZoom-minZoom+1)) }

	pool := make([]maptile.Tile, 0, count)
	seen := make(map[maptile.Tile]struct{}, count)
	add := func(t maptile.Tile) {
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		pool = append(pool, t)
	}

	hot := max(8, count/4)
	for i := 0; len(pool) < min(hot, count) && i < hot*4; i++ {
		c := hotCenters[i%len(hotCenters)]
		p := orb.Point{c[0] + (r.Float64()-0.5)*0.2, c[1] + (r.Float64()-0.5)*0.2}
		add(maptile.At(p, zoom()))
	}
	for i := 0; len(pool) < count && i < count*8; i++ {
		p := orb.Point{11 + r.Float64()*(24-11), 55 + r.Float64()*(66-55)}
		add(maptile.At(p, zoom()))
	}
	return pool
}

type sample struct {
	Timestamp time.Time
	Latency   time.Duration
	Status    int
	Cache     string
	ErrorMsg  string
	Tile      maptile.Tile
}

type benchSummary struct {
	StartTime     time.Time      `json:"start"`
	EndTime       time.Time      `json:"end"`
	DurationSec   float64        `json:"duration_sec"`
	TotalRequests int64          `json:"total"`
	SuccessCount  int64          `json:"success"`
	ErrorCount    int64          `json:"errors"`
	ThroughputRPS float64        `json:"throughput_rps"`
	P50Ms         float64        `json:"p50_ms"`
	P95Ms         float64        `json:"p95_ms"`
	P99Ms         float64        `json:"p99_ms"`
	CacheOutcomes map[string]int `json:"cache_outcomes"`
	Concurrency   int            `json:"concurrency"`
	ZipfS         float64        `json:"zipf_s"`
	ZipfV         float64        `json:"zipf_v"`
	Tiles         int            `json:"tiles"`
	TargetURL     string         `json:"target"`
}

type aggregate struct {
	total, success, errors int64
	latMs                  []float64
	cache                  map[string]int
}

func tileURL(base string, t maptile.Tile, size int) string {
	u := fmt.Sprintf("%s/tiles/%d/%d/%d.png", strings.TrimRight(base, "/"), t.Z, t.X, t.Y)
	if size > 0 {
		u += "?size=" + strconv.Itoa(size)
	}
	return u
}

func runBench(ctx context.Context, cmd *cli.Command) error {
	log := loggerFrom(ctx).With("cmd", "bench")
	concurrency := max(1, cmd.Int("concurrency"))
	target, size := cmd.String("target"), cmd.Int("size")

	zs, zv := cmd.Float64("zipf-s"), cmd.Float64("zipf-v")
	if zs <= 1 || zv < 1 {
		return fmt.Errorf("zipf parameters need s>1 and v>=1, got s=%v v=%v", zs, zv)
	}

	seed := time.Now().UnixNano()
	pool := makeTilePool(cmd.Int("tiles"), cmd.Int("min-zoom"), cmd.Int("max-zoom"), rand.New(rand.NewSource(seed)))
	if len(pool) == 0 {
		return fmt.Errorf("empty tile pool")
	}

	prefix := fmt.Sprintf("%s_%s", cmd.String("out"), time.Now().UTC().Format("20060102_150405Z"))
	if err := os.MkdirAll(filepath.Dir(prefix), 0o750); err != nil {
		return fmt.Errorf("mkdir results: %w", err)
	}
	csvFile, err := os.Create(filepath.Clean(prefix + "_samples.csv"))
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer func() { _ = csvFile.Close() }()

	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 4 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			MaxIdleConns:          1024,
			MaxIdleConnsPerHost:   256,
			IdleConnTimeout:       90 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
		Timeout: cmd.Duration("timeout"),
	}

	runCtx, cancel := context.WithTimeout(ctx, cmd.Duration("duration"))
	defer cancel()

	samples := make(chan sample, 4096)
	results := make(chan aggregate, 1)
	go func() { results <- collect(samples, csv.NewWriter(csvFile)) }()

	start := time.Now()
	log.Info("bench start", "target", target, "duration", cmd.Duration("duration"),
		"concurrency", concurrency, "tiles", len(pool))

	var wg sync.WaitGroup
	for id := range concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rw := rand.New(rand.NewSource(seed + int64(id) + 1))
			zipf := rand.NewZipf(rw, zs, zv, uint64(len(pool)-1))
			for runCtx.Err() == nil {
				t := pool[zipf.Uint64()]
				s := fetchOnce(runCtx, httpClient, tileURL(target, t, size))
				s.Tile = t
				select {
				case samples <- s:
				case <-runCtx.Done():
					return
				}
			}
		}()
	}
	wg.Wait()
	close(samples)

	agg := <-results
	end := time.Now()
	elapsed := end.Sub(start).Seconds()
	sort.Float64s(agg.latMs)

	sum := benchSummary{
		StartTime:     start.UTC(),
		EndTime:       end.UTC(),
		DurationSec:   elapsed,
		TotalRequests: agg.total,
		SuccessCount:  agg.success,
		ErrorCount:    agg.errors,
		ThroughputRPS: float64(agg.total) / elapsed,
		P50Ms:         percentile(agg.latMs, 50),
		P95Ms:         percentile(agg.latMs, 95),
		P99Ms:         percentile(agg.latMs, 99),
		CacheOutcomes: agg.cache,
		Concurrency:   concurrency,
		ZipfS:         zs,
		ZipfV:         zv,
		Tiles:         len(pool),
		TargetURL:     target,
	}
	jsonFile, err := os.Create(filepath.Clean(prefix + "_summary.json"))
	if err != nil {
		return fmt.Errorf("open summary: %w", err)
	}
	enc := json.NewEncoder(jsonFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sum); err != nil {
		_ = jsonFile.Close()
		return err
	}
	if err := jsonFile.Close(); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.Root().Writer,
		"done: total=%d succ=%d err=%d thr=%.2f rps p50=%.1fms p95=%.1fms p99=%.1fms cache=%v\n",
		sum.TotalRequests, sum.SuccessCount, sum.ErrorCount, sum.ThroughputRPS, sum.P50Ms, sum.P95Ms, sum.P99Ms, sum.CacheOutcomes)
	return nil
}

func fetchOnce(ctx context.Context, c *http.Client, u string) sample {
	s := sample{Timestamp: time.Now()}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		s.ErrorMsg = err.Error()
		return s
	}
	resp, err := c.Do(req)
	s.Latency = time.Since(s.Timestamp)
	if err != nil {
		s.ErrorMsg = err.Error()
		return s
	}
	s.Status = resp.StatusCode
	s.Cache = resp.Header.Get("X-Cache")
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.ErrorMsg = fmt.Sprintf("status=%d", resp.StatusCode)
	}
	return s
}

func collect(in <-chan sample, w *csv.Writer) aggregate {
	agg := aggregate{cache: map[string]int{}}
	_ = w.Write([]string{"timestamp", "latency_ms", "status", "cache", "error", "tile"})
	for s := range in {
		agg.total++
		ms := float64(s.Latency.Microseconds()) / 1000.0
		if s.ErrorMsg == "" {
			agg.success++
			agg.latMs = append(agg.latMs, ms)
			agg.cache[s.Cache]++
		} else {
			agg.errors++
		}
		_ = w.Write([]string{
			s.Timestamp.UTC().Format(time.RFC3339Nano),
			strconv.FormatFloat(ms, 'f', 3, 64),
			strconv.Itoa(s.Status),
			s.Cache,
			s.ErrorMsg,
			fmt.Sprintf("%d/%d/%d", s.Tile.Z, s.Tile.X, s.Tile.Y),
		})
	}
	w.Flush()
	return agg
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	k := (p / 100.0) * float64(len(sorted)-1)
	f := math.Floor(k)
	i := int(f)
	if i >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	d := k - f
	return sorted[i]*(1-d) + sorted[i+1]*d
}
