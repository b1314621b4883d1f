package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type InvalidationCfg struct {
	Enabled bool
	Driver  string
	Topic   string
	Brokers string
	GroupID string
	// MinZoom and MaxZoom bound the zoom levels a bbox event expands to.
	MinZoom int
	MaxZoom int
}

type Config struct {
	Addr       string
	LogLevel   string
	LogFormat  string
	LogSampleN int

	// MetricsAddr serves /metrics on its own listener when set.
	MetricsEnabled bool
	MetricsAddr    string
	AdminToken     string
	TileMaxAge     time.Duration

	Stylesheet string
	// TileSource is a URL template with {z}/{x}/{y} or a directory path.
	TileSource   string
	TileSize     int
	TileSizes    []int
	MaxZoom      int
	FetchTimeout time.Duration

	RedisAddr      string
	CacheEnabled   bool
	CacheTTL       time.Duration
	CacheOpTimeout time.Duration
	MemCacheSize   int

	RenderWorkers int
	RenderQueue   int
	FontCacheSize int

	Invalidation InvalidationCfg
}

func FromEnv() Config {
	tileSize := getint("TILE_SIZE", 256)
	maxZoom := getint("MAX_ZOOM", 18)
	if maxZoom < 0 {
		maxZoom = 0
	}
	if maxZoom > 22 {
		maxZoom = 22
	}

	invMin := getint("INVALIDATION_MIN_ZOOM", 0)
	invMax := getint("INVALIDATION_MAX_ZOOM", maxZoom)
	if invMin < 0 {
		invMin = 0
	}
	if invMax > maxZoom {
		invMax = maxZoom
	}
	if invMin > invMax {
		invMin, invMax = 0, maxZoom
	}

	return Config{
		Addr:       getenv("ADDR", ":8090"),
		LogLevel:   getenv("LOG_LEVEL", "info"),
		LogFormat:  getenv("LOG_FORMAT", "json"),
		LogSampleN: getint("LOG_SAMPLE_N", 0),

		MetricsEnabled: getbool("METRICS_ENABLED", true),
		MetricsAddr:    getenv("METRICS_ADDR", ""),
		AdminToken:     os.Getenv("ADMIN_TOKEN"),
		TileMaxAge:     getduration("TILE_MAX_AGE", time.Hour),

		Stylesheet:   getenv("STYLESHEET", "style.mapcss"),
		TileSource:   getenv("TILE_SOURCE", "http://localhost:8080/tiles/{z}/{x}/{y}.mvt"),
		TileSize:     tileSize,
		TileSizes:    parseIntList(getenv("TILE_SIZES", ""), tileSize),
		MaxZoom:      maxZoom,
		FetchTimeout: getduration("FETCH_TIMEOUT", 5*time.Second),

		RedisAddr:      getenv("REDIS_ADDR", "localhost:6379"),
		CacheEnabled:   getbool("CACHE_ENABLED", true),
		CacheTTL:       getduration("CACHE_TTL", 10*time.Minute),
		CacheOpTimeout: getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),
		MemCacheSize:   getint("MEM_CACHE_SIZE", 1024),

		RenderWorkers: getint("RENDER_WORKERS", 8),
		RenderQueue:   getint("RENDER_QUEUE", 64),
		FontCacheSize: getint("FONT_CACHE_SIZE", 64),

		Invalidation: InvalidationCfg{
			Enabled: getbool("INVALIDATION_ENABLED", false),
			Driver:  getenv("INVALIDATION_DRIVER", "none"),
			Topic:   getenv("KAFKA_TOPIC", "tile-invalidation"),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			GroupID: getenv("KAFKA_GROUP_ID", "tile-invalidator"),
			MinZoom: invMin,
			MaxZoom: invMax,
		},
	}
}

// AllowsSize reports whether size is one of the configured tile sizes.
func (c Config) AllowsSize(size int) bool {
	for _, s := range c.TileSizes {
		if s == size {
			return true
		}
	}
	return false
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// parse "256,512" into a list, always containing def
func parseIntList(s string, def int) []int {
	out := []int{def}
	for p := range strings.SplitSeq(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 || n == def {
			continue
		}
		out = append(out, n)
	}
	return out
}
