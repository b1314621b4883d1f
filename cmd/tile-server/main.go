package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mohammed-shakir/vtile-mapcss/internal/cache"
	"github.com/mohammed-shakir/vtile-mapcss/internal/cache/memstore"
	"github.com/mohammed-shakir/vtile-mapcss/internal/cache/redisstore"
	"github.com/mohammed-shakir/vtile-mapcss/internal/core/config"
	"github.com/mohammed-shakir/vtile-mapcss/internal/core/health"
	"github.com/mohammed-shakir/vtile-mapcss/internal/core/httpclient"
	"github.com/mohammed-shakir/vtile-mapcss/internal/core/observability"
	"github.com/mohammed-shakir/vtile-mapcss/internal/core/router"
	"github.com/mohammed-shakir/vtile-mapcss/internal/core/server"
	"github.com/mohammed-shakir/vtile-mapcss/internal/invalidation"
	"github.com/mohammed-shakir/vtile-mapcss/internal/invalidation/kafkaconsumer"
	"github.com/mohammed-shakir/vtile-mapcss/internal/logger"
	"github.com/mohammed-shakir/vtile-mapcss/internal/mapcss"
	"github.com/mohammed-shakir/vtile-mapcss/internal/metrics"
	"github.com/mohammed-shakir/vtile-mapcss/internal/render/ggcanvas"
	"github.com/mohammed-shakir/vtile-mapcss/internal/source"
	"github.com/mohammed-shakir/vtile-mapcss/internal/tileservice"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	styleFlag := flag.String("style", "", "stylesheet path (overrides STYLESHEET)")
	sourceFlag := flag.String("source", "", "tile source URL template or directory (overrides TILE_SOURCE)")
	flag.Parse()

	cfg := config.FromEnv()
	if *styleFlag != "" {
		cfg.Stylesheet = strings.TrimSpace(*styleFlag)
	}
	if *sourceFlag != "" {
		cfg.TileSource = strings.TrimSpace(*sourceFlag)
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.EqualFold(cfg.LogFormat, "console"),
		SampleN:   cfg.LogSampleN,
		Service:   "vtile",
		Component: "tile-server",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	prov := metrics.Init(metrics.Config{
		Enabled: cfg.MetricsEnabled,
		Addr:    cfg.MetricsAddr,
		Build: metrics.BuildInfo{
			Version:   Version,
			Revision:  os.Getenv("BUILD_REVISION"),
			Branch:    os.Getenv("BUILD_BRANCH"),
			BuildDate: os.Getenv("BUILD_DATE"),
		},
	})
	if err := observability.Init(prov.Registerer()); err != nil {
		appLog.Error("metrics registration failed", "err", err)
		return 1
	}
	observability.ExposeBuildInfo(Version)
	go func() {
		if err := prov.Serve(ctx, appLog); err != nil {
			appLog.Error("metrics server exited", "err", err)
		}
	}()

	appLog.Info("starting tile server",
		"addr", cfg.Addr,
		"version", Version,
		"source", cfg.TileSource,
		"stylesheet", cfg.Stylesheet,
		"sizes", cfg.TileSizes)

	sheet, err := mapcss.LoadFile(cfg.Stylesheet)
	if err != nil {
		observability.ObserveStylesheetLoad(err, 0)
		appLog.Error("failed to load stylesheet", "path", cfg.Stylesheet, "err", err)
		return 1
	}

	src, err := source.Open(cfg.TileSource,
		httpclient.NewOutbound(httpclient.WithTimeout(cfg.FetchTimeout)),
		source.WithLogger(appLog))
	if err != nil {
		appLog.Error("failed to open tile source", "err", err)
		return 1
	}

	tiers := []cache.Tier{{Name: "memory", Store: memstore.New(cfg.MemCacheSize, cfg.CacheTTL)}}
	if cfg.CacheEnabled {
		rc, err := redisstore.New(ctx, cfg.RedisAddr)
		if err != nil {
			appLog.Error("failed to connect to redis", "addr", cfg.RedisAddr, "err", err)
			return 1
		}
		defer func() { _ = rc.Close() }()
		tiers = append(tiers, cache.Tier{Name: "redis", Store: rc})
	}

	shaper, err := ggcanvas.NewShaper(cfg.FontCacheSize)
	if err != nil {
		appLog.Error("failed to load fonts", "err", err)
		return 1
	}

	svc, err := tileservice.New(cfg, appLog, src, sheet,
		tileservice.WithCache(cache.NewTiered(appLog, tiers...)),
		tileservice.WithShaper(shaper))
	if err != nil {
		appLog.Error("tile service setup failed", "err", err)
		return 1
	}
	svc.Start(ctx)
	defer svc.Close()

	ready := map[string]health.ReadinessReporter{"renderer": svc}
	proc := invalidation.NewProcessor(svc, invalidation.Range{
		MinZoom: cfg.Invalidation.MinZoom,
		MaxZoom: cfg.Invalidation.MaxZoom,
	}, appLog.With("component", "invalidation"))

	if cfg.Invalidation.Enabled && strings.EqualFold(cfg.Invalidation.Driver, "kafka") {
		kc := kafkaconsumer.New(kafkaconsumer.FromConfig(cfg.Invalidation), appLog.With("component", "kafka_consumer"), proc)
		ready["invalidation"] = kc
		go func() {
			if err := kc.Start(ctx); err != nil {
				appLog.Error("kafka consumer stopped", "err", err)
			}
		}()
	}

	go reloadOnHangup(ctx, appLog, svc)

	var metricsHandler = prov.Handler()
	if cfg.MetricsAddr != "" || !cfg.MetricsEnabled {
		metricsHandler = nil
	}
	handler := router.New(router.Deps{
		Logger:      appLog,
		Tiles:       svc,
		Metrics:     metricsHandler,
		Ready:       ready,
		MaxAge:      cfg.TileMaxAge,
		Invalidator: proc,
		AdminToken:  cfg.AdminToken,
	})

	if err := server.Run(ctx, cfg, appLog, handler); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

// reloadOnHangup swaps the stylesheet on SIGHUP.
func reloadOnHangup(ctx context.Context, log *slog.Logger, svc *tileservice.Service) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if n, err := svc.Reload(ctx); err != nil {
				log.Warn("stylesheet reload failed", "err", err)
			} else {
				log.Info("stylesheet reloaded", "selectors", n)
			}
		}
	}
}
