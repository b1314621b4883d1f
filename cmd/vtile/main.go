// Command vtile renders, inspects and load tests MapCSS styled vector
// tiles from the command line.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/mohammed-shakir/vtile-mapcss/internal/logger"
)

var Version = "dev"

type ctxKey struct{}

func withLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

func loggerFrom(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

func initLogger(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	zl := logger.Build(logger.Config{
		Level:     cmd.String("log-level"),
		Console:   true,
		Service:   "vtile",
		Component: "cli",
	}, os.Stderr)
	return withLogger(ctx, logger.NewSlog(&zl)), nil
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:            "vtile",
		Usage:           "render and inspect MapCSS styled vector tiles",
		Version:         Version + " (" + runtime.Version() + ")",
		HideHelpCommand: true,
		Before:          initLogger,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "warn", Usage: "log `LEVEL` (debug, info, warn, error)"},
		},
		Commands: []*cli.Command{
			{
				Name:      "render",
				Usage:     "Renders tiles to PNG files",
				ArgsUsage: "SOURCE Z/X/Y...",
				Action:    runRender,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "style", Aliases: []string{"s"}, Required: true, Usage: "MapCSS stylesheet `FILE`"},
					&cli.IntFlag{Name: "size", Value: 256, Usage: "tile edge in pixels"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: ".", Usage: "output `DIR`"},
					&cli.IntFlag{Name: "jobs", Aliases: []string{"j"}, Value: runtime.NumCPU(), Usage: "tiles rendered in parallel"},
					&cli.BoolFlag{Name: "no-labels", Usage: "skip text labels"},
				},
			},
			{
				Name:      "info",
				Usage:     "Prints the layers and features of a tile",
				ArgsUsage: "SOURCE Z/X/Y",
				Action:    runInfo,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "style", Aliases: []string{"s"}, Usage: "also count styled items with `FILE`"},
				},
			},
			{
				Name:      "check",
				Usage:     "Parses stylesheets and reports the first error of each",
				ArgsUsage: "FILE...",
				Action:    runCheck,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "properties", Usage: "list the known properties and their value types"},
				},
			},
			{
				Name:      "publish",
				Usage:     "Publishes a tile invalidation event to Kafka",
				ArgsUsage: "[Z/X/Y...]",
				Action:    runPublish,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "brokers", Value: "localhost:9092", Sources: cli.EnvVars("KAFKA_BROKERS"), Usage: "comma separated broker list"},
					&cli.StringFlag{Name: "topic", Value: "tile-invalidation", Sources: cli.EnvVars("KAFKA_TOPIC")},
					&cli.StringFlag{Name: "key", Usage: "message key; events sharing a key are applied newest first"},
					&cli.StringFlag{Name: "op", Value: "update", Usage: "insert, update or delete"},
					&cli.StringFlag{Name: "layer"},
					&cli.StringFlag{Name: "bbox", Usage: "lon/lat box `X1,Y1,X2,Y2` instead of explicit tiles"},
				},
			},
			{
				Name:   "bench",
				Usage:  "Runs a zipf distributed tile load against a server",
				Action: runBench,
				Flags:  benchFlags(),
			},
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "vtile:", err)
		stop()
		os.Exit(1)
	}
}
