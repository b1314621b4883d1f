package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/mohammed-shakir/vtile-mapcss/internal/invalidation"
	"github.com/mohammed-shakir/vtile-mapcss/internal/invalidation/kafkapublisher"
)

func parseBBox(s string) (*invalidation.BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bbox %q: want X1,Y1,X2,Y2", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("bbox %q: %w", s, err)
		}
		v[i] = f
	}
	return &invalidation.BBox{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3], SRID: "EPSG:4326"}, nil
}

func buildEvent(cmd *cli.Command, now time.Time) (invalidation.Event, error) {
	ev := invalidation.Event{
		Version: 1,
		Op:      cmd.String("op"),
		Layer:   cmd.String("layer"),
		TS:      now.UTC(),
		Source:  "vtile-cli",
	}
	if s := cmd.String("bbox"); s != "" {
		bb, err := parseBBox(s)
		if err != nil {
			return ev, err
		}
		ev.BBox = bb
	}
	for _, a := range cmd.Args().Slice() {
		t, err := parseTiles([]string{a})
		if err != nil {
			return ev, err
		}
		ev.Tiles = append(ev.Tiles, invalidation.TileRef{Z: int(t[0].Z), X: int(t[0].X), Y: int(t[0].Y)})
	}
	return ev, ev.Validate()
}

func runPublish(ctx context.Context, cmd *cli.Command) error {
	ev, err := buildEvent(cmd, time.Now())
	if err != nil {
		return err
	}
	pub, err := kafkapublisher.New(strings.Split(cmd.String("brokers"), ","), cmd.String("topic"), loggerFrom(ctx))
	if err != nil {
		return err
	}
	defer func() { _ = pub.Close() }()

	part, off, err := pub.Publish(ctx, cmd.String("key"), ev)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.Root().Writer, "published to %s[%d]@%d\n", cmd.String("topic"), part, off)
	return nil
}
