package main

import (
	"context"
	"errors"
	"fmt"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"

	"github.com/mohammed-shakir/vtile-mapcss/internal/mapcss"
)

func runCheck(_ context.Context, cmd *cli.Command) error {
	w := cmd.Root().Writer
	if cmd.Bool("properties") {
		for _, name := range mapcss.Properties() {
			typ, _ := mapcss.PropertyType(name)
			_, _ = fmt.Fprintf(w, "%-20s %s\n", name, typ)
		}
		if cmd.NArg() == 0 {
			return nil
		}
	}
	if cmd.NArg() == 0 {
		return errors.New("usage: vtile check [--properties] FILE...")
	}
	var errs error
	for _, path := range cmd.Args().Slice() {
		sheet, err := mapcss.LoadFile(path)
		if err != nil {
			var pe *mapcss.ParseError
			if errors.As(err, &pe) {
				_, _ = fmt.Fprintf(w, "%s:%d:%d: %s\n", path, pe.Line, pe.Column, pe.Msg)
			} else {
				_, _ = fmt.Fprintf(w, "%s: %v\n", path, err)
			}
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		_, _ = fmt.Fprintf(w, "%s: ok, %d selectors, hash %016x\n", path, sheet.NumStyles(), sheet.Hash())
	}
	return errs
}
