package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/metroroute/internal/common/logger"
	"github.com/metroroute/internal/topology/loader"
	"github.com/metroroute/internal/topology/parser"
	"github.com/metroroute/pkg/metro"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("routequery", flag.ContinueOnError)
	fs.SetOutput(stderr)

	file := fs.String("file", os.Getenv("TOPOLOGY_FILE"), "topology JSON or GTFS zip")
	linesFile := fs.String("lines", os.Getenv("TOPOLOGY_LINES_FILE"), "optional line membership table")
	mode := fs.String("mode", "both", "fewest-stops, minimum-time or both")
	from := fs.String("from", "", "start station")
	to := fs.String("to", "", "target station")
	verbose := fs.Bool("v", false, "log load warnings")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *file == "" || *from == "" || *to == "" {
		fmt.Fprintln(stderr, "routequery: -file, -from and -to are required")
		fs.Usage()
		return 2
	}
	if *mode != "both" && *mode != "fewest-stops" && *mode != "minimum-time" {
		fmt.Fprintf(stderr, "routequery: unknown mode %q\n", *mode)
		return 2
	}

	log := logger.Nop()
	if *verbose {
		cfg := logger.DefaultConfig()
		cfg.File = false
		cfg.Console = false
		cfg.Level = zerolog.WarnLevel
		log = logger.NewFromConfig(cfg)
	}

	snap, _, err := loader.New(loader.Config{LinesFile: *linesFile}, log).Load(context.Background(), loader.FileSource{
		Parser: parser.New(log),
		Path:   *file,
	})
	if err != nil {
		fmt.Fprintln(stderr, "routequery:", err)
		return 1
	}

	status := 0
	if *mode != "minimum-time" {
		path, err := metro.FewestStops(snap.Network, *from, *to)
		if err != nil {
			status = report(stderr, "fewest stops", err)
		} else {
			fmt.Fprintf(stdout, "fewest stops: %s (%d stops)\n", strings.Join(path, " -> "), len(path)-1)
		}
	}
	if *mode != "fewest-stops" {
		route, err := metro.MinimumTime(snap.Network, *from, *to)
		if err != nil {
			status = report(stderr, "minimum time", err)
		} else {
			fmt.Fprintf(stdout, "minimum time: %s (%d min)\n", strings.Join(route.Stations, " -> "), route.Minutes)
		}
	}
	return status
}

func report(w io.Writer, label string, err error) int {
	var notFound *metro.StationNotFoundError
	switch {
	case errors.As(err, &notFound):
		fmt.Fprintf(w, "%s: station %s does not exist\n", label, notFound.Name)
	case errors.Is(err, metro.ErrNoRoute):
		fmt.Fprintf(w, "%s: no route\n", label)
	default:
		fmt.Fprintf(w, "%s: %v\n", label, err)
	}
	return 1
}
