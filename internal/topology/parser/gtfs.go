package parser

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/metroroute/pkg/topology/models"
)

type gtfsStop struct {
	StopID string `csv:"stop_id"`
	Name   string `csv:"stop_name"`
	Lat    string `csv:"stop_lat"`
	Lon    string `csv:"stop_lon"`
}

type gtfsRoute struct {
	RouteID   string `csv:"route_id"`
	ShortName string `csv:"route_short_name"`
	LongName  string `csv:"route_long_name"`
}

type gtfsTrip struct {
	TripID  string `csv:"trip_id"`
	RouteID string `csv:"route_id"`
}

type gtfsStopTime struct {
	TripID        string `csv:"trip_id"`
	StopID        string `csv:"stop_id"`
	StopSequence  int    `csv:"stop_sequence"`
	ArrivalTime   string `csv:"arrival_time"`
	DepartureTime string `csv:"departure_time"`
}

type undirectedLink struct {
	a, b    string
	minutes int
}

// ParseGTFS derives a station graph from a GTFS static feed. Stops become
// stations keyed by stop_name; consecutive stops of every trip become
// connections weighted by whole minutes between departure and next arrival.
func (p *Parser) ParseGTFS(ctx context.Context, r io.ReaderAt, size int64, callbacks ParseCallbacks) error {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return fmt.Errorf("opening gtfs zip: %w", err)
	}

	files := make(map[string]*zip.File)
	for _, f := range zr.File {
		files[path.Base(f.Name)] = f
	}

	var (
		stops     []gtfsStop
		routes    []gtfsRoute
		trips     []gtfsTrip
		stopTimes []gtfsStopTime
	)

	// Parse order matters only for the required check below.
	required := []struct {
		name string
		out  interface{}
	}{
		{"stops.txt", &stops},
		{"routes.txt", &routes},
		{"trips.txt", &trips},
		{"stop_times.txt", &stopTimes},
	}
	for _, req := range required {
		if err := ctx.Err(); err != nil {
			return err
		}
		f, ok := files[req.name]
		if !ok {
			return fmt.Errorf("gtfs feed is missing %s", req.name)
		}
		if err := p.unmarshalFile(f, req.out); err != nil {
			return fmt.Errorf("parsing %s: %w", req.name, err)
		}
	}

	routeLabel := make(map[string]string, len(routes))
	for _, rt := range routes {
		routeLabel[rt.RouteID] = firstNonEmpty(rt.ShortName, rt.LongName, rt.RouteID)
	}
	tripRoute := make(map[string]string, len(trips))
	for _, t := range trips {
		tripRoute[t.TripID] = t.RouteID
	}
	stopName := make(map[string]string, len(stops))
	for _, s := range stops {
		stopName[s.StopID] = strings.TrimSpace(s.Name)
	}

	byTrip := make(map[string][]gtfsStopTime)
	for _, st := range stopTimes {
		byTrip[st.TripID] = append(byTrip[st.TripID], st)
	}
	tripIDs := make([]string, 0, len(byTrip))
	for id := range byTrip {
		tripIDs = append(tripIDs, id)
	}
	sort.Strings(tripIDs)

	var stats Stats
	stopLine := make(map[string]string)
	seen := make(map[undirectedLink]bool)
	var links []models.ConnectionRecord

	for _, tripID := range tripIDs {
		seq := byTrip[tripID]
		sort.SliceStable(seq, func(i, j int) bool { return seq[i].StopSequence < seq[j].StopSequence })

		line := routeLabel[tripRoute[tripID]]
		for i, st := range seq {
			name := stopName[st.StopID]
			if name != "" && line != "" {
				if _, ok := stopLine[name]; !ok {
					stopLine[name] = line
				}
			}
			if i == 0 {
				continue
			}

			prev := seq[i-1]
			from, to := stopName[prev.StopID], name
			if from == "" || to == "" || from == to {
				if from != to {
					stats.SkippedConnections++
				}
				continue
			}

			minutes, ok := travelMinutes(prev, st)
			if !ok {
				stats.SkippedConnections++
				p.logger.Debug("Skipping stop pair without usable times",
					"trip_id", tripID, "from", from, "to", to)
				continue
			}

			key := undirectedLink{a: from, b: to, minutes: minutes}
			if key.a > key.b {
				key.a, key.b = key.b, key.a
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			links = append(links, models.ConnectionRecord{From: from, To: to, Minutes: minutes})
		}
	}

	for i := range stops {
		s := stops[i]
		name := strings.TrimSpace(s.Name)
		if name == "" {
			stats.SkippedStations++
			continue
		}
		record := &models.StationRecord{
			ID:   firstNonEmpty(s.StopID, name),
			Name: name,
			Line: stopLine[name],
			Lat:  parseOptionalFloat(s.Lat),
			Lon:  parseOptionalFloat(s.Lon),
		}
		if err := p.emitStation(callbacks, record, &stats); err != nil {
			return err
		}
	}

	for i := range links {
		if i%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := p.emitConnection(callbacks, &links[i], &stats); err != nil {
			return err
		}
	}

	return p.complete(callbacks, "gtfs", stats)
}

func (p *Parser) unmarshalFile(f *zip.File, out interface{}) error {
	p.logger.Debug("Parsing file", "name", f.Name, "size", f.UncompressedSize64)

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer rc.Close()

	reader := csv.NewReader(skipBOM(rc))
	reader.FieldsPerRecord = -1 // optional columns may be absent on some rows
	reader.TrimLeadingSpace = true

	return gocsv.UnmarshalCSV(reader, out)
}

// travelMinutes measures from the previous departure (or arrival) to the next
// arrival (or departure), rounded to the nearest minute.
func travelMinutes(prev, next gtfsStopTime) (int, bool) {
	depart, ok := parseGTFSClock(firstNonEmpty(prev.DepartureTime, prev.ArrivalTime))
	if !ok {
		return 0, false
	}
	arrive, ok := parseGTFSClock(firstNonEmpty(next.ArrivalTime, next.DepartureTime))
	if !ok || arrive < depart {
		return 0, false
	}
	return (arrive - depart + 30) / 60, true
}

// parseGTFSClock returns seconds since service-day start; hours may exceed 23.
func parseGTFSClock(s string) (int, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, false
	}
	var total int
	for i, part := range parts {
		v, err := strconv.Atoi(part)
		if err != nil || v < 0 || (i > 0 && v > 59) {
			return 0, false
		}
		total = total*60 + v
	}
	return total, true
}

func parseOptionalFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
