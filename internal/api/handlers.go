package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/patrickmn/go-cache"

	"github.com/metroroute/internal/topology/snapshot"
	"github.com/metroroute/pkg/metro"
)

const (
	modeFewestStops = "fewest-stops"
	modeMinimumTime = "minimum-time"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Station string `json:"station,omitempty"`
}

type stationResponse struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Line  string   `json:"line"`
	Color string   `json:"color"`
	Lat   *float64 `json:"lat,omitempty"`
	Lon   *float64 `json:"lon,omitempty"`
}

type stationDetailResponse struct {
	stationResponse
	Neighbors []metro.Neighbor `json:"neighbors"`
}

type lineResponse struct {
	Line     string `json:"line"`
	Color    string `json:"color"`
	Stations int    `json:"stations"`
}

type pathStop struct {
	Name  string `json:"name"`
	Line  string `json:"line"`
	Color string `json:"color"`
}

type routeResponse struct {
	Mode    string     `json:"mode"`
	From    string     `json:"from"`
	To      string     `json:"to"`
	Version string     `json:"version"`
	Path    []pathStop `json:"path"`
	Stops   int        `json:"stops"`
	Minutes *int       `json:"minutes,omitempty"`
}

type healthResponse struct {
	Status      string    `json:"status"`
	Version     string    `json:"version,omitempty"`
	Source      string    `json:"source,omitempty"`
	LoadedAt    time.Time `json:"loaded_at,omitempty"`
	Stations    int       `json:"stations"`
	Connections int       `json:"connections"`
	Unresolved  int       `json:"unresolved_stations"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, resp errorResponse) {
	writeJSON(w, status, resp)
}

// current returns the published snapshot or answers 503.
func (s *Server) current(w http.ResponseWriter) *snapshot.Snapshot {
	snap := s.holder.Load()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, errorResponse{
			Error:   "not_ready",
			Message: "no network has been loaded yet",
		})
	}
	return snap
}

func (s *Server) describe(snap *snapshot.Snapshot, st metro.Station) stationResponse {
	resp := stationResponse{
		ID:    st.ID,
		Name:  st.Name,
		Line:  st.Line,
		Color: snap.LineColor(st.Line, DefaultLineColor),
	}
	if c, ok := snap.Network.Coordinate(st.Name); ok {
		lat, lon := c.Lat, c.Lon
		resp.Lat, resp.Lon = &lat, &lon
	}
	return resp
}

func (s *Server) listStations(w http.ResponseWriter, r *http.Request) {
	snap := s.current(w)
	if snap == nil {
		return
	}

	line := strings.TrimSpace(r.URL.Query().Get("line"))
	out := []stationResponse{}
	for _, st := range snap.Network.Stations() {
		if line != "" && st.Line != line {
			continue
		}
		out = append(out, s.describe(snap, st))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getStation(w http.ResponseWriter, r *http.Request) {
	snap := s.current(w)
	if snap == nil {
		return
	}

	name, err := url.PathUnescape(mux.Vars(r)["name"])
	if err != nil {
		writeError(w, http.StatusBadRequest, errorResponse{
			Error:   "bad_request",
			Message: "malformed station name",
		})
		return
	}
	st, ok := snap.Network.Station(name)
	if !ok {
		writeError(w, http.StatusNotFound, stationNotFound(name))
		return
	}

	neighbors := snap.Network.Neighbors(name)
	if neighbors == nil {
		neighbors = []metro.Neighbor{}
	}
	writeJSON(w, http.StatusOK, stationDetailResponse{
		stationResponse: s.describe(snap, st),
		Neighbors:       neighbors,
	})
}

func (s *Server) listLines(w http.ResponseWriter, r *http.Request) {
	snap := s.current(w)
	if snap == nil {
		return
	}

	out := []lineResponse{}
	for _, line := range snap.Network.Lines() {
		out = append(out, lineResponse{
			Line:     line,
			Color:    snap.LineColor(line, DefaultLineColor),
			Stations: len(snap.Network.StationsOnLine(line)),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	snap := s.holder.Load()
	if snap == nil {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "loading"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		Version:     snap.Version,
		Source:      snap.Source,
		LoadedAt:    snap.LoadedAt,
		Stations:    snap.Network.Len(),
		Connections: snap.Network.ConnectionCount(),
		Unresolved:  len(snap.Unresolved),
	})
}

func stationNotFound(name string) errorResponse {
	return errorResponse{
		Error:   "station_not_found",
		Message: "station " + name + " not found",
		Station: name,
	}
}

func (s *Server) routeHandler(mode string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		outcome := "error"
		defer func() {
			s.metrics.RouteDuration.WithLabelValues(mode, outcome).Observe(time.Since(start).Seconds())
		}()

		// names are matched verbatim; stations may carry surrounding spaces
		from := r.URL.Query().Get("from")
		to := r.URL.Query().Get("to")
		if from == "" || to == "" {
			outcome = "bad_request"
			writeError(w, http.StatusBadRequest, errorResponse{
				Error:   "bad_request",
				Message: "both from and to are required",
			})
			return
		}
		if from == to {
			outcome = "bad_request"
			writeError(w, http.StatusBadRequest, errorResponse{
				Error:   "bad_request",
				Message: "from and to must be different stations",
			})
			return
		}

		snap := s.current(w)
		if snap == nil {
			outcome = "not_ready"
			return
		}

		key := routeCacheKey(snap.Version, mode, from, to)
		if s.routes != nil {
			if cached, ok := s.routes.Get(key); ok {
				outcome = "cached"
				writeJSON(w, http.StatusOK, cached)
				return
			}
		}

		resp, err := s.findRoute(snap, mode, from, to)
		var notFound *metro.StationNotFoundError
		switch {
		case errors.As(err, &notFound):
			outcome = "station_not_found"
			writeError(w, http.StatusNotFound, stationNotFound(notFound.Name))
			return
		case errors.Is(err, metro.ErrNoRoute):
			outcome = "no_route"
			writeError(w, http.StatusNotFound, errorResponse{
				Error:   "no_route",
				Message: "no route between " + from + " and " + to,
			})
			return
		case err != nil:
			s.logger.Error("Route query failed", "mode", mode, "from", from, "to", to, "error", err)
			writeError(w, http.StatusInternalServerError, errorResponse{
				Error:   "internal_error",
				Message: "internal server error",
			})
			return
		}

		if s.routes != nil {
			s.routes.Set(key, resp, cache.DefaultExpiration)
		}
		outcome = "found"
		writeJSON(w, http.StatusOK, resp)
	}
}

// routeCacheKey quotes every part so names containing the separator
// cannot collide.
func routeCacheKey(parts ...string) string {
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = strconv.Quote(p)
	}
	return strings.Join(quoted, "|")
}

func (s *Server) findRoute(snap *snapshot.Snapshot, mode, from, to string) (*routeResponse, error) {
	resp := &routeResponse{Mode: mode, From: from, To: to, Version: snap.Version}

	var stations []string
	switch mode {
	case modeFewestStops:
		path, err := metro.FewestStops(snap.Network, from, to)
		if err != nil {
			return nil, err
		}
		stations = path
	default:
		route, err := metro.MinimumTime(snap.Network, from, to)
		if err != nil {
			return nil, err
		}
		stations = route.Stations
		minutes := route.Minutes
		resp.Minutes = &minutes
	}

	resp.Stops = len(stations) - 1
	resp.Path = make([]pathStop, 0, len(stations))
	for _, name := range stations {
		st, _ := snap.Network.Station(name)
		resp.Path = append(resp.Path, pathStop{
			Name:  name,
			Line:  st.Line,
			Color: snap.LineColor(st.Line, DefaultLineColor),
		})
	}
	return resp, nil
}
