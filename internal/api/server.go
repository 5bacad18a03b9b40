package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/metroroute/internal/common/logger"
	"github.com/metroroute/internal/topology/snapshot"
)

// DefaultLineColor is shown for lines without a colour entry.
const DefaultLineColor = "skyblue"

type Options struct {
	AllowedOrigins []string
	// CacheTTL bounds how long a route answer is reused; zero disables caching.
	CacheTTL time.Duration
}

// Server answers station and route queries against the published snapshot.
type Server struct {
	holder  *snapshot.Holder
	routes  *cache.Cache
	metrics *Metrics
	logger  logger.Logger
	handler http.Handler
}

func NewServer(holder *snapshot.Holder, opts Options, log logger.Logger) *Server {
	s := &Server{
		holder:  holder,
		metrics: NewMetrics(holder),
		logger:  log,
	}
	if opts.CacheTTL > 0 {
		s.routes = cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}

	r := mux.NewRouter().UseEncodedPath()
	r.Use(recoveryMiddleware(log))
	r.Use(loggingMiddleware(log))

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/stations", s.listStations).Methods(http.MethodGet)
	api.HandleFunc("/stations/{name:.+}", s.getStation).Methods(http.MethodGet)
	api.HandleFunc("/lines", s.listLines).Methods(http.MethodGet)
	api.HandleFunc("/routes/fewest-stops", s.routeHandler(modeFewestStops)).Methods(http.MethodGet)
	api.HandleFunc("/routes/minimum-time", s.routeHandler(modeMinimumTime)).Methods(http.MethodGet)

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Origin"},
		MaxAge:         86400,
	})

	s.handler = c.Handler(r)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// NewHTTPServer wraps the handler with the timeouts used in production.
func (s *Server) NewHTTPServer(addr string) *http.Server {
	return &http.Server{
		Handler:           s.handler,
		Addr:              addr,
		WriteTimeout:      15 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}
