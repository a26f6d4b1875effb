package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Tick metrics
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitetime_ticks_total",
			Help: "Total timer ticks evaluated, by gate state",
		},
		[]string{"state"},
	)

	CreditedSeconds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitetime_credited_seconds_total",
			Help: "Total active seconds credited, by domain. Domains beyond the first 100 share the \"other\" label",
		},
		[]string{"domain"},
	)

	// Persistence metrics
	PersistFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitetime_persist_failures_total",
			Help: "Failed writes to the storage backend",
		},
		[]string{"operation"},
	)

	MergesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sitetime_merges_total",
			Help: "Total snapshots merged into the live store",
		},
	)

	// Backup metrics
	BackupsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sitetime_backups_created_total",
			Help: "Total backups created",
		},
	)

	BackupsRetained = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sitetime_backups_retained",
			Help: "Number of backups currently retained",
		},
	)

	// Store metrics
	DomainsTracked = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sitetime_domains_tracked",
			Help: "Number of domains in the live store",
		},
	)
)

// Registry holds the sitetime collectors together with the Go runtime and
// process collectors. It is what /metrics serves.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		TicksTotal,
		CreditedSeconds,
		PersistFailures,
		MergesTotal,
		BackupsCreated,
		BackupsRetained,
		DomainsTracked,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{
		ErrorLog: promLogger{logger: logger},
	}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Handler returns the mux serving /metrics and /health.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves in the background. Bind errors are logged, not returned.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop waits up to five seconds for in-flight scrapes.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Shutdown(ctx)
}

// promLogger routes promhttp errors into zerolog.
type promLogger struct {
	logger zerolog.Logger
}

func (l promLogger) Println(v ...interface{}) {
	l.logger.Error().Str("component", "metrics").Msg(fmt.Sprint(v...))
}
