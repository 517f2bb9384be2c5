package metrics

import (
	"errors"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Accounting metrics
	ActiveSecondsToday = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "screentime_active_seconds_today",
			Help: "Active seconds accounted for the current day",
		},
	)

	ActiveSecondsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "screentime_active_seconds_total",
			Help: "Total active seconds accounted since start",
		},
	)

	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screentime_ticks_total",
			Help: "Total accounting ticks processed",
		},
		[]string{"state"},
	)

	RolloversTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "screentime_rollovers_total",
			Help: "Total day rollovers performed",
		},
	)

	// Storage metrics
	DayStoreWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screentime_day_store_writes_total",
			Help: "Total day record writes",
		},
		[]string{"reason", "result"},
	)

	DayStoreWriteDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "screentime_day_store_write_duration_seconds",
			Help:    "Day record write duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2},
		},
	)

	// Scheduler metrics
	JobRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screentime_job_runs_total",
			Help: "Total scheduled job invocations",
		},
		[]string{"job", "result"},
	)

	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "screentime_job_duration_seconds",
			Help:    "Scheduled job duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	// Notification metrics
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screentime_notifications_total",
			Help: "Total notifications fired by the limit monitor",
		},
		[]string{"kind"},
	)

	NotificationDeliveryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screentime_notification_delivery_total",
			Help: "Total notification delivery attempts",
		},
		[]string{"notifier", "result"},
	)

	BreakBucket = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "screentime_break_bucket",
			Help: "Completed break intervals notified today",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		ActiveSecondsToday,
		ActiveSecondsTotal,
		TicksTotal,
		RolloversTotal,
		DayStoreWritesTotal,
		DayStoreWriteDuration,
		JobRunsTotal,
		JobDuration,
		NotificationsTotal,
		NotificationDeliveryTotal,
		BreakBucket,
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
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			// Use systemd socket-activated listener
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			// Create and bind listener ourselves
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
