package metric

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Basic metrics
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weai_requests_total",
			Help: "Total number of requests processed",
		},
		[]string{"method", "endpoint"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weai_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weai_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type"},
	)

	// Aggregation metrics
	attestationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weai_attestations_total",
			Help: "Attestations received by the aggregator, by intake result",
		},
		[]string{"result"},
	)

	tasksFinalizedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weai_tasks_finalized_total",
			Help: "Tasks that reached quorum, by verdict",
		},
		[]string{"verdict"},
	)

	tasksExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "weai_tasks_expired_total",
			Help: "Tasks that expired without reaching quorum",
		},
	)

	finalizationLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "weai_finalization_latency_seconds",
			Help:    "Time from task initialization to finalization",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
	)

	settlementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weai_settlements_total",
			Help: "respondToTask submissions, by status",
		},
		[]string{"status"},
	)

	// Operator metrics
	deliveryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weai_delivery_attempts_total",
			Help: "Attestation delivery attempts made by the operator, by outcome",
		},
		[]string{"outcome"},
	)
)

type Server struct {
	conf *Config
	srv  *http.Server
}

type Config struct {
	Port int `default:"4014"`
}

func New(conf *Config) *Server {
	if conf == nil {
		conf = &Config{}
		envconfig.MustProcess("metric", conf)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{
		conf: conf,
		srv: &http.Server{
			Addr:              fmt.Sprintf("0.0.0.0:%d", conf.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start blocks serving /metrics until Stop is called.
func (s *Server) Start() error {
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("[Metric] server failed: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// RecordRequest records a request metric
func RecordRequest(method, endpoint string) {
	requestsTotal.WithLabelValues(method, endpoint).Inc()
}

// RecordRequestDuration records the duration of a request
func RecordRequestDuration(method, endpoint string, duration time.Duration) {
	requestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordError records an error metric
func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}

// RecordAttestation records the intake result of one attestation
func RecordAttestation(result string) {
	attestationsTotal.WithLabelValues(result).Inc()
}

func RecordTaskFinalized(verdict bool, latency time.Duration) {
	tasksFinalizedTotal.WithLabelValues(strconv.FormatBool(verdict)).Inc()
	finalizationLatency.Observe(latency.Seconds())
}

func RecordTaskExpired() {
	tasksExpiredTotal.Inc()
}

// RecordSettlement records a respondToTask outcome: submitted, failed or skipped
func RecordSettlement(status string) {
	settlementsTotal.WithLabelValues(status).Inc()
}

// RecordDeliveryAttempt records one delivery attempt outcome
func RecordDeliveryAttempt(outcome string) {
	deliveryAttemptsTotal.WithLabelValues(outcome).Inc()
}
