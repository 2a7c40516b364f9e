package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline stages timed per request
const (
	StageResolve = "resolve"
	StageProbe   = "probe"
	StageSync    = "sync"
	StageAsync   = "async"
)

var (
	// Request metrics
	activeRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voice_transcriber_active_requests",
		Help: "Number of recognition requests in flight",
	})

	recognitionRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_transcriber_recognitions_total",
		Help: "Total number of recognition requests by outcome",
	}, []string{"strategy", "status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_transcriber_request_duration_seconds",
		Help:    "End-to-end recognition latency in seconds",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
	})

	// Stage metrics
	stageLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voice_transcriber_stage_latency_seconds",
		Help:    "Latency of each recognition stage in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 300},
	}, []string{"stage"})

	audioDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_transcriber_audio_duration_seconds",
		Help:    "Probed duration of submitted audio in seconds",
		Buckets: []float64{1, 5, 10, 30, 59, 60, 120, 300, 600, 1800},
	})

	resolverFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_transcriber_resolver_failures_total",
		Help: "Audio that could not be resolved, by platform and reason",
	}, []string{"platform", "reason"})

	taskPolls = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_transcriber_task_polls",
		Help:    "Status queries issued per asynchronous task",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_transcriber_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "voice_transcriber_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_transcriber_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})

	// Audio metrics
	audioBytesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_transcriber_audio_bytes_total",
		Help: "Total audio bytes resolved",
	}, []string{"platform", "format"})
)

// Metrics tracks metrics for a single recognition request
type Metrics struct {
	requestID  string
	startTime  time.Time
	stageStart map[string]time.Time
	mu         sync.Mutex
}

// NewRequestMetrics creates a new metrics tracker for a request
func NewRequestMetrics(requestID string) *Metrics {
	return &Metrics{
		requestID:  requestID,
		startTime:  time.Now(),
		stageStart: make(map[string]time.Time),
	}
}

// RecordRequestStart records the start of a request
func (m *Metrics) RecordRequestStart() {
	activeRequests.Inc()
}

// RecordRequestEnd records the end of a request with its strategy and status
func (m *Metrics) RecordRequestEnd(strategy, status string) {
	activeRequests.Dec()
	requestDuration.Observe(time.Since(m.startTime).Seconds())
	recognitionRequests.WithLabelValues(strategy, status).Inc()
}

// RecordStageStart records the start of a pipeline stage
func (m *Metrics) RecordStageStart(stage string) {
	m.mu.Lock()
	m.stageStart[stage] = time.Now()
	m.mu.Unlock()
}

// RecordStageEnd records the end of a pipeline stage
func (m *Metrics) RecordStageEnd(stage string, success bool) {
	m.mu.Lock()
	start, ok := m.stageStart[stage]
	delete(m.stageStart, stage)
	m.mu.Unlock()

	if ok {
		stageLatency.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
	if !success {
		errorsTotal.WithLabelValues("stage_failed", stage).Inc()
	}
}

// RecordAudioDuration records the probed duration of the request's audio
func (m *Metrics) RecordAudioDuration(seconds float64) {
	audioDuration.Observe(seconds)
}

// RecordResolverFailure records audio that could not be resolved
func (m *Metrics) RecordResolverFailure(platform, reason string) {
	resolverFailures.WithLabelValues(platform, reason).Inc()
}

// RecordAudioBytes records resolved audio bytes
func (m *Metrics) RecordAudioBytes(platform, format string, bytes int) {
	audioBytesProcessed.WithLabelValues(platform, format).Add(float64(bytes))
}

// RecordError records an error
func (m *Metrics) RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// ObserveTaskPolls records how many status queries an asynchronous task needed
func ObserveTaskPolls(polls int) {
	taskPolls.Observe(float64(polls))
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
