package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/OldStager01/predictive-autoscaler/internal/logger"
	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

const namespace = "autoscaler"

// Metrics holds the controller's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ticksTotal        *prometheus.CounterVec
	tickDuration      prometheus.Histogram
	samplesTotal      prometheus.Counter
	collectionErrors  prometheus.Counter
	currentCPU        prometheus.Gauge
	currentInstances  prometheus.Gauge
	forecastPredicted prometheus.Gauge
	forecastPeak      prometheus.Gauge
	forecastConf      prometheus.Gauge
	strategyFailures  *prometheus.CounterVec
	decisionsTotal    *prometheus.CounterVec
	executionsTotal   *prometheus.CounterVec
	thresholds        *prometheus.GaugeVec
	retrainsTotal     *prometheus.CounterVec
	breakerState      *prometheus.GaugeVec
}

// New creates the collectors and registers them on a private registry
// together with the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ticksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Control loop ticks by result",
		}, []string{"result"}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Duration of a control loop tick",
			Buckets:   prometheus.DefBuckets,
		}),
		samplesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_total",
			Help:      "Samples appended to the history buffer",
		}),
		collectionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collection_errors_total",
			Help:      "Failed metric collections",
		}),
		currentCPU: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fleet_cpu_percent",
			Help:      "Most recent fleet CPU utilization",
		}),
		currentInstances: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fleet_instances",
			Help:      "Most recent fleet instance count",
		}),
		forecastPredicted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "forecast_predicted_load_percent",
			Help:      "Ensemble mean of the latest forecast",
		}),
		forecastPeak: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "forecast_peak_load_percent",
			Help:      "Highest strategy output of the latest forecast",
		}),
		forecastConf: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "forecast_confidence",
			Help:      "Confidence of the latest forecast",
		}),
		strategyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "strategy_failures_total",
			Help:      "Forecast strategy failures by strategy",
		}, []string{"strategy"}),
		decisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Scaling decisions by action and rule",
		}, []string{"action", "rule"}),
		executionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Executor calls by action and outcome",
		}, []string{"action", "outcome"}),
		thresholds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "policy_threshold",
			Help:      "Live scaling policy thresholds",
		}, []string{"name"}),
		retrainsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrains_total",
			Help:      "Forecaster retraining runs by result",
		}, []string{"result"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ticksTotal,
		m.tickDuration,
		m.samplesTotal,
		m.collectionErrors,
		m.currentCPU,
		m.currentInstances,
		m.forecastPredicted,
		m.forecastPeak,
		m.forecastConf,
		m.strategyFailures,
		m.decisionsTotal,
		m.executionsTotal,
		m.thresholds,
		m.retrainsTotal,
		m.breakerState,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveTick(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.ticksTotal.WithLabelValues(result).Inc()
	m.tickDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveSample(s models.Sample) {
	if m == nil {
		return
	}
	m.samplesTotal.Inc()
	m.currentCPU.Set(s.CPUUtilization)
	m.currentInstances.Set(float64(s.InstanceCount))
}

func (m *Metrics) IncCollectionErrors() {
	if m == nil {
		return
	}
	m.collectionErrors.Inc()
}

func (m *Metrics) ObserveForecast(f models.Forecast) {
	if m == nil {
		return
	}
	m.forecastPredicted.Set(f.PredictedLoad)
	m.forecastPeak.Set(f.PeakExpected)
	m.forecastConf.Set(f.Confidence)
	for name := range f.Failed {
		m.strategyFailures.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) IncDecision(d models.ScalingDecision) {
	if m == nil {
		return
	}
	m.decisionsTotal.WithLabelValues(string(d.Action), string(d.Rule)).Inc()
}

func (m *Metrics) IncExecution(action models.ScalingAction, outcome models.Outcome) {
	if m == nil {
		return
	}
	m.executionsTotal.WithLabelValues(string(action), string(outcome)).Inc()
}

func (m *Metrics) SetThresholds(t models.PolicyThresholds) {
	if m == nil {
		return
	}
	m.thresholds.WithLabelValues("scale_up_load").Set(t.ScaleUpLoadThreshold)
	m.thresholds.WithLabelValues("scale_up_confidence").Set(t.ScaleUpConfidenceThreshold)
	m.thresholds.WithLabelValues("scale_down_load").Set(t.ScaleDownLoadThreshold)
	m.thresholds.WithLabelValues("scale_down_current").Set(t.ScaleDownCurrentThreshold)
	m.thresholds.WithLabelValues("min_instances").Set(float64(t.MinInstances))
	m.thresholds.WithLabelValues("max_instances").Set(float64(t.MaxInstances))
}

func (m *Metrics) IncRetrain(result string) {
	if m == nil {
		return
	}
	m.retrainsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(name).Set(float64(state))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// StartServer serves /metrics on port until ctx is cancelled.
func (m *Metrics) StartServer(ctx context.Context, port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	addr := ":" + strconv.Itoa(port)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	logger.Infof("Prometheus metrics server listening on %s", addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Prometheus server error: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
}
