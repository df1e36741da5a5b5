package desktop

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics receives orchestration events. Implementations must be safe
// for concurrent use.
type Metrics interface {
	// RoleSpawned records a successful spawn of a role.
	RoleSpawned(role Role)

	// SpawnFailed records a failed spawn attempt.
	SpawnFailed(role Role)

	// RoleReaped records stale instances terminated for a role.
	RoleReaped(role Role, count int)

	// ProbeDuration records one liveness probe.
	ProbeDuration(d time.Duration, err error)

	// RoleUp records the liveness of a role as observed by a probe.
	RoleUp(role Role, up bool)
}

// nopMetrics discards all events.
type nopMetrics struct{}

func (nopMetrics) RoleSpawned(Role)                 {}
func (nopMetrics) SpawnFailed(Role)                 {}
func (nopMetrics) RoleReaped(Role, int)             {}
func (nopMetrics) ProbeDuration(time.Duration, error) {}
func (nopMetrics) RoleUp(Role, bool)                {}

// NopMetrics returns a Metrics that discards everything. Used when
// metrics are disabled and as the default in tests.
func NopMetrics() Metrics {
	return nopMetrics{}
}

// PrometheusMetrics implements Metrics using Prometheus collectors on
// a private registry.
type PrometheusMetrics struct {
	spawns        *prometheus.CounterVec
	spawnFailures *prometheus.CounterVec
	reaped        *prometheus.CounterVec
	probeDuration *prometheus.HistogramVec
	roleUp        *prometheus.GaugeVec

	registry *prometheus.Registry
}

// NewPrometheusMetrics creates a PrometheusMetrics with all collectors
// registered under the given namespace.
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	if namespace == "" {
		namespace = "desktop"
	}

	pm := &PrometheusMetrics{
		registry: prometheus.NewRegistry(),
	}

	pm.spawns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "role_spawns_total",
			Help:      "Total number of successful role spawns",
		},
		[]string{"role"},
	)

	pm.spawnFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "role_spawn_failures_total",
			Help:      "Total number of failed role spawn attempts",
		},
		[]string{"role"},
	)

	pm.reaped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "role_reaped_processes_total",
			Help:      "Total number of stale processes reaped per role",
		},
		[]string{"role"},
	)

	pm.probeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_duration_seconds",
			Help:      "Duration of liveness probes",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	pm.roleUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "role_up",
			Help:      "Whether a role has a running process (1) or not (0)",
		},
		[]string{"role"},
	)

	pm.registry.MustRegister(
		pm.spawns,
		pm.spawnFailures,
		pm.reaped,
		pm.probeDuration,
		pm.roleUp,
	)

	return pm
}

// RoleSpawned records a successful spawn.
func (pm *PrometheusMetrics) RoleSpawned(role Role) {
	pm.spawns.WithLabelValues(role.String()).Inc()
}

// SpawnFailed records a failed spawn attempt.
func (pm *PrometheusMetrics) SpawnFailed(role Role) {
	pm.spawnFailures.WithLabelValues(role.String()).Inc()
}

// RoleReaped records reaped stale instances.
func (pm *PrometheusMetrics) RoleReaped(role Role, count int) {
	pm.reaped.WithLabelValues(role.String()).Add(float64(count))
}

// ProbeDuration records one liveness probe.
func (pm *PrometheusMetrics) ProbeDuration(d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	pm.probeDuration.WithLabelValues(status).Observe(d.Seconds())
}

// RoleUp records probe-observed liveness.
func (pm *PrometheusMetrics) RoleUp(role Role, up bool) {
	v := 0.0
	if up {
		v = 1.0
	}
	pm.roleUp.WithLabelValues(role.String()).Set(v)
}

// Registry returns the Prometheus registry for HTTP handler setup.
func (pm *PrometheusMetrics) Registry() *prometheus.Registry {
	return pm.registry
}

// Compile-time interface compliance check
var _ Metrics = (*PrometheusMetrics)(nil)
