package core

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics to be used in the instrumented code
var pm struct {
	RadiusMetrics  *RadiusPrometheusMetrics
	SessionMetrics *SessionPrometheusMetrics
}

var metricsOnce sync.Once

// ///////////////////////////////////////////////////////////////
// Metrics definitions
// ///////////////////////////////////////////////////////////////

type RadiusPrometheusMetrics struct {
	RadiusServerRequests  *prometheus.CounterVec
	RadiusServerResponses *prometheus.CounterVec
	RadiusServerDrops     *prometheus.CounterVec
}

type SessionPrometheusMetrics struct {
	SessionCreations      *prometheus.CounterVec
	AuthorizationRequests *prometheus.CounterVec
	SweepRuns             *prometheus.CounterVec
	SessionsExpired       prometheus.Counter
	RegistryReloads       *prometheus.CounterVec
}

func newRadiusPrometheusMetrics(reg prometheus.Registerer) *RadiusPrometheusMetrics {
	m := &RadiusPrometheusMetrics{

		RadiusServerRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "radius_server_requests",
				Help: "Radius server requests",
			},
			[]string{"endpoint", "code"}),

		RadiusServerResponses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "radius_server_responses",
				Help: "Radius server responses",
			},
			[]string{"endpoint", "code"}),

		RadiusServerDrops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "radius_server_drops",
				Help: "Radius server dropped packets",
			},
			[]string{"endpoint", "code"}),
	}

	reg.MustRegister(
		m.RadiusServerRequests,
		m.RadiusServerResponses,
		m.RadiusServerDrops,
	)

	return m
}

func newSessionPrometheusMetrics(reg prometheus.Registerer) *SessionPrometheusMetrics {
	m := &SessionPrometheusMetrics{

		SessionCreations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "session_creations",
				Help: "Sessions created after a payment confirmation",
			},
			[]string{"outcome"}),

		AuthorizationRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authorization_requests",
				Help: "Authorization decisions",
			},
			[]string{"outcome"}),

		SweepRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "session_sweep_runs",
				Help: "Executions of the expired session sweep",
			},
			[]string{"outcome"}),

		SessionsExpired: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sessions_expired",
				Help: "Sessions deactivated by the sweep",
			}),

		RegistryReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nas_registry_reloads",
				Help: "NAS registry reloads",
			},
			[]string{"outcome"}),
	}

	reg.MustRegister(
		m.SessionCreations,
		m.AuthorizationRequests,
		m.SweepRuns,
		m.SessionsExpired,
		m.RegistryReloads,
	)

	return m
}

// Registers all the metrics in the default prometheus registry. Safe to invoke
// multiple times: only the first call has effect
func ensureMetrics() {
	metricsOnce.Do(func() {
		pm.RadiusMetrics = newRadiusPrometheusMetrics(prometheus.DefaultRegisterer)
		pm.SessionMetrics = newSessionPrometheusMetrics(prometheus.DefaultRegisterer)
	})
}

// ///////////////////////////////////////////////////////////////
// Instrumentation helpers
// ///////////////////////////////////////////////////////////////

func RecordRadiusServerRequest(endpoint string, code RadiusPacketType) {
	ensureMetrics()
	pm.RadiusMetrics.RadiusServerRequests.With(prometheus.Labels{"endpoint": endpoint, "code": strconv.Itoa(int(code))}).Inc()
}

func RecordRadiusServerResponse(endpoint string, code RadiusPacketType) {
	ensureMetrics()
	pm.RadiusMetrics.RadiusServerResponses.With(prometheus.Labels{"endpoint": endpoint, "code": strconv.Itoa(int(code))}).Inc()
}

func RecordRadiusServerDrop(endpoint string, code RadiusPacketType) {
	ensureMetrics()
	pm.RadiusMetrics.RadiusServerDrops.With(prometheus.Labels{"endpoint": endpoint, "code": strconv.Itoa(int(code))}).Inc()
}

func RecordSessionCreation(outcome string) {
	ensureMetrics()
	pm.SessionMetrics.SessionCreations.With(prometheus.Labels{"outcome": outcome}).Inc()
}

func RecordAuthorization(granted bool) {
	ensureMetrics()
	outcome := "rejected"
	if granted {
		outcome = "granted"
	}
	pm.SessionMetrics.AuthorizationRequests.With(prometheus.Labels{"outcome": outcome}).Inc()
}

func RecordSweep(err error, expired int64) {
	ensureMetrics()
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	pm.SessionMetrics.SweepRuns.With(prometheus.Labels{"outcome": outcome}).Inc()
	if expired > 0 {
		pm.SessionMetrics.SessionsExpired.Add(float64(expired))
	}
}

func RecordRegistryReload(err error) {
	ensureMetrics()
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	pm.SessionMetrics.RegistryReloads.With(prometheus.Labels{"outcome": outcome}).Inc()
}
