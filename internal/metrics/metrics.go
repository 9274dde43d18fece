// Package metrics holds the Prometheus counters of the governance kernel.
//
// Every method is safe on a nil *Metrics, so components take an optional
// metrics handle and tests can pass nil.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "golfkpi"

// Metrics is a set of kernel counters registered on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	ArtifactWrites         *prometheus.CounterVec
	ImmutabilityRejections *prometheus.CounterVec
	DuplicateRejections    *prometheus.CounterVec
	ShotsIngested          *prometheus.CounterVec
	SubSessions            *prometheus.CounterVec
	ScoresRecorded         prometheus.Counter
	AuditFindings          *prometheus.CounterVec
}

// New creates the counters and registers them, plus the Go runtime
// collectors, on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		ArtifactWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_writes_total",
			Help:      "Content-addressed insert attempts by kind and outcome (inserted, deduplicated).",
		}, []string{"kind", "outcome"}),
		ImmutabilityRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "immutability_rejections_total",
			Help:      "Rejected mutation attempts by table and enforcement layer (guard, trigger).",
		}, []string{"table", "layer"}),
		DuplicateRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_rejections_total",
			Help:      "Writes rejected by a uniqueness constraint on derived facts.",
		}, []string{"entity"}),
		ShotsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shots_ingested_total",
			Help:      "Shot records seen at the ingestion boundary by outcome (accepted, rejected).",
		}, []string{"outcome"}),
		SubSessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subsessions_analyzed_total",
			Help:      "Club sub-sessions stored by validity status.",
		}, []string{"validity"}),
		ScoresRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hole_scores_recorded_total",
			Help:      "Hole score rows appended, corrections included.",
		}),
		AuditFindings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_findings_total",
			Help:      "Integrity audit problems by kind and source (store, archive).",
		}, []string{"kind", "source"}),
	}

	reg.MustRegister(
		m.ArtifactWrites,
		m.ImmutabilityRejections,
		m.DuplicateRejections,
		m.ShotsIngested,
		m.SubSessions,
		m.ScoresRecorded,
		m.AuditFindings,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// ArtifactWritten counts a content-addressed insert.
func (m *Metrics) ArtifactWritten(kind string, inserted bool) {
	if m == nil {
		return
	}
	outcome := "deduplicated"
	if inserted {
		outcome = "inserted"
	}
	m.ArtifactWrites.WithLabelValues(kind, outcome).Inc()
}

// ImmutabilityRejected counts a rejected mutation attempt.
func (m *Metrics) ImmutabilityRejected(table, layer string) {
	if m == nil {
		return
	}
	m.ImmutabilityRejections.WithLabelValues(table, layer).Inc()
}

// DuplicateRejected counts a uniqueness rejection.
func (m *Metrics) DuplicateRejected(entity string) {
	if m == nil {
		return
	}
	m.DuplicateRejections.WithLabelValues(entity).Inc()
}

// ShotsSeen counts accepted and rejected shot records.
func (m *Metrics) ShotsSeen(accepted, rejected int) {
	if m == nil {
		return
	}
	m.ShotsIngested.WithLabelValues("accepted").Add(float64(accepted))
	m.ShotsIngested.WithLabelValues("rejected").Add(float64(rejected))
}

// SubSessionStored counts a stored sub-session.
func (m *Metrics) SubSessionStored(validity string) {
	if m == nil {
		return
	}
	m.SubSessions.WithLabelValues(validity).Inc()
}

// ScoreRecorded counts an appended hole score row.
func (m *Metrics) ScoreRecorded() {
	if m == nil {
		return
	}
	m.ScoresRecorded.Inc()
}

// AuditFinding counts an integrity audit problem.
func (m *Metrics) AuditFinding(kind, source string) {
	if m == nil {
		return
	}
	m.AuditFindings.WithLabelValues(kind, source).Inc()
}
