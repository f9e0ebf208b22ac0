// Package metrics exposes Prometheus instrumentation for the improvement engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's collectors. A nil *Metrics is a valid no-op.
type Metrics struct {
	gradesTotal    *prometheus.CounterVec
	gradeScore     prometheus.Histogram
	triggersTotal  *prometheus.CounterVec
	dedupedTotal   prometheus.Counter
	promotions     *prometheus.CounterVec
	rollbacks      *prometheus.CounterVec
	rejections     prometheus.Counter
	storeCorrupted *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		gradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skill_grades_total",
			Help: "Grades recorded, by skill",
		}, []string{"skill"}),
		gradeScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "skill_grade_overall_score",
			Help:    "Distribution of overall grade scores",
			Buckets: []float64{1, 2, 3, 4, 5},
		}),
		triggersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skill_improvement_triggers_total",
			Help: "Improvement requests created, by trigger reason",
		}, []string{"reason"}),
		dedupedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skill_improvement_triggers_deduplicated_total",
			Help: "Triggers suppressed because a request was already pending",
		}),
		promotions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skill_version_promotions_total",
			Help: "New skill versions created from improvement requests",
		}, []string{"skill"}),
		rollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skill_version_rollbacks_total",
			Help: "Skill versions rolled back to their predecessor",
		}, []string{"skill"}),
		rejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skill_improvement_rejections_total",
			Help: "Improvement requests rejected by a reviewer",
		}),
		storeCorrupted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skill_store_corrupt_reads_total",
			Help: "Reads that found an undecodable collection and treated it as empty",
		}, []string{"collection"}),
	}
	reg.MustRegister(
		m.gradesTotal, m.gradeScore, m.triggersTotal, m.dedupedTotal,
		m.promotions, m.rollbacks, m.rejections, m.storeCorrupted,
	)
	return m
}

func (m *Metrics) GradeRecorded(skillID string, overall float64) {
	if m == nil {
		return
	}
	m.gradesTotal.WithLabelValues(skillID).Inc()
	m.gradeScore.Observe(overall)
}

func (m *Metrics) TriggerFired(reason string) {
	if m == nil {
		return
	}
	m.triggersTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) TriggerDeduplicated() {
	if m == nil {
		return
	}
	m.dedupedTotal.Inc()
}

func (m *Metrics) VersionPromoted(skillID string) {
	if m == nil {
		return
	}
	m.promotions.WithLabelValues(skillID).Inc()
}

func (m *Metrics) VersionRolledBack(skillID string) {
	if m == nil {
		return
	}
	m.rollbacks.WithLabelValues(skillID).Inc()
}

func (m *Metrics) RequestRejected() {
	if m == nil {
		return
	}
	m.rejections.Inc()
}

func (m *Metrics) CorruptRead(collection string) {
	if m == nil {
		return
	}
	m.storeCorrupted.WithLabelValues(collection).Inc()
}
