package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.GradeRecorded("s1", 4)
	m.GradeRecorded("s1", 2)
	m.TriggerFired("low-score-threshold")
	m.TriggerDeduplicated()
	m.VersionPromoted("s1")
	m.VersionRolledBack("s1")
	m.RequestRejected()
	m.CorruptRead("skill_grades")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.gradesTotal.WithLabelValues("s1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.triggersTotal.WithLabelValues("low-score-threshold")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dedupedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.promotions.WithLabelValues("s1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rollbacks.WithLabelValues("s1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejections))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeCorrupted.WithLabelValues("skill_grades")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.GradeRecorded("s1", 3)
		m.TriggerFired("manual-request")
		m.TriggerDeduplicated()
		m.VersionPromoted("s1")
		m.VersionRolledBack("s1")
		m.RequestRejected()
		m.CorruptRead("skill_versions")
	})
}

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.GradeRecorded("s1", 5)

	families, err := reg.Gather()
	assert.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["skill_grades_total"])
	assert.True(t, names["skill_grade_overall_score"])
}
