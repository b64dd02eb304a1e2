package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveRun(t *testing.T) {
	m := NewWith(prometheus.NewRegistry())

	m.ObserveRun(3, 1, 2, 0.75, 10*time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.FilesProcessed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilesFailed))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FilesSkipped))
	assert.Equal(t, 0.75, testutil.ToFloat64(m.LastSuccessRate))

	m.ObserveRun(1, 0, 0, 1.0, time.Second)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RunsTotal))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.FilesProcessed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LastSuccessRate))
}

func TestSkipReasons(t *testing.T) {
	m := NewWith(prometheus.NewRegistry())

	m.RunsSkipped.WithLabelValues(SkipUnhealthy).Inc()
	m.RunsSkipped.WithLabelValues(SkipLocked).Inc()
	m.RunsSkipped.WithLabelValues(SkipLocked).Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsSkipped.WithLabelValues(SkipUnhealthy)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RunsSkipped.WithLabelValues(SkipLocked)))
}
