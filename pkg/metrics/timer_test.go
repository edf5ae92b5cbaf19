package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTimerDuration(t *testing.T) {
	timer := NewTimer()
	time.Sleep(20 * time.Millisecond)

	first := timer.Duration()
	assert.GreaterOrEqual(t, first, 20*time.Millisecond)
	assert.GreaterOrEqual(t, timer.Duration(), first, "duration is monotonic")
}

func TestTimerObserveDuration(t *testing.T) {
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_reconcile_seconds",
		Help:    "test",
		Buckets: prometheus.DefBuckets,
	})

	NewTimer().ObserveDuration(histogram)

	assert.Equal(t, 1, testutil.CollectAndCount(histogram))
}

func TestTimerObserveDurationVec(t *testing.T) {
	steps := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "test_step_seconds",
		Help:    "test",
		Buckets: prometheus.DefBuckets,
	}, []string{"step"})

	for _, step := range []string{"install_services", "configure_topology", "install_services"} {
		NewTimer().ObserveDurationVec(steps, step)
	}

	// One series per distinct label value
	assert.Equal(t, 2, testutil.CollectAndCount(steps))
}

func TestIndependentTimers(t *testing.T) {
	outer := NewTimer()
	time.Sleep(10 * time.Millisecond)
	inner := NewTimer()

	assert.Greater(t, outer.Duration(), inner.Duration())
}
