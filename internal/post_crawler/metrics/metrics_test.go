package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Summary(ResultCreated)
	m.Summary(ResultCreated)
	m.Summary(ResultExisting)
	m.Detail(ResultFailed)
	m.WalkTick("listing", "advanced")
	m.ObserveFetch("detail", nil, time.Second)
	m.ObserveFetch("detail", errors.New("boom"), time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.summaries.WithLabelValues(ResultCreated)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.summaries.WithLabelValues(ResultExisting)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.details.WithLabelValues(ResultFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.walkTicks.WithLabelValues("listing", "advanced")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetches.WithLabelValues("detail", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetches.WithLabelValues("detail", "error")))

	n, err := testutil.GatherAndCount(reg, "post_crawler_fetch_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Summary(ResultCreated)
		m.Detail(ResultExisting)
		m.WalkTick("sweep", "stopped")
		m.ObserveFetch("listing", nil, 0)
	})
}
