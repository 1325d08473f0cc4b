package msgloop

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	loop, err := New(WithMetrics(m), WithName(`metered`))
	require.NoError(t, err)

	loop.PostTask(func() {})
	loop.PostTask(func() {})
	loop.PostDelayedTask(loop.Quit, time.Millisecond)
	require.NoError(t, loop.Run())
	require.NoError(t, loop.Close())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.tasksRun.WithLabelValues(`metered`, `immediate`)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasksRun.WithLabelValues(`metered`, `delayed`)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.loopsDestroyed))
	assert.Equal(t, 1, testutil.CollectAndCount(m.taskDuration))

	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP msgloop_loops_destroyed_total Number of loops closed.
# TYPE msgloop_loops_destroyed_total counter
msgloop_loops_destroyed_total 1
`), `msgloop_loops_destroyed_total`))

	_, err = NewMetrics(reg)
	assert.Error(t, err, `duplicate registration`)
}

func TestMetrics_unnamedLoopUsesID(t *testing.T) {
	m, err := NewMetrics(nil)
	require.NoError(t, err)
	loop := newTestLoop(t, WithMetrics(m))
	loop.PostTask(loop.Quit)
	require.NoError(t, loop.Run())
	obs := m.observe(loop)
	assert.NotEmpty(t, obs.label())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasksRun.WithLabelValues(obs.label(), `immediate`)))
}
