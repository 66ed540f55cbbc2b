package metrics_test

import (
	"testing"

	"github.com/delaneyj/metal/metal"
	"github.com/delaneyj/metal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorExportsCounters(t *testing.T) {
	rt := metal.CreateRuntime(metal.WithDebug(true))
	obj := metal.NewObject(nil, nil)
	require.NoError(t, rt.Set(obj, "a", 1))
	require.NoError(t, rt.Set(obj, "b", 2))

	reg := prometheus.NewRegistry()
	_, err := metrics.Register(reg, rt,
		metrics.WithSubsystem("runtime"),
		metrics.WithConstLabels(prometheus.Labels{"app": "test"}),
	)
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, len(metal.Counters{}.Fields()))

	values := map[string]float64{}
	for _, mf := range families {
		require.Len(t, mf.GetMetric(), 1)
		m := mf.GetMetric()[0]
		values[mf.GetName()] = m.GetCounter().GetValue()

		require.Len(t, m.GetLabel(), 1)
		assert.Equal(t, "app", m.GetLabel()[0].GetName())
		assert.Equal(t, "test", m.GetLabel()[0].GetValue())
	}
	assert.Equal(t, 2.0, values["metal_runtime_set_calls_total"])
	assert.Equal(t, 2.0, values["metal_runtime_path_cache_misses_total"])

	// should read fresh values on every scrape
	require.NoError(t, rt.Set(obj, "a", 3))
	families, err = reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "metal_runtime_set_calls_total" {
			assert.Equal(t, 3.0, mf.GetMetric()[0].GetCounter().GetValue())
		}
	}
}

func TestRegisterTwiceFails(t *testing.T) {
	rt := metal.CreateRuntime(metal.WithDebug(true))
	reg := prometheus.NewRegistry()

	_, err := metrics.Register(reg, rt)
	require.NoError(t, err)
	_, err = metrics.Register(reg, rt)
	assert.Error(t, err)
}
