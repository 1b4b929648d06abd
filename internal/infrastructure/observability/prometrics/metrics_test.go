package prometrics

import (
	"testing"

	"github.com/Zhima-Mochi/krishi-prebook/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterExposesKnownInstruments(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg, "krishi").Register()
	require.NoError(t, err)

	m.Counter(observability.MCartMirrorFailures).Add(1, observability.L("op", "upsert"))
	m.Counter(observability.MCartMirrorFailures).Bind(observability.L("op", "upsert")).Add(2)
	m.Histogram(observability.MUsecaseDuration).Observe(0.2, observability.L("usecase", "ConfirmBooking"))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, mf := range mfs {
		if mf.GetName() == "krishi_cart_mirror_failures_total" {
			found = true
			require.Len(t, mf.GetMetric(), 1)
			assert.Equal(t, 3.0, mf.GetMetric()[0].GetCounter().GetValue())
		}
	}
	assert.True(t, found)
}

func TestRegisterTwiceReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg, "krishi").Register()
	require.NoError(t, err)

	_, err = New(reg, "krishi").Register()
	require.NoError(t, err)
}

func TestUnknownKeyIsNop(t *testing.T) {
	m, err := New(prometheus.NewRegistry(), "krishi").Register()
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		m.Counter("nope").Add(1)
		m.Histogram("nope").Observe(1)
	})
}
