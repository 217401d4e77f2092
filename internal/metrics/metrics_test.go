package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestBookingMetricsRegisterAndCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.ObserveBooking("committed")
	m.ObserveBooking("committed")
	m.ObserveBooking("rejected")
	m.ObserveSlotQuery()
	m.ObserveAllocationLatency(0.002)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.bookingsTotal.WithLabelValues("committed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.bookingsTotal.WithLabelValues("rejected")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.slotQueriesTotal))
}

func TestBookingMetricsNilSafe(t *testing.T) {
	var m *BookingMetrics

	assert.NotPanics(t, func() {
		m.ObserveBooking("committed")
		m.ObserveSlotQuery()
		m.ObserveAllocationLatency(0.1)
	})
}
