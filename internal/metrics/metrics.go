package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking hot path.
// All observe methods are nil-safe so wiring metrics stays optional in
// tests and auxiliary binaries.
type BookingMetrics struct {
	bookingsTotal     *prometheus.CounterVec
	slotQueriesTotal  prometheus.Counter
	allocationLatency prometheus.Histogram
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vetdesk",
			Subsystem: "scheduling",
			Name:      "booking_attempts_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		slotQueriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vetdesk",
			Subsystem: "scheduling",
			Name:      "slot_queries_total",
			Help:      "Availability snapshot queries",
		}),
		allocationLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vetdesk",
			Subsystem: "scheduling",
			Name:      "allocation_latency_seconds",
			Help:      "Latency of the locked allocation critical section",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.slotQueriesTotal, m.allocationLatency)
	return m
}

func (m *BookingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveSlotQuery() {
	if m == nil {
		return
	}
	m.slotQueriesTotal.Inc()
}

func (m *BookingMetrics) ObserveAllocationLatency(seconds float64) {
	if m == nil {
		return
	}
	m.allocationLatency.Observe(seconds)
}
