package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Shortened           prometheus.Counter
	Allocated           prometheus.Counter
	Resolved            prometheus.Counter
	AllocationConflicts prometheus.Counter
	AllocationExhausted prometheus.Counter
}

// New registers the shortener counters in reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		Shortened: f.NewCounter(prometheus.CounterOpts{
			Name: "shortener_shortened_total",
			Help: "Submissions answered with a short code, new or existing.",
		}),
		Allocated: f.NewCounter(prometheus.CounterOpts{
			Name: "shortener_allocated_total",
			Help: "Short codes newly allocated.",
		}),
		Resolved: f.NewCounter(prometheus.CounterOpts{
			Name: "shortener_resolved_total",
			Help: "Short codes resolved to an original URL.",
		}),
		AllocationConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "shortener_allocation_conflicts_total",
			Help: "Inserts rejected with a duplicate key and retried.",
		}),
		AllocationExhausted: f.NewCounter(prometheus.CounterOpts{
			Name: "shortener_allocation_exhausted_total",
			Help: "Submissions that ran out of allocation attempts.",
		}),
	}
}

func (m *Metrics) Shorten() {
	m.Shortened.Inc()
}

func (m *Metrics) Allocate() {
	m.Allocated.Inc()
}

func (m *Metrics) Resolve() {
	m.Resolved.Inc()
}

func (m *Metrics) Conflict() {
	m.AllocationConflicts.Inc()
}

func (m *Metrics) Exhaust() {
	m.AllocationExhausted.Inc()
}
