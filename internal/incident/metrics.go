package incident

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the intake loop.
type Metrics struct {
	CyclesTotal     *prometheus.CounterVec
	CycleDuration   prometheus.Histogram
	FetchedTotal    prometheus.Counter
	ProcessedTotal  *prometheus.CounterVec
	ClassifiedTotal *prometheus.CounterVec
	AcksTotal       *prometheus.CounterVec
	TicketsTotal    *prometheus.CounterVec
	DedupSkipsTotal prometheus.Counter
}

// NewMetrics registers and returns intake metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailroom_cycles_total",
			Help: "Total poll cycles by outcome.",
		}, []string{"outcome"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mailroom_cycle_duration_seconds",
			Help:    "Duration of poll cycles in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s .. ~51s
		}),
		FetchedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailroom_messages_fetched_total",
			Help: "Total candidate messages returned by the inbound transport.",
		}),
		ProcessedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailroom_incidents_processed_total",
			Help: "Per-incident outcomes (handled, duplicate, malformed, retry).",
		}, []string{"outcome"}),
		ClassifiedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailroom_incidents_classified_total",
			Help: "Classified incidents by priority level.",
		}, []string{"priority"}),
		AcksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailroom_acks_total",
			Help: "Acknowledgement deliveries by result.",
		}, []string{"result"}),
		TicketsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mailroom_tickets_total",
			Help: "Ticket filing attempts by result.",
		}, []string{"result"}),
		DedupSkipsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailroom_dedup_skips_total",
			Help: "Messages skipped because their identifier was already handled.",
		}),
	}

	reg.MustRegister(
		m.CyclesTotal,
		m.CycleDuration,
		m.FetchedTotal,
		m.ProcessedTotal,
		m.ClassifiedTotal,
		m.AcksTotal,
		m.TicketsTotal,
		m.DedupSkipsTotal,
	)

	return m
}
