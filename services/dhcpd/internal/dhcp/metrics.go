package dhcp

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "dhcpd"

// Drop reasons recorded on the dropped counter.
const (
	dropMalformed = "malformed"
	dropNoType    = "no_message_type"
	dropExhausted = "pool_exhausted"
	dropEncode    = "encode_error"
)

// Metrics exposes datagram and pool counters. A nil *Metrics records nothing.
type Metrics struct {
	received *prometheus.CounterVec
	replies  *prometheus.CounterVec
	dropped  *prometheus.CounterVec
}

// NewMetrics registers the responder collectors on reg, including gauges
// that read pool occupancy at scrape time.
func NewMetrics(reg prometheus.Registerer, pool *Pool) (*Metrics, error) {
	m := &Metrics{
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "datagrams_received_total",
			Help:      "DHCP datagrams received, by message type.",
		}, []string{"type"}),
		replies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "replies_total",
			Help:      "Replies built, by message type.",
		}, []string{"type"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "datagrams_dropped_total",
			Help:      "Datagrams dropped without a reply, by reason.",
		}, []string{"reason"}),
	}

	collectors := []prometheus.Collector{m.received, m.replies, m.dropped}
	if pool != nil {
		collectors = append(collectors,
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "pool_addresses",
				Help:      "Addresses in the configured pool.",
			}, func() float64 { return float64(pool.Size()) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "leases_active",
				Help:      "Leases whose expiry is in the future.",
			}, func() float64 { return float64(pool.Active()) }),
		)
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeReceived(msgType string) {
	if m == nil {
		return
	}
	m.received.WithLabelValues(msgType).Inc()
}

func (m *Metrics) observeReply(msgType string) {
	if m == nil {
		return
	}
	m.replies.WithLabelValues(msgType).Inc()
}

func (m *Metrics) observeDrop(reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(reason).Inc()
}
