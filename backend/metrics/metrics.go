package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the relay's Prometheus collectors. It satisfies the
// service.Observer interface.
type Metrics struct {
	reg         *prometheus.Registry
	connsActive prometheus.Gauge
	relayed     *prometheus.CounterVec
}

// New builds a registry with the relay collectors. roomCount feeds the
// active-rooms gauge on every scrape.
func New(roomCount func() int) *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		connsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "watch_together_connections_active",
			Help: "Live websocket sessions.",
		}),
		relayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "watch_together_events_relayed_total",
			Help: "Events fanned out to rooms, by event type.",
		}, []string{"event"}),
	}
	m.reg.MustRegister(
		m.connsActive,
		m.relayed,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "watch_together_rooms_active",
			Help: "Rooms with members or playback state.",
		}, func() float64 { return float64(roomCount()) }),
	)
	return m
}

func (m *Metrics) ConnOpened() { m.connsActive.Inc() }
func (m *Metrics) ConnClosed() { m.connsActive.Dec() }

func (m *Metrics) EventRelayed(event string) {
	m.relayed.WithLabelValues(event).Inc()
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
