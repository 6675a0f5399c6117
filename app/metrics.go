package app

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes counters for reference data loads, suggestion lookups and
// outgoing mail. A nil *Metrics is valid and records nothing.
type Metrics struct {
	fetchTotal    *prometheus.CounterVec
	suggestTotal  *prometheus.CounterVec
	mailTotal     *prometheus.CounterVec
	activeWidgets prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		fetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "psph",
			Subsystem: "refdata",
			Name:      "fetch_total",
			Help:      "Reference list fetches by list and outcome",
		}, []string{"list", "status"}),
		suggestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "psph",
			Subsystem: "autocomplete",
			Name:      "suggest_total",
			Help:      "Suggestion lookups by list and outcome",
		}, []string{"list", "outcome"}),
		mailTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "psph",
			Subsystem: "mail",
			Name:      "sent_total",
			Help:      "Appointment emails by kind and outcome",
		}, []string{"kind", "status"}),
		activeWidgets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "psph",
			Subsystem: "autocomplete",
			Name:      "active_widgets",
			Help:      "Server-hosted autocomplete widgets currently alive",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.fetchTotal, m.suggestTotal, m.mailTotal, m.activeWidgets)
	return m
}

func (m *Metrics) ObserveFetch(id ListID, status string) {
	if m == nil {
		return
	}
	m.fetchTotal.WithLabelValues(string(id), status).Inc()
}

// ObserveSuggest records a lookup. outcome is one of "hit", "empty" or "error".
func (m *Metrics) ObserveSuggest(id ListID, outcome string) {
	if m == nil {
		return
	}
	m.suggestTotal.WithLabelValues(string(id), outcome).Inc()
}

func (m *Metrics) ObserveMail(kind, status string) {
	if m == nil {
		return
	}
	m.mailTotal.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) SetActiveWidgets(n int) {
	if m == nil {
		return
	}
	m.activeWidgets.Set(float64(n))
}
