package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the bot's Prometheus collectors. A nil *Metrics is a no-op.
type Metrics struct {
	registry      *prometheus.Registry
	handler       http.Handler
	whistles      *prometheus.CounterVec
	directs       *prometheus.CounterVec
	scorePolls    *prometheus.CounterVec
	cycleErrors   *prometheus.CounterVec
	phase         prometheus.Gauge
	dailyResets   prometheus.Counter
	inboundHandle *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	whistles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "whistles_total",
		Help: "Whistle emissions by kind and result",
	}, []string{"kind", "result"})

	directs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "direct_messages_sent_total",
		Help: "Direct messages sent by result",
	}, []string{"result"})

	scorePolls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "score_polls_total",
		Help: "Score source polls by result",
	}, []string{"result"})

	cycleErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cycle_errors_total",
		Help: "Errors caught by the cycle loop by kind",
	}, []string{"kind"})

	phase := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gameday_phase",
		Help: "Current gameday phase ordinal",
	})

	dailyResets := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "daily_resets_total",
		Help: "Completed daily resets",
	})

	inbound := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inbound_messages_total",
		Help: "Handled inbound direct messages by command",
	}, []string{"command"})

	registry.MustRegister(whistles, directs, scorePolls, cycleErrors, phase, dailyResets, inbound,
		collectors.NewGoCollector())

	return &Metrics{
		registry:      registry,
		handler:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		whistles:      whistles,
		directs:       directs,
		scorePolls:    scorePolls,
		cycleErrors:   cycleErrors,
		phase:         phase,
		dailyResets:   dailyResets,
		inboundHandle: inbound,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) ObserveWhistle(kind string, err error) {
	if m == nil {
		return
	}
	m.whistles.WithLabelValues(kind, result(err)).Inc()
}

// SkipWhistle counts a whistle dropped before reaching the transport.
func (m *Metrics) SkipWhistle(kind, reason string) {
	if m == nil {
		return
	}
	m.whistles.WithLabelValues(kind, reason).Inc()
}

func (m *Metrics) ObserveDirect(err error) {
	if m == nil {
		return
	}
	m.directs.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) ObserveScorePoll(outcome string) {
	if m == nil {
		return
	}
	m.scorePolls.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveCycleError(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unclassified"
	}
	m.cycleErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) SetPhase(ordinal int) {
	if m == nil {
		return
	}
	m.phase.Set(float64(ordinal))
}

func (m *Metrics) ObserveDailyReset() {
	if m == nil {
		return
	}
	m.dailyResets.Inc()
}

func (m *Metrics) ObserveInbound(command string) {
	if m == nil {
		return
	}
	m.inboundHandle.WithLabelValues(command).Inc()
}
