package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sarchlab/evsim/hooking"
	"github.com/sarchlab/evsim/timing"
)

// Metrics is a hook that exports event counters and the virtual clock to
// Prometheus.
type Metrics struct {
	scheduled   prometheus.Counter
	cancelled   prometheus.Counter
	executed    prometheus.Counter
	virtualTime prometheus.Gauge
}

// NewMetrics registers the simulator metrics with reg. The pending-events
// gauge reads s directly.
func NewMetrics(reg prometheus.Registerer, s *timing.Simulator) *Metrics {
	m := &Metrics{
		scheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "evsim",
			Name:      "events_scheduled_total",
			Help:      "Number of events scheduled.",
		}),
		cancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "evsim",
			Name:      "events_cancelled_total",
			Help:      "Number of events cancelled before firing.",
		}),
		executed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "evsim",
			Name:      "events_executed_total",
			Help:      "Number of event handlers run.",
		}),
		virtualTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "evsim",
			Name:      "virtual_time_seconds",
			Help:      "Current virtual time of the simulator.",
		}),
	}

	pending := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "evsim",
		Name:      "events_pending",
		Help:      "Number of events waiting to fire.",
	}, func() float64 {
		return float64(s.PendingEvents())
	})

	reg.MustRegister(m.scheduled, m.cancelled, m.executed, m.virtualTime, pending)

	return m
}

// Func updates the metrics.
func (m *Metrics) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case timing.HookPosEventScheduled:
		if evt, ok := ctx.Item.(*timing.Event); ok && !evt.IsSentinel() {
			m.scheduled.Inc()
		}
	case timing.HookPosEventCancelled:
		if evt, ok := ctx.Item.(*timing.Event); ok && !evt.IsSentinel() {
			m.cancelled.Inc()
		}
	case timing.HookPosBeforeEvent:
		evt := ctx.Item.(*timing.Event)
		m.virtualTime.Set(evt.Time().Seconds())
	case timing.HookPosAfterEvent:
		m.executed.Inc()
	case timing.HookPosStop:
		m.virtualTime.Set(ctx.Item.(timing.VTime).Seconds())
	}
}
