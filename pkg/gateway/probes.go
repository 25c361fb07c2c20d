package gateway

import (
	"github.com/burrowlabs/burrow/pkg/metrics"
	"github.com/burrowlabs/burrow/pkg/throttle"
)

// Probes is the gateway's observability hook. Production wires it to
// metrics; tests record the calls.
type Probes interface {
	OnClientClose()
	OnSocketTimeout()
	OnThrottle()
	OnHandled()
	OnQueueEnter(depth int)
	OnQueueLeave(depth int)
}

// NopProbes discards all events.
type NopProbes struct{}

func (NopProbes) OnClientClose()   {}
func (NopProbes) OnSocketTimeout() {}
func (NopProbes) OnThrottle()      {}
func (NopProbes) OnHandled()       {}
func (NopProbes) OnQueueEnter(int) {}
func (NopProbes) OnQueueLeave(int) {}

// MetricsProbes forwards events to the Prometheus collectors.
type MetricsProbes struct{}

func (MetricsProbes) OnClientClose()   {}
func (MetricsProbes) OnSocketTimeout() {}

func (MetricsProbes) OnThrottle() {
	metrics.ThrottledRequests.Inc()
}

func (MetricsProbes) OnHandled() {
	metrics.HandledRequests.Inc()
}

func (MetricsProbes) OnQueueEnter(depth int) {
	metrics.QueueDepth.Set(float64(depth))
}

func (MetricsProbes) OnQueueLeave(depth int) {
	metrics.QueueDepth.Set(float64(depth))
}

// throttleObserver adapts Probes to the throttle's observer interface.
type throttleObserver struct {
	probes Probes
}

var _ throttle.Observer = throttleObserver{}

func (o throttleObserver) OnThrottle()            { o.probes.OnThrottle() }
func (o throttleObserver) OnHandled()             { o.probes.OnHandled() }
func (o throttleObserver) OnQueueEnter(depth int) { o.probes.OnQueueEnter(depth) }
func (o throttleObserver) OnQueueLeave(depth int) { o.probes.OnQueueLeave(depth) }
