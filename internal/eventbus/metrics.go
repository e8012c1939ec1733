package eventbus

import "github.com/prometheus/client_golang/prometheus"

var (
	eventsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hostbot",
			Subsystem: "events",
			Name:      "emitted_total",
			Help:      "Total number of platform events emitted on the bus",
		},
		[]string{"event"},
	)

	handlerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hostbot",
			Name:      "handler_failures_total",
			Help:      "Event handler invocations that returned an error or panicked",
		},
		[]string{"event", "kind"},
	)
)

func init() {
	prometheus.MustRegister(eventsEmitted, handlerFailures)
}
