package tracker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ticksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vcattend_poll_ticks_total",
		Help: "Polling ticks executed across all sessions.",
	})
	emptyTicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vcattend_poll_empty_ticks_total",
		Help: "Ticks that observed no participants, including failed fetches.",
	})
	observationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vcattend_observations_total",
		Help: "Participant observations accumulated into records.",
	})
	accumulateFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vcattend_accumulate_failures_total",
		Help: "Batched accumulate calls that returned an error.",
	})
)
