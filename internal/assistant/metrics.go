package assistant

import "github.com/prometheus/client_golang/prometheus"

var (
	assistantTriggered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "restaurant_chat_assistant_triggered_total",
			Help: "Messages that passed the assistant eligibility heuristic.",
		},
	)
	assistantResponded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "restaurant_chat_assistant_responses_total",
			Help: "Bot replies appended successfully.",
		},
	)
	assistantFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "restaurant_chat_assistant_failures_total",
			Help: "Responder calls that timed out or failed.",
		},
	)
)

func init() {
	prometheus.MustRegister(assistantTriggered, assistantResponded, assistantFailed)
}

func incTriggered() {
	assistantTriggered.Inc()
}

func incResponded() {
	assistantResponded.Inc()
}

func incFailed() {
	assistantFailed.Inc()
}
