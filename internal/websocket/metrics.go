package websocket

import "github.com/prometheus/client_golang/prometheus"

var (
	wsConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "restaurant_chat_ws_connections",
			Help: "Current number of active websocket connections.",
		},
	)
	wsSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "restaurant_chat_ws_sessions",
			Help: "Current number of subscribed session channels.",
		},
	)
	wsMessagesDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "restaurant_chat_ws_messages_delivered_total",
			Help: "Total websocket events delivered to clients.",
		},
	)
	wsPublishFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "restaurant_chat_ws_publish_failures_total",
			Help: "Push publishes that fell back to the poll path.",
		},
	)
)

func init() {
	prometheus.MustRegister(wsConnections, wsSessions, wsMessagesDelivered, wsPublishFailures)
}

func incConnections() {
	wsConnections.Inc()
}

func decConnections() {
	wsConnections.Dec()
}

func setSessions(count int) {
	wsSessions.Set(float64(count))
}

func addDelivered(count int) {
	wsMessagesDelivered.Add(float64(count))
}

func incPublishFailures() {
	wsPublishFailures.Inc()
}
