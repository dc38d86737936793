// Package metrics exposes the pipeline's Prometheus instruments.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// MessagesReceived counts inbound broker messages by class.
	MessagesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "growrack_messages_received_total",
			Help: "Inbound MQTT messages by topic class.",
		},
		[]string{"class"},
	)

	// MessagesDropped counts messages discarded before processing.
	MessagesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "growrack_messages_dropped_total",
			Help: "Messages dropped by reason (invalid_topic, unknown_class, invalid_payload, unknown_device, processing_error).",
		},
		[]string{"reason"},
	)

	// ReadingsPersisted counts telemetry rows written.
	ReadingsPersisted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "growrack_readings_persisted_total",
			Help: "Sensor readings appended to storage.",
		},
	)

	// RulesEvaluated counts rule evaluation outcomes.
	RulesEvaluated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "growrack_rules_evaluated_total",
			Help: "Rule evaluations by outcome (triggered, not_met, cooldown, error).",
		},
		[]string{"outcome"},
	)

	// CommandsPublished counts outbound actuator commands.
	CommandsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "growrack_commands_published_total",
			Help: "Actuator commands published by channel.",
		},
		[]string{"channel"},
	)

	// PublishFailures counts failed command publications.
	PublishFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "growrack_publish_failures_total",
			Help: "Commands that failed to reach the broker.",
		},
	)

	// BrokerReconnects counts reconnect attempts against the broker.
	BrokerReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "growrack_broker_reconnects_total",
			Help: "Reconnection attempts to the MQTT broker.",
		},
	)

	// WSClients tracks currently connected websocket clients.
	WSClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "growrack_ws_clients",
			Help: "Connected websocket clients.",
		},
	)

	// EventsBroadcast counts events fanned out to websocket rooms.
	EventsBroadcast = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "growrack_events_broadcast_total",
			Help: "Events broadcast to rack rooms by type.",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(
		MessagesReceived,
		MessagesDropped,
		ReadingsPersisted,
		RulesEvaluated,
		CommandsPublished,
		PublishFailures,
		BrokerReconnects,
		WSClients,
		EventsBroadcast,
	)
}
