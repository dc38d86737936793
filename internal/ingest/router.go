// Package ingest turns raw broker messages into persisted readings,
// liveness transitions, and fault notifications.
package ingest

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"growrack/internal/logging"
	"growrack/internal/message"
	"growrack/internal/metrics"
)

// Each message gets its own deadline so one stuck query cannot pin a
// handler goroutine forever.
const processTimeout = 15 * time.Second

type classProcessor interface {
	Process(ctx context.Context, rackAddr string, payload []byte) error
}

// Router dispatches inbound messages by topic class. It is the only
// code the transport calls back into, so nothing may escape it: bad
// topics and payloads are logged and dropped, and a panic in a
// processor is recovered.
type Router struct {
	log       zerolog.Logger
	telemetry classProcessor
	status    classProcessor
	errors    classProcessor
}

// NewRouter wires the three class processors.
func NewRouter(telemetry, status, errors classProcessor) *Router {
	return &Router{
		log:       logging.WithComponent("router"),
		telemetry: telemetry,
		status:    status,
		errors:    errors,
	}
}

// Dispatch routes one raw message. Safe to call concurrently.
func (r *Router) Dispatch(topic string, payload []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.MessagesDropped.WithLabelValues("processing_panic").Inc()
			r.log.Error().Str("topic", topic).Interface("panic", rec).Msg("recovered panic while processing message")
		}
	}()

	info, err := message.ParseTopic(topic)
	if err != nil {
		metrics.MessagesDropped.WithLabelValues("invalid_topic").Inc()
		r.log.Warn().Str("topic", topic).Err(err).Msg("dropping message with invalid topic")
		return
	}

	var proc classProcessor
	switch info.Class {
	case message.ClassSensors:
		proc = r.telemetry
	case message.ClassStatus:
		proc = r.status
	case message.ClassErrors:
		proc = r.errors
	default:
		metrics.MessagesDropped.WithLabelValues("unknown_class").Inc()
		r.log.Warn().Str("topic", topic).Str("class", string(info.Class)).Msg("dropping message with unknown class")
		return
	}

	metrics.MessagesReceived.WithLabelValues(string(info.Class)).Inc()

	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	if err := proc.Process(ctx, info.RackAddr, payload); err != nil {
		metrics.MessagesDropped.WithLabelValues("processing_error").Inc()
		r.log.Warn().
			Str("topic", topic).
			Str("class", string(info.Class)).
			Err(err).
			Msg("message dropped")
	}
}
