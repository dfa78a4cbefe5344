package service

import (
	"github.com/rs/zerolog/log"

	"github.com/livecast/livecast/internal/events"
)

// notify dispatches one event outside the session lock. Delivery failures
// are logged and swallowed: the state change that produced the event has
// already been applied and is authoritative regardless of delivery.
func notify(n events.Notifier, e events.Event) {
	if n == nil {
		return
	}
	if err := n.Publish(e); err != nil {
		log.Error().Err(err).Str("module", "service").
			Str("stream_id", e.StreamID()).Str("event", string(e.Kind())).
			Msg("fan-out delivery failed")
	}
}
