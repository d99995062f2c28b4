package inference

import (
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/turnloop/pkg/events"
	"github.com/go-go-golems/turnloop/pkg/helpers"
)

// WatermillSink publishes events to a watermill Publisher as JSON messages.
// Messages are correlated by the session id of the event metadata.
type WatermillSink struct {
	publisher message.Publisher
	topic     string
}

func NewWatermillSink(publisher message.Publisher, topic string) *WatermillSink {
	return &WatermillSink{
		publisher: publisher,
		topic:     topic,
	}
}

func (w *WatermillSink) PublishEvent(event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrapf(err, "could not marshal %s event", event.Type())
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if sid := event.Metadata().SessionID; sid != "" {
		msg.Metadata.Set(helpers.CorrelationIDMetadataKey, sid)
	}

	if err := w.publisher.Publish(w.topic, msg); err != nil {
		log.Error().Err(err).Str("topic", w.topic).Msg("inference: failed to publish event to watermill")
		return err
	}

	log.Trace().Str("topic", w.topic).Str("event_type", string(event.Type())).Msg("inference: published event")
	return nil
}

var _ events.EventSink = (*WatermillSink)(nil)
