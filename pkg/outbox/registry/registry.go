package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/angelmondragon/musicportal-backend/pkg/config"
	"github.com/angelmondragon/musicportal-backend/pkg/db/models"
	"github.com/angelmondragon/musicportal-backend/pkg/enums"
	"github.com/angelmondragon/musicportal-backend/pkg/outbox"
	"github.com/angelmondragon/musicportal-backend/pkg/outbox/payloads"
)

// EventDescriptor routes one event type to a topic and knows how to decode
// its payload.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	decode        func(json.RawMessage) (any, error)
}

// ResolvedEvent is a validated outbox row with its payload decoded into the
// typed struct for its event type.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

func route[T any](event enums.OutboxEventType, topic string) EventDescriptor {
	return EventDescriptor{
		EventType:     event,
		AggregateType: event.Aggregate(),
		Topic:         topic,
		decode: func(raw json.RawMessage) (any, error) {
			payload := new(T)
			if err := json.Unmarshal(raw, payload); err != nil {
				return nil, err
			}
			return payload, nil
		},
	}
}

// NewEventRegistry sends registration lifecycle events to the registration
// topic and song and account events to the catalog topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	var missing error
	if cfg.RegistrationTopic == "" {
		missing = errors.Join(missing, errors.New("registration topic is required"))
	}
	if cfg.CatalogTopic == "" {
		missing = errors.Join(missing, errors.New("catalog topic is required"))
	}
	if missing != nil {
		return nil, missing
	}

	descriptors := []EventDescriptor{
		route[payloads.RegistrationSubmittedEvent](enums.EventRegistrationSubmitted, cfg.RegistrationTopic),
		route[payloads.RegistrationApprovedEvent](enums.EventRegistrationApproved, cfg.RegistrationTopic),
		route[payloads.RegistrationRejectedEvent](enums.EventRegistrationRejected, cfg.RegistrationTopic),
		route[payloads.SongUploadedEvent](enums.EventSongUploaded, cfg.CatalogTopic),
		route[payloads.SongDeletedEvent](enums.EventSongDeleted, cfg.CatalogTopic),
		route[payloads.AccountDeletedEvent](enums.EventAccountDeleted, cfg.CatalogTopic),
	}
	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(descriptors))}
	for _, desc := range descriptors {
		reg.entries[desc.EventType] = desc
	}
	return reg, nil
}

// Topics lists the distinct topics in sorted order.
func (r *EventRegistry) Topics() []string {
	set := map[string]struct{}{}
	for _, desc := range r.entries {
		set[desc.Topic] = struct{}{}
	}
	return slices.Sorted(maps.Keys(set))
}

// Resolve checks the row against its descriptor and decodes the payload.
// Every failure is non-retryable: the row will never get better.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	case desc.AggregateType != event.AggregateType:
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	case event.AggregateID == uuid.Nil:
		return nil, NewNonRetryableError(errors.New("missing aggregate_id"))
	}

	envelope, err := outbox.OpenEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("%s: %w", event.EventType, err))
	}
	payload, err := desc.decode(envelope.Data)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
