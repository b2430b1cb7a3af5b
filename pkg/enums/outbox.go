package enums

import (
	"fmt"
	"slices"
)

// OutboxAggregateType names the entity an outbox event is about.
type OutboxAggregateType string

const (
	AggregateRegistrationRequest OutboxAggregateType = "registration_request"
	AggregateSong                OutboxAggregateType = "song"
	AggregateAccount             OutboxAggregateType = "account"
)

// OutboxEventType names what happened. Every event type belongs to exactly
// one aggregate type.
type OutboxEventType string

const (
	EventRegistrationSubmitted OutboxEventType = "registration_submitted"
	EventRegistrationApproved  OutboxEventType = "registration_approved"
	EventRegistrationRejected  OutboxEventType = "registration_rejected"
	EventSongUploaded          OutboxEventType = "song_uploaded"
	EventSongDeleted           OutboxEventType = "song_deleted"
	EventAccountDeleted        OutboxEventType = "account_deleted"
)

var eventAggregates = map[OutboxEventType]OutboxAggregateType{
	EventRegistrationSubmitted: AggregateRegistrationRequest,
	EventRegistrationApproved:  AggregateRegistrationRequest,
	EventRegistrationRejected:  AggregateRegistrationRequest,
	EventSongUploaded:          AggregateSong,
	EventSongDeleted:           AggregateSong,
	EventAccountDeleted:        AggregateAccount,
}

func (a OutboxAggregateType) IsValid() bool {
	return slices.Contains([]OutboxAggregateType{AggregateRegistrationRequest, AggregateSong, AggregateAccount}, a)
}

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	if a := OutboxAggregateType(value); a.IsValid() {
		return a, nil
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

func (e OutboxEventType) IsValid() bool {
	_, ok := eventAggregates[e]
	return ok
}

// Aggregate returns the aggregate type e is emitted for, or "" when e is
// unknown.
func (e OutboxEventType) Aggregate() OutboxAggregateType {
	return eventAggregates[e]
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	if e := OutboxEventType(value); e.IsValid() {
		return e, nil
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxDLQErrorReason explains why the publisher gave up on an event.
type OutboxDLQErrorReason string

const (
	// Pub/Sub kept failing until the attempt budget ran out.
	OutboxDLQReasonMaxAttempts OutboxDLQErrorReason = "max_attempts"
	// The row can never be published: unknown event type, bad envelope or no
	// topic for the aggregate.
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	return r == OutboxDLQReasonMaxAttempts || r == OutboxDLQReasonNonRetryable
}
