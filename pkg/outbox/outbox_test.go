package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/musicportal-backend/pkg/db/dbtest"
	"github.com/angelmondragon/musicportal-backend/pkg/db/models"
	"github.com/angelmondragon/musicportal-backend/pkg/enums"
	"github.com/angelmondragon/musicportal-backend/pkg/outbox"
	"github.com/angelmondragon/musicportal-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestEmitWritesEnvelopeInsideTransaction(t *testing.T) {
	conn := dbtest.Open(t)
	repo := outbox.NewRepository(conn)
	svc := outbox.NewService(repo, nil)
	requestID := uuid.New()

	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, outbox.DomainEvent{
			EventType:     enums.EventRegistrationSubmitted,
			AggregateType: enums.AggregateRegistrationRequest,
			AggregateID:   requestID,
			Data:          payloads.RegistrationSubmittedEvent{RequestID: requestID, Username: "melody"},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, requestID, rows[0].AggregateID)

	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	require.Equal(t, 1, envelope.Version)
	require.NotEmpty(t, envelope.EventID)

	var data payloads.RegistrationSubmittedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	require.Equal(t, "melody", data.Username)
}

func TestEmitRollsBackWithCaller(t *testing.T) {
	conn := dbtest.Open(t)
	svc := outbox.NewService(outbox.NewRepository(conn), nil)

	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, outbox.DomainEvent{
			EventType:     enums.EventSongDeleted,
			AggregateType: enums.AggregateSong,
			AggregateID:   uuid.New(),
			Data:          payloads.SongDeletedEvent{},
		}); err != nil {
			return err
		}
		return errors.New("caller failed")
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestEmitRequiresTransactionAndKnownType(t *testing.T) {
	svc := outbox.NewService(outbox.NewRepository(nil), nil)
	require.Error(t, svc.Emit(context.Background(), nil, outbox.DomainEvent{EventType: enums.EventSongDeleted}))

	conn := dbtest.Open(t)
	require.Error(t, svc.Emit(context.Background(), conn, outbox.DomainEvent{EventType: "made_up"}))
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	conn := dbtest.Open(t)
	repo := outbox.NewRepository(conn)

	first := models.OutboxEvent{EventType: enums.EventSongUploaded, AggregateType: enums.AggregateSong, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)}
	second := models.OutboxEvent{EventType: enums.EventSongDeleted, AggregateType: enums.AggregateSong, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), AttemptCount: 3}
	require.NoError(t, repo.Insert(conn, first))
	require.NoError(t, repo.Insert(conn, second))

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 1, "rows at max attempts are skipped")

	require.NoError(t, repo.MarkFailedTx(conn, rows[0].ID, errors.New("pubsub down")))
	var failed models.OutboxEvent
	require.NoError(t, conn.First(&failed, "id = ?", rows[0].ID).Error)
	require.Equal(t, 1, failed.AttemptCount)
	require.NotNil(t, failed.LastError)
	require.Equal(t, "pubsub down", *failed.LastError)

	require.NoError(t, repo.MarkPublishedTx(conn, rows[0].ID))
	rows, err = repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestDLQRepositoryInsertAndCount(t *testing.T) {
	conn := dbtest.Open(t)
	dlq := outbox.NewDLQRepository(conn)
	msg := "bad payload"
	eventID := uuid.New()

	require.NoError(t, dlq.InsertTx(conn, models.OutboxDLQ{
		EventID:       eventID,
		EventType:     enums.EventSongUploaded,
		AggregateType: enums.AggregateSong,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		ErrorReason:   enums.OutboxDLQReasonNonRetryable,
		ErrorMessage:  &msg,
	}))

	found, err := dlq.FindByEventID(context.Background(), eventID)
	require.NoError(t, err)
	require.NotNil(t, found)

	missing, err := dlq.FindByEventID(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Nil(t, missing)

	counts, err := dlq.CountByReason(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, counts[enums.OutboxDLQReasonNonRetryable])
}

func TestOpenEnvelopeRejectsMissingData(t *testing.T) {
	for _, raw := range []string{`{"version":1,"eventId":"e1"}`, `{"version":1,"data":null}`} {
		_, err := outbox.OpenEnvelope([]byte(raw))
		require.ErrorIs(t, err, outbox.ErrEmptyEnvelopeData, raw)
	}

	_, err := outbox.OpenEnvelope([]byte(`not json`))
	require.Error(t, err)

	env, err := outbox.OpenEnvelope([]byte(`{"version":1,"eventId":"e1","data":{"songId":"x"}}`))
	require.NoError(t, err)
	require.Equal(t, "e1", env.EventID)
}

func TestEmitDerivesAndChecksAggregate(t *testing.T) {
	conn := dbtest.Open(t)
	svc := outbox.NewService(outbox.NewRepository(conn), nil)

	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, outbox.DomainEvent{
			EventType:   enums.EventAccountDeleted,
			AggregateID: uuid.New(),
			Data:        map[string]string{"username": "melody"},
		})
	}))
	var row models.OutboxEvent
	require.NoError(t, conn.First(&row).Error)
	require.Equal(t, enums.AggregateAccount, row.AggregateType)

	err := svc.Emit(context.Background(), conn, outbox.DomainEvent{
		EventType:     enums.EventSongUploaded,
		AggregateType: enums.AggregateAccount,
		AggregateID:   uuid.New(),
		Data:          map[string]string{},
	})
	require.ErrorContains(t, err, "belong to song")
	require.ErrorIs(t, svc.Emit(context.Background(), nil, outbox.DomainEvent{}), outbox.ErrTxRequired)
}

func TestDeadLetterCopiesEvent(t *testing.T) {
	conn := dbtest.Open(t)
	dlq := outbox.NewDLQRepository(conn)
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventSongDeleted,
		AggregateType: enums.AggregateSong,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1}`),
		AttemptCount:  10,
	}
	cause := errors.New(strings.Repeat("x", 5000))

	require.NoError(t, dlq.InsertTx(conn, models.DeadLetter(event, enums.OutboxDLQReasonMaxAttempts, cause, time.Now())))
	found, err := dlq.FindByEventID(context.Background(), event.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, 10, found.AttemptCount)
	require.Len(t, *found.ErrorMessage, 1024, "error messages are clipped")

	bad := models.DeadLetter(event, "timeout", nil, time.Now())
	require.Error(t, dlq.InsertTx(conn, bad))
}
