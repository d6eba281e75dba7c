package outbox_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mochkris/procurement-backend/pkg/db"
	"github.com/mochkris/procurement-backend/pkg/db/dbtest"
	"github.com/mochkris/procurement-backend/pkg/db/models"
	"github.com/mochkris/procurement-backend/pkg/enums"
	pkgerrors "github.com/mochkris/procurement-backend/pkg/errors"
	"github.com/mochkris/procurement-backend/pkg/outbox"
)

func deadLetter(t *testing.T, conn *gorm.DB, dlq *outbox.DLQRepository, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, failedAt time.Time) {
	t.Helper()
	msg := "topic not configured"
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		return dlq.InsertTx(tx, models.OutboxDLQ{
			EventID:       event.ID,
			EventType:     event.EventType,
			AggregateType: event.AggregateType,
			AggregateID:   event.AggregateID,
			Payload:       event.Payload,
			ErrorReason:   reason,
			ErrorMessage:  &msg,
			AttemptCount:  event.AttemptCount,
			FailedAt:      failedAt,
		})
	}))
}

func terminalEvent(t *testing.T, conn *gorm.DB, eventType enums.OutboxEventType) models.OutboxEvent {
	t.Helper()
	lastErr := "boom"
	event := models.OutboxEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateRequisition,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1}`),
		AttemptCount:  10,
		LastError:     &lastErr,
	}
	require.NoError(t, conn.Create(&event).Error)
	return event
}

func TestDLQListFiltersNewestFirst(t *testing.T) {
	conn := dbtest.Open(t)
	dlq := outbox.NewDLQRepository(conn)
	base := time.Now().UTC().Add(-time.Hour)

	created := terminalEvent(t, conn, enums.EventRequisitionCreated)
	changed := terminalEvent(t, conn, enums.EventRequisitionStatusChanged)
	deadLetter(t, conn, dlq, created, enums.OutboxDLQReasonMaxAttempts, base)
	deadLetter(t, conn, dlq, changed, enums.OutboxDLQReasonNonRetryable, base.Add(time.Minute))

	all, err := dlq.List(context.Background(), outbox.DLQFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, changed.ID, all[0].EventID)

	byReason, err := dlq.List(context.Background(), outbox.DLQFilter{Reason: enums.OutboxDLQReasonMaxAttempts})
	require.NoError(t, err)
	require.Len(t, byReason, 1)
	require.Equal(t, created.ID, byReason[0].EventID)

	byType, err := dlq.List(context.Background(), outbox.DLQFilter{EventType: enums.EventRequisitionStatusChanged, Limit: 5})
	require.NoError(t, err)
	require.Len(t, byType, 1)
}

func TestDLQInsertTruncatesErrorByRunes(t *testing.T) {
	conn := dbtest.Open(t)
	dlq := outbox.NewDLQRepository(conn)
	long := strings.Repeat("é", 2000)
	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		return dlq.InsertTx(tx, models.OutboxDLQ{EventID: uuid.New(), EventType: enums.EventInventoryAdjusted, AggregateType: enums.AggregateRequisition, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), ErrorReason: enums.OutboxDLQReasonNonRetryable, ErrorMessage: &long})
	}))

	rows, err := dlq.List(context.Background(), outbox.DLQFilter{})
	require.NoError(t, err)
	require.Len(t, []rune(*rows[0].ErrorMessage), 1024)
}

func TestRequeueResetsAttemptsAndClearsDeadLetter(t *testing.T) {
	conn := dbtest.Open(t)
	dlq := outbox.NewDLQRepository(conn)
	admin, err := outbox.NewDeadLetters(db.NewFromConn(conn), dlq, nil)
	require.NoError(t, err)

	event := terminalEvent(t, conn, enums.EventRequisitionCreated)
	deadLetter(t, conn, dlq, event, enums.OutboxDLQReasonMaxAttempts, time.Now().UTC())

	entry, err := admin.Requeue(context.Background(), event.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OutboxDLQReasonMaxAttempts, entry.ErrorReason)

	var row models.OutboxEvent
	require.NoError(t, conn.First(&row, "id = ?", event.ID).Error)
	require.Zero(t, row.AttemptCount)
	require.Nil(t, row.LastError)

	_, err = dlq.FindByEventID(context.Background(), event.ID)
	require.ErrorIs(t, err, outbox.ErrDeadLetterNotFound)

	_, err = admin.Requeue(context.Background(), event.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestRequeueRestoresPrunedEvent(t *testing.T) {
	conn := dbtest.Open(t)
	dlq := outbox.NewDLQRepository(conn)
	admin, err := outbox.NewDeadLetters(db.NewFromConn(conn), dlq, nil)
	require.NoError(t, err)

	event := terminalEvent(t, conn, enums.EventPurchaseOrderReceived)
	deadLetter(t, conn, dlq, event, enums.OutboxDLQReasonNonRetryable, time.Now().UTC())
	require.NoError(t, conn.Delete(&models.OutboxEvent{}, "id = ?", event.ID).Error)

	_, err = admin.Requeue(context.Background(), event.ID)
	require.NoError(t, err)

	var row models.OutboxEvent
	require.NoError(t, conn.First(&row, "id = ?", event.ID).Error)
	require.Equal(t, enums.EventPurchaseOrderReceived, row.EventType)
	require.JSONEq(t, `{"version":1}`, string(row.Payload))
	require.Zero(t, row.AttemptCount)
}

func TestRequeueRefusesPublishedEvent(t *testing.T) {
	conn := dbtest.Open(t)
	dlq := outbox.NewDLQRepository(conn)
	admin, err := outbox.NewDeadLetters(db.NewFromConn(conn), dlq, nil)
	require.NoError(t, err)

	event := terminalEvent(t, conn, enums.EventRequisitionCreated)
	deadLetter(t, conn, dlq, event, enums.OutboxDLQReasonMaxAttempts, time.Now().UTC())
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("id = ?", event.ID).Update("published_at", time.Now().UTC()).Error)

	_, err = admin.Requeue(context.Background(), event.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	_, err = dlq.FindByEventID(context.Background(), event.ID)
	require.NoError(t, err, "dead letter kept after a refused requeue")
}
