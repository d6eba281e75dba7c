package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mochkris/procurement-backend/pkg/db/dbtest"
	"github.com/mochkris/procurement-backend/pkg/db/models"
	"github.com/mochkris/procurement-backend/pkg/enums"
	"github.com/mochkris/procurement-backend/pkg/logger"
	"github.com/mochkris/procurement-backend/pkg/outbox"
)

func TestOutboxRetentionJobPrunesOldPublishedAndDeadRows(t *testing.T) {
	client := dbtest.Client(t)
	conn := client.DB()
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	old := now.Add(-40 * 24 * time.Hour)
	recent := now.Add(-time.Hour)

	seed := func(createdAt time.Time, published bool, attempts int) uuid.UUID {
		row := models.OutboxEvent{
			ID:            uuid.New(),
			EventType:     enums.EventInventoryAdjusted,
			AggregateType: enums.AggregateInventoryItem,
			AggregateID:   uuid.New(),
			Payload:       []byte(`{}`),
			AttemptCount:  attempts,
			CreatedAt:     createdAt,
		}
		if published {
			row.PublishedAt = &createdAt
		}
		if err := conn.Create(&row).Error; err != nil {
			t.Fatalf("seed outbox row: %v", err)
		}
		return row.ID
	}
	seed(old, true, 1)
	seed(old, false, 3)
	keepPending := seed(old, false, 1)
	keepRecent := seed(recent, true, 1)

	jobIface, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:       logger.New(logger.Options{ServiceName: "test"}),
		DB:           client,
		Repository:   outbox.NewRepository(conn),
		DeadAttempts: 3,
	})
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	job := jobIface.(*outboxRetentionJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var remaining []models.OutboxEvent
	if err := conn.Order("created_at ASC").Find(&remaining).Error; err != nil {
		t.Fatalf("list remaining: %v", err)
	}
	if len(remaining) != 2 {
		t.Fatalf("expected 2 rows left, got %d", len(remaining))
	}
	if remaining[0].ID != keepPending || remaining[1].ID != keepRecent {
		t.Fatalf("unexpected rows kept: %v, %v", remaining[0].ID, remaining[1].ID)
	}
}

func TestOutboxRetentionJobPropagatesError(t *testing.T) {
	jobIface, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		DB:         passthroughTx{},
		Repository: failingPruner{},
	})
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	if err := jobIface.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

type failingPruner struct{}

func (failingPruner) DeletePublishedBefore(context.Context, *gorm.DB, time.Time, int) (int64, error) {
	return 0, errors.New("boom")
}
