package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mochkris/procurement-backend/pkg/db/models"
	pkgerrors "github.com/mochkris/procurement-backend/pkg/errors"
	"github.com/mochkris/procurement-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// DeadLetters is the operator view over the DLQ: inspect what the publisher gave
// up on and push an event back into the outbox once the cause is fixed.
type DeadLetters struct {
	db   txRunner
	repo *DLQRepository
	logg *logger.Logger
	now  func() time.Time
}

func NewDeadLetters(db txRunner, repo *DLQRepository, logg *logger.Logger) (*DeadLetters, error) {
	if db == nil {
		return nil, errors.New("db required")
	}
	if repo == nil {
		return nil, errors.New("dlq repository required")
	}
	return &DeadLetters{db: db, repo: repo, logg: logg, now: time.Now}, nil
}

func (d *DeadLetters) List(ctx context.Context, filter DLQFilter) ([]models.OutboxDLQ, error) {
	rows, err := d.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list dead letters")
	}
	return rows, nil
}

// Requeue resets the event's attempts and removes its dead letters atomically.
func (d *DeadLetters) Requeue(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error) {
	var entry *models.OutboxDLQ
	err := d.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		entry, err = d.repo.RequeueTx(tx, eventID, d.now())
		return err
	})
	switch {
	case errors.Is(err, ErrDeadLetterNotFound):
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dead letter not found").
			WithDetails(map[string]any{"event_id": eventID})
	case errors.Is(err, ErrAlreadyPublished):
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "event already published")
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "requeue dead letter")
	}

	if d.logg != nil {
		d.logg.Info(d.logg.WithFields(ctx, map[string]any{
			"event_id":     eventID,
			"event_type":   entry.EventType,
			"error_reason": entry.ErrorReason,
		}), "dead letter requeued")
	}
	return entry, nil
}
