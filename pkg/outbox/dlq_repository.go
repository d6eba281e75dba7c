package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mochkris/procurement-backend/pkg/db/models"
	"github.com/mochkris/procurement-backend/pkg/enums"
)

const (
	maxDLQErrorRunes = 1024
	defaultDLQLimit  = 50
)

var (
	// ErrDeadLetterNotFound is returned when no dead-letter row exists for an event.
	ErrDeadLetterNotFound = errors.New("dead letter not found")
	// ErrAlreadyPublished guards against requeueing an event that went out.
	ErrAlreadyPublished = errors.New("outbox event already published")
)

// DLQFilter narrows List. Zero values match everything.
type DLQFilter struct {
	Reason    enums.OutboxDLQErrorReason
	EventType enums.OutboxEventType
	Limit     int
}

// DLQRepository stores events the publisher gave up on, keyed by outbox row id.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if entry.ErrorMessage != nil {
		msg := truncateRunes(*entry.ErrorMessage, maxDLQErrorRunes)
		entry.ErrorMessage = &msg
	}
	return tx.Create(&entry).Error
}

// FindByEventID returns the newest dead letter for the event.
func (r *DLQRepository) FindByEventID(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error) {
	return r.findTx(r.db.WithContext(ctx), eventID)
}

func (r *DLQRepository) findTx(tx *gorm.DB, eventID uuid.UUID) (*models.OutboxDLQ, error) {
	var row models.OutboxDLQ
	err := tx.Where("event_id = ?", eventID).Order("failed_at DESC").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDeadLetterNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// List returns dead letters newest first.
func (r *DLQRepository) List(ctx context.Context, filter DLQFilter) ([]models.OutboxDLQ, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultDLQLimit
	}
	query := r.db.WithContext(ctx).Model(&models.OutboxDLQ{})
	if filter.Reason != "" {
		query = query.Where("error_reason = ?", filter.Reason)
	}
	if filter.EventType != "" {
		query = query.Where("event_type = ?", filter.EventType)
	}
	var rows []models.OutboxDLQ
	err := query.Order("failed_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

// RequeueTx hands a dead-lettered event back to the publisher with a fresh
// attempt budget. Retention may already have pruned the outbox row, in which
// case it is restored from the dead-letter copy under the same id.
func (r *DLQRepository) RequeueTx(tx *gorm.DB, eventID uuid.UUID, now time.Time) (*models.OutboxDLQ, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	entry, err := r.findTx(tx, eventID)
	if err != nil {
		return nil, err
	}

	var current []models.OutboxEvent
	if err := tx.Where("id = ?", eventID).Limit(1).Find(&current).Error; err != nil {
		return nil, err
	}
	switch {
	case len(current) == 0:
		restored := models.OutboxEvent{
			ID:            entry.EventID,
			EventType:     entry.EventType,
			AggregateType: entry.AggregateType,
			AggregateID:   entry.AggregateID,
			Payload:       entry.Payload,
			CreatedAt:     now.UTC(),
		}
		if err := tx.Create(&restored).Error; err != nil {
			return nil, err
		}
	case current[0].PublishedAt != nil:
		return nil, ErrAlreadyPublished
	default:
		err := tx.Model(&models.OutboxEvent{}).
			Where("id = ?", eventID).
			Updates(map[string]any{"attempt_count": 0, "last_error": nil}).Error
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Where("event_id = ?", eventID).Delete(&models.OutboxDLQ{}).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
