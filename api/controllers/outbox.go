package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mochkris/procurement-backend/api/responses"
	"github.com/mochkris/procurement-backend/api/validators"
	"github.com/mochkris/procurement-backend/pkg/db/models"
	"github.com/mochkris/procurement-backend/pkg/enums"
	pkgerrors "github.com/mochkris/procurement-backend/pkg/errors"
	"github.com/mochkris/procurement-backend/pkg/logger"
	"github.com/mochkris/procurement-backend/pkg/outbox"
)

// DeadLetterAdmin is the operator surface over dead-lettered outbox events.
type DeadLetterAdmin interface {
	List(ctx context.Context, filter outbox.DLQFilter) ([]models.OutboxDLQ, error)
	Requeue(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error)
}

type deadLetterView struct {
	EventID       uuid.UUID       `json:"event_id"`
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	Reason        string          `json:"reason"`
	Error         string          `json:"error,omitempty"`
	Attempts      int             `json:"attempts"`
	FailedAt      time.Time       `json:"failed_at"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

func newDeadLetterView(row models.OutboxDLQ, withPayload bool) deadLetterView {
	view := deadLetterView{
		EventID:       row.EventID,
		EventType:     string(row.EventType),
		AggregateType: string(row.AggregateType),
		AggregateID:   row.AggregateID,
		Reason:        row.ErrorReason.String(),
		Attempts:      row.AttemptCount,
		FailedAt:      row.FailedAt,
	}
	if row.ErrorMessage != nil {
		view.Error = *row.ErrorMessage
	}
	if withPayload {
		view.Payload = row.Payload
	}
	return view
}

// DeadLetterList supports ?reason=, ?event_type= and ?limit=.
func DeadLetterList(svc DeadLetterAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter := outbox.DLQFilter{Limit: limit}
		if raw := strings.TrimSpace(r.URL.Query().Get("reason")); raw != "" {
			reason, err := enums.ParseOutboxDLQErrorReason(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reason"))
				return
			}
			filter.Reason = reason
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("event_type")); raw != "" {
			eventType := enums.OutboxEventType(raw)
			if !eventType.IsValid() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid event_type"))
				return
			}
			filter.EventType = eventType
		}

		rows, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		views := make([]deadLetterView, 0, len(rows))
		for _, row := range rows {
			views = append(views, newDeadLetterView(row, false))
		}
		responses.WriteSuccess(w, views)
	}
}

func DeadLetterRequeue(svc DeadLetterAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID, err := parseUUIDParam(r, "eventId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entry, err := svc.Requeue(r.Context(), eventID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, newDeadLetterView(*entry, true))
	}
}
