package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mochkris/procurement-backend/pkg/logger"
)

const (
	defaultOutboxRetention = 30 * 24 * time.Hour
	defaultDeadAttempts    = 10
)

// OutboxRetentionJobParams configure outbox pruning. DeadAttempts should match the
// publisher's max attempts so dead-lettered rows are pruned with published ones.
type OutboxRetentionJobParams struct {
	Logger        *logger.Logger
	DB            txRunner
	Repository    outboxPruner
	RetentionDays int
	DeadAttempts  int
}

type outboxPruner interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	window := defaultOutboxRetention
	if params.RetentionDays > 0 {
		window = time.Duration(params.RetentionDays) * 24 * time.Hour
	}
	deadAttempts := params.DeadAttempts
	if deadAttempts <= 0 {
		deadAttempts = defaultDeadAttempts
	}
	return &outboxRetentionJob{
		logg:         params.Logger,
		db:           params.DB,
		repo:         params.Repository,
		window:       window,
		deadAttempts: deadAttempts,
		now:          time.Now,
	}, nil
}

type outboxRetentionJob struct {
	logg         *logger.Logger
	db           txRunner
	repo         outboxPruner
	window       time.Duration
	deadAttempts int
	now          func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.window)
	var pruned int64
	if err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.repo.DeletePublishedBefore(ctx, tx, cutoff, j.deadAttempts)
		pruned = rows
		return err
	}); err != nil {
		return fmt.Errorf("prune outbox: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":        cutoff,
		"dead_attempts": j.deadAttempts,
		"rows_deleted":  pruned,
	})
	j.logg.Info(logCtx, "outbox pruned")
	return nil
}
