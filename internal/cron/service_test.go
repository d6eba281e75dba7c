package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/mochkris/procurement-backend/pkg/logger"
	"github.com/mochkris/procurement-backend/pkg/metrics"
)

type fakeLock struct {
	held     bool
	releases int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.releases++
	return nil
}

type countingJob struct {
	name string
	err  error
	runs int
}

func (c *countingJob) Name() string { return c.name }

func (c *countingJob) Run(context.Context) error {
	c.runs++
	return c.err
}

func newCronService(t *testing.T, lock Lock, jobs ...Job) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Registry: NewRegistry(jobs...),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.NewRegistry()),
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestRunCycleRunsEveryJobEvenOnFailure(t *testing.T) {
	sweep := &countingJob{name: "low-stock-sweep", err: errors.New("boom")}
	prune := &countingJob{name: "outbox-retention"}
	lock := &fakeLock{}
	svc := newCronService(t, lock, sweep, prune)

	err := svc.runCycle(context.Background())
	if err == nil || !errors.Is(err, sweep.err) {
		t.Fatalf("expected sweep failure to surface, got %v", err)
	}
	if sweep.runs != 1 || prune.runs != 1 {
		t.Fatalf("expected each job once, got sweep=%d prune=%d", sweep.runs, prune.runs)
	}
	if lock.held || lock.releases != 1 {
		t.Fatalf("expected lock released once, held=%v releases=%d", lock.held, lock.releases)
	}
}

func TestRunCycleSkipsWhenLockHeld(t *testing.T) {
	sweep := &countingJob{name: "low-stock-sweep"}
	svc := newCronService(t, &fakeLock{held: true}, sweep)

	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if sweep.runs != 0 {
		t.Fatalf("expected no runs while another worker holds the lock, got %d", sweep.runs)
	}
}

type panickingJob struct{}

func (panickingJob) Name() string { return "exploding" }

func (panickingJob) Run(context.Context) error { panic("nil inventory row") }

type recordingMetrics struct {
	runs    map[string]error
	skipped int
}

func (r *recordingMetrics) ObserveRun(job string, _ time.Duration, err error) {
	if r.runs == nil {
		r.runs = map[string]error{}
	}
	r.runs[job] = err
}

func (r *recordingMetrics) IncSkipped() { r.skipped++ }

func TestRunCycleRecoversPanickingJob(t *testing.T) {
	prune := &countingJob{name: "outbox-retention"}
	recorder := &recordingMetrics{}
	svc := newCronService(t, &fakeLock{}, panickingJob{}, prune)
	svc.metrics = recorder

	err := svc.runCycle(context.Background())
	require.ErrorContains(t, err, "exploding: panic: nil inventory row")
	require.Equal(t, 1, prune.runs)
	require.Error(t, recorder.runs["exploding"])
	require.NoError(t, recorder.runs["outbox-retention"])
}

func TestRunCycleCountsSkips(t *testing.T) {
	recorder := &recordingMetrics{}
	svc := newCronService(t, &fakeLock{held: true}, &countingJob{name: "low-stock-sweep"})
	svc.metrics = recorder

	require.NoError(t, svc.runCycle(context.Background()))
	require.Equal(t, 1, recorder.skipped)
	require.Empty(t, recorder.runs)
}

func TestRunCycleStopsOnCanceledContext(t *testing.T) {
	sweep := &countingJob{name: "low-stock-sweep"}
	svc := newCronService(t, &fakeLock{}, sweep)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, svc.runCycle(ctx), context.Canceled)
	require.Equal(t, 0, sweep.runs)
}

func TestNewServiceRequiresLock(t *testing.T) {
	if _, err := NewService(ServiceParams{Logger: logger.New(logger.Options{ServiceName: "cron-test"})}); err == nil {
		t.Fatal("expected error without lock")
	}
}
