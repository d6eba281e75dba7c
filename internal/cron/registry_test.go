package cron

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryKeepsOrderAndSkipsNil(t *testing.T) {
	sweep := &countingJob{name: "low-stock-sweep"}
	prune := &countingJob{name: "outbox-retention"}
	registry := NewRegistry(sweep, nil)
	require.NoError(t, registry.Register(nil))
	require.NoError(t, registry.Register(prune))

	jobs := registry.Jobs()
	require.Equal(t, []Job{sweep, prune}, jobs)

	jobs[0] = nil
	require.NotNil(t, registry.Jobs()[0], "internal slice leaked")
}

func TestRegistryRejectsDuplicateAndUnnamedJobs(t *testing.T) {
	registry := NewRegistry(&countingJob{name: "low-stock-sweep"})
	require.ErrorContains(t, registry.Register(&countingJob{name: "low-stock-sweep"}), "already registered")
	require.ErrorContains(t, registry.Register(&countingJob{}), "name is required")
	require.Len(t, registry.Jobs(), 1)

	require.Panics(t, func() {
		NewRegistry(&countingJob{name: "a"}, &countingJob{name: "a"})
	})
}
