package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	values map[string]string
	ttls   map[string]time.Duration
	delErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryStore) CompareAndDelete(_ context.Context, key, value string) (bool, error) {
	if m.delErr != nil {
		return false, m.delErr
	}
	if m.values[key] != value {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

const testLockKey = "procurement:lock:cron-worker:dev"

func TestRedisLockIsExclusiveAndOwnerScoped(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	first, err := NewRedisLock(store, testLockKey, 0)
	require.NoError(t, err)
	second, err := NewRedisLock(store, testLockKey, time.Minute)
	require.NoError(t, err)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, defaultLockTTL, store.ttls[testLockKey])

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, second.Release(ctx))
	require.Contains(t, store.values, testLockKey, "non-owner release freed the lock")

	require.NoError(t, first.Release(ctx))
	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRedisLockLeavesTakenOverLease(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	lock, _ := NewRedisLock(store, testLockKey, time.Minute)

	ok, _ := lock.Acquire(ctx)
	require.True(t, ok)
	// lease expired and another worker took it
	store.values[testLockKey] = "other-worker"

	require.NoError(t, lock.Release(ctx))
	require.Equal(t, "other-worker", store.values[testLockKey])
}

func TestRedisLockReleaseError(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	lock, _ := NewRedisLock(store, testLockKey, time.Minute)
	_, _ = lock.Acquire(ctx)

	store.delErr = errors.New("connection reset")
	require.ErrorContains(t, lock.Release(ctx), "connection reset")
	require.NoError(t, lock.Release(ctx), "token is cleared after the first release attempt")
}

func TestNewRedisLockValidates(t *testing.T) {
	_, err := NewRedisLock(nil, "key", 0)
	require.Error(t, err)
	_, err = NewRedisLock(newMemoryStore(), "", 0)
	require.Error(t, err)
}
