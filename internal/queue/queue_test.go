package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-sync-agent/internal/models"
)

func newTestQueue(t *testing.T, store Store, online bool) *Queue {
	t.Helper()
	q, err := New(store, Config{
		MaxRetries: 3,
		IsOnline:   func() bool { return online },
	})
	require.NoError(t, err)
	return q
}

func rawPayload(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestEnqueuePersistsBeforeReturning(t *testing.T) {
	store := NewMemoryStore()
	q := newTestQueue(t, store, false)

	id, err := q.Enqueue("attendance", "att-1", rawPayload(t, map[string]string{"group": "g1"}))
	require.NoError(t, err)
	assert.Equal(t, "att-1", id)

	persisted, err := store.Load()
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, models.QueueStatusPending, persisted[0].Status)
	assert.Zero(t, persisted[0].RetryCount)
}

func TestEnqueueSameIDIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	q := newTestQueue(t, store, false)

	_, err := q.Enqueue("attendance", "att-1", rawPayload(t, "a"))
	require.NoError(t, err)
	_, err = q.Enqueue("attendance", "att-1", rawPayload(t, "a"))
	require.NoError(t, err)

	assert.Equal(t, 1, q.Status().Total)
}

func TestDrainDeliversAndRemoves(t *testing.T) {
	store := NewMemoryStore()
	q := newTestQueue(t, store, true)

	var delivered []string
	q.RegisterCallback("attendance", func(ctx context.Context, item models.QueueItem) error {
		delivered = append(delivered, item.ID)
		return nil
	})

	_, err := q.Enqueue("attendance", "att-1", rawPayload(t, "a"))
	require.NoError(t, err)
	_, err = q.Enqueue("attendance", "att-2", rawPayload(t, "b"))
	require.NoError(t, err)

	q.Drain(context.Background())

	assert.Equal(t, []string{"att-1", "att-2"}, delivered)
	assert.Zero(t, q.Status().Total)

	persisted, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, persisted)
}

func TestDrainOfflineIsNoop(t *testing.T) {
	q := newTestQueue(t, NewMemoryStore(), false)

	called := false
	q.RegisterCallback("attendance", func(ctx context.Context, item models.QueueItem) error {
		called = true
		return nil
	})
	_, err := q.Enqueue("attendance", "att-1", rawPayload(t, "a"))
	require.NoError(t, err)

	q.Drain(context.Background())

	assert.False(t, called)
	assert.Equal(t, 1, q.PendingCount())
}

func TestRetryCeilingExactlyThree(t *testing.T) {
	store := NewMemoryStore()
	q := newTestQueue(t, store, true)

	attempts := 0
	q.RegisterCallback("attendance", func(ctx context.Context, item models.QueueItem) error {
		attempts++
		return errors.New("remote unavailable")
	})
	_, err := q.Enqueue("attendance", "att-1", rawPayload(t, "a"))
	require.NoError(t, err)

	q.Drain(context.Background())
	assert.Equal(t, 1, attempts)
	require.Len(t, q.Items(), 1)
	assert.Equal(t, models.QueueStatusPending, q.Items()[0].Status)

	q.Drain(context.Background())
	assert.Equal(t, 2, attempts)
	assert.Equal(t, models.QueueStatusPending, q.Items()[0].Status)

	q.Drain(context.Background())
	assert.Equal(t, 3, attempts)
	assert.Equal(t, models.QueueStatusFailed, q.Items()[0].Status)
	assert.Equal(t, 3, q.Items()[0].RetryCount)

	// FAILED items are not retried automatically.
	q.Drain(context.Background())
	assert.Equal(t, 3, attempts)
}

func TestRetryFailedResetsAndRedelivers(t *testing.T) {
	store := NewMemoryStore()
	q := newTestQueue(t, store, true)

	var fail atomic.Bool
	fail.Store(true)
	q.RegisterCallback("attendance", func(ctx context.Context, item models.QueueItem) error {
		if fail.Load() {
			return errors.New("remote unavailable")
		}
		return nil
	})
	_, err := q.Enqueue("attendance", "att-1", rawPayload(t, "a"))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		q.Drain(context.Background())
	}
	require.Equal(t, 1, q.Status().Failed)

	fail.Store(false)
	reset := q.RetryFailed()
	assert.Equal(t, 1, reset)

	// RetryFailed kicks an asynchronous drain.
	assert.Eventually(t, func() bool { return q.Status().Total == 0 }, time.Second, 10*time.Millisecond)
}

func TestCrashRecoveryResetsSyncing(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save([]models.QueueItem{
		{ID: "att-1", Kind: "attendance", Status: models.QueueStatusSyncing, RetryCount: 1},
		{ID: "att-2", Kind: "attendance", Status: models.QueueStatusFailed, RetryCount: 3},
	}))

	q := newTestQueue(t, store, true)

	items := q.Items()
	require.Len(t, items, 2)
	assert.Equal(t, models.QueueStatusPending, items[0].Status)
	assert.Equal(t, 1, items[0].RetryCount)
	assert.Equal(t, models.QueueStatusFailed, items[1].Status)

	persisted, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusPending, persisted[0].Status)
}

func TestDrainGuardIgnoresReentrantCalls(t *testing.T) {
	q := newTestQueue(t, NewMemoryStore(), true)

	attempts := 0
	q.RegisterCallback("attendance", func(ctx context.Context, item models.QueueItem) error {
		attempts++
		// A drain triggered while one is running must be ignored, not queued.
		q.Drain(ctx)
		return nil
	})
	_, err := q.Enqueue("attendance", "att-1", rawPayload(t, "a"))
	require.NoError(t, err)

	q.Drain(context.Background())
	assert.Equal(t, 1, attempts)
}

func TestItemsEnqueuedMidDrainWaitForNextPass(t *testing.T) {
	store := NewMemoryStore()
	q, err := New(store, Config{
		MaxRetries: 3,
		IsOnline:   func() bool { return true },
		// No drain-on-enqueue: the mid-drain enqueue must not self-trigger here.
	})
	require.NoError(t, err)

	var delivered []string
	q.RegisterCallback("attendance", func(ctx context.Context, item models.QueueItem) error {
		delivered = append(delivered, item.ID)
		if item.ID == "att-1" {
			_, enqErr := q.Enqueue("attendance", "att-late", json.RawMessage(`"x"`))
			require.NoError(t, enqErr)
		}
		return nil
	})
	_, err = q.Enqueue("attendance", "att-1", json.RawMessage(`"a"`))
	require.NoError(t, err)

	q.Drain(context.Background())
	assert.Equal(t, []string{"att-1"}, delivered)
	assert.Equal(t, 1, q.PendingCount())

	q.Drain(context.Background())
	assert.Equal(t, []string{"att-1", "att-late"}, delivered)
	assert.Zero(t, q.PendingCount())
}

func TestStatusCounts(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save([]models.QueueItem{
		{ID: "a", Kind: "attendance", Status: models.QueueStatusPending},
		{ID: "b", Kind: "attendance", Status: models.QueueStatusPending},
		{ID: "c", Kind: "attendance", Status: models.QueueStatusFailed},
	}))
	q := newTestQueue(t, store, false)

	status := q.Status()
	assert.Equal(t, 3, status.Total)
	assert.Equal(t, 2, status.Pending)
	assert.Equal(t, 1, status.Failed)
	assert.Zero(t, status.Syncing)
	assert.Equal(t, 2, q.PendingCount())
}
