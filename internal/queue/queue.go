// Package queue implements the durable offline sync queue: an ordered,
// persisted list of pending deliveries with per-item retry state that
// survives process restarts.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-sync-agent/internal/models"
)

// Callback delivers one item to the remote store. A nil return removes the
// item permanently; an error bumps its retry count.
type Callback func(ctx context.Context, item models.QueueItem) error

// Config configures queue behaviour.
type Config struct {
	MaxRetries     int
	DrainOnEnqueue bool
	IsOnline       func() bool
	Logger         *zap.Logger
	OnStatusChange func(models.QueueStatus)
}

// Queue guarantees that an accepted record is retried until delivered or it
// exhausts its retry budget. Items drain FIFO by original enqueue time; a
// retried item keeps its position rather than moving to the back.
type Queue struct {
	store          Store
	maxRetries     int
	drainOnEnqueue bool
	isOnline       func() bool
	logger         *zap.Logger
	onStatusChange func(models.QueueStatus)

	mu        sync.Mutex
	items     []models.QueueItem
	callbacks map[string]Callback
	draining  bool
}

// New loads persisted items and recovers interrupted state: anything left in
// SYNCING by a prior run cannot have completed (removal is the queue's own
// final step), so it is presumed undelivered and reset to PENDING.
func New(store Store, cfg Config) (*Queue, error) {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.IsOnline == nil {
		cfg.IsOnline = func() bool { return true }
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	items, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load queue: %w", err)
	}

	recovered := 0
	for i := range items {
		if items[i].Status == models.QueueStatusSyncing {
			items[i].Status = models.QueueStatusPending
			recovered++
		}
	}
	if recovered > 0 {
		if err := store.Save(items); err != nil {
			return nil, fmt.Errorf("persist recovered queue: %w", err)
		}
		cfg.Logger.Sugar().Infow("recovered interrupted sync items", "count", recovered)
	}

	return &Queue{
		store:          store,
		maxRetries:     cfg.MaxRetries,
		drainOnEnqueue: cfg.DrainOnEnqueue,
		isOnline:       cfg.IsOnline,
		logger:         cfg.Logger,
		onStatusChange: cfg.OnStatusChange,
		items:          items,
		callbacks:      make(map[string]Callback),
	}, nil
}

// RegisterCallback installs the delivery function for a record kind.
// Exactly one callback per kind.
func (q *Queue) RegisterCallback(kind string, fn Callback) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.callbacks[kind] = fn
}

// Enqueue persists a new PENDING item before returning, then kicks a
// non-blocking drain attempt when online. The id doubles as the remote
// dedup key; enqueueing an id that is already queued is a no-op returning
// the existing id.
func (q *Queue) Enqueue(kind, id string, payload json.RawMessage) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}

	q.mu.Lock()
	for i := range q.items {
		if q.items[i].ID == id {
			q.mu.Unlock()
			return id, nil
		}
	}

	item := models.QueueItem{
		ID:        id,
		Kind:      kind,
		CreatedAt: time.Now().UnixMilli(),
		Payload:   payload,
		Status:    models.QueueStatusPending,
	}
	q.items = append(q.items, item)
	if err := q.persistLocked(); err != nil {
		q.items = q.items[:len(q.items)-1]
		q.mu.Unlock()
		return "", err
	}
	q.mu.Unlock()
	q.notifyStatus()

	q.logger.Sugar().Infow("queued offline item", "id", id, "kind", kind)

	if q.drainOnEnqueue && q.isOnline() {
		go q.Drain(context.Background())
	}
	return id, nil
}

// Drain delivers every item that was PENDING when the pass started. Only
// one drain runs at a time; re-entrant calls are ignored, not queued. Items
// enqueued mid-drain wait for the next trigger. Offline is a no-op.
func (q *Queue) Drain(ctx context.Context) {
	if !q.isOnline() {
		return
	}

	q.mu.Lock()
	if q.draining {
		q.mu.Unlock()
		return
	}
	q.draining = true
	snapshot := make([]string, 0, len(q.items))
	for i := range q.items {
		if q.items[i].Status == models.QueueStatusPending {
			snapshot = append(snapshot, q.items[i].ID)
		}
	}
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.draining = false
		q.mu.Unlock()
	}()

	if len(snapshot) == 0 {
		return
	}

	start := time.Now()
	delivered := 0
	for _, id := range snapshot {
		if ctx.Err() != nil {
			return
		}
		if q.drainOne(ctx, id) {
			delivered++
		}
	}
	q.logger.Sugar().Infow("drain pass finished",
		"candidates", len(snapshot), "delivered", delivered, "took", time.Since(start))
}

// drainOne runs the state machine for a single item. The SYNCING transition
// is persisted before the callback runs so a crash mid-delivery is visible
// to the next start's recovery step.
func (q *Queue) drainOne(ctx context.Context, id string) bool {
	q.mu.Lock()
	idx := q.indexLocked(id)
	if idx < 0 || q.items[idx].Status != models.QueueStatusPending {
		q.mu.Unlock()
		return false
	}
	q.items[idx].Status = models.QueueStatusSyncing
	if err := q.persistLocked(); err != nil {
		q.items[idx].Status = models.QueueStatusPending
		q.mu.Unlock()
		q.logger.Sugar().Errorw("failed to persist syncing state", "id", id, "error", err)
		return false
	}
	item := q.items[idx]
	callback := q.callbacks[item.Kind]
	q.mu.Unlock()
	q.notifyStatus()

	if callback == nil {
		q.logger.Sugar().Errorw("no callback registered for kind", "id", id, "kind", item.Kind)
		q.settle(id, fmt.Errorf("no callback for kind %q", item.Kind))
		return false
	}

	err := callback(ctx, item)
	q.settle(id, err)
	return err == nil
}

// settle applies the post-callback transition: removed on success, back to
// PENDING on a retryable failure, FAILED once the ceiling is reached.
func (q *Queue) settle(id string, cbErr error) {
	q.mu.Lock()
	idx := q.indexLocked(id)
	if idx < 0 {
		q.mu.Unlock()
		return
	}

	if cbErr == nil {
		q.items = append(q.items[:idx], q.items[idx+1:]...)
		if err := q.persistLocked(); err != nil {
			q.logger.Sugar().Errorw("failed to persist item removal", "id", id, "error", err)
		}
		q.mu.Unlock()
		q.notifyStatus()
		q.logger.Sugar().Infow("synced queued item", "id", id)
		return
	}

	q.items[idx].RetryCount++
	if q.items[idx].RetryCount >= q.maxRetries {
		q.items[idx].Status = models.QueueStatusFailed
	} else {
		q.items[idx].Status = models.QueueStatusPending
	}
	status := q.items[idx].Status
	attempts := q.items[idx].RetryCount
	if err := q.persistLocked(); err != nil {
		q.logger.Sugar().Errorw("failed to persist retry state", "id", id, "error", err)
	}
	q.mu.Unlock()
	q.notifyStatus()

	if status == models.QueueStatusFailed {
		q.logger.Sugar().Errorw("item exceeded retry ceiling", "id", id, "attempts", attempts, "error", cbErr)
	} else {
		q.logger.Sugar().Warnw("item sync failed, will retry", "id", id, "attempts", attempts, "error", cbErr)
	}
}

// RetryFailed resets all FAILED items to PENDING and kicks a drain.
// Returns the number of items reset.
func (q *Queue) RetryFailed() int {
	q.mu.Lock()
	reset := 0
	for i := range q.items {
		if q.items[i].Status == models.QueueStatusFailed {
			q.items[i].Status = models.QueueStatusPending
			q.items[i].RetryCount = 0
			reset++
		}
	}
	if reset > 0 {
		if err := q.persistLocked(); err != nil {
			q.logger.Sugar().Errorw("failed to persist retry reset", "error", err)
		}
	}
	q.mu.Unlock()

	if reset > 0 {
		q.notifyStatus()
		go q.Drain(context.Background())
	}
	return reset
}

// Status summarises the queue for offline badges.
func (q *Queue) Status() models.QueueStatus {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.statusLocked()
}

// PendingCount returns the number of items awaiting delivery.
func (q *Queue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	count := 0
	for i := range q.items {
		if q.items[i].Status == models.QueueStatusPending {
			count++
		}
	}
	return count
}

// Items returns a snapshot copy of the queue contents.
func (q *Queue) Items() []models.QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.QueueItem, len(q.items))
	copy(out, q.items)
	return out
}

func (q *Queue) statusLocked() models.QueueStatus {
	status := models.QueueStatus{Total: len(q.items)}
	for i := range q.items {
		switch q.items[i].Status {
		case models.QueueStatusPending:
			status.Pending++
		case models.QueueStatusSyncing:
			status.Syncing++
		case models.QueueStatusFailed:
			status.Failed++
		}
	}
	return status
}

func (q *Queue) indexLocked(id string) int {
	for i := range q.items {
		if q.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (q *Queue) persistLocked() error {
	return q.store.Save(q.items)
}

func (q *Queue) notifyStatus() {
	if q.onStatusChange == nil {
		return
	}
	q.onStatusChange(q.Status())
}
