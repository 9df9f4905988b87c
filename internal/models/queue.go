package models

import "encoding/json"

// QueueItemStatus tracks an item through the drain state machine.
type QueueItemStatus string

const (
	QueueStatusPending QueueItemStatus = "PENDING"
	QueueStatusSyncing QueueItemStatus = "SYNCING"
	QueueStatusFailed  QueueItemStatus = "FAILED"
)

// QueueItem wraps one pending offline delivery. The ID is stable for the
// item's lifetime; RetryCount only increases; Status transitions only
// PENDING -> SYNCING -> {removed | PENDING | FAILED}.
type QueueItem struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	CreatedAt  int64           `json:"created_at"`
	Payload    json.RawMessage `json:"payload"`
	RetryCount int             `json:"retry_count"`
	Status     QueueItemStatus `json:"status"`
}

// QueueStatus summarises the queue for offline-indicator badges.
type QueueStatus struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Syncing int `json:"syncing"`
	Failed  int `json:"failed"`
}
