package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-sync-agent/internal/models"
	"github.com/noah-isme/sma-sync-agent/internal/remote"
)

// AuditService appends an immutable entry per completed sync. Writes are
// fire-and-forget: an audit failure is logged and never rolls back or
// blocks the primary sync outcome.
type AuditService struct {
	store   remote.Store
	logger  *zap.Logger
	timeout time.Duration
}

// NewAuditService constructs the audit writer.
func NewAuditService(store remote.Store, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{store: store, logger: logger, timeout: 5 * time.Second}
}

// Record writes the entry asynchronously under a fresh audit path.
func (s *AuditService) Record(entry models.AuditEntry) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		path := "audit/" + uuid.NewString()
		if err := s.store.Write(ctx, path, entry); err != nil {
			s.logger.Warn("audit write failed",
				zap.String("record_id", entry.RecordID),
				zap.Error(err))
		}
	}()
}
