package repositories

import (
	"context"
	"time"

	"github.com/satriahrh/scribe/domain/entities"
)

// RequestLogRepository defines data access methods for transcription request metadata
type RequestLogRepository interface {
	Create(ctx context.Context, record *entities.RequestRecord) error
	// ListRecent returns at most limit records, newest first
	ListRecent(ctx context.Context, limit int) ([]*entities.RequestRecord, error)
	// DeleteExpired removes records whose expiry is at or before now
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
