package adapters

import (
	"context"
	"sync"
	"time"

	"github.com/satriahrh/scribe/domain/entities"
	"github.com/satriahrh/scribe/domain/repositories"
)

// DefaultRequestLogCapacity bounds the in-memory request log
const DefaultRequestLogCapacity = 1000

// MemoryRequestLogRepository is an in-memory implementation of RequestLogRepository.
// The oldest records are evicted once capacity is reached.
type MemoryRequestLogRepository struct {
	mu       sync.RWMutex
	records  []*entities.RequestRecord // oldest first
	capacity int
}

var _ repositories.RequestLogRepository = (*MemoryRequestLogRepository)(nil)

// NewMemoryRequestLogRepository creates a new in-memory request log
func NewMemoryRequestLogRepository(capacity int) *MemoryRequestLogRepository {
	if capacity <= 0 {
		capacity = DefaultRequestLogCapacity
	}
	return &MemoryRequestLogRepository{
		records:  make([]*entities.RequestRecord, 0),
		capacity: capacity,
	}
}

// Create implements RequestLogRepository interface
func (m *MemoryRequestLogRepository) Create(ctx context.Context, record *entities.RequestRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *record
	m.records = append(m.records, &stored)
	if overflow := len(m.records) - m.capacity; overflow > 0 {
		m.records = append(m.records[:0:0], m.records[overflow:]...)
	}
	return nil
}

// ListRecent implements RequestLogRepository interface
func (m *MemoryRequestLogRepository) ListRecent(ctx context.Context, limit int) ([]*entities.RequestRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.records) {
		limit = len(m.records)
	}

	result := make([]*entities.RequestRecord, 0, limit)
	for i := len(m.records) - 1; i >= 0 && len(result) < limit; i-- {
		record := *m.records[i]
		result = append(result, &record)
	}
	return result, nil
}

// DeleteExpired implements RequestLogRepository interface
func (m *MemoryRequestLogRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.records[:0]
	var deleted int64
	for _, record := range m.records {
		if record.IsExpired(now) {
			deleted++
			continue
		}
		kept = append(kept, record)
	}
	for i := len(kept); i < len(m.records); i++ {
		m.records[i] = nil
	}
	m.records = kept
	return deleted, nil
}

// Count returns the number of stored records
func (m *MemoryRequestLogRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
