package entities

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// RequestStatus represents the outcome of a transcription request
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusSucceeded RequestStatus = "succeeded"
	RequestStatusFailed    RequestStatus = "failed"
)

// Request sources
const (
	SourceUpload    = "upload"
	SourceWebSocket = "websocket"
)

// DefaultRequestRetention is how long request records are kept
const DefaultRequestRetention = 24 * time.Hour

// RequestRecord holds metadata about one transcription request.
// Transcript text is never stored on it.
type RequestRecord struct {
	ID           string        `json:"id" bson:"_id"`
	Source       string        `json:"source" bson:"source"`
	Provider     string        `json:"provider" bson:"provider"`
	Model        string        `json:"model,omitempty" bson:"model,omitempty"`
	Filename     string        `json:"filename,omitempty" bson:"filename,omitempty"`
	ContentType  string        `json:"content_type,omitempty" bson:"content_type,omitempty"`
	SizeBytes    int           `json:"size_bytes" bson:"size_bytes"`
	Language     string        `json:"language,omitempty" bson:"language,omitempty"`
	Status       RequestStatus `json:"status" bson:"status"`
	ErrorKind    string        `json:"error_kind,omitempty" bson:"error_kind,omitempty"`
	WordCount    int           `json:"word_count" bson:"word_count"`
	SegmentCount int           `json:"segment_count" bson:"segment_count"`
	SpeakerCount int           `json:"speaker_count" bson:"speaker_count"`
	ProcessingMs int64         `json:"processing_ms" bson:"processing_ms"`
	CreatedAt    time.Time     `json:"created_at" bson:"created_at"`
	ExpiresAt    time.Time     `json:"expires_at" bson:"expires_at"`
}

// NewRequestRecord creates a pending record that expires after retention.
func NewRequestRecord(source, provider, model string, retention time.Duration) *RequestRecord {
	if retention <= 0 {
		retention = DefaultRequestRetention
	}
	now := time.Now()
	return &RequestRecord{
		ID:        uuid.NewString(),
		Source:    source,
		Provider:  provider,
		Model:     model,
		Status:    RequestStatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(retention),
	}
}

// Succeed marks the record as succeeded with the result counts.
func (r *RequestRecord) Succeed(result *TranscriptionResult, elapsed time.Duration) {
	r.Status = RequestStatusSucceeded
	r.ErrorKind = ""
	r.ProcessingMs = elapsed.Milliseconds()
	if result == nil {
		return
	}
	r.WordCount = len(result.Words)
	r.SegmentCount = len(result.Segments)
	r.SpeakerCount = result.SpeakerCount
	if r.Language == "" {
		r.Language = result.Language
	}
}

// Fail marks the record as failed with the given error kind.
func (r *RequestRecord) Fail(kind string, elapsed time.Duration) {
	r.Status = RequestStatusFailed
	r.ErrorKind = kind
	r.ProcessingMs = elapsed.Milliseconds()
}

// IsExpired checks if the record has passed its expiry time
func (r *RequestRecord) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Validate validates the record data
func (r *RequestRecord) Validate() error {
	if r.ID == "" {
		return errors.New("request id is required")
	}
	if r.Provider == "" {
		return errors.New("provider is required")
	}
	if r.CreatedAt.IsZero() {
		return errors.New("created_at is required")
	}
	if r.ExpiresAt.Before(r.CreatedAt) {
		return errors.New("expires_at must be after created_at")
	}
	switch r.Status {
	case RequestStatusPending, RequestStatusSucceeded, RequestStatusFailed:
	default:
		return errors.New("invalid request status")
	}
	return nil
}
