package usecase

import (
	"context"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/satriahrh/scribe/domain"
	"github.com/satriahrh/scribe/domain/entities"
	"github.com/satriahrh/scribe/domain/repositories"
)

const sampleSize = 3

// TranscribeInput is one complete audio file to transcribe
type TranscribeInput struct {
	Audio       []byte
	Filename    string
	ContentType string
	Language    string
	NumSpeakers int
	// Source records where the audio came from, see entities.Source*
	Source string
}

// TranscriptionService orchestrates upload → transcription → speaker grouping
type TranscriptionService struct {
	speechToText repositories.SpeechToText
	requestLog   repositories.RequestLogRepository
	retention    time.Duration
	logger       *zap.Logger
}

// NewTranscriptionService creates a new transcription service
func NewTranscriptionService(
	stt repositories.SpeechToText,
	requestLog repositories.RequestLogRepository,
	retention time.Duration,
	logger *zap.Logger,
) *TranscriptionService {
	return &TranscriptionService{
		speechToText: stt,
		requestLog:   requestLog,
		retention:    retention,
		logger:       logger,
	}
}

// Provider returns the name and model of the configured provider
func (s *TranscriptionService) Provider() (string, string) {
	return s.speechToText.Name(), s.speechToText.Model()
}

// Transcribe sends the audio to the provider and groups the words by speaker
func (s *TranscriptionService) Transcribe(ctx context.Context, in TranscribeInput) (*entities.TranscriptionResult, error) {
	started := time.Now()
	record := entities.NewRequestRecord(in.Source, s.speechToText.Name(), s.speechToText.Model(), s.retention)
	record.Filename = in.Filename
	record.SizeBytes = len(in.Audio)
	record.Language = in.Language

	if len(in.Audio) == 0 {
		s.finish(ctx, record, nil, domain.ErrEmptyAudio, started)
		return nil, domain.ErrEmptyAudio
	}

	contentType := in.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mimetype.Detect(in.Audio).String()
	}
	record.ContentType = contentType

	s.logger.Info("Transcribing audio",
		zap.String("request_id", record.ID),
		zap.String("filename", in.Filename),
		zap.String("content_type", contentType),
		zap.Int("size", len(in.Audio)),
		zap.String("language", in.Language))

	// Step 1: Speech to text with speaker labels
	transcription, err := s.speechToText.TranscribeWithSpeakers(ctx, in.Audio, repositories.TranscribeOptions{
		Filename:    in.Filename,
		ContentType: contentType,
		Language:    in.Language,
		NumSpeakers: in.NumSpeakers,
	})
	if err != nil {
		s.logger.Error("Transcription failed",
			zap.String("request_id", record.ID),
			zap.String("kind", domain.Kind(err)),
			zap.Error(err))
		s.finish(ctx, record, nil, err, started)
		return nil, err
	}

	s.logger.Info("Transcription completed",
		zap.String("request_id", record.ID),
		zap.Int("words", len(transcription.Words)),
		zap.Any("sample_words", sampleWords(transcription.Words)))

	// Step 2: Group consecutive words by speaker
	segments := entities.GroupBySpeaker(transcription.Words)
	speakers := entities.UniqueSpeakers(transcription.Words)

	s.logger.Info("Grouped words by speaker",
		zap.String("request_id", record.ID),
		zap.Strings("speakers", speakers),
		zap.Int("segments", len(segments)),
		zap.Any("sample_segments", sampleSegments(segments)))

	if transcription.Words == nil {
		transcription.Words = []entities.Word{}
	}
	result := &entities.TranscriptionResult{
		Transcription: *transcription,
		Segments:      segments,
		SpeakerCount:  len(speakers),
	}

	s.finish(ctx, record, result, nil, started)
	return result, nil
}

// ListRecentRequests returns request metadata, newest first
func (s *TranscriptionService) ListRecentRequests(ctx context.Context, limit int) ([]*entities.RequestRecord, error) {
	return s.requestLog.ListRecent(ctx, limit)
}

// finish stores the request record. Storage failures are logged and never
// fail the transcription.
func (s *TranscriptionService) finish(ctx context.Context, record *entities.RequestRecord, result *entities.TranscriptionResult, err error, started time.Time) {
	if s.requestLog == nil {
		return
	}

	elapsed := time.Since(started)
	if err != nil {
		record.Fail(domain.Kind(err), elapsed)
	} else {
		record.Succeed(result, elapsed)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if storeErr := s.requestLog.Create(ctx, record); storeErr != nil {
		s.logger.Warn("Failed to store request record",
			zap.String("request_id", record.ID),
			zap.Error(storeErr))
	}
}

func sampleWords(words []entities.Word) []entities.Word {
	if len(words) > sampleSize {
		return words[:sampleSize]
	}
	return words
}

func sampleSegments(segments []entities.SpeakerSegment) []entities.SpeakerSegment {
	if len(segments) > sampleSize {
		return segments[:sampleSize]
	}
	return segments
}
