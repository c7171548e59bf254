package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/satriahrh/scribe/domain"
	"github.com/satriahrh/scribe/domain/entities"
	"github.com/satriahrh/scribe/domain/repositories"
)

const (
	ProviderWhisper = "whisper"

	defaultWhisperBaseURL = "https://api.openai.com/v1"
	defaultWhisperTimeout = 120 * time.Second
)

// WhisperConfig configures a Whisper transcription endpoint.
// BaseURL may point at api.openai.com or at a local OpenAI-compatible
// whisper server; the API key is only required for the former.
type WhisperConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// WhisperSTT implements SpeechToText over the OpenAI audio transcription API.
// Whisper does not diarize, so every word belongs to the unknown speaker.
type WhisperSTT struct {
	client  *openai.Client
	apiKey  string
	baseURL string
	model   string
	logger  *zap.Logger
}

var _ repositories.SpeechToText = (*WhisperSTT)(nil)

// NewWhisperSTT creates a Whisper client
func NewWhisperSTT(config WhisperConfig, logger *zap.Logger) (*WhisperSTT, error) {
	if config.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be positive, got %s", config.Timeout)
	}

	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultWhisperBaseURL
		logger.Info("Using default Whisper base URL", zap.String("baseURL", baseURL))
	}

	model := config.Model
	if model == "" {
		model = openai.Whisper1
		logger.Info("Using default Whisper model", zap.String("model", model))
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultWhisperTimeout
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	clientConfig.BaseURL = baseURL
	clientConfig.HTTPClient = &http.Client{Timeout: timeout}

	w := &WhisperSTT{
		client:  openai.NewClientWithConfig(clientConfig),
		apiKey:  config.APIKey,
		baseURL: baseURL,
		model:   model,
		logger:  logger,
	}
	if w.requiresKey() && w.apiKey == "" {
		logger.Warn("OpenAI API key is not set, transcription requests will fail")
	}
	return w, nil
}

func (w *WhisperSTT) requiresKey() bool {
	return strings.Contains(w.baseURL, "api.openai.com")
}

// Name implements SpeechToText
func (w *WhisperSTT) Name() string {
	return ProviderWhisper
}

// Model implements SpeechToText
func (w *WhisperSTT) Model() string {
	return w.model
}

// TranscribeWithSpeakers transcribes with word timestamps
func (w *WhisperSTT) TranscribeWithSpeakers(ctx context.Context, audio []byte, opts repositories.TranscribeOptions) (*entities.Transcription, error) {
	if w.requiresKey() && w.apiKey == "" {
		return nil, fmt.Errorf("whisper: %w: OPENAI_API_KEY is not set", domain.ErrMissingCredentials)
	}

	filename := opts.Filename
	if filename == "" {
		filename = defaultUploadFilename
	}

	w.logger.Info("Sending Whisper transcription request",
		zap.String("baseURL", w.baseURL),
		zap.String("model", w.model),
		zap.String("filename", filename),
		zap.Int("size", len(audio)))

	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: filename,
		Reader:   bytes.NewReader(audio),
		Language: opts.Language,
		Format:   openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularityWord,
			openai.TranscriptionTimestampGranularitySegment,
		},
	})
	if err != nil {
		return nil, w.classify(err)
	}

	return &entities.Transcription{
		Text:     strings.TrimSpace(resp.Text),
		Language: resp.Language,
		Words:    whisperWords(resp),
		Provider: ProviderWhisper,
		Model:    w.model,
	}, nil
}

func (w *WhisperSTT) classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		w.logger.Error("Whisper API error",
			zap.Int("status", apiErr.HTTPStatusCode),
			zap.String("message", apiErr.Message))
		return fmt.Errorf("whisper: %w: status %d", domain.ErrProviderFailure, apiErr.HTTPStatusCode)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		w.logger.Error("Whisper request error",
			zap.Int("status", reqErr.HTTPStatusCode),
			zap.Error(reqErr.Err))
		return fmt.Errorf("whisper: %w: status %d", domain.ErrProviderFailure, reqErr.HTTPStatusCode)
	}

	w.logger.Error("Whisper request failed", zap.Error(err))
	return fmt.Errorf("whisper: %w", domain.ClassifyTransportError(err))
}

// whisperWords prefers word timestamps and falls back to segment timestamps
// for servers that ignore the word granularity.
func whisperWords(resp openai.AudioResponse) []entities.Word {
	words := make([]entities.Word, 0, len(resp.Words))
	for _, rw := range resp.Words {
		text := strings.TrimSpace(rw.Word)
		if text == "" {
			continue
		}
		words = append(words, entities.Word{
			Text:  text,
			Start: rw.Start,
			End:   rw.End,
			Type:  entities.WordTypeWord,
		})
	}
	if len(words) > 0 {
		return words
	}

	for _, seg := range resp.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		words = append(words, entities.Word{
			Text:  text,
			Start: seg.Start,
			End:   seg.End,
			Type:  entities.WordTypeWord,
		})
	}
	return words
}
