package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/scribe/domain"
	"github.com/satriahrh/scribe/domain/entities"
	"github.com/satriahrh/scribe/domain/repositories"
)

const (
	ProviderElevenLabs = "elevenlabs"

	defaultElevenLabsBaseURL = "https://api.elevenlabs.io/v1"
	defaultElevenLabsModelID = "scribe_v2"
	defaultElevenLabsTimeout = 60 * time.Second
	defaultUploadFilename    = "audio.webm"
	maxProviderResponseBytes = 32 << 20
	maxLoggedErrorBytes      = 2048
	maxElevenLabsSpeakers    = 32
)

// ElevenLabsConfig holds configuration for the ElevenLabs speech-to-text adapter
// Optional fields with defaults:
// - APIBaseURL: The base URL for the ElevenLabs API (default: "https://api.elevenlabs.io/v1")
// - ModelID: The speech-to-text model (default: "scribe_v2")
// - Timeout: Upper bound on one transcription call (default: 60s)
//
// APIKey may be empty; requests then fail with domain.ErrMissingCredentials.
type ElevenLabsConfig struct {
	APIKey     string
	APIBaseURL string
	ModelID    string
	Timeout    time.Duration
}

// ElevenLabsSTT implements SpeechToText and RealtimeTokenIssuer using the ElevenLabs Scribe API
type ElevenLabsSTT struct {
	apiKey     string
	apiBaseURL string
	modelID    string
	httpClient *http.Client
	logger     *zap.Logger
}

var (
	_ repositories.SpeechToText        = (*ElevenLabsSTT)(nil)
	_ repositories.RealtimeTokenIssuer = (*ElevenLabsSTT)(nil)
)

type elevenLabsTranscript struct {
	LanguageCode        string          `json:"language_code"`
	LanguageProbability float64         `json:"language_probability"`
	Text                string          `json:"text"`
	Words               json.RawMessage `json:"words"`
}

// ValidateElevenLabsConfig validates the ElevenLabsConfig
func ValidateElevenLabsConfig(config ElevenLabsConfig) error {
	if config.Timeout < 0 {
		return fmt.Errorf("timeout must be positive, got %s", config.Timeout)
	}
	if config.APIBaseURL != "" && !strings.HasPrefix(config.APIBaseURL, "http") {
		return fmt.Errorf("api base url must be an http(s) url, got %q", config.APIBaseURL)
	}
	return nil
}

// NewElevenLabsSTT creates a new ElevenLabs speech-to-text instance
func NewElevenLabsSTT(config ElevenLabsConfig, logger *zap.Logger) (*ElevenLabsSTT, error) {
	if err := ValidateElevenLabsConfig(config); err != nil {
		return nil, err
	}

	apiBaseURL := strings.TrimRight(config.APIBaseURL, "/")
	if apiBaseURL == "" {
		apiBaseURL = defaultElevenLabsBaseURL
		logger.Info("Using default API base URL", zap.String("apiBaseURL", apiBaseURL))
	}

	modelID := config.ModelID
	if modelID == "" {
		modelID = defaultElevenLabsModelID
		logger.Info("Using default model ID", zap.String("modelID", modelID))
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultElevenLabsTimeout
		logger.Info("Using default timeout", zap.Duration("timeout", timeout))
	}

	if config.APIKey == "" {
		logger.Warn("ElevenLabs API key is not set, transcription requests will fail")
	}

	return &ElevenLabsSTT{
		apiKey:     config.APIKey,
		apiBaseURL: apiBaseURL,
		modelID:    modelID,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// Name implements SpeechToText
func (e *ElevenLabsSTT) Name() string {
	return ProviderElevenLabs
}

// Model implements SpeechToText
func (e *ElevenLabsSTT) Model() string {
	return e.modelID
}

// TranscribeWithSpeakers uploads the audio with diarization enabled
func (e *ElevenLabsSTT) TranscribeWithSpeakers(ctx context.Context, audio []byte, opts repositories.TranscribeOptions) (*entities.Transcription, error) {
	if e.apiKey == "" {
		return nil, fmt.Errorf("elevenlabs: %w: XI_API_KEY is not set", domain.ErrMissingCredentials)
	}

	body, contentType, err := e.buildTranscriptionForm(audio, opts)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: failed to build request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.apiBaseURL+"/speech-to-text", body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: failed to create request: %w", err)
	}
	req.Header.Set("xi-api-key", e.apiKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	e.logger.Info("Sending speech-to-text request",
		zap.String("model", e.modelID),
		zap.String("filename", opts.Filename),
		zap.Int("size", len(audio)),
		zap.String("language", opts.Language),
		zap.Int("num_speakers", opts.NumSpeakers))

	payload, err := e.do(req)
	if err != nil {
		return nil, err
	}

	var parsed elevenLabsTranscript
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("elevenlabs: %w: invalid response body: %v", domain.ErrProviderFailure, err)
	}

	words, err := entities.DecodeWords(parsed.Words)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: %w", err)
	}

	return &entities.Transcription{
		Text:                parsed.Text,
		Language:            parsed.LanguageCode,
		LanguageProbability: parsed.LanguageProbability,
		Words:               entities.DropSpacing(words),
		Provider:            ProviderElevenLabs,
		Model:               e.modelID,
	}, nil
}

// IssueRealtimeToken requests a single-use token for the realtime scribe websocket
func (e *ElevenLabsSTT) IssueRealtimeToken(ctx context.Context) (*repositories.RealtimeToken, error) {
	if e.apiKey == "" {
		return nil, fmt.Errorf("elevenlabs: %w: XI_API_KEY is not set", domain.ErrMissingCredentials)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.apiBaseURL+"/single-use-token/realtime_scribe", nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: failed to create token request: %w", err)
	}
	req.Header.Set("xi-api-key", e.apiKey)

	payload, err := e.do(req)
	if err != nil {
		return nil, err
	}

	var token repositories.RealtimeToken
	if err := json.Unmarshal(payload, &token); err != nil {
		return nil, fmt.Errorf("elevenlabs: %w: invalid token response: %v", domain.ErrProviderFailure, err)
	}
	if token.Token == "" {
		return nil, fmt.Errorf("elevenlabs: %w: token response has no token", domain.ErrProviderFailure)
	}

	return &token, nil
}

// do sends the request and returns the body of a 200 response
func (e *ElevenLabsSTT) do(req *http.Request) ([]byte, error) {
	resp, err := e.httpClient.Do(req)
	if err != nil {
		e.logger.Error("ElevenLabs request failed", zap.String("path", req.URL.Path), zap.Error(err))
		return nil, fmt.Errorf("elevenlabs: %w", domain.ClassifyTransportError(err))
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: reading response: %w", domain.ClassifyTransportError(err))
	}

	if resp.StatusCode != http.StatusOK {
		preview := payload
		if len(preview) > maxLoggedErrorBytes {
			preview = preview[:maxLoggedErrorBytes]
		}
		e.logger.Error("ElevenLabs API error",
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", preview))
		return nil, fmt.Errorf("elevenlabs: %w: status %d", domain.ErrProviderFailure, resp.StatusCode)
	}

	return payload, nil
}

func (e *ElevenLabsSTT) buildTranscriptionForm(audio []byte, opts repositories.TranscribeOptions) (io.Reader, string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	filename := opts.Filename
	if filename == "" {
		filename = defaultUploadFilename
	}
	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(filename)))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", err
	}

	fields := [][2]string{
		{"model_id", e.modelID},
		{"diarize", "true"},
		{"timestamps_granularity", "word"},
	}
	if opts.Language != "" {
		fields = append(fields, [2]string{"language_code", opts.Language})
	}
	if opts.NumSpeakers > 0 {
		n := opts.NumSpeakers
		if n > maxElevenLabsSpeakers {
			n = maxElevenLabsSpeakers
		}
		fields = append(fields, [2]string{"num_speakers", strconv.Itoa(n)})
	}
	for _, field := range fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &body, writer.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")
