package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/scribe/domain"
	"github.com/satriahrh/scribe/domain/entities"
	"github.com/satriahrh/scribe/domain/repositories"
)

const (
	ProviderGemini = "gemini"

	defaultGeminiModel   = "gemini-2.0-flash"
	defaultGeminiTimeout = 120 * time.Second
	defaultAudioMIMEType = "audio/webm"
)

const geminiPrompt = `Transcribe this audio recording.
Identify the distinct speakers and label them speaker_0, speaker_1 and so on in order of first appearance.
Return every spoken word in order with its start and end time in seconds and its speaker label.`

// GeminiConfig holds configuration for the Gemini transcription adapter
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// GeminiSpeechToText implements SpeechToText with Gemini's audio understanding
// and a structured JSON response.
type GeminiSpeechToText struct {
	client      *genai.Client
	model       string
	temperature float32
	timeout     time.Duration
	logger      *zap.Logger
}

var _ repositories.SpeechToText = (*GeminiSpeechToText)(nil)

var geminiTranscriptSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"text":     {Type: genai.TypeString},
		"language": {Type: genai.TypeString},
		"words": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"text":       {Type: genai.TypeString},
					"speaker_id": {Type: genai.TypeString},
					"start":      {Type: genai.TypeNumber},
					"end":        {Type: genai.TypeNumber},
				},
				Required: []string{"text", "speaker_id", "start", "end"},
			},
		},
	},
	Required: []string{"text", "words"},
}

type geminiTranscript struct {
	Text     string          `json:"text"`
	Language string          `json:"language"`
	Words    json.RawMessage `json:"words"`
}

// ValidateGeminiConfig validates the GeminiConfig
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.Temperature < 0 || config.Temperature > 1 {
		return fmt.Errorf("temperature must be between 0 and 1, got %f", config.Temperature)
	}
	if config.Timeout < 0 {
		return fmt.Errorf("timeout must be positive, got %s", config.Timeout)
	}
	return nil
}

// NewGeminiSpeechToText creates a Gemini-backed transcriber.
// Without an API key the adapter is still created and reports
// ErrMissingCredentials on each request.
func NewGeminiSpeechToText(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*GeminiSpeechToText, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	g := &GeminiSpeechToText{
		model:       config.Model,
		temperature: config.Temperature,
		timeout:     config.Timeout,
		logger:      logger,
	}
	if g.model == "" {
		g.model = defaultGeminiModel
		logger.Info("Using default Gemini model", zap.String("model", g.model))
	}
	if g.timeout == 0 {
		g.timeout = defaultGeminiTimeout
	}

	if config.APIKey == "" {
		logger.Warn("GEMINI_API_KEY is not set, transcription requests will fail")
		return g, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	g.client = client
	return g, nil
}

// Name implements SpeechToText
func (g *GeminiSpeechToText) Name() string {
	return ProviderGemini
}

// Model implements SpeechToText
func (g *GeminiSpeechToText) Model() string {
	return g.model
}

// TranscribeWithSpeakers sends the audio inline and decodes the structured reply
func (g *GeminiSpeechToText) TranscribeWithSpeakers(ctx context.Context, audio []byte, opts repositories.TranscribeOptions) (*entities.Transcription, error) {
	if g.client == nil {
		return nil, fmt.Errorf("gemini: %w: GEMINI_API_KEY is not set", domain.ErrMissingCredentials)
	}

	mimeType := opts.ContentType
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = defaultAudioMIMEType
	}

	prompt := geminiPrompt
	if opts.Language != "" {
		prompt += fmt.Sprintf("\nThe spoken language is %s.", opts.Language)
	}
	if opts.NumSpeakers > 0 {
		prompt += fmt.Sprintf("\nThere are at most %d speakers.", opts.NumSpeakers)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(audio, mimeType),
		}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(g.temperature),
		ResponseMIMEType: "application/json",
		ResponseSchema:   geminiTranscriptSchema,
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	g.logger.Info("Sending Gemini transcription request",
		zap.String("model", g.model),
		zap.String("mimeType", mimeType),
		zap.Int("size", len(audio)))

	response, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		g.logger.Error("Gemini generate content failed", zap.Error(err))
		return nil, fmt.Errorf("gemini: %w", domain.ClassifyTransportError(err))
	}

	if len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return nil, fmt.Errorf("gemini: %w: no candidates returned", domain.ErrProviderFailure)
	}

	var responseText strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		if part.Text != "" {
			responseText.WriteString(part.Text)
		}
	}

	transcription, err := parseGeminiTranscript([]byte(responseText.String()))
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	transcription.Model = g.model
	if transcription.Language == "" {
		transcription.Language = opts.Language
	}
	return transcription, nil
}

func parseGeminiTranscript(data []byte) (*entities.Transcription, error) {
	var parsed geminiTranscript
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON response: %v", domain.ErrProviderFailure, err)
	}

	words, err := entities.DecodeWords(parsed.Words)
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(parsed.Text)
	if text == "" {
		parts := make([]string, 0, len(words))
		for _, w := range words {
			parts = append(parts, w.Text)
		}
		text = strings.Join(parts, " ")
	}

	return &entities.Transcription{
		Text:     text,
		Language: parsed.Language,
		Words:    words,
		Provider: ProviderGemini,
	}, nil
}
