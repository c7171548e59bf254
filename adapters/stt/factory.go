package stt

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/scribe/domain/repositories"
)

// ProviderConfig selects and configures the speech-to-text provider
type ProviderConfig struct {
	Provider   string
	ElevenLabs ElevenLabsConfig
	Whisper    WhisperConfig
	Google     GoogleConfig
	Gemini     GeminiConfig
}

// Providers lists the supported provider names
var Providers = []string{ProviderElevenLabs, ProviderWhisper, ProviderGoogle, ProviderGemini, ProviderMock}

// NewSpeechToText builds the configured provider. It is called once at
// startup so that configuration problems surface before serving traffic.
func NewSpeechToText(ctx context.Context, config ProviderConfig, logger *zap.Logger) (repositories.SpeechToText, error) {
	provider := strings.ToLower(strings.TrimSpace(config.Provider))
	if provider == "" {
		provider = ProviderElevenLabs
	}

	logger = logger.With(zap.String("provider", provider))
	logger.Info("Initializing speech-to-text provider")

	var (
		speechToText repositories.SpeechToText
		err          error
	)
	switch provider {
	case ProviderElevenLabs:
		speechToText, err = NewElevenLabsSTT(config.ElevenLabs, logger)
	case ProviderWhisper:
		speechToText, err = NewWhisperSTT(config.Whisper, logger)
	case ProviderGoogle:
		speechToText, err = NewGoogleSpeechToText(ctx, config.Google, logger)
	case ProviderGemini:
		speechToText, err = NewGeminiSpeechToText(ctx, config.Gemini, logger)
	case ProviderMock:
		speechToText = NewMockSpeechToText(logger)
	default:
		return nil, fmt.Errorf("unknown speech-to-text provider %q, expected one of %s", provider, strings.Join(Providers, ", "))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s provider: %w", provider, err)
	}
	return speechToText, nil
}
