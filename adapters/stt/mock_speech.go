package stt

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/scribe/domain"
	"github.com/satriahrh/scribe/domain/entities"
	"github.com/satriahrh/scribe/domain/repositories"
)

const ProviderMock = "mock"

// MockSpeechToText returns a canned two-speaker dialogue for local development
type MockSpeechToText struct {
	logger *zap.Logger
}

var _ repositories.SpeechToText = (*MockSpeechToText)(nil)

type mockLine struct {
	speaker string
	text    string
}

var mockDialogue = []mockLine{
	{"speaker_0", "Hi, thanks for joining the call."},
	{"speaker_1", "Happy to be here."},
	{"speaker_0", "Let's go through the agenda."},
	{"speaker_1", "Sounds good, I have two items to add."},
}

// NewMockSpeechToText creates a new mock speech-to-text service
func NewMockSpeechToText(logger *zap.Logger) *MockSpeechToText {
	return &MockSpeechToText{logger: logger}
}

// Name implements SpeechToText
func (s *MockSpeechToText) Name() string {
	return ProviderMock
}

// Model implements SpeechToText
func (s *MockSpeechToText) Model() string {
	return "mock-diarizer"
}

// TranscribeWithSpeakers returns more of the dialogue for larger uploads
func (s *MockSpeechToText) TranscribeWithSpeakers(ctx context.Context, audio []byte, opts repositories.TranscribeOptions) (*entities.Transcription, error) {
	s.logger.Info("Processing mock transcription", zap.Int("size", len(audio)), zap.String("filename", opts.Filename))

	if len(audio) == 0 {
		return nil, domain.ErrEmptyAudio
	}
	if err := ctx.Err(); err != nil {
		return nil, domain.ClassifyTransportError(err)
	}

	var lines int
	switch {
	case len(audio) > 10000:
		lines = 4
	case len(audio) > 5000:
		lines = 3
	case len(audio) > 1000:
		lines = 2
	default:
		lines = 1
	}

	var (
		words []entities.Word
		texts []string
		clock float64
	)
	for _, line := range mockDialogue[:lines] {
		texts = append(texts, line.text)
		for _, token := range strings.Fields(line.text) {
			words = append(words, entities.Word{
				Text:      token,
				Start:     clock,
				End:       clock + 0.35,
				SpeakerID: line.speaker,
				Type:      entities.WordTypeWord,
			})
			clock += 0.4
		}
		clock += 0.6
	}

	language := opts.Language
	if language == "" {
		language = "en"
	}

	return &entities.Transcription{
		Text:                strings.Join(texts, " "),
		Language:            language,
		LanguageProbability: 1,
		Words:               words,
		Provider:            ProviderMock,
		Model:               s.Model(),
	}, nil
}
