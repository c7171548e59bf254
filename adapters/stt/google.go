package stt

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/satriahrh/scribe/domain"
	"github.com/satriahrh/scribe/domain/entities"
	"github.com/satriahrh/scribe/domain/repositories"
)

const (
	ProviderGoogle = "google"

	defaultGoogleLanguage    = "en-US"
	defaultGoogleModel       = "latest_long"
	defaultGoogleMinSpeakers = 1
	defaultGoogleMaxSpeakers = 6
	opusSampleRateHertz      = 48000
)

// GoogleConfig configures Google Cloud Speech-to-Text.
// Credentials come from CredentialsFile when set, otherwise from the
// application default credentials.
type GoogleConfig struct {
	CredentialsFile string
	LanguageCode    string
	Model           string
	MinSpeakers     int32
	MaxSpeakers     int32
}

// GoogleSpeechToText implements SpeechToText for Google Cloud
type GoogleSpeechToText struct {
	client   *speech.Client
	language string
	model    string
	minSpk   int32
	maxSpk   int32
	logger   *zap.Logger
}

var _ repositories.SpeechToText = (*GoogleSpeechToText)(nil)

// ValidateGoogleConfig validates the GoogleConfig
func ValidateGoogleConfig(config GoogleConfig) error {
	if config.MinSpeakers < 0 || config.MaxSpeakers < 0 {
		return fmt.Errorf("speaker counts must be positive")
	}
	if config.MaxSpeakers != 0 && config.MinSpeakers > config.MaxSpeakers {
		return fmt.Errorf("min speakers %d exceeds max speakers %d", config.MinSpeakers, config.MaxSpeakers)
	}
	return nil
}

// NewGoogleSpeechToText creates the Speech client up front
func NewGoogleSpeechToText(ctx context.Context, config GoogleConfig, logger *zap.Logger) (*GoogleSpeechToText, error) {
	if err := ValidateGoogleConfig(config); err != nil {
		return nil, err
	}

	var opts []option.ClientOption
	if config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsFile))
	}

	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	g := &GoogleSpeechToText{
		client:   client,
		language: config.LanguageCode,
		model:    config.Model,
		minSpk:   config.MinSpeakers,
		maxSpk:   config.MaxSpeakers,
		logger:   logger,
	}
	if g.language == "" {
		g.language = defaultGoogleLanguage
		logger.Info("Using default language code", zap.String("language", g.language))
	}
	if g.model == "" {
		g.model = defaultGoogleModel
	}
	if g.minSpk == 0 {
		g.minSpk = defaultGoogleMinSpeakers
	}
	if g.maxSpk == 0 {
		g.maxSpk = defaultGoogleMaxSpeakers
	}
	return g, nil
}

// Name implements SpeechToText
func (g *GoogleSpeechToText) Name() string {
	return ProviderGoogle
}

// Model implements SpeechToText
func (g *GoogleSpeechToText) Model() string {
	return g.model
}

// Close releases the underlying gRPC connection
func (g *GoogleSpeechToText) Close() error {
	return g.client.Close()
}

// TranscribeWithSpeakers runs a synchronous recognition with diarization
func (g *GoogleSpeechToText) TranscribeWithSpeakers(ctx context.Context, audio []byte, opts repositories.TranscribeOptions) (*entities.Transcription, error) {
	req := g.recognizeRequest(audio, opts)

	g.logger.Info("Sending Google recognize request",
		zap.String("encoding", req.Config.Encoding.String()),
		zap.String("language", req.Config.LanguageCode),
		zap.Int("size", len(audio)))

	resp, err := g.client.Recognize(ctx, req)
	if err != nil {
		g.logger.Error("Google recognize failed", zap.Error(err))
		return nil, fmt.Errorf("google: %w", classifyGRPCError(err))
	}

	transcription := transcriptionFromResponse(resp, req.Config.LanguageCode)
	transcription.Model = g.model
	return transcription, nil
}

func (g *GoogleSpeechToText) recognizeRequest(audio []byte, opts repositories.TranscribeOptions) *speechpb.RecognizeRequest {
	language := opts.Language
	if language == "" {
		language = g.language
	}

	maxSpk := g.maxSpk
	if opts.NumSpeakers > 0 {
		maxSpk = int32(opts.NumSpeakers)
	}
	minSpk := g.minSpk
	if minSpk > maxSpk {
		minSpk = maxSpk
	}

	encoding := audioEncoding(opts.Filename, opts.ContentType)
	config := &speechpb.RecognitionConfig{
		Encoding:                   encoding,
		LanguageCode:               language,
		Model:                      g.model,
		EnableWordTimeOffsets:      true,
		EnableAutomaticPunctuation: true,
		DiarizationConfig: &speechpb.SpeakerDiarizationConfig{
			EnableSpeakerDiarization: true,
			MinSpeakerCount:          minSpk,
			MaxSpeakerCount:          maxSpk,
		},
	}
	if encoding == speechpb.RecognitionConfig_OGG_OPUS || encoding == speechpb.RecognitionConfig_WEBM_OPUS {
		config.SampleRateHertz = opusSampleRateHertz
	}

	return &speechpb.RecognizeRequest{
		Config: config,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	}
}

// transcriptionFromResponse collects the transcript text from every result
// and the words from the last one, which carries the diarized word list.
func transcriptionFromResponse(resp *speechpb.RecognizeResponse, language string) *entities.Transcription {
	transcription := &entities.Transcription{
		Language: language,
		Words:    []entities.Word{},
		Provider: ProviderGoogle,
	}

	results := resp.GetResults()
	var texts []string
	for _, result := range results {
		if alts := result.GetAlternatives(); len(alts) > 0 {
			if text := strings.TrimSpace(alts[0].GetTranscript()); text != "" {
				texts = append(texts, text)
			}
		}
	}
	transcription.Text = strings.Join(texts, " ")

	if len(results) == 0 {
		return transcription
	}
	last := results[len(results)-1]
	if code := last.GetLanguageCode(); code != "" {
		transcription.Language = code
	}
	alts := last.GetAlternatives()
	if len(alts) == 0 {
		return transcription
	}

	for _, w := range alts[0].GetWords() {
		word := entities.Word{
			Text:  w.GetWord(),
			Start: w.GetStartTime().AsDuration().Seconds(),
			End:   w.GetEndTime().AsDuration().Seconds(),
			Type:  entities.WordTypeWord,
		}
		if tag := w.GetSpeakerTag(); tag > 0 {
			word.SpeakerID = fmt.Sprintf("speaker_%d", tag)
		}
		transcription.Words = append(transcription.Words, word)
	}
	return transcription
}

// audioEncoding picks the Google encoding from the upload's name or type.
// WAV and FLAC carry their own headers, so they stay unspecified.
func audioEncoding(filename, contentType string) speechpb.RecognitionConfig_AudioEncoding {
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case ext == ".webm" || strings.HasPrefix(contentType, "audio/webm") || strings.HasPrefix(contentType, "video/webm"):
		return speechpb.RecognitionConfig_WEBM_OPUS
	case ext == ".ogg" || ext == ".opus" || strings.HasPrefix(contentType, "audio/ogg"):
		return speechpb.RecognitionConfig_OGG_OPUS
	case ext == ".amr" || strings.HasPrefix(contentType, "audio/amr"):
		return speechpb.RecognitionConfig_AMR
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}

func classifyGRPCError(err error) error {
	switch status.Code(err) {
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %w", domain.ErrProviderTimeout, err)
	case codes.Unavailable:
		return fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %w", domain.ErrMissingCredentials, err)
	default:
		return domain.ClassifyTransportError(err)
	}
}
