package repositories

import (
	"context"

	"github.com/satriahrh/scribe/domain/entities"
)

// SpeechToText abstracts speech recognition services that label speakers
type SpeechToText interface {
	// TranscribeWithSpeakers converts a complete audio file to timestamped,
	// speaker-labelled words
	TranscribeWithSpeakers(ctx context.Context, audio []byte, opts TranscribeOptions) (*entities.Transcription, error)
	// Name identifies the provider, e.g. "elevenlabs"
	Name() string
	// Model is the provider model in use
	Model() string
}

// TranscribeOptions carries per-request hints for the provider
type TranscribeOptions struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	// Language is an optional ISO language hint; empty means auto-detect
	Language string `json:"language"`
	// NumSpeakers is an optional upper bound on speakers; 0 means unknown
	NumSpeakers int `json:"num_speakers"`
}

// RealtimeTokenIssuer hands out single-use tokens for browser-side realtime transcription
type RealtimeTokenIssuer interface {
	IssueRealtimeToken(ctx context.Context) (*RealtimeToken, error)
}

// RealtimeToken is a short-lived provider token
type RealtimeToken struct {
	Token string `json:"token"`
}
