package api

import (
	"github.com/satriahrh/scribe/domain/entities"
)

// TranscriptionResponse represents the response payload for /api/transcribe
type TranscriptionResponse struct {
	Success        bool                      `json:"success"`
	FullTranscript string                    `json:"fullTranscript"`
	Speakers       []entities.SpeakerSegment `json:"speakers"`
	Words          []entities.Word           `json:"words"`
	Language       string                    `json:"language,omitempty"`
	SpeakerCount   int                       `json:"speakerCount"`
	Provider       string                    `json:"provider"`
}

// TokenResponse carries a provider realtime token
type TokenResponse struct {
	Token string `json:"token"`
}

// HealthResponse represents the response payload for /health
type HealthResponse struct {
	Status   string `json:"status"`
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
}

// RequestLogResponse lists recent request records
type RequestLogResponse struct {
	Requests []*entities.RequestRecord `json:"requests"`
	Count    int                       `json:"count"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func newTranscriptionResponse(result *entities.TranscriptionResult) TranscriptionResponse {
	return TranscriptionResponse{
		Success:        true,
		FullTranscript: result.Text,
		Speakers:       result.Segments,
		Words:          result.Words,
		Language:       result.Language,
		SpeakerCount:   result.SpeakerCount,
		Provider:       result.Provider,
	}
}
