package websocket

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/satriahrh/scribe/domain/entities"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Supported message types
const (
	MessageTypeListeningStart MessageType = "listening_start"
	MessageTypeListeningEnd   MessageType = "listening_end"
	MessageTypeTranscription  MessageType = "transcription"
	MessageTypePing           MessageType = "ping"
	MessageTypePong           MessageType = "pong"
	MessageTypeError          MessageType = "error"
)

// Error codes sent to the client besides the domain error kinds
const (
	ErrorCodeInvalidMessage = "invalid_message"
	ErrorCodeNotListening   = "not_listening"
	ErrorCodeAudioTooLarge  = "audio_too_large"
)

const maxNumSpeakers = 32

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp"`
	MessageID string      `json:"message_id,omitempty"`
}

// ListeningStartMessage opens an upload; binary frames that follow are audio
type ListeningStartMessage struct {
	BaseMessage
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Language    string `json:"language,omitempty"`
	NumSpeakers int    `json:"num_speakers,omitempty"`
}

// ListeningStartAck confirms that the server is buffering audio
type ListeningStartAck struct {
	BaseMessage
	SessionID string `json:"session_id"`
}

// ListeningEndMessage closes the upload and triggers transcription
type ListeningEndMessage struct {
	BaseMessage
}

// TranscriptionMessage carries the speaker-segmented result
type TranscriptionMessage struct {
	BaseMessage
	SessionID      string                    `json:"session_id"`
	Success        bool                      `json:"success"`
	FullTranscript string                    `json:"fullTranscript"`
	Speakers       []entities.SpeakerSegment `json:"speakers"`
	Words          []entities.Word           `json:"words"`
	Language       string                    `json:"language,omitempty"`
	SpeakerCount   int                       `json:"speakerCount"`
	Provider       string                    `json:"provider"`
	ProcessingTime int64                     `json:"processing_time_ms"`
}

// PingMessage represents a ping message for connection health check
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// MessageValidator provides validation for WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage validates an incoming text message
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	// First parse as base message to get type
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypeListeningStart:
		var msg ListeningStartMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid listening start message: %w", err)
		}
		if err := v.validateListeningStart(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MessageTypeListeningEnd:
		var msg ListeningEndMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid listening end message: %w", err)
		}
		return &msg, nil

	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	case "":
		return nil, fmt.Errorf("message type is required")

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

func (v *MessageValidator) validateListeningStart(msg *ListeningStartMessage) error {
	if msg.NumSpeakers < 0 || msg.NumSpeakers > maxNumSpeakers {
		return fmt.Errorf("num_speakers must be between 0 and %d", maxNumSpeakers)
	}
	if msg.Filename != "" && filepath.Base(msg.Filename) != msg.Filename {
		return fmt.Errorf("filename must not contain a path")
	}
	if len(msg.Language) > 16 {
		return fmt.Errorf("language must be a language code")
	}
	return nil
}

func newBase(t MessageType) BaseMessage {
	return BaseMessage{Type: t, Timestamp: time.Now().Format(time.RFC3339)}
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message, details string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: newBase(MessageTypeError),
		Code:        code,
		Message:     message,
		Details:     details,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{
		BaseMessage: newBase(MessageTypePong),
		Data:        data,
	}
}

// CreateListeningStartAck acknowledges a listening_start
func CreateListeningStartAck(sessionID string) *ListeningStartAck {
	return &ListeningStartAck{
		BaseMessage: newBase(MessageTypeListeningStart),
		SessionID:   sessionID,
	}
}

// CreateTranscriptionMessage wraps a result for the client
func CreateTranscriptionMessage(sessionID string, result *entities.TranscriptionResult, elapsed time.Duration) *TranscriptionMessage {
	return &TranscriptionMessage{
		BaseMessage:    newBase(MessageTypeTranscription),
		SessionID:      sessionID,
		Success:        true,
		FullTranscript: result.Text,
		Speakers:       result.Segments,
		Words:          result.Words,
		Language:       result.Language,
		SpeakerCount:   result.SpeakerCount,
		Provider:       result.Provider,
		ProcessingTime: elapsed.Milliseconds(),
	}
}
