package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/satriahrh/scribe/domain/entities"
)

func TestMessageValidator_ValidateMessage(t *testing.T) {
	validator := NewMessageValidator()

	tests := []struct {
		name     string
		message  string
		wantType interface{}
		wantErr  bool
	}{
		{
			name:     "listening start",
			message:  `{"type": "listening_start", "language": "ko", "filename": "a.webm", "num_speakers": 2}`,
			wantType: &ListeningStartMessage{},
		},
		{
			name:     "listening start without options",
			message:  `{"type": "listening_start"}`,
			wantType: &ListeningStartMessage{},
		},
		{
			name:    "too many speakers",
			message: `{"type": "listening_start", "num_speakers": 64}`,
			wantErr: true,
		},
		{
			name:    "filename with path",
			message: `{"type": "listening_start", "filename": "../../etc/passwd"}`,
			wantErr: true,
		},
		{
			name:     "listening end",
			message:  `{"type": "listening_end"}`,
			wantType: &ListeningEndMessage{},
		},
		{
			name:     "ping",
			message:  `{"type": "ping", "data": "hello"}`,
			wantType: &PingMessage{},
		},
		{
			name:    "missing type",
			message: `{"language": "ko"}`,
			wantErr: true,
		},
		{
			name:    "unsupported type",
			message: `{"type": "audio_chunk"}`,
			wantErr: true,
		},
		{
			name:    "invalid json",
			message: `{"type": `,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := validator.ValidateMessage([]byte(tt.message))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			switch tt.wantType.(type) {
			case *ListeningStartMessage:
				if _, ok := msg.(*ListeningStartMessage); !ok {
					t.Errorf("Expected *ListeningStartMessage, got %T", msg)
				}
			case *ListeningEndMessage:
				if _, ok := msg.(*ListeningEndMessage); !ok {
					t.Errorf("Expected *ListeningEndMessage, got %T", msg)
				}
			case *PingMessage:
				if _, ok := msg.(*PingMessage); !ok {
					t.Errorf("Expected *PingMessage, got %T", msg)
				}
			}
		})
	}
}

func TestCreateErrorMessage(t *testing.T) {
	msg := CreateErrorMessage("timeout", "Processing timed out.", "")

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}

	if decoded["type"] != "error" || decoded["error_code"] != "timeout" {
		t.Errorf("Unexpected error message %s", data)
	}
	if _, ok := decoded["details"]; ok {
		t.Error("Expected empty details to be omitted")
	}
}

func TestCreateTranscriptionMessage(t *testing.T) {
	result := &entities.TranscriptionResult{
		Transcription: entities.Transcription{
			Text:     "Hi Hey",
			Language: "en",
			Words:    []entities.Word{{Text: "Hi", SpeakerID: "A"}, {Text: "Hey", SpeakerID: "B"}},
			Provider: "mock",
		},
		Segments:     []entities.SpeakerSegment{{Speaker: "A", Text: "Hi"}, {Speaker: "B", Text: "Hey"}},
		SpeakerCount: 2,
	}

	msg := CreateTranscriptionMessage("session-1", result, 1500*time.Millisecond)

	if msg.Type != MessageTypeTranscription || !msg.Success {
		t.Errorf("Unexpected message header %+v", msg.BaseMessage)
	}
	if msg.FullTranscript != "Hi Hey" || len(msg.Speakers) != 2 || msg.SpeakerCount != 2 {
		t.Errorf("Unexpected message body %+v", msg)
	}
	if msg.ProcessingTime != 1500 {
		t.Errorf("Expected 1500ms, got %d", msg.ProcessingTime)
	}
}
