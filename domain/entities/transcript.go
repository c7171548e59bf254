package entities

// UnknownSpeaker is the speaker assigned to tokens that carry no speaker label.
const UnknownSpeaker = "unknown"

// Word token types reported by providers.
const (
	WordTypeWord       = "word"
	WordTypeSpacing    = "spacing"
	WordTypeAudioEvent = "audio_event"
)

// Word is one recognized unit of speech with its time offsets in seconds.
type Word struct {
	Text      string  `json:"text"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	SpeakerID string  `json:"speaker_id,omitempty"`
	Type      string  `json:"type,omitempty"`
}

// Speaker returns the speaker label, falling back to UnknownSpeaker.
func (w Word) Speaker() string {
	if w.SpeakerID == "" {
		return UnknownSpeaker
	}
	return w.SpeakerID
}

// SpeakerSegment is a maximal run of consecutive words spoken by one speaker.
type SpeakerSegment struct {
	Speaker string  `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
}

// Transcription is what a speech-to-text provider returns for one audio file.
type Transcription struct {
	Text                string  `json:"text"`
	Language            string  `json:"language,omitempty"`
	LanguageProbability float64 `json:"language_probability,omitempty"`
	Words               []Word  `json:"words"`
	Provider            string  `json:"provider"`
	Model               string  `json:"model,omitempty"`
}

// TranscriptionResult is a transcription regrouped into speaker segments.
type TranscriptionResult struct {
	Transcription
	Segments     []SpeakerSegment `json:"segments"`
	SpeakerCount int              `json:"speaker_count"`
}

// DropSpacing removes whitespace-only tokens some providers interleave
// between words.
func DropSpacing(words []Word) []Word {
	kept := make([]Word, 0, len(words))
	for _, w := range words {
		if w.Type == WordTypeSpacing {
			continue
		}
		kept = append(kept, w)
	}
	return kept
}
