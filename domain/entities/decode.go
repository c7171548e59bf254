package entities

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// WordError reports a word record that does not have the expected shape.
// Index is -1 when the word list itself is malformed.
type WordError struct {
	Index int
	Field string
	Err   error
}

func (e *WordError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("words: %v", e.Err)
	}
	if e.Field != "" {
		return fmt.Sprintf("word %d: missing required field %q", e.Index, e.Field)
	}
	return fmt.Sprintf("word %d: %v", e.Index, e.Err)
}

func (e *WordError) Unwrap() error {
	return e.Err
}

type rawWord struct {
	Text      *string  `json:"text"`
	Start     *float64 `json:"start"`
	End       *float64 `json:"end"`
	SpeakerID *string  `json:"speaker_id"`
	Type      string   `json:"type"`
}

// DecodeWords decodes a JSON array of provider word records.
//
// Every record needs text and start. A missing end defaults to start and a
// missing speaker_id is left empty. The first malformed record is reported
// as a *WordError naming its index.
func DecodeWords(data []byte) ([]Word, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []Word{}, nil
	}

	var records []json.RawMessage
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, &WordError{Index: -1, Err: err}
	}

	words := make([]Word, 0, len(records))
	for i, record := range records {
		var raw rawWord
		if err := json.Unmarshal(record, &raw); err != nil {
			return nil, &WordError{Index: i, Err: err}
		}
		if raw.Text == nil {
			return nil, &WordError{Index: i, Field: "text"}
		}
		if raw.Start == nil {
			return nil, &WordError{Index: i, Field: "start"}
		}

		w := Word{Text: *raw.Text, Start: *raw.Start, End: *raw.Start, Type: raw.Type}
		if raw.End != nil {
			w.End = *raw.End
		}
		if raw.SpeakerID != nil {
			w.SpeakerID = *raw.SpeakerID
		}
		words = append(words, w)
	}
	return words, nil
}
