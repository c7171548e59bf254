package entities

import (
	"sort"
	"strings"
)

// GroupBySpeaker merges consecutive words that share a speaker into segments.
//
// Each segment starts at its first word's start and ends at its last word's
// end. Words without a speaker belong to UnknownSpeaker. The input is expected
// to be ordered by start time; that order is not checked. An empty input
// yields an empty, non-nil slice.
func GroupBySpeaker(words []Word) []SpeakerSegment {
	segments := make([]SpeakerSegment, 0)
	if len(words) == 0 {
		return segments
	}

	var (
		current SpeakerSegment
		parts   []string
	)
	flush := func() {
		current.Text = strings.Join(parts, " ")
		segments = append(segments, current)
	}

	for i, w := range words {
		speaker := w.Speaker()
		if i > 0 && speaker == current.Speaker {
			parts = append(parts, w.Text)
			current.End = w.End
			continue
		}
		if i > 0 {
			flush()
		}
		current = SpeakerSegment{Speaker: speaker, Start: w.Start, End: w.End}
		parts = []string{w.Text}
	}
	flush()

	return segments
}

// FlattenSegments turns every segment back into a single word.
func FlattenSegments(segments []SpeakerSegment) []Word {
	words := make([]Word, 0, len(segments))
	for _, s := range segments {
		words = append(words, Word{
			Text:      s.Text,
			Start:     s.Start,
			End:       s.End,
			SpeakerID: s.Speaker,
			Type:      WordTypeWord,
		})
	}
	return words
}

// UniqueSpeakers returns the distinct speakers of words in sorted order.
func UniqueSpeakers(words []Word) []string {
	seen := make(map[string]struct{})
	for _, w := range words {
		seen[w.Speaker()] = struct{}{}
	}
	speakers := make([]string, 0, len(seen))
	for s := range seen {
		speakers = append(speakers, s)
	}
	sort.Strings(speakers)
	return speakers
}
