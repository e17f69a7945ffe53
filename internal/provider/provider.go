// Package provider normalizes the timing payloads returned by speech
// synthesis providers into a single tagged result.
package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kahncode1/narrasync/timing"
	"github.com/kahncode1/narrasync/timing/chars"
	"github.com/kahncode1/narrasync/timing/collection"
)

// Kind identifies the payload layout.
type Kind int

const (
	KindUnknown Kind = iota
	// KindDocument is an already processed timing document.
	KindDocument
	// KindWordMarks is a list of word marks in milliseconds.
	KindWordMarks
	// KindCharMarks is a list of character start marks in milliseconds.
	KindCharMarks
	// KindCharAlignment is the columnar character layout in seconds.
	KindCharAlignment
)

// String returns the name used in logs and CLI output.
func (k Kind) String() string {
	switch k {
	case KindDocument:
		return "document"
	case KindWordMarks:
		return "word-marks"
	case KindCharMarks:
		return "char-marks"
	case KindCharAlignment:
		return "char-alignment"
	default:
		return "unknown"
	}
}

// WordMark is one entry of a word mark payload.
type WordMark struct {
	Word          string  `json:"word"`
	StartMs       float64 `json:"start_ms"`
	EndMs         float64 `json:"end_ms"`
	SentenceIndex *int    `json:"sentence_index,omitempty"`
}

// CharMark is one entry of a character mark payload.
type CharMark struct {
	Character   string  `json:"character"`
	StartTimeMs float64 `json:"start_time_ms"`
}

// Payload is a parsed provider response. Exactly one of the data fields
// is set, selected by Kind.
type Payload struct {
	Kind Kind

	Document  *timing.Document
	WordMarks []WordMark
	CharMarks []CharMark
	Alignment *chars.Alignment

	// Text is the spoken text when the provider returned it.
	Text string
}

// Parse detects the payload layout and decodes it. Word and character
// mark lists may be bare arrays or wrapped in an object under "words",
// "marks" or "characters". Character alignments may be nested under
// "alignment".
func Parse(data []byte) (Payload, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Payload{}, fmt.Errorf("%w: empty payload", timing.ErrMalformedTimingData)
	}

	if collection.IsDocument(data) {
		doc, err := collection.DecodeDocument(data)
		if err != nil {
			return Payload{}, err
		}
		return Payload{Kind: KindDocument, Document: doc, Text: doc.DisplayText}, nil
	}

	switch data[0] {
	case '[':
		return parseList(data, "")
	case '{':
		return parseObject(data)
	default:
		return Payload{}, fmt.Errorf("%w: not a JSON object or array", timing.ErrMalformedTimingData)
	}
}

func parseObject(data []byte) (Payload, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", timing.ErrMalformedTimingData, err)
	}

	var text string
	if raw, ok := obj["text"]; ok {
		_ = json.Unmarshal(raw, &text)
	}

	if raw, ok := obj["alignment"]; ok {
		return parseAlignment(raw, text)
	}
	if _, ok := obj["character_start_times_seconds"]; ok {
		return parseAlignment(data, text)
	}
	for _, key := range []string{"words", "marks", "characters"} {
		if raw, ok := obj[key]; ok {
			return parseList(raw, text)
		}
	}

	return Payload{}, fmt.Errorf("%w: no known timing fields", timing.ErrUnknownFormat)
}

func parseAlignment(raw json.RawMessage, text string) (Payload, error) {
	var a chars.Alignment
	if err := json.Unmarshal(raw, &a); err != nil {
		return Payload{}, fmt.Errorf("%w: alignment: %v", timing.ErrMalformedTimingData, err)
	}
	if len(a.Characters) != len(a.Starts) {
		return Payload{}, fmt.Errorf("%w: %d characters but %d start times",
			timing.ErrMalformedTimingData, len(a.Characters), len(a.Starts))
	}
	if text == "" {
		text = a.Text()
	}
	return Payload{Kind: KindCharAlignment, Alignment: &a, Text: text}, nil
}

// parseList peeks at the first element to tell word marks from character
// marks.
func parseList(raw json.RawMessage, text string) (Payload, error) {
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", timing.ErrMalformedTimingData, err)
	}
	if len(items) == 0 {
		return Payload{Kind: KindWordMarks, WordMarks: []WordMark{}, Text: text}, nil
	}

	first := items[0]
	switch {
	case has(first, "word", "start_ms"):
		var marks []WordMark
		if err := json.Unmarshal(raw, &marks); err != nil {
			return Payload{}, fmt.Errorf("%w: word marks: %v", timing.ErrMalformedTimingData, err)
		}
		for i, m := range marks {
			if m.Word == "" {
				return Payload{}, fmt.Errorf("%w: word mark %d has no word", timing.ErrMalformedTimingData, i)
			}
		}
		return Payload{Kind: KindWordMarks, WordMarks: marks, Text: text}, nil

	case has(first, "character", "start_time_ms"):
		var marks []CharMark
		if err := json.Unmarshal(raw, &marks); err != nil {
			return Payload{}, fmt.Errorf("%w: character marks: %v", timing.ErrMalformedTimingData, err)
		}
		if text == "" {
			var b strings.Builder
			for _, m := range marks {
				b.WriteString(m.Character)
			}
			text = b.String()
		}
		return Payload{Kind: KindCharMarks, CharMarks: marks, Text: text}, nil
	}

	return Payload{}, fmt.Errorf("%w: list entries have neither word nor character marks", timing.ErrMalformedTimingData)
}

func has(m map[string]json.RawMessage, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; !ok {
			return false
		}
	}
	return true
}

// Words returns word timings for word mark payloads. Negative times are
// clamped to zero and an end before its start is raised to the start.
// Words keep their punctuation so sentence inference can read it.
func (p Payload) Words() []timing.WordTiming {
	words := make([]timing.WordTiming, 0, len(p.WordMarks))
	for _, m := range p.WordMarks {
		w := timing.WordTiming{
			Word:    strings.TrimSpace(m.Word),
			StartMs: timing.ClampMs(int64(m.StartMs + 0.5)),
			EndMs:   timing.ClampMs(int64(m.EndMs + 0.5)),
		}
		if w.EndMs < w.StartMs {
			w.EndMs = w.StartMs
		}
		if m.SentenceIndex != nil {
			w.SentenceIndex = *m.SentenceIndex
		}
		words = append(words, w)
	}
	return words
}

// Marks returns character marks for character payloads.
func (p Payload) Marks() []chars.Mark {
	switch p.Kind {
	case KindCharAlignment:
		if p.Alignment == nil {
			return nil
		}
		return p.Alignment.Marks()
	case KindCharMarks:
		marks := make([]chars.Mark, 0, len(p.CharMarks))
		for _, m := range p.CharMarks {
			marks = append(marks, chars.Mark{Char: m.Character, StartMs: timing.ClampMs(int64(m.StartTimeMs + 0.5))})
		}
		return marks
	default:
		return nil
	}
}
