package collection

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/kahncode1/narrasync/timing"
)

// envelope is the preprocessed layout, either flat or with the timing
// nested under "timing" and the text fields at the top level.
type envelope struct {
	timing.Document
	Words     []wireWord     `json:"words"`
	Sentences []wireSentence `json:"sentences"`
	Timing    *struct {
		Words           []wireWord     `json:"words"`
		Sentences       []wireSentence `json:"sentences"`
		TotalDurationMs int64          `json:"totalDurationMs"`
	} `json:"timing,omitempty"`
}

// wireWord accepts both the camelCase keys and the snake_case keys the
// preprocessing pipeline writes. Pointers tell a missing key from zero.
type wireWord struct {
	Word          string `json:"word"`
	StartMs       *int64 `json:"startMs"`
	EndMs         *int64 `json:"endMs"`
	SentenceIndex *int   `json:"sentenceIndex"`
	CharStart     *int   `json:"charStart"`
	CharEnd       *int   `json:"charEnd"`

	StartMsSnake       *int64 `json:"start_ms"`
	EndMsSnake         *int64 `json:"end_ms"`
	SentenceIndexSnake *int   `json:"sentence_index"`
	CharStartSnake     *int   `json:"char_start"`
	CharEndSnake       *int   `json:"char_end"`
}

type wireSentence struct {
	Text           string `json:"text"`
	StartMs        *int64 `json:"startMs"`
	EndMs          *int64 `json:"endMs"`
	WordStartIndex *int   `json:"wordStartIndex"`
	WordEndIndex   *int   `json:"wordEndIndex"`
	SentenceIndex  *int   `json:"sentenceIndex"`
	CharStart      *int   `json:"charStart"`
	CharEnd        *int   `json:"charEnd"`

	StartMsSnake        *int64 `json:"start_ms"`
	EndMsSnake          *int64 `json:"end_ms"`
	WordStartIndexSnake *int   `json:"word_start_index"`
	WordEndIndexSnake   *int   `json:"word_end_index"`
	SentenceIndexSnake  *int   `json:"sentence_index"`
	CharStartSnake      *int   `json:"char_start"`
	CharEndSnake        *int   `json:"char_end"`
}

func either[T any](a, b *T) *T {
	if a != nil {
		return a
	}
	return b
}

func valueOf[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// resolveTimings converts wire values into the model. Documents written
// without sentence indices get them from their position and word ranges.
func resolveTimings(ww []wireWord, ws []wireSentence) ([]timing.WordTiming, []timing.SentenceTiming) {
	words := make([]timing.WordTiming, len(ww))
	wordIndexed := make([]bool, len(ww))
	for i, w := range ww {
		idx := either(w.SentenceIndex, w.SentenceIndexSnake)
		wordIndexed[i] = idx != nil
		words[i] = timing.WordTiming{
			Word:          w.Word,
			StartMs:       valueOf(either(w.StartMs, w.StartMsSnake)),
			EndMs:         valueOf(either(w.EndMs, w.EndMsSnake)),
			SentenceIndex: valueOf(idx),
			CharStart:     either(w.CharStart, w.CharStartSnake),
			CharEnd:       either(w.CharEnd, w.CharEndSnake),
		}
	}

	sentences := make([]timing.SentenceTiming, len(ws))
	for i, s := range ws {
		idx := either(s.SentenceIndex, s.SentenceIndexSnake)
		sentences[i] = timing.SentenceTiming{
			Text:           s.Text,
			StartMs:        valueOf(either(s.StartMs, s.StartMsSnake)),
			EndMs:          valueOf(either(s.EndMs, s.EndMsSnake)),
			WordStartIndex: valueOf(either(s.WordStartIndex, s.WordStartIndexSnake)),
			WordEndIndex:   valueOf(either(s.WordEndIndex, s.WordEndIndexSnake)),
			SentenceIndex:  i,
			CharStart:      either(s.CharStart, s.CharStartSnake),
			CharEnd:        either(s.CharEnd, s.CharEndSnake),
		}
		if idx != nil {
			sentences[i].SentenceIndex = *idx
		}
	}

	for _, s := range sentences {
		for w := max(s.WordStartIndex, 0); w <= s.WordEndIndex && w < len(words); w++ {
			if !wordIndexed[w] {
				words[w].SentenceIndex = s.SentenceIndex
				wordIndexed[w] = true
			}
		}
	}
	// Words outside every sentence range stay with the sentence before them.
	for i := range words {
		if !wordIndexed[i] && i > 0 {
			words[i].SentenceIndex = words[i-1].SentenceIndex
		}
	}
	return words, sentences
}

// IsDocument reports whether data looks like a preprocessed document,
// either flat or nested under "timing".
func IsDocument(data []byte) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return false
	}
	if raw, ok := fields["timing"]; ok {
		fields = nil
		if err := json.Unmarshal(raw, &fields); err != nil {
			return false
		}
	}
	_, words := fields["words"]
	_, sentences := fields["sentences"]
	return words && sentences
}

// DecodeDocument parses a preprocessed document.
func DecodeDocument(data []byte) (*timing.Document, error) {
	if !IsDocument(data) {
		return nil, fmt.Errorf("%w: expected words and sentences", timing.ErrMalformedTimingData)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", timing.ErrMalformedTimingData, err)
	}

	doc := env.Document
	ww, ws := env.Words, env.Sentences
	if env.Timing != nil {
		ww, ws = env.Timing.Words, env.Timing.Sentences
		doc.TotalDurationMs = env.Timing.TotalDurationMs
	}
	doc.Words, doc.Sentences = resolveTimings(ww, ws)
	return &doc, nil
}

// ReadDocument reads and parses a preprocessed document from r.
func ReadDocument(r io.Reader) (*timing.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return DecodeDocument(data)
}

// EncodeDocument writes doc in the flat layout.
func EncodeDocument(doc *timing.Document) ([]byte, error) {
	if doc == nil {
		return nil, timing.ErrEmptyDocument
	}
	out := *doc
	if out.Version == "" {
		out.Version = timing.DocumentVersion
	}
	if out.Words == nil {
		out.Words = []timing.WordTiming{}
	}
	if out.Sentences == nil {
		out.Sentences = []timing.SentenceTiming{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(&out); err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return buf.Bytes(), nil
}

// Load decodes data into a Collection.
func Load(data []byte, opts ...Option) (*Collection, error) {
	doc, err := DecodeDocument(data)
	if err != nil {
		return nil, err
	}
	return New(doc, opts...), nil
}

// MarshalJSON encodes the collection's document.
func (c *Collection) MarshalJSON() ([]byte, error) {
	return EncodeDocument(c.Document())
}
