package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kahncode1/narrasync/internal/markup"
	"github.com/kahncode1/narrasync/internal/provider"
	"github.com/kahncode1/narrasync/timing"
	"github.com/kahncode1/narrasync/timing/align"
	"github.com/kahncode1/narrasync/timing/collection"
	"github.com/kahncode1/narrasync/timing/sentence"
)

// readingWordsPerMinute is the silent reading rate used for the estimate
// in document metadata.
const readingWordsPerMinute = 200

// Request is one alignment job.
type Request struct {
	// Source labels the document, usually its file name.
	Source string
	// Payload is the provider's timing response.
	Payload []byte
	// Text is the plain display text. When empty, Markdown is rendered, and
	// failing that the text carried by the payload is used.
	Text     string
	Markdown []byte
	// SourceText is the text sent for synthesis when it differs from the
	// display text.
	SourceText string
}

// Result is an aligned document and how it was produced.
type Result struct {
	Document  *timing.Document
	Kind      provider.Kind
	Synthetic bool
	Inference sentence.Report
	Gaps      sentence.GapStats
	Elapsed   time.Duration
}

// Align runs the alignment pipeline on the executor.
func (s *TimingService) Align(ctx context.Context, req Request) (*Result, error) {
	var res *Result
	err := s.exec.Run(ctx, func(ctx context.Context) error {
		var err error
		res, err = s.align(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *TimingService) align(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()

	text := markup.Text{DisplayText: req.Text}
	if text.DisplayText == "" && len(req.Markdown) > 0 {
		text = s.renderer.Render(req.Markdown)
	}

	res := &Result{}
	payload, err := provider.Parse(req.Payload)
	if err == nil {
		res.Kind = payload.Kind
	}

	var words []timing.WordTiming
	switch {
	case err != nil:
		s.logger.Warn("unusable timing payload, using synthetic timing",
			"source", req.Source, "error", err)

	case payload.Kind == provider.KindDocument:
		return s.finishDocument(payload.Document, text, req, res, started), nil

	case payload.Kind == provider.KindWordMarks:
		words = payload.Words()

	default:
		words = s.transformer.Transform(payload.Marks())
	}

	if text.DisplayText == "" {
		text.DisplayText = payload.Text
	}
	if text.DisplayText == "" && len(words) > 0 {
		text.DisplayText = joinWords(words)
	}
	sourceText := req.SourceText
	if sourceText == "" && payload.Text != text.DisplayText {
		sourceText = payload.Text
	}

	if len(words) == 0 {
		words, err = s.synthesize(text.DisplayText, sourceText)
		if err != nil {
			return nil, timing.NewAlignmentError(err, "service", "align").
				WithContext("source", req.Source)
		}
		res.Synthetic = true
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.Join(timing.ErrCanceled, err)
	}

	words, res.Inference = s.inferencer.Infer(sentence.Input{
		Words:       words,
		DisplayText: text.DisplayText,
		SourceText:  sourceText,
	})
	if s.cfg.Gaps.Eliminate {
		words, res.Gaps = sentence.EliminateGaps(words, s.cfg.Gaps.SplitThreshold)
	}

	words, sentences := sentence.Build(words, text.DisplayText)
	for i := range words {
		if w := align.StripPunctuation(words[i].Word); w != "" {
			words[i].Word = w
		}
	}
	sentences = sentence.EnsureContinuousCoverage(sentences)

	var total int64
	if n := len(words); n > 0 {
		total = words[n-1].EndMs
	}
	if n := len(sentences); n > 0 {
		total = max(total, sentences[n-1].EndMs)
	}

	doc := &timing.Document{
		Version:         timing.DocumentVersion,
		Source:          req.Source,
		DisplayText:     text.DisplayText,
		Paragraphs:      text.Paragraphs,
		Headers:         text.Headers,
		Words:           words,
		Sentences:       sentences,
		TotalDurationMs: total,
	}
	return s.finishDocument(doc, text, req, res, started), nil
}

// finishDocument fills in metadata and the lookup table when missing.
func (s *TimingService) finishDocument(doc *timing.Document, text markup.Text, req Request, res *Result, started time.Time) *Result {
	if doc.Version == "" {
		doc.Version = timing.DocumentVersion
	}
	if doc.Source == "" {
		doc.Source = req.Source
	}
	if doc.DisplayText == "" {
		doc.DisplayText = text.DisplayText
		doc.Paragraphs = text.Paragraphs
		doc.Headers = text.Headers
	}
	if doc.Metadata == nil {
		doc.Metadata = metadataFor(doc, s.cfg)
	}
	if s.cfg.Collection.BuildLookup && doc.LookupTable == nil && len(doc.Words) > 0 {
		doc.LookupTable = collection.BuildLookupTable(doc.Words, doc.TotalDurationMs, s.cfg.Collection.LookupInterval)
	}

	res.Document = doc
	res.Elapsed = time.Since(started)
	s.logger.Debug("aligned document",
		"source", req.Source,
		"kind", res.Kind,
		"words", len(doc.Words),
		"sentences", len(doc.Sentences),
		"synthetic", res.Synthetic,
		"misses", len(res.Inference.Misses),
		"took", res.Elapsed)
	return res
}

func (s *TimingService) synthesize(display, source string) ([]timing.WordTiming, error) {
	text := display
	if text == "" {
		text = source
	}
	words, err := provider.Synthesize(text, s.cfg.Fallback.WordsPerMinute)
	if err != nil {
		return nil, fmt.Errorf("synthetic timing: %w", err)
	}
	return words, nil
}

func metadataFor(doc *timing.Document, cfg timing.Config) *timing.Metadata {
	return &timing.Metadata{
		WordCount:               len(doc.Words),
		CharacterCount:          utf8.RuneCountInString(doc.DisplayText),
		EstimatedReadingMinutes: max(1, len(doc.Words)/readingWordsPerMinute),
		Language:                cfg.Sentence.Language,
	}
}

func joinWords(words []timing.WordTiming) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.Word
	}
	return strings.Join(parts, " ")
}
