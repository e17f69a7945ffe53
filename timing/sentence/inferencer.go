// Package sentence infers sentence boundaries from word timing streams and
// builds sentence spans from them.
package sentence

import (
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/text/language"

	"github.com/kahncode1/narrasync/timing"
	"github.com/kahncode1/narrasync/timing/align"
)

// Reason records why a sentence boundary was placed.
type Reason int

const (
	ReasonPause Reason = iota + 1
	ReasonPunctuation
	ReasonLongPause
	ReasonNewline
)

func (r Reason) String() string {
	switch r {
	case ReasonPause:
		return "pause"
	case ReasonPunctuation:
		return "punctuation"
	case ReasonLongPause:
		return "long-pause"
	case ReasonNewline:
		return "newline"
	default:
		return "none"
	}
}

// Options tunes the inferencer.
type Options struct {
	PauseThreshold time.Duration
	BreakOnNewline bool
	SearchWindow   int
	Language       language.Tag
}

// OptionsFromConfig maps configuration onto Options.
// An unparsable language falls back to English.
func OptionsFromConfig(cfg timing.SentenceConfig) Options {
	tag, err := language.Parse(cfg.Language)
	if err != nil {
		tag = language.English
	}
	return Options{
		PauseThreshold: cfg.PauseThreshold,
		BreakOnNewline: cfg.BreakOnNewline,
		SearchWindow:   cfg.SearchWindow,
		Language:       tag,
	}
}

// DefaultOptions returns Options built from the default configuration.
func DefaultOptions() Options {
	return OptionsFromConfig(timing.DefaultConfig().Sentence)
}

// Input is one inference job.
type Input struct {
	Words []timing.WordTiming
	// DisplayText is the text shown to the user; spans point into it.
	DisplayText string
	// SourceText is the text sent for synthesis. Empty when it is the
	// display text.
	SourceText string
}

// Miss is a word no search strategy could place.
type Miss struct {
	Index  int
	Word   string
	Cursor int
}

// Boundary is the first word of a new sentence and what caused it.
type Boundary struct {
	WordIndex int
	Reason    Reason
}

// Report describes what inference did.
type Report struct {
	// Trusted is set when the input already carried sentence indices and
	// was returned unchanged.
	Trusted      bool
	Sentences    int
	Boundaries   []Boundary
	Misses       []Miss
	SourceMisses int
	Strategies   map[align.Strategy]int
}

// Inferencer assigns sentence indices and display text spans to words.
// It holds no per-run state and is safe for concurrent use.
type Inferencer struct {
	opts   Options
	logger *log.Logger
}

// NewInferencer creates an inferencer. A nil logger uses log.Default().
func NewInferencer(opts Options, logger *log.Logger) *Inferencer {
	if opts.PauseThreshold <= 0 {
		opts.PauseThreshold = timing.DefaultPauseThreshold
	}
	if opts.SearchWindow < 0 {
		opts.SearchWindow = timing.DefaultSearchWindow
	}
	if opts.Language == language.Und {
		opts.Language = language.English
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Inferencer{opts: opts, logger: logger}
}

// Infer returns a corrected copy of in.Words. Input with more than one
// distinct sentence index is trusted and returned unchanged. Otherwise every
// word is located in the display text and sentence indices are derived
// from pauses, terminal punctuation and line breaks. The result is
// monotonic, and running Infer on its own output changes nothing.
func (inf *Inferencer) Infer(in Input) ([]timing.WordTiming, Report) {
	out := make([]timing.WordTiming, len(in.Words))
	copy(out, in.Words)

	if len(out) == 0 {
		return out, Report{}
	}
	if n := distinctSentences(out); n > 1 {
		return out, Report{Trusted: true, Sentences: n}
	}

	r := &run{
		inf:    inf,
		text:   in.DisplayText,
		report: Report{Strategies: make(map[align.Strategy]int)},
	}
	if in.SourceText != "" && in.SourceText != in.DisplayText {
		r.source = in.SourceText
		r.folder = align.NewFolder(inf.opts.Language)
	}

	sentence := 0
	for i := range out {
		w, trailing, token, spanStart, matched := r.locate(i, out[i])

		if i > 0 && !align.IsPunctuationOnly(w.Word) {
			if reason := r.boundary(out[i-1], w, spanStart, matched); reason != 0 {
				sentence++
				r.report.Boundaries = append(r.report.Boundaries, Boundary{WordIndex: i, Reason: reason})
			}
		}

		w.SentenceIndex = sentence
		out[i] = w

		r.prevTrailing = trailing
		if token != "" {
			r.prevToken = token
		}
		r.prevMatched = matched
	}

	r.report.Sentences = sentence + 1
	if n := len(r.report.Misses); n > 0 {
		inf.logger.Warn("words could not be aligned to display text",
			"misses", n, "words", len(out))
	}
	return out, r.report
}

// run is the state of one Infer call.
type run struct {
	inf    *Inferencer
	text   string
	source string
	folder *align.Folder

	cursor       int
	sourceCursor int

	prevTrailing string
	prevToken    string
	prevMatched  bool

	report Report
}

// locate resolves the span of w and returns the word with its span, the
// text trailing the match used for the punctuation check, and the token
// that a period would belong to.
func (r *run) locate(i int, w timing.WordTiming) (timing.WordTiming, string, string, int, bool) {
	needle := align.StripPunctuation(w.Word)
	if needle == "" {
		needle = w.Word
	}

	expected := r.cursor
	if cs, _, ok := w.CharRange(); ok {
		expected = cs
	}

	span := align.Resolve(r.text, needle, expected, r.cursor, r.inf.opts.SearchWindow)
	r.report.Strategies[span.Strategy]++

	trailing := w.Word
	if span.Matched() {
		trailing = align.TokenAt(r.text, span.Start)
	} else {
		r.report.Misses = append(r.report.Misses, Miss{Index: i, Word: w.Word, Cursor: r.cursor})
		r.inf.logger.Debug("alignment miss", "index", i, "word", w.Word, "cursor", r.cursor)
	}

	if r.folder != nil {
		if st, ok := r.crossReference(needle); ok && !span.Matched() {
			trailing = st
		}
	}

	r.cursor = span.End
	w = w.WithCharRange(span.Start, span.End)

	return w, trailing, align.StripPunctuation(trailing), span.Start, span.Matched()
}

// crossReference finds needle in the source text, preferring whole words.
func (r *run) crossReference(needle string) (string, bool) {
	s, e := r.folder.IndexWord(r.source, needle, r.sourceCursor)
	if s < 0 {
		s, e = r.folder.Index(r.source, needle, r.sourceCursor)
	}
	if s < 0 {
		r.report.SourceMisses++
		return "", false
	}
	r.sourceCursor = e
	return align.TokenAt(r.source, s), true
}

// boundary decides whether cur starts a new sentence after prev.
func (r *run) boundary(prev, cur timing.WordTiming, curStart int, curMatched bool) Reason {
	pause := align.ClassifyPause(align.Gap(prev.EndMs, cur.StartMs), r.inf.opts.PauseThreshold)
	if pause == align.PauseLong {
		return ReasonLongPause
	}

	mark, hasMark := align.TerminalMark(r.prevTrailing)
	abbreviated := hasMark && mark == '.' && align.IsAbbreviation(r.prevToken)

	if align.EndsSentence(r.prevTrailing, r.prevToken) {
		return ReasonPunctuation
	}
	if pause == align.PauseBreak && !abbreviated {
		return ReasonPause
	}

	if r.inf.opts.BreakOnNewline && curMatched && r.prevMatched {
		if ps, pe, ok := prev.CharRange(); ok && pe >= ps && pe <= curStart {
			if strings.ContainsRune(r.text[pe:curStart], '\n') {
				return ReasonNewline
			}
		}
	}

	return 0
}

// distinctSentences counts distinct sentence indices.
func distinctSentences(words []timing.WordTiming) int {
	if len(words) == 0 {
		return 0
	}
	seen := map[int]struct{}{words[0].SentenceIndex: {}}
	for _, w := range words[1:] {
		seen[w.SentenceIndex] = struct{}{}
	}
	return len(seen)
}
