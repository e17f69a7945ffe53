package sentence

import (
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/kahncode1/narrasync/timing"
	"github.com/kahncode1/narrasync/timing/align"
)

type mark struct {
	word       string
	start, end int64
}

func wordsOf(marks ...mark) []timing.WordTiming {
	words := make([]timing.WordTiming, len(marks))
	for i, m := range marks {
		words[i] = timing.WordTiming{Word: m.word, StartMs: m.start, EndMs: m.end}
	}
	return words
}

func indices(words []timing.WordTiming) []int {
	out := make([]int, len(words))
	for i, w := range words {
		out[i] = w.SentenceIndex
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func quietInferencer(opts Options) *Inferencer {
	return NewInferencer(opts, log.New(io.Discard))
}

func TestInferEndToEnd(t *testing.T) {
	text := "Hello world. Dr. Smith won."
	words := wordsOf(
		mark{"Hello", 0, 400},
		mark{"world.", 400, 900},
		mark{"Dr.", 1300, 1600},
		mark{"Smith", 1600, 2000},
		mark{"won.", 2000, 2400},
	)

	inf := quietInferencer(Options{PauseThreshold: 350 * time.Millisecond, SearchWindow: 6})
	got, report := inf.Infer(Input{Words: words, DisplayText: text})

	if want := []int{0, 0, 1, 1, 1}; !equalInts(indices(got), want) {
		t.Fatalf("sentence indices = %v, want %v", indices(got), want)
	}
	if report.Sentences != 2 {
		t.Errorf("report.Sentences = %d, want 2", report.Sentences)
	}
	if len(report.Misses) != 0 {
		t.Errorf("unexpected misses: %+v", report.Misses)
	}

	_, sentences := Build(got, text)
	wantText := []string{"Hello world.", "Dr. Smith won."}
	if len(sentences) != len(wantText) {
		t.Fatalf("got %d sentences, want %d", len(sentences), len(wantText))
	}
	for i, s := range sentences {
		if s.Text != wantText[i] {
			t.Errorf("sentence %d text = %q, want %q", i, s.Text, wantText[i])
		}
		if s.SentenceIndex != i {
			t.Errorf("sentence %d index = %d", i, s.SentenceIndex)
		}
	}
}

func TestInferEllipsis(t *testing.T) {
	text := "I waited... Then he came."
	words := wordsOf(
		mark{"I", 0, 100},
		mark{"waited...", 100, 500},
		mark{"Then", 550, 700},
		mark{"he", 700, 800},
		mark{"came.", 800, 1100},
	)

	inf := quietInferencer(DefaultOptions())
	got, report := inf.Infer(Input{Words: words, DisplayText: text})

	if want := []int{0, 0, 1, 1, 1}; !equalInts(indices(got), want) {
		t.Errorf("sentence indices = %v, want %v", indices(got), want)
	}
	if report.Sentences != 2 {
		t.Errorf("report.Sentences = %d, want 2", report.Sentences)
	}
}

func TestInferAbbreviationSuppression(t *testing.T) {
	tests := []struct {
		name  string
		words []string
		text  string
		want  []int
	}{
		{
			name:  "attached period",
			words: []string{"Dr", ".", "Smith", "arrived", "."},
			text:  "Dr. Smith arrived.",
			want:  []int{0, 0, 0, 0, 0},
		},
		{
			name:  "spaced period",
			words: []string{"Dr", ".", "Smith", "arrived", "."},
			text:  "Dr . Smith arrived .",
			want:  []int{0, 0, 0, 0, 0},
		},
		{
			name:  "exclamation is never suppressed",
			words: []string{"Dr", "!", "Smith", "arrived", "."},
			text:  "Dr! Smith arrived.",
			want:  []int{0, 0, 1, 1, 1},
		},
		{
			name:  "question mark",
			words: []string{"Really", "?", "Yes", "."},
			text:  "Really? Yes.",
			want:  []int{0, 0, 1, 1},
		},
		{
			name:  "ordinary word before period",
			words: []string{"It", "ended", ".", "Then", "more", "."},
			text:  "It ended. Then more.",
			want:  []int{0, 0, 0, 1, 1, 1},
		},
	}

	inf := quietInferencer(DefaultOptions())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			words := make([]timing.WordTiming, len(tt.words))
			var at int64
			for i, w := range tt.words {
				words[i] = timing.WordTiming{Word: w, StartMs: at, EndMs: at + 100}
				at += 100
			}

			got, _ := inf.Infer(Input{Words: words, DisplayText: tt.text})
			if !equalInts(indices(got), tt.want) {
				t.Errorf("sentence indices = %v, want %v", indices(got), tt.want)
			}
		})
	}
}

func TestInferPauseRules(t *testing.T) {
	tests := []struct {
		name string
		text string
		gap  int64
		want []int
	}{
		{"short pause", "Hello there friend", 200, []int{0, 0, 0}},
		{"pause breaks", "Hello there friend", 400, []int{0, 1, 2}},
		{"abbreviation holds a pause", "Mr. Jones spoke", 400, []int{0, 0, 1}},
		{"long pause overrides abbreviation", "Mr. Jones spoke", 800, []int{0, 1, 2}},
	}

	inf := quietInferencer(DefaultOptions())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := strings.Fields(tt.text)
			words := make([]timing.WordTiming, len(fields))
			var at int64
			for i, f := range fields {
				words[i] = timing.WordTiming{Word: align.TrimTrailingPunctuation(f), StartMs: at, EndMs: at + 300}
				at += 300 + tt.gap
			}

			got, _ := inf.Infer(Input{Words: words, DisplayText: tt.text})
			if !equalInts(indices(got), tt.want) {
				t.Errorf("sentence indices = %v, want %v", indices(got), tt.want)
			}
		})
	}
}

func TestInferNewline(t *testing.T) {
	text := "Overview\nFirst item here"
	words := wordsOf(
		mark{"Overview", 0, 300},
		mark{"First", 300, 600},
		mark{"item", 600, 900},
		mark{"here", 900, 1200},
	)

	tests := []struct {
		name  string
		brk   bool
		want  []int
		cause Reason
	}{
		{"break on newline", true, []int{0, 1, 1, 1}, ReasonNewline},
		{"newline ignored", false, []int{0, 0, 0, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.BreakOnNewline = tt.brk
			got, report := quietInferencer(opts).Infer(Input{Words: words, DisplayText: text})

			if !equalInts(indices(got), tt.want) {
				t.Fatalf("sentence indices = %v, want %v", indices(got), tt.want)
			}
			if tt.cause != 0 {
				if len(report.Boundaries) != 1 || report.Boundaries[0].Reason != tt.cause {
					t.Errorf("boundaries = %+v, want one %s", report.Boundaries, tt.cause)
				}
			}
		})
	}
}

func TestInferTrustedInput(t *testing.T) {
	words := wordsOf(
		mark{"One", 0, 100},
		mark{"two", 100, 200},
		mark{"Three", 200, 300},
	)
	words[2].SentenceIndex = 4

	got, report := quietInferencer(DefaultOptions()).Infer(Input{Words: words, DisplayText: "One two. Three"})
	if !report.Trusted {
		t.Fatal("input with several sentence indices should be trusted")
	}
	if want := []int{0, 0, 4}; !equalInts(indices(got), want) {
		t.Errorf("sentence indices = %v, want %v", indices(got), want)
	}
	if got[0].CharStart != nil {
		t.Error("trusted input should not be aligned")
	}

	got[0].Word = "changed"
	if words[0].Word != "One" {
		t.Error("Infer must not alias its input")
	}
}

func TestInferIdempotent(t *testing.T) {
	text := "The plan worked. Everyone cheered, and Prof. Lee smiled! Was it luck? No."
	var marks []mark
	var at int64
	for _, f := range strings.Fields(text) {
		marks = append(marks, mark{f, at, at + 250})
		at += 280
	}

	inf := quietInferencer(DefaultOptions())
	first, _ := inf.Infer(Input{Words: wordsOf(marks...), DisplayText: text})
	second, _ := inf.Infer(Input{Words: first, DisplayText: text})

	if len(first) != len(second) {
		t.Fatalf("length changed: %d -> %d", len(first), len(second))
	}
	for i := range first {
		a, b := first[i], second[i]
		as, ae, _ := a.CharRange()
		bs, be, _ := b.CharRange()
		if a.SentenceIndex != b.SentenceIndex || as != bs || ae != be {
			t.Errorf("word %d changed on re-inference: %+v -> %+v", i, a, b)
		}
	}

	// And once more with every word placed in sentence zero.
	reset := make([]timing.WordTiming, len(first))
	copy(reset, first)
	for i := range reset {
		reset[i].SentenceIndex = 0
	}
	third, _ := inf.Infer(Input{Words: reset, DisplayText: text})
	if !equalInts(indices(third), indices(first)) {
		t.Errorf("re-inference from aligned spans = %v, want %v", indices(third), indices(first))
	}
}

func TestInferMonotonic(t *testing.T) {
	var b strings.Builder
	var words []timing.WordTiming
	var at int64
	for i := 0; i < 200; i++ {
		w := fmt.Sprintf("w%d", i)
		switch i % 7 {
		case 3:
			w += "."
		case 5:
			w += "?"
		}
		b.WriteString(w)
		b.WriteByte(' ')

		gap := int64((i * 37) % 900)
		words = append(words, timing.WordTiming{Word: align.TrimTrailingPunctuation(w), StartMs: at, EndMs: at + 120})
		at += 120 + gap
	}
	// A word that does not appear in the text at all.
	words = append(words, timing.WordTiming{Word: "missing", StartMs: at, EndMs: at + 50})

	text := b.String()
	got, report := quietInferencer(DefaultOptions()).Infer(Input{Words: words, DisplayText: text})

	for i := 1; i < len(got); i++ {
		if got[i].SentenceIndex < got[i-1].SentenceIndex {
			t.Fatalf("sentence index regressed at %d: %d < %d", i, got[i].SentenceIndex, got[i-1].SentenceIndex)
		}
		if d := got[i].SentenceIndex - got[i-1].SentenceIndex; d > 1 {
			t.Fatalf("sentence index skipped at %d", i)
		}
	}
	for i, w := range got {
		s, e, ok := w.CharRange()
		if !ok || s > e || s < 0 || e > len(text) {
			t.Errorf("word %d has invalid span [%d,%d) ok=%v", i, s, e, ok)
		}
	}
	if len(report.Misses) != 1 || report.Misses[0].Word != "missing" {
		t.Errorf("misses = %+v, want the missing word", report.Misses)
	}
	if report.Strategies[align.StrategyClamp] != 1 {
		t.Errorf("clamp count = %d, want 1", report.Strategies[align.StrategyClamp])
	}
}

func TestInferSourceCrossReference(t *testing.T) {
	words := wordsOf(
		mark{"It", 0, 100},
		mark{"Rained", 100, 300},
		mark{"then", 300, 400},
		mark{"stopped", 400, 600},
	)
	in := Input{
		Words:       words,
		DisplayText: "It rained then stopped",
		SourceText:  "It RAINED. then stopped",
	}

	got, report := quietInferencer(DefaultOptions()).Infer(in)
	if want := []int{0, 0, 1, 1}; !equalInts(indices(got), want) {
		t.Errorf("sentence indices = %v, want %v", indices(got), want)
	}
	if len(report.Misses) != 1 || report.Misses[0].Index != 1 {
		t.Errorf("misses = %+v, want word 1", report.Misses)
	}
	if report.SourceMisses != 0 {
		t.Errorf("source misses = %d, want 0", report.SourceMisses)
	}
}

func TestInferEmpty(t *testing.T) {
	got, report := quietInferencer(DefaultOptions()).Infer(Input{DisplayText: "anything"})
	if got == nil || len(got) != 0 {
		t.Errorf("Infer() = %#v, want empty slice", got)
	}
	if report.Sentences != 0 || report.Trusted {
		t.Errorf("report = %+v, want zero", report)
	}
}

func TestInferEmptyDisplayText(t *testing.T) {
	words := wordsOf(mark{"alone", 0, 100}, mark{"again", 600, 700})
	got, report := quietInferencer(DefaultOptions()).Infer(Input{Words: words})

	if len(report.Misses) != 2 {
		t.Errorf("misses = %d, want 2", len(report.Misses))
	}
	for i, w := range got {
		s, e, ok := w.CharRange()
		if !ok || s != 0 || e != 0 {
			t.Errorf("word %d span = [%d,%d) ok=%v, want empty clamp", i, s, e, ok)
		}
	}
	if want := []int{0, 1}; !equalInts(indices(got), want) {
		t.Errorf("sentence indices = %v, want %v", indices(got), want)
	}
}
