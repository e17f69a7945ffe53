package align

import (
	"testing"
	"time"

	"golang.org/x/text/language"
)

func TestIsAbbreviation(t *testing.T) {
	tests := []struct {
		token string
		want  bool
	}{
		{"Dr.", true},
		{"dr", true},
		{"MRS.", true},
		{"(Prof.", true},
		{"etc.)", true},
		{"U.S.A.", true},
		{"e.g.", true},
		{"Ph.D.", true},
		{"a.m.", true},
		{"J.", true},
		{"j.", false},
		{"21st.", true},
		{"v1.2", true},
		{"3.14", true},
		{"km.", true},
		{"world.", false},
		{"arrived", false},
		{"in.", false},
		{".", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			if got := IsAbbreviation(tt.token); got != tt.want {
				t.Errorf("IsAbbreviation(%q) = %v, want %v", tt.token, got, tt.want)
			}
		})
	}
}

func TestEndsSentence(t *testing.T) {
	tests := []struct {
		name     string
		trailing string
		token    string
		want     bool
	}{
		{"period", "world.", "world", true},
		{"abbreviation", "Dr.", "Dr", false},
		{"exclamation after abbreviation", "Dr!", "Dr", true},
		{"question", "really?", "really", true},
		{"closing quote", `done."`, "done", true},
		{"closing curly quote", "done.”", "done", true},
		{"closing paren", "(see above.)", "above", true},
		{"comma", "however,", "however", false},
		{"no punctuation", "Hello", "Hello", false},
		{"ellipsis", "wait...", "wait", true},
		{"quoted ellipsis", `wait..."`, "wait", true},
		{"initial", "J.", "J", false},
		{"trailing space", "end. ", "end", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EndsSentence(tt.trailing, tt.token); got != tt.want {
				t.Errorf("EndsSentence(%q, %q) = %v, want %v", tt.trailing, tt.token, got, tt.want)
			}
		})
	}
}

func TestPunctuationHelpers(t *testing.T) {
	if got := TrimTrailingPunctuation(`world."`); got != "world" {
		t.Errorf("TrimTrailingPunctuation = %q, want world", got)
	}
	if got := StripPunctuation(`"don't!"`); got != "don't" {
		t.Errorf("StripPunctuation = %q, want don't", got)
	}
	if !IsPunctuationOnly("?!") || IsPunctuationOnly("a.") || IsPunctuationOnly("") {
		t.Error("IsPunctuationOnly misclassified input")
	}
	if mark, ok := TerminalMark("wow!)"); !ok || mark != '!' {
		t.Errorf("TerminalMark = %q, %v", mark, ok)
	}
	for _, r := range []rune{' ', '\n', '\t'} {
		if !IsWordBoundaryRune(r) {
			t.Errorf("%q should be a boundary", r)
		}
	}
	if IsWordBoundaryRune('-') {
		t.Error("hyphen should not be a boundary")
	}
}

func TestResolve(t *testing.T) {
	text := "Hello world. Dr. Smith won."

	tests := []struct {
		name      string
		needle    string
		expected  int
		cursor    int
		wantStart int
		strategy  Strategy
	}{
		{"exact", "world", 6, 6, 6, StrategyExact},
		{"one left", "world", 7, 7, 6, StrategyLeft},
		{"one right", "world", 5, 5, 6, StrategyRight},
		{"window", "Smith", 13, 13, 17, StrategyWindow},
		{"from cursor", "won", 0, 18, 23, StrategyFromCursor},
		{"from start", "Hello", 20, 20, 0, StrategyFromStart},
		{"clamp", "absent", 10, 10, 10, StrategyClamp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			span := Resolve(text, tt.needle, tt.expected, tt.cursor, 6)
			if span.Start != tt.wantStart || span.Strategy != tt.strategy {
				t.Errorf("Resolve(%q) = %+v, want start %d via %v", tt.needle, span, tt.wantStart, tt.strategy)
			}
		})
	}
}

func TestResolveClampsOutOfRange(t *testing.T) {
	text := "short"

	span := Resolve(text, "missing", 400, 400, 6)
	if span.Start != len(text) || span.End != len(text) {
		t.Errorf("span = %+v, want empty span at end of text", span)
	}
	if span.Matched() {
		t.Error("clamped span should not report a match")
	}

	span = Resolve(text, "missing", -3, -3, 6)
	if span.Start != 0 || span.End != len(text) {
		t.Errorf("span = %+v, want [0,%d)", span, len(text))
	}
}

func TestIndexWordFrom(t *testing.T) {
	text := "an apple a day"
	if got := IndexWordFrom(text, "a", 0); got != 9 {
		t.Errorf("IndexWordFrom = %d, want 9", got)
	}
	if got := IndexFrom(text, "a", 0); got != 0 {
		t.Errorf("IndexFrom = %d, want 0", got)
	}
}

func TestTokenAt(t *testing.T) {
	text := "Hello world.\nNext"
	if got := TokenAt(text, 6); got != "world." {
		t.Errorf("TokenAt = %q, want world.", got)
	}
	if got := TokenAt(text, 13); got != "Next" {
		t.Errorf("TokenAt = %q, want Next", got)
	}
	if got := TokenAt(text, 99); got != "" {
		t.Errorf("TokenAt out of range = %q", got)
	}
}

func TestFolder(t *testing.T) {
	f := NewFolder(language.English)
	text := "The SMITH family met Smithson and smith."

	start, end := f.Index(text, "smith", 0)
	if start != 4 || end != 9 {
		t.Errorf("Index = [%d,%d), want [4,9)", start, end)
	}

	start, _ = f.IndexWord(text, "smith", 5)
	if start != 34 {
		t.Errorf("IndexWord = %d, want 34 (skipping Smithson)", start)
	}

	if s, e := f.Index(text, "absent", 0); s != -1 || e != -1 {
		t.Errorf("Index of absent word = [%d,%d)", s, e)
	}
}

func TestClassifyPause(t *testing.T) {
	threshold := 350 * time.Millisecond

	tests := []struct {
		gap  int64
		want Pause
	}{
		{0, PauseNone},
		{350, PauseNone},
		{351, PauseBreak},
		{700, PauseBreak},
		{701, PauseLong},
	}

	for _, tt := range tests {
		if got := ClassifyPause(tt.gap, threshold); got != tt.want {
			t.Errorf("ClassifyPause(%d) = %v, want %v", tt.gap, got, tt.want)
		}
	}

	if Gap(900, 1300) != 400 {
		t.Error("Gap(900, 1300) should be 400")
	}
	if Gap(1000, 900) != 0 {
		t.Error("overlapping words should have no gap")
	}
}
