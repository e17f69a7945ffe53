package chars

import (
	"strings"
	"testing"
	"time"

	"github.com/kahncode1/narrasync/timing"
)

// marksFor spaces characters step milliseconds apart.
func marksFor(text string, step int64) []Mark {
	marks := make([]Mark, 0, len(text))
	var at int64
	for _, r := range text {
		marks = append(marks, Mark{Char: string(r), StartMs: at})
		at += step
	}
	return marks
}

func TestTransform(t *testing.T) {
	tr := NewTransformer(100 * time.Millisecond)
	words := tr.Transform(marksFor("Hi there, you.", 10))

	want := []struct {
		word       string
		start, end int64
		cs, ce     int
	}{
		{"Hi", 0, 30, 0, 2},
		{"there", 30, 100, 3, 9},
		{"you", 100, 230, 10, 14},
	}

	if len(words) != len(want) {
		t.Fatalf("got %d words, want %d: %+v", len(words), len(want), words)
	}
	for i, w := range want {
		got := words[i]
		cs, ce, ok := got.CharRange()
		if got.Word != w.word || got.StartMs != w.start || got.EndMs != w.end {
			t.Errorf("word %d = %q [%d,%d], want %q [%d,%d]", i, got.Word, got.StartMs, got.EndMs, w.word, w.start, w.end)
		}
		if !ok || cs != w.cs || ce != w.ce {
			t.Errorf("word %d span = [%d,%d) ok=%v, want [%d,%d)", i, cs, ce, ok, w.cs, w.ce)
		}
		if got.SentenceIndex != 0 {
			t.Errorf("word %d sentence index = %d, want 0", i, got.SentenceIndex)
		}
	}
}

func TestTransformOffsetsIndexJoinedMarks(t *testing.T) {
	spoken := "Café au  lait."
	marks := marksFor(spoken, 10)
	joined := Alignment{Characters: make([]string, len(marks))}
	for i, m := range marks {
		joined.Characters[i] = m.Char
	}
	if joined.Text() != spoken {
		t.Fatalf("joined marks = %q", joined.Text())
	}

	words := NewTransformer(timing.DefaultLastCharDuration).Transform(marks)
	want := [][2]int{{0, 5}, {6, 8}, {10, 15}}
	if len(words) != len(want) {
		t.Fatalf("got %d words, want %d", len(words), len(want))
	}
	for i, w := range words {
		cs, ce, ok := w.CharRange()
		if !ok || cs != want[i][0] || ce != want[i][1] {
			t.Errorf("word %d span = [%d,%d), want %v", i, cs, ce, want[i])
			continue
		}
		if !strings.HasPrefix(joined.Text()[cs:ce], w.Word) {
			t.Errorf("word %d %q does not start %q", i, w.Word, joined.Text()[cs:ce])
		}
	}
}

func TestTransformEmpty(t *testing.T) {
	tr := NewTransformer(timing.DefaultLastCharDuration)

	tests := []struct {
		name  string
		marks []Mark
	}{
		{"nil", nil},
		{"whitespace only", marksFor(" \n\t ", 5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			words := tr.Transform(tt.marks)
			if words == nil || len(words) != 0 {
				t.Errorf("Transform() = %#v, want empty slice", words)
			}
		})
	}
}

func TestTransformSeparators(t *testing.T) {
	tr := NewTransformer(timing.DefaultLastCharDuration)
	words := tr.Transform(marksFor("one\ttwo\n\nthree  four", 10))

	got := make([]string, len(words))
	for i, w := range words {
		got[i] = w.Word
	}
	want := []string{"one", "two", "three", "four"}
	if len(got) != len(want) {
		t.Fatalf("words = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("word %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTransformPunctuationOnlyToken(t *testing.T) {
	tr := NewTransformer(timing.DefaultLastCharDuration)
	words := tr.Transform(marksFor("Wait ... go!", 10))

	if len(words) != 3 {
		t.Fatalf("got %d words, want 3", len(words))
	}
	if words[1].Word != "..." {
		t.Errorf("punctuation-only token = %q, want raw form", words[1].Word)
	}
	if words[2].Word != "go" {
		t.Errorf("last word = %q, want go", words[2].Word)
	}
}

func TestTransformNoisyTimes(t *testing.T) {
	tr := NewTransformer(50 * time.Millisecond)
	marks := []Mark{
		{Char: "a", StartMs: -20},
		{Char: "b", StartMs: 40},
		{Char: " ", StartMs: 30}, // goes backwards
		{Char: "c", StartMs: 60},
	}

	words := tr.Transform(marks)
	if len(words) != 2 {
		t.Fatalf("got %d words, want 2", len(words))
	}
	for i, w := range words {
		if w.StartMs < 0 || w.EndMs < w.StartMs {
			t.Errorf("word %d has invalid range [%d,%d]", i, w.StartMs, w.EndMs)
		}
	}
	if words[1].EndMs != 110 {
		t.Errorf("last word end = %d, want 110", words[1].EndMs)
	}
}

func TestAlignmentMarks(t *testing.T) {
	a := Alignment{
		Characters: []string{"H", "i", " ", "y", "o"},
		Starts:     []float64{0, 0.1, 0.2, 0.25, 0.3},
		Ends:       []float64{0.1, 0.2, 0.25, 0.3, 0.45},
	}

	if a.Text() != "Hi yo" {
		t.Errorf("Text() = %q", a.Text())
	}

	words := NewTransformer(timing.DefaultLastCharDuration).Transform(a.Marks())
	if len(words) != 2 {
		t.Fatalf("got %d words, want 2", len(words))
	}
	if words[0].EndMs != 250 {
		t.Errorf("first word should end at the space's end, got %d", words[0].EndMs)
	}
	if words[1].EndMs != 450 {
		t.Errorf("explicit end should win over the default duration, got %d", words[1].EndMs)
	}
}

func TestAlignmentMarksRaggedColumns(t *testing.T) {
	a := Alignment{
		Characters: []string{"a", "b", "c"},
		Starts:     []float64{0, 0.1},
	}
	marks := a.Marks()
	if len(marks) != 2 {
		t.Fatalf("got %d marks, want 2", len(marks))
	}
	if marks[0].EndMs != nil {
		t.Error("missing end column should leave EndMs nil")
	}
}
