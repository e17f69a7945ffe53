package align

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/search"
)

// Strategy names the step of span resolution that located a word.
type Strategy int

const (
	StrategyExact Strategy = iota
	StrategyLeft
	StrategyRight
	StrategyWindow
	StrategyFromCursor
	StrategyFromStart
	// StrategyClamp means no strategy matched and the span was clamped to
	// the cursor.
	StrategyClamp
)

func (s Strategy) String() string {
	switch s {
	case StrategyExact:
		return "exact"
	case StrategyLeft:
		return "left"
	case StrategyRight:
		return "right"
	case StrategyWindow:
		return "window"
	case StrategyFromCursor:
		return "cursor"
	case StrategyFromStart:
		return "start"
	case StrategyClamp:
		return "clamp"
	default:
		return "unknown"
	}
}

// Span is a half-open byte range located by Resolve.
type Span struct {
	Start, End int
	Strategy   Strategy
}

// Matched reports whether the span came from an actual match.
func (s Span) Matched() bool {
	return s.Strategy != StrategyClamp
}

// MatchAt reports whether needle occurs in text exactly at offset at.
func MatchAt(text, needle string, at int) bool {
	if needle == "" || at < 0 || at+len(needle) > len(text) {
		return false
	}
	return text[at:at+len(needle)] == needle
}

// IndexFrom returns the offset of the first needle at or after from, or -1.
func IndexFrom(text, needle string, from int) int {
	if needle == "" || from < 0 || from > len(text) {
		return -1
	}
	i := strings.Index(text[from:], needle)
	if i < 0 {
		return -1
	}
	return from + i
}

// IndexWordFrom is IndexFrom restricted to matches on word boundaries.
func IndexWordFrom(text, needle string, from int) int {
	for i := IndexFrom(text, needle, from); i >= 0; i = IndexFrom(text, needle, i+1) {
		if IsWordBoundary(text, i, i+len(needle)) {
			return i
		}
	}
	return -1
}

// IndexWithin returns the match of needle starting within window bytes of
// center that is closest to center, or -1.
func IndexWithin(text, needle string, center, window int) int {
	best, bestDist := -1, window+1
	for at := max(0, center-window); at <= center+window; at++ {
		if !MatchAt(text, needle, at) {
			continue
		}
		dist := at - center
		if dist < 0 {
			dist = -dist
		}
		if dist < bestDist {
			best, bestDist = at, dist
		}
	}
	return best
}

// IsWordBoundary reports whether [start, end) is not glued to a letter or
// digit on either side.
func IsWordBoundary(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Resolve locates needle in text. It tries, in order: the expected offset,
// one byte left, one byte right, the closest match within window, a search
// from cursor, and a search from the start. When all fail the span is
// clamped to [cursor, cursor+len(needle)) inside the text.
func Resolve(text, needle string, expected, cursor, window int) Span {
	n := len(needle)

	if n > 0 {
		for _, c := range []struct {
			at       int
			strategy Strategy
		}{
			{expected, StrategyExact},
			{expected - 1, StrategyLeft},
			{expected + 1, StrategyRight},
		} {
			if MatchAt(text, needle, c.at) {
				return Span{Start: c.at, End: c.at + n, Strategy: c.strategy}
			}
		}

		if at := IndexWithin(text, needle, expected, window); at >= 0 {
			return Span{Start: at, End: at + n, Strategy: StrategyWindow}
		}
		if at := indexPreferWord(text, needle, cursor); at >= 0 {
			return Span{Start: at, End: at + n, Strategy: StrategyFromCursor}
		}
		if at := indexPreferWord(text, needle, 0); at >= 0 {
			return Span{Start: at, End: at + n, Strategy: StrategyFromStart}
		}
	}

	start := min(max(cursor, 0), len(text))
	end := min(start+n, len(text))
	return Span{Start: start, End: end, Strategy: StrategyClamp}
}

func indexPreferWord(text, needle string, from int) int {
	if at := IndexWordFrom(text, needle, from); at >= 0 {
		return at
	}
	return IndexFrom(text, needle, from)
}

// TokenAt returns the run of non-space text starting at offset. It is the
// text a word occupies including any attached punctuation.
func TokenAt(text string, offset int) string {
	if offset < 0 || offset >= len(text) {
		return ""
	}
	end := strings.IndexFunc(text[offset:], unicode.IsSpace)
	if end < 0 {
		return text[offset:]
	}
	return text[offset : offset+end]
}

// Folder performs case-insensitive searches using collation rules for a
// language. A Folder is not safe for concurrent use.
type Folder struct {
	m *search.Matcher
}

// NewFolder returns a case-insensitive Folder for tag.
func NewFolder(tag language.Tag) *Folder {
	return &Folder{m: search.New(tag, search.IgnoreCase)}
}

// Index returns the first case-insensitive match of needle at or after
// from, or -1, -1.
func (f *Folder) Index(text, needle string, from int) (start, end int) {
	if needle == "" || from < 0 || from >= len(text) {
		return -1, -1
	}
	s, e := f.m.IndexString(text[from:], needle)
	if s < 0 {
		return -1, -1
	}
	return from + s, from + e
}

// IndexWord is Index restricted to matches on word boundaries.
func (f *Folder) IndexWord(text, needle string, from int) (start, end int) {
	for {
		s, e := f.Index(text, needle, from)
		if s < 0 {
			return -1, -1
		}
		if IsWordBoundary(text, s, e) {
			return s, e
		}
		_, size := utf8.DecodeRuneInString(text[s:])
		from = s + size
	}
}
