package align

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// ClosingDelimiters may follow terminal punctuation: `end."` or `(sic.)`.
	ClosingDelimiters = ")]}\"'’”"
	// OpeningDelimiters may precede a word.
	OpeningDelimiters = "([{\"'‘“"
	// TerminalPunctuation ends a sentence unless suppressed.
	TerminalPunctuation = ".!?"
	// trailingPunctuation is stripped from word surfaces.
	trailingPunctuation = ".,;:!?…" + ClosingDelimiters
)

// IsWordBoundaryRune reports whether r separates words in provider
// character streams.
func IsWordBoundaryRune(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}

// StripClosing removes trailing closing delimiters.
func StripClosing(s string) string {
	return strings.TrimRight(s, ClosingDelimiters)
}

// StripOpening removes leading opening delimiters.
func StripOpening(s string) string {
	return strings.TrimLeft(s, OpeningDelimiters)
}

// TrimTrailingPunctuation strips trailing punctuation from a word surface.
func TrimTrailingPunctuation(s string) string {
	return strings.TrimRight(s, trailingPunctuation)
}

// StripPunctuation strips punctuation on both sides. The result is the
// matching key for a word; internal punctuation such as "don't" is kept.
func StripPunctuation(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
}

// IsPunctuationOnly reports whether s has no letters or digits.
func IsPunctuationOnly(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// TerminalMark returns the terminal punctuation ending trailing, ignoring
// closing delimiters.
func TerminalMark(trailing string) (rune, bool) {
	s := StripClosing(strings.TrimRightFunc(trailing, unicode.IsSpace))
	if s == "" {
		return 0, false
	}
	r, _ := utf8.DecodeLastRuneInString(s)
	if strings.ContainsRune(TerminalPunctuation, r) {
		return r, true
	}
	return 0, false
}

// EndsSentence reports whether trailing text closes a sentence. token is
// the word the period would belong to when checking for an abbreviation.
// Exclamation and question marks are never suppressed, and a trailing
// "..." ends a sentence like any other period.
func EndsSentence(trailing, token string) bool {
	mark, ok := TerminalMark(trailing)
	if !ok {
		return false
	}
	if mark != '.' {
		return true
	}
	return !IsAbbreviation(token)
}
