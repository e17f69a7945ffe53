// Package align holds the pure text and timing primitives used to place
// provider words in display text and to decide where sentences end.
package align

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// U.S.A, e.g, Ph.D, a.m
	dottedAcronymRegex = regexp.MustCompile(`^[\p{L}]{1,3}(\.[\p{L}]{1,3})+\.?$`)
	// 1st, 22nd, 3rd, 4th
	ordinalRegex = regexp.MustCompile(`(?i)^\d+(st|nd|rd|th)$`)
	// v1.2, 3.14, 10.5
	numericFragmentRegex = regexp.MustCompile(`^\p{L}?\d+(\.\d+)+$`)
)

var abbreviations = makeAbbreviationMap()

// IsAbbreviation reports whether a period after token is part of an
// abbreviation rather than a sentence end. The check is case-insensitive
// and ignores surrounding punctuation, except that single-letter initials
// must be capitals.
func IsAbbreviation(token string) bool {
	core := strings.TrimRight(StripOpening(StripClosing(token)), ".")
	if core == "" {
		return false
	}

	if abbreviations[strings.ToLower(core)] {
		return true
	}

	// Initials: "J. R. R. Tolkien"
	if utf8.RuneCountInString(core) == 1 {
		r, _ := utf8.DecodeRuneInString(core)
		return unicode.IsUpper(r)
	}

	if strings.Contains(core, ".") && dottedAcronymRegex.MatchString(core) {
		return true
	}

	return ordinalRegex.MatchString(core) || numericFragmentRegex.MatchString(core)
}

// makeAbbreviationMap creates the set of known abbreviations, lowercase and
// without the final period.
func makeAbbreviationMap() map[string]bool {
	// Words that commonly end real sentences ("in", "no", "sun") are left out.
	abbrevs := []string{
		// Titles
		"mr", "mrs", "ms", "dr", "prof", "sr", "jr", "rev", "hon",
		"gen", "col", "maj", "capt", "lt", "sgt", "gov", "sen", "rep", "st",
		// Degrees and companies
		"ph.d", "m.d", "b.a", "m.a", "b.s", "m.s", "d.d.s",
		"llc", "inc", "ltd", "co", "corp", "bros",
		// Latin and references
		"i.e", "e.g", "etc", "vs", "cf", "al", "approx", "ca",
		"vol", "vols", "pp", "pg", "ed", "eds", "fig", "figs", "ch", "dept", "est",
		// Months and days
		"jan", "feb", "mar", "apr", "jun", "jul", "aug", "sep", "sept", "oct", "nov", "dec",
		"mon", "tue", "tues", "thu", "thurs", "fri",
		// Addresses
		"rd", "ave", "blvd", "ln", "ct", "pkwy", "hwy", "mt", "ft",
		// Places
		"u.s", "u.s.a", "u.k", "u.n", "e.u", "n.y", "l.a", "d.c",
		// Units
		"yd", "mi", "km", "cm", "mm", "kg", "lb", "lbs", "oz", "gal", "qt", "pt",
		"hr", "hrs", "min", "mins", "secs",
		// Time of day
		"a.m", "p.m",
	}

	m := make(map[string]bool, len(abbrevs))
	for _, abbrev := range abbrevs {
		m[abbrev] = true
	}
	return m
}
