// Package moderation flags chat text containing blocked words. Matching
// ignores case, punctuation and spacing between letters and undoes common
// leet substitutions, so "B.4.d" matches "bad".
package moderation

import (
	"strings"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

const reasonProfanity = "profanity"

// Filter is safe for concurrent use once built.
type Filter struct {
	matcher *goahocorasick.Machine
}

// mapping keeps, for each normalized rune, its index in the original text.
type mapping struct {
	normalized []rune
	origIdx    []int
}

// New builds the automaton over the normalized form of words. Blank words
// are skipped; an empty list yields a filter that flags nothing.
func New(words []string) (*Filter, error) {
	patterns := make([][]rune, 0, len(words))
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		norm := normalize(strings.TrimSpace(w)).normalized
		if len(norm) == 0 {
			continue
		}
		if _, dup := seen[string(norm)]; dup {
			continue
		}
		seen[string(norm)] = struct{}{}
		patterns = append(patterns, norm)
	}
	if len(patterns) == 0 {
		return &Filter{}, nil
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Filter{matcher: m}, nil
}

// Check reports whether text contains a blocked word standing on its own,
// so "class" does not trip on "ass".
func (f *Filter) Check(text string) (bool, string) {
	if f == nil || f.matcher == nil {
		return false, ""
	}
	mp := normalize(text)
	if len(mp.normalized) == 0 {
		return false, ""
	}

	orig := []rune(text)
	for _, term := range f.matcher.MultiPatternSearch(mp.normalized, false) {
		start := term.Pos
		end := start + len(term.Word)
		if start < 0 || end > len(mp.origIdx) {
			continue
		}
		if isWordBoundary(orig, mp.origIdx[start]-1) && isWordBoundary(orig, mp.origIdx[end-1]+1) {
			return true, reasonProfanity
		}
	}
	return false, ""
}

func isWordBoundary(text []rune, i int) bool {
	if i < 0 || i >= len(text) {
		return true
	}
	return !unicode.IsLetter(text[i])
}

func normalize(input string) mapping {
	runes := []rune(input)
	out := mapping{
		normalized: make([]rune, 0, len(runes)),
		origIdx:    make([]int, 0, len(runes)),
	}
	for i, r := range runes {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		out.normalized = append(out.normalized, unicode.ToLower(clean))
		out.origIdx = append(out.origIdx, i)
	}
	return out
}

// simplifyRune maps leet characters back to letters.
func simplifyRune(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	case '7':
		return 't'
	default:
		return r
	}
}

func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
