// Package moderation masks disallowed words in message content before it
// is persisted. Matching is resilient to spacing, punctuation and common
// leet-speak substitutions; the per-language word lists are embedded and
// the message language is detected to pick the right list.
package moderation

import (
	"unicode"

	"github.com/abadojack/whatlanggo"
	goahocorasick "github.com/anknown/ahocorasick"
)

// Filter holds one Aho-Corasick automaton per language plus a fallback
// automaton built from the union of every list, used when detection is
// inconclusive or the language has no dedicated list.
type Filter struct {
	byLang      map[string]*goahocorasick.Machine
	all         *goahocorasick.Machine
	replacement rune
}

// textMapping relates a normalized rune stream back to positions in the
// original text so masking preserves the author's spacing.
type textMapping struct {
	normalized []rune
	origIdx    []int
}

// NewFilter builds a filter from the embedded word lists.
func NewFilter(replacement rune) (*Filter, error) {
	lists, err := loadEmbeddedLists()
	if err != nil {
		return nil, err
	}
	return NewFilterFromLists(lists, replacement)
}

// NewFilterFromLists builds a filter from explicit per-language word
// lists, keyed by ISO 639-1 code.
func NewFilterFromLists(lists map[string][]string, replacement rune) (*Filter, error) {
	byLang := make(map[string]*goahocorasick.Machine, len(lists))
	union := make(map[string]struct{})

	for lang, words := range lists {
		machine, err := buildMachine(words)
		if err != nil {
			return nil, err
		}
		byLang[lang] = machine
		for _, w := range words {
			union[w] = struct{}{}
		}
	}

	allWords := make([]string, 0, len(union))
	for w := range union {
		allWords = append(allWords, w)
	}
	all, err := buildMachine(allWords)
	if err != nil {
		return nil, err
	}

	return &Filter{byLang: byLang, all: all, replacement: replacement}, nil
}

func buildMachine(words []string) (*goahocorasick.Machine, error) {
	patterns := make([][]rune, len(words))
	for i, word := range words {
		patterns[i] = normalizeRunes([]rune(word))
	}
	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return m, nil
}

// Censor replaces every disallowed word with the replacement rune,
// keeping the rest of the text intact. It never rejects.
func (f *Filter) Censor(text string) string {
	mapping := normalize(text)
	if len(mapping.normalized) == 0 {
		return text
	}

	machine := f.machineFor(text)
	spans := machine.MultiPatternSearch(mapping.normalized, false)
	if len(spans) == 0 {
		return text
	}

	origRunes := []rune(text)
	for _, span := range spans {
		normStart := span.Pos
		normEnd := normStart + len(span.Word)
		if normStart < 0 || normEnd > len(mapping.origIdx) {
			continue
		}

		origStart := mapping.origIdx[normStart]
		origEnd := mapping.origIdx[normEnd-1] + 1
		for i := origStart; i < origEnd; i++ {
			origRunes[i] = f.replacement
		}
	}
	return string(origRunes)
}

// machineFor picks the automaton for the detected language of the text,
// falling back to the union automaton.
func (f *Filter) machineFor(text string) *goahocorasick.Machine {
	info := whatlanggo.Detect(text)
	if machine, ok := f.byLang[info.Lang.Iso6391()]; ok && info.IsReliable() {
		return machine
	}
	return f.all
}

func normalize(input string) textMapping {
	origRunes := []rune(input)
	norm := make([]rune, 0, len(origRunes))
	origIdx := make([]int, 0, len(origRunes))

	for i, r := range origRunes {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		norm = append(norm, unicode.ToLower(clean))
		origIdx = append(origIdx, i)
	}
	return textMapping{normalized: norm, origIdx: origIdx}
}

func normalizeRunes(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		out = append(out, unicode.ToLower(clean))
	}
	return out
}

// leetMap folds common substitutions back onto the standard alphabet.
var leetMap = map[rune]rune{
	'4': 'a', '@': 'a',
	'3': 'e', '€': 'e',
	'1': 'i', '!': 'i', '|': 'i',
	'0': 'o',
	'5': 's', '$': 's',
}

func simplifyRune(r rune) rune {
	if mapped, ok := leetMap[r]; ok {
		return mapped
	}
	return r
}

// isNoise identifies characters ignored during pattern matching.
func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
