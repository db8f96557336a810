package recall

import (
	"strings"
	"unicode"
)

// #region stopwords
// stopwords contains common English words excluded from keyword extraction.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "do": true, "does": true, "did": true,
	"have": true, "has": true, "had": true, "be": true, "been": true,
	"being": true, "will": true, "would": true, "could": true, "should": true,
	"may": true, "might": true, "can": true, "shall": true, "not": true,
	"no": true, "and": true, "or": true, "but": true, "if": true,
	"then": true, "than": true, "so": true, "as": true, "at": true,
	"by": true, "for": true, "from": true, "in": true, "into": true,
	"of": true, "on": true, "to": true, "with": true, "about": true,
	"up": true, "out": true, "it": true, "its": true, "this": true,
	"that": true, "what": true, "which": true, "who": true, "how": true,
	"when": true, "where": true, "why": true, "you": true, "me": true,
	"i": true, "my": true, "your": true, "we": true, "they": true,
	"he": true, "she": true, "her": true, "him": true, "us": true,
	"them": true, "tell": true,
	// recall phrasing
	"earlier": true, "before": true, "said": true, "say": true, "again": true,
	"remember": true, "mentioned": true, "talked": true, "told": true,
}

// #endregion stopwords

// #region tokenize

// tokenize returns candidate generic tokens in order of appearance: Han runs
// and katakana runs of two or more runes, and Latin words of three or more
// letters that are not stopwords.
func tokenize(normalized string) []string {
	var tokens []string
	var run []rune
	var runKind int

	flush := func() {
		if len(run) == 0 {
			return
		}
		w := string(run)
		switch runKind {
		case kindHan, kindKana:
			if len(run) >= 2 {
				tokens = append(tokens, w)
			}
		case kindLatin:
			if len(run) >= 3 && !stopwords[w] {
				tokens = append(tokens, w)
			}
		}
		run = run[:0]
	}

	for _, r := range normalized {
		k := runeKind(r)
		if k != runKind {
			flush()
			runKind = k
		}
		if k != kindOther {
			run = append(run, r)
		}
	}
	flush()
	return tokens
}

const (
	kindOther = iota
	kindHan
	kindKana
	kindLatin
)

func runeKind(r rune) int {
	switch {
	case unicode.Is(unicode.Han, r):
		return kindHan
	case unicode.Is(unicode.Katakana, r) || r == 'ー':
		return kindKana
	case r < unicode.MaxASCII && unicode.IsLetter(r):
		return kindLatin
	default:
		return kindOther
	}
}

// dedupeFold appends tokens not already present, comparing case-insensitively.
func dedupeFold(dst []string, tokens ...string) []string {
	for _, t := range tokens {
		dup := false
		for _, d := range dst {
			if strings.EqualFold(d, t) {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, t)
		}
	}
	return dst
}

// #endregion tokenize
