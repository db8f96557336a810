package textnorm

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// #region normalize

// Normalize folds width variants (NFKC), lowercases, and collapses runs of
// whitespace to a single space. Used wherever two utterances are compared
// for "same text" semantics.
func Normalize(text string) string {
	folded := strings.ToLower(norm.NFKC.String(text))
	return strings.Join(strings.Fields(folded), " ")
}

// Compact is Normalize with all whitespace and trailing sentence
// punctuation removed, so "わからない。" and "わから ない" compare equal.
func Compact(text string) string {
	n := Normalize(text)
	n = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, n)
	return strings.TrimRightFunc(n, func(r rune) bool {
		return unicode.IsPunct(r) || r == '~' || r == '…'
	})
}

// RuneLen returns the number of runes in the trimmed text.
func RuneLen(text string) int {
	return len([]rune(strings.TrimSpace(text)))
}

// #endregion normalize

// #region lexemes

// Contains reports whether lexeme occurs in the normalized text. ASCII
// lexemes match only on word boundaries, so "rage" does not hit "courage".
// Lexemes with any non-ASCII rune match as plain substrings, since CJK text
// has no spaces to delimit words.
func Contains(normalized, lexeme string) bool {
	lexeme = strings.TrimSpace(lexeme)
	if lexeme == "" {
		return false
	}
	if !isASCII(lexeme) {
		return strings.Contains(normalized, lexeme)
	}
	for from := 0; from <= len(normalized)-len(lexeme); {
		i := strings.Index(normalized[from:], lexeme)
		if i < 0 {
			return false
		}
		i += from
		end := i + len(lexeme)
		if !isWordByte(normalized, i-1) && !isWordByte(normalized, end) {
			return true
		}
		from = i + 1
	}
	return false
}

// ContainsAny reports whether the normalized text contains any lexeme.
// Lexemes are expected to be lowercase already.
func ContainsAny(normalized string, lexemes []string) bool {
	for _, l := range lexemes {
		if Contains(normalized, l) {
			return true
		}
	}
	return false
}

// CountHits counts how many lexemes occur in the normalized text.
// Each lexeme counts once regardless of repetitions.
func CountHits(normalized string, lexemes []string) int {
	n := 0
	for _, l := range lexemes {
		if Contains(normalized, l) {
			n++
		}
	}
	return n
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// isWordByte reports whether s[i] is an ASCII letter or digit. Out of range
// and non-ASCII bytes are boundaries.
func isWordByte(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return false
	}
	c := s[i]
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// #endregion lexemes
