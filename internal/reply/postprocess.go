// Package reply assembles the outward text for a turn and scrubs anything
// that should never reach the user.
package reply

import (
	"regexp"
	"strings"
)

// #region patterns

// metaLine matches a leaked internal field, bare or as the start of a JSON
// object/array line.
var metaLine = regexp.MustCompile(`(?i)^\s*[{\[]?\s*"?(depthstage|depth_stage|phase|qcode|q_code|anchor\w*|lane|allow|strength|tentryok|t_entry_ok|stall\w*|severity|flowdelta|flow_delta|repeatsignal|repeat_signal|convreason|conv_reason|reasons|shouldpersist|shoulddisplay|allowllm|allowrender|commit_hint|fixedkey|fixed_key|meta)"?\s*[:=]`)

// braceLine is a purely structural line: braces, brackets, commas.
var braceLine = regexp.MustCompile(`^\s*[\[\]{}(),]+\s*$`)

var (
	spaceRun   = regexp.MustCompile(`[ \t\x{3000}]+`)
	blankLines = regexp.MustCompile(`\n{3,}`)
)

// forbidden vocabulary drops the whole sentence it appears in.
var forbidden = []string{
	"depthstage", "qcode", "q-code", "tentryok", "commit_hint", "idea_band", "t_concretize",
	"system prompt", "システムプロンプト", "内部状態", "アンカー判定", "レーン判定",
	"as an ai", "as a language model", "my programming", "my training",
}

// jargon maps internal terms to natural wording. Replacements never contain
// a key or a forbidden term.
var jargon = []struct{ from, to string }{
	{"ストール", "足踏み"},
	{"プレッシャー", "勢い"},
	{"フェーズ", "向き"},
	{"深度", "深さ"},
	{"コミットメント", "決意"},
	{"アンカー", "よりどころ"},
	{"stalling", "getting stuck"},
	{"pressure envelope", "pace"},
	{"commitment anchor", "decision"},
}

// sentenceEnd splits after Japanese and Latin terminators.
var sentenceEnd = regexp.MustCompile(`[^。！？!?.]*[。！？!?.]+|[^。！？!?.]+$`)

// #endregion patterns

// #region postprocess

// maxPasses bounds the fixed-point loop in PostProcess.
const maxPasses = 8

// PostProcess applies the hygiene steps until the text stops changing, so
// PostProcess(PostProcess(x)) == PostProcess(x). Never panics.
func PostProcess(text string) string {
	out := text
	for i := 0; i < maxPasses; i++ {
		next := pass(out)
		if next == out {
			return next
		}
		out = next
	}
	return out
}

func pass(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = StripMetaTail(text)
	text = DropForbidden(text)
	text = ReplaceJargon(text)
	return Collapse(text)
}

// StripMetaTail removes a trailing block of meta field lines, with any
// structural brace lines and blank lines mixed in. The block is removed only
// if it holds at least one meta field line.
func StripMetaTail(text string) string {
	lines := strings.Split(text, "\n")
	cut := len(lines)
	sawMeta := false
scan:
	for i := len(lines) - 1; i >= 0; i-- {
		l := lines[i]
		switch {
		case strings.TrimSpace(l) == "":
		case metaLine.MatchString(l):
			sawMeta = true
		case braceLine.MatchString(l):
		default:
			break scan
		}
		cut = i
	}
	if !sawMeta {
		return text
	}
	return strings.Join(lines[:cut], "\n")
}

// DropForbidden removes every sentence containing forbidden vocabulary.
func DropForbidden(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		sentences := sentenceEnd.FindAllString(line, -1)
		var kept strings.Builder
		for _, s := range sentences {
			if containsForbidden(s) {
				continue
			}
			kept.WriteString(s)
		}
		lines[i] = kept.String()
	}
	return strings.Join(lines, "\n")
}

func containsForbidden(s string) bool {
	lower := strings.ToLower(s)
	for _, f := range forbidden {
		if strings.Contains(lower, f) {
			return true
		}
	}
	return false
}

// ReplaceJargon applies the substitution table in order.
func ReplaceJargon(text string) string {
	for _, j := range jargon {
		text = strings.ReplaceAll(text, j.from, j.to)
	}
	return text
}

// Collapse squeezes horizontal whitespace, trims each line, keeps at most
// one blank line between paragraphs and trims the result.
func Collapse(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(spaceRun.ReplaceAllString(l, " "))
	}
	text = strings.Join(lines, "\n")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// #endregion postprocess
