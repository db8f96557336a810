// Package recall answers "what did I say earlier" style questions from the
// conversation history.
package recall

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/textnorm"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/turn"
)

// #region lexemes

var (
	triggerLexemes = []string{
		"さっき", "前に", "以前", "なんだっけ", "何だっけ", "言ったっけ", "話したっけ",
		"earlier", "before", "what was it", "what did i say", "did i mention",
	}
	// identityLexemes look like backreferences but ask about the self.
	identityLexemes = []string{
		"私は誰", "僕は誰", "自分は誰", "俺は誰", "何者", "前世", "生まれる前",
		"who am i", "who was i", "past life", "before i was born",
	}
	// answerLexemes mark lines that were themselves recall answers.
	answerLexemes = []string{
		"たぶんこれ", "多分これ", "かもしれない:", "って言ってた", "と言っていた",
		"probably this", "you said", "you mentioned",
	}
	// curatedTerms are high-value topics preferred over generic tokens.
	curatedTerms = []string{
		"仕事", "会社", "上司", "家族", "恋人", "友達", "夢", "目標", "計画", "転職", "お金", "健康", "病気", "引っ越",
		"job", "work", "boss", "family", "partner", "friend", "dream", "goal", "plan", "money", "health", "move",
	}
)

// #endregion lexemes

// #region gate

// Gate detects recall questions and finds the referenced user line.
type Gate struct {
	embedder Embedder
	config   Config
}

// NewGate creates a Gate. embedder may be nil; recall then stays lexical.
func NewGate(embedder Embedder, config Config) *Gate {
	d := DefaultConfig()
	if config.MinLineRunes <= 0 {
		config.MinLineRunes = d.MinLineRunes
	}
	if config.MaxKeywords <= 0 || config.MaxKeywords > d.MaxKeywords {
		config.MaxKeywords = d.MaxKeywords
	}
	if config.RerankThreshold <= 0 {
		config.RerankThreshold = d.RerankThreshold
	}
	if config.ScanLimit <= 0 {
		config.ScanLimit = d.ScanLimit
	}
	return &Gate{embedder: embedder, config: config}
}

// IsRecallQuestion reports whether text asks about something said earlier.
// Identity-style questions never count.
func IsRecallQuestion(text string) bool {
	n := textnorm.Normalize(text)
	if n == "" || textnorm.ContainsAny(n, identityLexemes) {
		return false
	}
	return textnorm.ContainsAny(n, triggerLexemes)
}

// Keywords extracts up to max keyword tokens: curated terms first, then
// generic tokens, de-duplicated case-insensitively.
func Keywords(text string, max int) []string {
	n := textnorm.Normalize(text)
	var out []string
	for _, term := range curatedTerms {
		if textnorm.Contains(n, term) {
			out = dedupeFold(out, term)
		}
	}
	for _, tok := range tokenize(n) {
		if textnorm.ContainsAny(tok, triggerLexemes) || coveredByCurated(tok, out) {
			continue
		}
		out = dedupeFold(out, tok)
	}
	if len(out) > max {
		out = out[:max]
	}
	return out
}

func coveredByCurated(tok string, have []string) bool {
	for _, h := range have {
		if strings.Contains(tok, h) || strings.Contains(h, tok) {
			return true
		}
	}
	return false
}

// #endregion gate

// #region recall

// Recall runs the gate for the current text. The current utterance, its
// echoes, earlier recall questions, earlier recall answers and short lines
// are never candidates. It is total: embedding failures fall back to the
// lexical result.
func (g *Gate) Recall(ctx context.Context, text, turnID string, history []turn.Message) Result {
	if !IsRecallQuestion(text) {
		return Result{Reason: "not a recall question"}
	}
	res := Result{Triggered: true, Keywords: Keywords(text, g.config.MaxKeywords)}

	candidates := g.candidates(text, turnID, history)
	if len(candidates) == 0 {
		res.Reason = "no qualifying history line"
		return res
	}

	for _, line := range candidates {
		n := textnorm.Normalize(line)
		for _, kw := range res.Keywords {
			if textnorm.Contains(n, strings.ToLower(kw)) {
				res.Found, res.Line, res.Via = true, line, ViaKeyword
				res.Reason = fmt.Sprintf("keyword %q", kw)
				return res
			}
		}
	}

	if line, score, ok := g.rerank(ctx, text, candidates); ok {
		res.Found, res.Line, res.Via = true, line, ViaEmbedding
		res.Reason = fmt.Sprintf("embedding similarity %.2f", score)
		return res
	}

	res.Found, res.Line, res.Via = true, candidates[0], ViaFallback
	res.Reason = "most recent qualifying line"
	return res
}

// candidates lists qualifying user lines, newest first.
func (g *Gate) candidates(text, turnID string, history []turn.Message) []string {
	cur := textnorm.Compact(text)
	var out []string
	examined := 0
	for i := len(history) - 1; i >= 0 && examined < g.config.ScanLimit; i-- {
		m := history[i]
		if m.Role != turn.RoleUser {
			continue
		}
		examined++
		if turnID != "" && m.TurnID == turnID {
			continue
		}
		if textnorm.Compact(m.Text) == cur {
			continue
		}
		if textnorm.RuneLen(m.Text) < g.config.MinLineRunes {
			continue
		}
		n := textnorm.Normalize(m.Text)
		if IsRecallQuestion(m.Text) || textnorm.ContainsAny(n, answerLexemes) {
			continue
		}
		out = append(out, m.Text)
	}
	return out
}

// rerank asks the embedder for the closest candidate above the threshold.
func (g *Gate) rerank(ctx context.Context, text string, candidates []string) (string, float32, bool) {
	if g.embedder == nil {
		return "", 0, false
	}
	inputs := append([]string{text}, candidates...)
	vecs, err := g.embedder.Embed(ctx, EmbedPurpose, inputs)
	if err != nil || len(vecs) != len(inputs) {
		return "", 0, false
	}
	best, bestScore := -1, float32(0)
	for i := 1; i < len(vecs); i++ {
		s := cosine(vecs[0], vecs[i])
		if s > bestScore {
			best, bestScore = i-1, s
		}
	}
	if best < 0 || bestScore < g.config.RerankThreshold {
		return "", 0, false
	}
	return candidates[best], bestScore, true
}

// #endregion recall

// cosine computes cosine similarity between two vectors. Zero-length or
// mismatched vectors score 0.
func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return float32(dot / denom)
}
