package reply

import (
	"strings"

	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/coordinate"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/pressure"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/recall"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/stall"
)

// #region voice

var openers = map[coordinate.QCode]string{
	coordinate.Q1: "無理しなくていいよ。",
	coordinate.Q2: "その怒り、ちゃんと受け取ったよ。",
	coordinate.Q3: "不安なんだね。",
	coordinate.Q4: "怖かったね。",
	coordinate.Q5: "いいね、その感じ。",
}

const defaultOpener = "うん、聞いてるよ。"

// #endregion voice

// #region assemble

// Input is what Assemble reads.
type Input struct {
	Generated string // raw model text, "" when no generation ran
	QCode     coordinate.QCode
	Allow     pressure.Allow
	Stall     stall.Signal
	Recall    recall.Result
}

// Assemble returns the post-processed outward text. Generated text wins
// whenever it is present, even if hygiene empties it; otherwise a short
// voice composition is built from the turn's envelope.
func Assemble(in Input) string {
	if strings.TrimSpace(in.Generated) != "" {
		return PostProcess(in.Generated)
	}
	return PostProcess(Compose(in))
}

// Compose builds the voice text used when no model text exists.
func Compose(in Input) string {
	var parts []string

	if in.Recall.Found {
		parts = append(parts, "さっきは「"+strings.TrimSpace(in.Recall.Line)+"」って話してたね。")
	}

	opener, ok := openers[in.QCode]
	if !ok {
		opener = defaultOpener
	}
	parts = append(parts, opener)

	switch in.Stall.Severity {
	case stall.SeverityHard:
		parts = append(parts, "同じところを回っている感じがするね。少し角度を変えてみようか。")
	case stall.SeveritySoft:
		parts = append(parts, "ゆっくりでいいよ。")
	}

	a := in.Allow
	switch {
	case a.CommitHint:
		parts = append(parts, "その決意、形にしていこう。")
	case a.Concretize && a.Strength >= 2:
		parts = append(parts, "次の一歩を具体的に決めてみよう。")
	case a.Narrow && a.Strength >= 1:
		parts = append(parts, "いちばん気になるところをひとつに絞ってみようか。")
	case a.Propose && a.Strength >= 1:
		parts = append(parts, "ひとつ提案してもいい？")
	}

	return strings.Join(parts, "\n")
}

// #endregion assemble
