package coordinate

// #region imports
import (
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/rules"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/textnorm"
)

// #endregion

// #region depth-lexemes

// Depth lexemes, most "deep" first. Each set maps to one stage.
var (
	depthT3 = []string{"宇宙", "存在そのもの", "無我", "すべてとつながって", "oneness", "the universe"}
	depthT2 = []string{"使命", "天命", "魂", "生まれてきた理由", "mission", "my calling", "soul"}
	depthT1 = []string{"生きる意味", "生まれてきた意味", "存在意義", "本質", "meaning of life", "essence"}

	depthI3 = []string{"人生", "生き方", "在り方", "あり方", "way of life", "my life"}
	depthI2 = []string{"本当の自分", "自分らしさ", "自分らしく", "価値観", "who i really am", "my values", "identity"}
	depthI1 = []string{"本当は", "意図", "望み", "願い", "what i truly want", "intention"}

	depthC3 = []string{"計画", "実行", "決めた", "締め切り", "plan", "decided", "deadline"}
	depthC2 = []string{"作りたい", "形にし", "始めたい", "始める", "create", "build", "start", "starting", "started"}
	depthC1 = []string{"試して", "やってみ", "挑戦", "try", "trying", "tried", "experiment"}

	depthR3 = []string{"人間関係", "関係性", "家族", "relationship", "family"}
	depthR2 = []string{"上司", "同僚", "友達", "相手", "パートナー", "boss", "coworker", "friend", "friends", "partner"}
	depthR1 = []string{"わかってほしい", "共感", "聞いてほしい", "understand me", "listen to me"}

	depthS3 = []string{"自己肯定", "自信", "自分を責め", "self-esteem", "blame myself"}
	depthS2 = []string{"自分", "わたし", "私", "僕", "俺", "myself", "i am", "i'm"}
	depthS1 = []string{"わからない", "分からない", "無理", "疲れ", "つらい", "しんどい", "だるい",
		"i don't know", "i dont know", "tired", "exhausted"}
)

// #endregion

// #region phase-lexemes

var innerLexemes = []string{
	"自分", "私", "僕", "俺", "気持ち", "心", "感じ", "怒り", "無理", "疲れ", "不安", "怖",
	"つらい", "しんどい", "わからない", "本当は",
	"myself", "i feel", "my heart", "inside", "my mind",
}

var outerLexemes = []string{
	"上司", "会社", "仕事", "家族", "友達", "相手", "彼", "彼女", "世間", "社会", "周り", "環境",
	"boss", "work", "company", "family", "friend", "friends", "partner", "people", "the world", "they",
}

// #endregion

// #region qcode-lexemes

// Q-code cascade order: anger, fear, anxiety, fatigue, joy.
var (
	angerLexemes   = []string{"怒り", "怒っ", "ムカつ", "むかつ", "イライラ", "腹が立", "許せない", "angry", "furious", "rage", "pissed"}
	fearLexemes    = []string{"怖い", "こわい", "恐怖", "恐れ", "怯え", "scared", "afraid", "terrified", "fear"}
	anxietyLexemes = []string{"不安", "心配", "焦り", "焦って", "落ち着かない", "anxious", "worried", "nervous", "uneasy"}
	fatigueLexemes = []string{"疲れ", "無理", "しんどい", "限界", "だるい", "我慢", "tired", "exhausted", "burned out", "worn out"}
	joyLexemes     = []string{"嬉しい", "うれしい", "楽しい", "ワクワク", "わくわく", "幸せ", "最高", "happy", "excited", "glad", "joy"}
)

// #endregion

// #region tables

func lexemeRule[Out any](name string, priority int, lexemes []string, out Out) rules.Rule[string, Out] {
	return rules.Rule[string, Out]{
		Name:     name,
		Priority: priority,
		Match:    func(normalized string) bool { return textnorm.ContainsAny(normalized, lexemes) },
		Result:   out,
	}
}

// DefaultDepthRules evaluates transcendent vocabulary first and falls through
// to baseline self-talk.
func DefaultDepthRules() *rules.Table[string, DepthStage] {
	return rules.NewTable(
		lexemeRule("T3", 10, depthT3, Stage(BandT, 3)),
		lexemeRule("T2", 11, depthT2, Stage(BandT, 2)),
		lexemeRule("T1", 12, depthT1, Stage(BandT, 1)),
		lexemeRule("I3", 20, depthI3, Stage(BandI, 3)),
		lexemeRule("I2", 21, depthI2, Stage(BandI, 2)),
		lexemeRule("I1", 22, depthI1, Stage(BandI, 1)),
		lexemeRule("C3", 30, depthC3, Stage(BandC, 3)),
		lexemeRule("C2", 31, depthC2, Stage(BandC, 2)),
		lexemeRule("C1", 32, depthC1, Stage(BandC, 1)),
		lexemeRule("R3", 40, depthR3, Stage(BandR, 3)),
		lexemeRule("R2", 41, depthR2, Stage(BandR, 2)),
		lexemeRule("R1", 42, depthR1, Stage(BandR, 1)),
		lexemeRule("S3", 50, depthS3, Stage(BandS, 3)),
		lexemeRule("S2", 51, depthS2, Stage(BandS, 2)),
		lexemeRule("S1", 52, depthS1, Stage(BandS, 1)),
	)
}

// DefaultQCodeRules is first-match-wins: anger, fear, anxiety, fatigue, joy.
func DefaultQCodeRules() *rules.Table[string, QCode] {
	return rules.NewTable(
		lexemeRule("anger", 10, angerLexemes, Q2),
		lexemeRule("fear", 20, fearLexemes, Q4),
		lexemeRule("anxiety", 30, anxietyLexemes, Q3),
		lexemeRule("fatigue", 40, fatigueLexemes, Q1),
		lexemeRule("joy", 50, joyLexemes, Q5),
	)
}

// #endregion

// #region classifier

// Classifier maps utterance text to a Coordinate. It holds only immutable
// rule tables and is safe for concurrent use.
type Classifier struct {
	depth *rules.Table[string, DepthStage]
	qcode *rules.Table[string, QCode]
	inner []string
	outer []string
}

// NewClassifier returns a classifier over the default lexeme tables.
func NewClassifier() *Classifier {
	return &Classifier{
		depth: DefaultDepthRules(),
		qcode: DefaultQCodeRules(),
		inner: innerLexemes,
		outer: outerLexemes,
	}
}

// NewClassifierWithRules builds a classifier from custom tables. Nil tables
// fall back to the defaults.
func NewClassifierWithRules(depth *rules.Table[string, DepthStage], qcode *rules.Table[string, QCode]) *Classifier {
	c := NewClassifier()
	if depth != nil {
		c.depth = depth
	}
	if qcode != nil {
		c.qcode = qcode
	}
	return c
}

var defaultClassifier = NewClassifier()

// Classify runs the default classifier.
func Classify(text string) Coordinate {
	return defaultClassifier.Classify(text)
}

// Classify resolves each axis independently. Unresolved axes stay zero.
// No model call, no state.
func (c *Classifier) Classify(text string) Coordinate {
	normalized := textnorm.Normalize(text)
	if normalized == "" {
		return Coordinate{}
	}

	var out Coordinate
	if d, _, ok := c.depth.First(normalized); ok {
		out.Depth = d
	}
	out.Phase = c.classifyPhase(normalized)
	if q, _, ok := c.qcode.First(normalized); ok {
		out.QCode = q
	}
	return out
}

// classifyPhase counts Inner vs Outer hits; ties go to Inner, no hits at all
// leaves the axis unset.
func (c *Classifier) classifyPhase(normalized string) Phase {
	in := textnorm.CountHits(normalized, c.inner)
	out := textnorm.CountHits(normalized, c.outer)
	switch {
	case in == 0 && out == 0:
		return ""
	case out > in:
		return PhaseOuter
	default:
		return PhaseInner
	}
}

// DepthRuleNames exposes the depth cascade order for diagnostics.
func (c *Classifier) DepthRuleNames() []string {
	return c.depth.Names()
}

// #endregion
