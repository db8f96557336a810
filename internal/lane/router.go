package lane

import (
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/coordinate"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/textnorm"
)

// #region lexemes

var (
	// weakIntentLexemes hint at wanting something; accepted when deepening is allowed.
	weakIntentLexemes = []string{"したい", "やりたい", "なりたい", "目指", "望む", "want to", "i'd like to", "hope to"}
	// strongIntentLexemes are declarative commitments.
	strongIntentLexemes = []string{"決めた", "やると決め", "必ずやる", "宣言", "誓う", "i will", "i decided", "i commit", "i'm going to"}
	// reaffirmLexemes restate an existing commitment.
	reaffirmLexemes = []string{"変わらない", "やっぱりこれ", "これでいく", "続ける", "改めて", "still", "stick with", "reaffirm", "keep going"}
)

// intentBands are where entering the intent band is plausible.
var intentBands = map[coordinate.Band]bool{
	coordinate.BandR: true,
	coordinate.BandC: true,
	coordinate.BandI: true,
}

// #endregion

// #region config

// RouterConfig holds the sentinel key and lexeme sets.
type RouterConfig struct {
	SentinelKey  string
	WeakIntent   []string
	StrongIntent []string
	Reaffirm     []string
}

// DefaultRouterConfig uses "SUN" as the central commitment marker.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		SentinelKey:  "SUN",
		WeakIntent:   weakIntentLexemes,
		StrongIntent: strongIntentLexemes,
		Reaffirm:     reaffirmLexemes,
	}
}

// #endregion

// #region router

// Router chooses the lane through a swappable Strategy and evaluates the
// intent-band and reconfirm-T cues.
type Router struct {
	strategy Strategy
	trigger  NaturalTrigger
	config   RouterConfig
}

// NewRouter creates a router. Nil strategy selects Conservative and nil
// trigger selects NoopTrigger.
func NewRouter(strategy Strategy, trigger NaturalTrigger, config RouterConfig) *Router {
	if strategy == nil {
		strategy = Conservative{}
	}
	if trigger == nil {
		trigger = NoopTrigger{}
	}
	return &Router{strategy: strategy, trigger: trigger, config: config}
}

// Route evaluates one turn.
func (r *Router) Route(in Input) Result {
	normalized := textnorm.Normalize(in.Text)
	res := Result{
		Lane:            r.strategy.Choose(in),
		Strategy:        r.strategy.Name(),
		EnterIntentBand: r.enterIntentBand(in, normalized),
		ReconfirmT:      r.reconfirmT(in, normalized),
	}
	if t, ok := r.trigger.Fire(in); ok {
		res.Natural = &t
	}
	return res
}

// enterIntentBand fires in R, C or I when an intent lexeme is present. The
// weak set only counts when deepening is allowed.
func (r *Router) enterIntentBand(in Input, normalized string) bool {
	if !intentBands[in.Depth.Band] {
		return false
	}
	if in.DeepenOK && textnorm.ContainsAny(normalized, r.config.WeakIntent) {
		return true
	}
	return textnorm.ContainsAny(normalized, r.config.StrongIntent)
}

// reconfirmT fires only for the sentinel anchor key plus a reaffirmation.
func (r *Router) reconfirmT(in Input, normalized string) bool {
	if r.config.SentinelKey == "" || in.FixedAnchorKey != r.config.SentinelKey {
		return false
	}
	return textnorm.ContainsAny(normalized, r.config.Reaffirm)
}

// #endregion
