package signals

import (
	"strings"

	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/textnorm"
)

// #region producer

// Producer derives the upstream meta signals for a turn.
type Producer struct {
	config ProducerConfig
}

// NewProducer creates a Producer.
func NewProducer(config ProducerConfig) *Producer {
	return &Producer{config: config}
}

// #endregion producer

// #region produce

// Produce computes all signals from the given input. Explicit overrides are
// passed through unchanged.
func (p *Producer) Produce(input ProduceInput) Meta {
	m := Meta{
		RepeatSignal: p.repeatSignal(input),
		FlowDelta:    input.FlowDelta,
		AnchorReason: input.AnchorReason,
	}
	if input.OverrideFlowDelta != nil {
		m.FlowDelta = *input.OverrideFlowDelta
	}
	if input.OverrideAnchor != "" {
		m.AnchorReason = input.OverrideAnchor
	}
	m.ConvReason = p.convReason(input, m)
	return m
}

// #endregion produce

// #region repeat

// repeatSignal flags the current text as a repeat of the previous user line.
func (p *Producer) repeatSignal(input ProduceInput) string {
	if input.OverrideRepeat != "" {
		return input.OverrideRepeat
	}
	cur := textnorm.Compact(input.Text)
	if cur == "" {
		return ""
	}
	if textnorm.Compact(input.LastUserText) == cur {
		return RepeatSamePhrase
	}
	return ""
}

// #endregion repeat

// #region conv-reason

// convReason reports missing context before lack of progress.
func (p *Producer) convReason(input ProduceInput, m Meta) string {
	if input.OverrideConvReason != "" {
		return input.OverrideConvReason
	}
	if strings.TrimSpace(input.Digest) == "" {
		return ConvNoContextSummary
	}
	if p.config.NoProgressStreak > 0 && m.SamePhrase() && m.FlowDelta <= 0 {
		return ConvNoProgress
	}
	return ""
}

// #endregion conv-reason
