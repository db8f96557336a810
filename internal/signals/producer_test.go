package signals

import (
	"testing"
)

// #region repeat-tests

func TestRepeatSignal_SameNormalizedText(t *testing.T) {
	p := NewProducer(DefaultProducerConfig())
	m := p.Produce(ProduceInput{Text: "わからない。", LastUserText: " わからない ", Digest: "SHIFT"})
	if m.RepeatSignal != RepeatSamePhrase {
		t.Fatalf("expected same_phrase, got %q", m.RepeatSignal)
	}
}

func TestRepeatSignal_DifferentText(t *testing.T) {
	p := NewProducer(DefaultProducerConfig())
	m := p.Produce(ProduceInput{Text: "もう一度", LastUserText: "わからない", Digest: "SHIFT"})
	if m.RepeatSignal != "" {
		t.Fatalf("expected no repeat, got %q", m.RepeatSignal)
	}
}

func TestRepeatSignal_EmptyCurrent(t *testing.T) {
	p := NewProducer(DefaultProducerConfig())
	m := p.Produce(ProduceInput{Text: "  ", LastUserText: "", Digest: "SHIFT"})
	if m.RepeatSignal != "" {
		t.Fatalf("empty text must not repeat, got %q", m.RepeatSignal)
	}
}

// #endregion repeat-tests

// #region conv-tests

func TestConvReason_NoDigest(t *testing.T) {
	p := NewProducer(DefaultProducerConfig())
	m := p.Produce(ProduceInput{Text: "hi"})
	if m.ConvReason != ConvNoContextSummary {
		t.Fatalf("expected NO_CTX_SUMMARY, got %q", m.ConvReason)
	}
}

func TestConvReason_NoProgress(t *testing.T) {
	p := NewProducer(DefaultProducerConfig())
	m := p.Produce(ProduceInput{Text: "same", LastUserText: "same", Digest: "SHIFT depth S1->S1"})
	if m.ConvReason != ConvNoProgress {
		t.Fatalf("expected NO_PROGRESS, got %q", m.ConvReason)
	}
}

func TestConvReason_ProgressClears(t *testing.T) {
	p := NewProducer(DefaultProducerConfig())
	m := p.Produce(ProduceInput{Text: "same", LastUserText: "same", FlowDelta: 1, Digest: "SHIFT"})
	if m.ConvReason != "" {
		t.Fatalf("expected empty conv reason, got %q", m.ConvReason)
	}
}

// #endregion conv-tests

// #region override-tests

func TestProduce_OverridesWin(t *testing.T) {
	p := NewProducer(DefaultProducerConfig())
	flow := -2
	m := p.Produce(ProduceInput{
		Text:               "a",
		LastUserText:       "b",
		FlowDelta:          1,
		AnchorReason:       "CHOICE",
		OverrideRepeat:     RepeatSamePhrase,
		OverrideFlowDelta:  &flow,
		OverrideAnchor:     "NO_EVIDENCE",
		OverrideConvReason: "CUSTOM",
	})
	want := Meta{RepeatSignal: RepeatSamePhrase, FlowDelta: -2, AnchorReason: "NO_EVIDENCE", ConvReason: "CUSTOM"}
	if m != want {
		t.Fatalf("got %+v, want %+v", m, want)
	}
	if !m.SamePhrase() || !m.Regressed() {
		t.Fatal("helpers disagree with fields")
	}
}

// #endregion override-tests
