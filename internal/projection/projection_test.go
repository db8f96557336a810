package projection

import (
	"strings"
	"testing"

	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/coordinate"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/lane"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/pressure"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/recall"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/stall"
)

// #region project-tests

func TestSystemPrompt_Envelope(t *testing.T) {
	env := Envelope{
		Coordinate:  coordinate.Coordinate{Depth: coordinate.Stage(coordinate.BandR, 2), Phase: coordinate.PhaseOuter, QCode: coordinate.Q2},
		Lane:        lane.IdeaBand,
		Allow:       pressure.Allow{Propose: true, Strength: 2},
		Stall:       stall.Signal{Severity: stall.SeveritySoft},
		Placeholder: lane.Placeholder{Released: true, Candidates: []string{"R→I"}, Direction: "R→I"},
		Digest:      "SHIFT depth S1->R2",
	}
	out := SystemPrompt(env)
	for _, want := range []string{
		"[POLICY]",
		"channel it",
		"people and situation",
		"intensity: clear",
		"allowed moves: propose",
		"mode: explore",
		"seems stuck",
		"from relationships toward intention",
		"recent flow: SHIFT depth S1->R2",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestSystemPrompt_NoLeakOfInternalLabels(t *testing.T) {
	out := SystemPrompt(Envelope{Lane: lane.TConcretize, Allow: pressure.Allow{Concretize: true, CommitHint: true, Strength: 3}})
	for _, banned := range []string{"T_CONCRETIZE", "IDEA_BAND", "commit_hint", "→"} {
		if strings.Contains(out, banned) {
			t.Errorf("system prompt leaks %q", banned)
		}
	}
	if !strings.Contains(out, "confirm the commitment") || !strings.Contains(out, "intensity: firm") {
		t.Errorf("unexpected prompt: %s", out)
	}
}

func TestSystemPrompt_UnreleasedDirectionHidden(t *testing.T) {
	out := SystemPrompt(Envelope{Placeholder: lane.Placeholder{Candidates: []string{"S→R"}}})
	if strings.Contains(out, "suggested direction") {
		t.Error("unreleased direction must not be projected")
	}
	if !strings.Contains(out, "reflect back only") {
		t.Errorf("expected reflect-only moves, got: %s", out)
	}
}

func TestSystemPrompt_IntentCue(t *testing.T) {
	env := Envelope{Coordinate: coordinate.Coordinate{Depth: coordinate.Stage(coordinate.BandC, 3)}}
	if strings.Contains(SystemPrompt(env), "voiced an intention") {
		t.Error("intent line present without a cue")
	}
	env.IntentCue = true
	if !strings.Contains(SystemPrompt(env), "voiced an intention") {
		t.Error("intent line missing with a cue")
	}
}

func TestWrapPrompt_WithRecall(t *testing.T) {
	wrapped := WrapPrompt(recall.Result{Found: true, Line: "上司と揉めた"}, "さっきの話なんだっけ")
	if !strings.HasPrefix(wrapped, "[EARLIER THE USER SAID]\n上司と揉めた") {
		t.Errorf("unexpected wrap: %q", wrapped)
	}
	if !strings.HasSuffix(wrapped, "[USER]\nさっきの話なんだっけ") {
		t.Errorf("expected user text last: %q", wrapped)
	}
}

func TestWrapPrompt_NoRecall(t *testing.T) {
	if got := WrapPrompt(recall.Result{}, "What is Go?"); got != "What is Go?" {
		t.Errorf("expected unchanged prompt, got %q", got)
	}
}

// #endregion project-tests
