// Package replay drives recorded conversations through the engine with
// in-memory persistence and a scripted generator.
package replay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/codec"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/orchestrator"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/stall"
	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/state"
)

// #region types

// ReplayResult captures the outcome of replaying one turn.
type ReplayResult struct {
	TurnID    string
	Act       string
	Text      string
	QCode     string
	Depth     string
	Lane      string
	Severity  string
	Strength  int
	Reasons   []string
	Persisted bool
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalTurns int
	Acts       map[string]int
	Stalls     int
	Persisted  int
	Mismatches int
}

// Mismatch is one expected field that the replay did not reproduce.
type Mismatch struct {
	TurnID string
	Field  string
	Want   string
	Got    string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: %s want %q got %q", m.TurnID, m.Field, m.Want, m.Got)
}

// #endregion types

// #region scripted-generator

// scripted answers each generation call with the canned output of the turn
// currently being replayed.
type scripted struct {
	mu   sync.Mutex
	turn FixtureTurn
}

func (s *scripted) set(t FixtureTurn) {
	s.mu.Lock()
	s.turn = t
	s.mu.Unlock()
}

func (s *scripted) Generate(ctx context.Context, _ codec.Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	t := s.turn
	s.mu.Unlock()
	switch {
	case t.GenerationError != "":
		return "", &codec.GenerationError{Status: 500, Body: t.GenerationError, Backend: "replay"}
	case strings.TrimSpace(t.Generation) == "":
		return "", codec.ErrEmptyGeneration
	default:
		return t.Generation, nil
	}
}

// #endregion scripted-generator

// #region replay

// Replay runs every turn of f in order against a fresh in-memory store.
// Assistant replies that were displayed are fed back as history, so stall
// and recall see the same conversation a live client would send.
func Replay(ctx context.Context, f *Fixture, opts ...orchestrator.Option) ([]ReplayResult, error) {
	gen := &scripted{}
	if f.Generator {
		opts = append(opts, orchestrator.WithGenerator(gen))
	}
	engine, err := orchestrator.NewEngine(state.NewMemoryStore(), f.Config.ToEngineConfig(orchestrator.DefaultConfig()), opts...)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", f.ConversationID, err)
	}

	start := f.StartTime
	if start.IsZero() {
		start = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	}

	var history []any
	results := make([]ReplayResult, 0, len(f.Turns))
	for i, t := range f.Turns {
		gen.set(t)

		raw := make(map[string]any, len(t.Meta)+5)
		for k, v := range t.Meta {
			raw[k] = v
		}
		raw["conversationId"] = f.ConversationID
		raw["turnId"] = t.TurnID
		raw["text"] = t.Text
		raw["now"] = start.Add(time.Duration(i) * time.Minute).Format(time.RFC3339)
		raw["history"] = append([]any(nil), history...)

		res, err := engine.Process(ctx, raw)
		if err != nil {
			return results, fmt.Errorf("replay %s turn %s: %w", f.ConversationID, t.TurnID, err)
		}

		results = append(results, ReplayResult{
			TurnID:    t.TurnID,
			Act:       string(res.Decision.Act()),
			Text:      res.Decision.Text(),
			QCode:     string(res.Coordinate.QCode),
			Depth:     res.Coordinate.Depth.String(),
			Lane:      string(res.Route.Lane),
			Severity:  string(res.Stall.Severity),
			Strength:  res.Allow.Strength,
			Reasons:   res.Decision.Reasons(),
			Persisted: res.Persisted(),
		})

		history = append(history, map[string]any{"role": "user", "text": t.Text, "turnId": t.TurnID})
		if res.Decision.ShouldDisplay() {
			history = append(history, map[string]any{"role": "assistant", "text": res.Decision.Text()})
		}
	}
	return results, nil
}

// Compare checks results against the expected outcomes, matched by turn id.
func Compare(results []ReplayResult, expected []FixtureExpectedResult) []Mismatch {
	byTurn := make(map[string]ReplayResult, len(results))
	for _, r := range results {
		byTurn[r.TurnID] = r
	}
	var out []Mismatch
	for _, want := range expected {
		got, ok := byTurn[want.TurnID]
		if !ok {
			out = append(out, Mismatch{TurnID: want.TurnID, Field: "turn", Want: "present", Got: "missing"})
			continue
		}
		check := func(field, w, g string) {
			if w != "" && w != g {
				out = append(out, Mismatch{TurnID: want.TurnID, Field: field, Want: w, Got: g})
			}
		}
		check("act", want.Act, got.Act)
		check("qcode", want.QCode, got.QCode)
		check("depth", want.Depth, got.Depth)
		check("severity", want.Severity, got.Severity)
		check("lane", want.Lane, got.Lane)
		check("text", want.Text, got.Text)
	}
	return out
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult, mismatches []Mismatch) ReplaySummary {
	s := ReplaySummary{
		TotalTurns: len(results),
		Acts:       make(map[string]int),
		Mismatches: len(mismatches),
	}
	for _, r := range results {
		s.Acts[r.Act]++
		if r.Severity == string(stall.SeveritySoft) || r.Severity == string(stall.SeverityHard) {
			s.Stalls++
		}
		if r.Persisted {
			s.Persisted++
		}
	}
	return s
}

// ErrMismatch is returned by Check when a replay diverges from its fixture.
var ErrMismatch = errors.New("replay diverged from fixture")

// Check replays f and compares it with the fixture's expectations.
func Check(ctx context.Context, f *Fixture, opts ...orchestrator.Option) ([]ReplayResult, []Mismatch, error) {
	results, err := Replay(ctx, f, opts...)
	if err != nil {
		return results, nil, err
	}
	mm := Compare(results, f.ExpectedResults)
	if len(mm) > 0 {
		return results, mm, fmt.Errorf("%s: %w (%d fields)", f.ConversationID, ErrMismatch, len(mm))
	}
	return results, nil, nil
}

// #endregion replay
