package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/danielpatrickdp/adaptive-state/policy-engine/internal/orchestrator"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture: one
// conversation, its turns and the expected outcome per turn.
type Fixture struct {
	Description     string                  `json:"description"`
	ConversationID  string                  `json:"conversation_id"`
	StartTime       time.Time               `json:"start_time"`
	Generator       bool                    `json:"generator"` // install the scripted generator
	Config          FixtureConfig           `json:"config"`
	Turns           []FixtureTurn           `json:"turns"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
}

// FixtureTurn is one recorded user turn. Meta is passed through the turn
// normalizer, so any accepted alias works there.
type FixtureTurn struct {
	TurnID          string         `json:"turn_id"`
	Text            string         `json:"text"`
	Meta            map[string]any `json:"meta,omitempty"`
	Generation      string         `json:"generation,omitempty"`
	GenerationError string         `json:"generation_error,omitempty"`
}

// FixtureExpectedResult captures what a turn must produce. Empty fields are
// not checked.
type FixtureExpectedResult struct {
	TurnID   string `json:"turn_id"`
	Act      string `json:"act"`
	QCode    string `json:"qcode,omitempty"`
	Depth    string `json:"depth,omitempty"`
	Severity string `json:"severity,omitempty"`
	Lane     string `json:"lane,omitempty"`
	Text     string `json:"text,omitempty"`
}

// FixtureConfig overrides engine tunables for a replay run.
type FixtureConfig struct {
	Strategy   string `json:"strategy,omitempty"`
	SoftStreak int    `json:"soft_streak,omitempty"`
	HardStreak int    `json:"hard_streak,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if f.ConversationID == "" {
		f.ConversationID = filepath.Base(path)
	}
	return &f, nil
}

// LoadDir loads every *.json fixture in dir, sorted by file name.
func LoadDir(dir string) ([]*Fixture, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("glob fixtures: %w", err)
	}
	sort.Strings(paths)
	out := make([]*Fixture, 0, len(paths))
	for _, p := range paths {
		f, err := LoadFixture(p)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// ToEngineConfig applies the fixture overrides to base.
func (fc FixtureConfig) ToEngineConfig(base orchestrator.Config) orchestrator.Config {
	if fc.Strategy != "" {
		base.Strategy = fc.Strategy
	}
	if fc.SoftStreak > 0 {
		base.Stall.SoftStreak = fc.SoftStreak
	}
	if fc.HardStreak > 0 {
		base.Stall.HardStreak = fc.HardStreak
	}
	return base
}

// #endregion fixture-loader
