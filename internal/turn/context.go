// Package turn defines the per-turn input value threaded through every
// pipeline stage.
package turn

import (
	"strings"
	"time"
)

// #region version

// Version is the TurnContext schema version produced by Normalize.
const Version = 1

// #endregion version

// #region message

// Role identifies who authored a history line.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one history line, oldest first in a History slice.
type Message struct {
	Role   Role   `mapstructure:"role" json:"role"`
	Text   string `mapstructure:"text" json:"text"`
	TurnID string `mapstructure:"turnId" json:"turnId,omitempty"`
}

// #endregion message

// #region hard-stop

// HardStop is an upstream request that overrides the normal decision path.
type HardStop string

const (
	StopNone    HardStop = ""
	StopSilence HardStop = "SILENCE"
	StopBlock   HardStop = "BLOCK"
	StopError   HardStop = "ERROR"
)

// #endregion hard-stop

// #region goal-kind

// GoalKind hints which direction candidates the placeholder gate ranks.
type GoalKind string

const (
	GoalStabilize GoalKind = "stabilize"
	GoalUncover   GoalKind = "uncover"
	GoalForward   GoalKind = "forward"
)

// #endregion goal-kind

// #region context

// Context is the explicit, versioned input for one turn. Build it with
// Normalize (or a literal in tests) and pass it by value; stages must not
// mutate History in place.
type Context struct {
	Version        int       `mapstructure:"version"`
	ConversationID string    `mapstructure:"conversationId"`
	TurnID         string    `mapstructure:"turnId"`
	Text           string    `mapstructure:"text"`
	History        []Message `mapstructure:"history"`
	Now            time.Time `mapstructure:"now"`

	// Anchor evidence.
	ChoiceID string `mapstructure:"choiceId"`
	ActionID string `mapstructure:"actionId"`

	// Explicit upstream flags.
	DeclarationOK   bool     `mapstructure:"declarationOk"`
	DeepenOK        bool     `mapstructure:"deepenOk"`
	IntentConfirmed bool     `mapstructure:"intentConfirmed"`
	GoalKind        GoalKind `mapstructure:"goalKind"`
	HardStop        HardStop `mapstructure:"hardStop"`
	AllowLLM        *bool    `mapstructure:"allowLLM"`
	AllowRender     *bool    `mapstructure:"allowRender"`

	// Upstream signal overrides. Empty values mean "derive locally".
	RepeatSignal string `mapstructure:"repeatSignal"`
	FlowDelta    *int   `mapstructure:"flowDelta"`
	AnchorReason string `mapstructure:"anchorReason"`
	ConvReason   string `mapstructure:"convReason"`
}

// WithHistory returns a copy of c with its own History backing array.
func (c Context) WithHistory(h []Message) Context {
	c.History = append([]Message(nil), h...)
	return c
}

// LLMAllowed resolves the allowLLM flag (default true).
func (c Context) LLMAllowed() bool {
	return c.AllowLLM == nil || *c.AllowLLM
}

// RenderAllowed resolves the allowRender flag (default true).
func (c Context) RenderAllowed() bool {
	return c.AllowRender == nil || *c.AllowRender
}

// UserLines returns the text of user history lines, oldest first.
func (c Context) UserLines() []string {
	out := make([]string, 0, len(c.History))
	for _, m := range c.History {
		if m.Role == RoleUser {
			out = append(out, m.Text)
		}
	}
	return out
}

// LastUserText returns the most recent user line that is not an echo of the
// current turn, or "".
func (c Context) LastUserText() string {
	for i := len(c.History) - 1; i >= 0; i-- {
		m := c.History[i]
		if m.Role != RoleUser {
			continue
		}
		if c.TurnID != "" && m.TurnID == c.TurnID && strings.TrimSpace(m.Text) == strings.TrimSpace(c.Text) {
			continue
		}
		return m.Text
	}
	return ""
}

// #endregion context
