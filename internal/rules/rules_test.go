package rules

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contains(sub string) func(string) bool {
	return func(s string) bool { return strings.Contains(s, sub) }
}

func TestTable_FirstMatchWinsByPriority(t *testing.T) {
	tbl := NewTable(
		Rule[string, int]{Name: "low", Priority: 20, Match: contains("a"), Result: 2},
		Rule[string, int]{Name: "high", Priority: 10, Match: contains("a"), Result: 1},
	)

	out, name, ok := tbl.First("abc")
	require.True(t, ok)
	assert.Equal(t, 1, out)
	assert.Equal(t, "high", name)
	assert.Equal(t, []string{"high", "low"}, tbl.Names())
}

func TestTable_StableForEqualPriority(t *testing.T) {
	tbl := NewTable(
		Rule[string, string]{Name: "first", Match: contains("x"), Result: "first"},
		Rule[string, string]{Name: "second", Match: contains("x"), Result: "second"},
	)
	out, _, ok := tbl.First("x")
	require.True(t, ok)
	assert.Equal(t, "first", out)
}

func TestTable_NoMatch(t *testing.T) {
	tbl := NewTable(
		Rule[string, int]{Name: "nil-match", Result: 9},
		Rule[string, int]{Name: "z", Match: contains("z"), Result: 1},
	)
	out, name, ok := tbl.First("abc")
	assert.False(t, ok)
	assert.Zero(t, out)
	assert.Empty(t, name)
}

func TestTable_MatchingAndWith(t *testing.T) {
	base := NewTable(
		Rule[string, int]{Name: "a", Priority: 1, Match: contains("a"), Result: 1},
	)
	ext := base.With(Rule[string, int]{Name: "b", Priority: 0, Match: contains("b"), Result: 2})

	assert.Equal(t, 1, base.Len())
	assert.Equal(t, 2, ext.Len())
	assert.Equal(t, []string{"b", "a"}, ext.Matching("ab"))
	out, _, _ := ext.First("ab")
	assert.Equal(t, 2, out)
}
